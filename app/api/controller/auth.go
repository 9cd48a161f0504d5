package controller

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/canopy-network/govunlock/pkg/utils"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	sessionCookie = "govunlock_session"
	sessionTTL    = 8 * time.Hour
)

type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// bearerOK reports whether the request carries the API token.
func (c *Controller) bearerOK(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || c.AdminToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(c.AdminToken)) == 1
}

// session returns the claims of a valid session cookie.
func (c *Controller) session(r *http.Request) (*sessionClaims, error) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, err
	}
	claims := &sessionClaims{}
	_, err = jwt.ParseWithClaims(cookie.Value, claims,
		func(*jwt.Token) (any, error) { return c.JWTSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// RequireAuth admits requests carrying the bearer token or a valid session cookie.
func (c *Controller) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.bearerOK(r) {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := c.session(r); err == nil {
			next.ServeHTTP(w, r)
			return
		}
		writeError(w, http.StatusUnauthorized, "unauthorized")
	})
}

func (c *Controller) issueSession(w http.ResponseWriter, username, role string) error {
	now := time.Now()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	}).SignedString(c.JWTSecret)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   utils.Env("ENVIRONMENT", "") == "production",
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(sessionTTL.Seconds()),
	})
	return nil
}

var errBadCredentials = errors.New("invalid credentials")

func (c *Controller) authenticate(username, password string) (string, error) {
	u, ok := c.Users[username]
	if !ok {
		return "", errBadCredentials
	}
	if bcrypt.CompareHashAndPassword(u.Hash, []byte(password)) != nil {
		return "", errBadCredentials
	}
	return u.Role, nil
}

// HandleLogin exchanges a username and password for a session cookie.
func (c *Controller) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	role, err := c.authenticate(in.Username, in.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err := c.issueSession(w, in.Username, role); err != nil {
		c.App.Logger.Error("sign session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user": in.Username, "role": role})
}

// HandleLogout expires the session cookie.
func (c *Controller) HandleLogout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
	w.WriteHeader(http.StatusNoContent)
}
