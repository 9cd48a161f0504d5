package controller

import (
	"net/http"
	"strings"

	"github.com/canopy-network/govunlock/app/api/types"
	"github.com/canopy-network/govunlock/pkg/utils"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Controller serves the unlock API. Account routes accept either the
// AdminToken bearer or a session cookie signed with JWTSecret.
type Controller struct {
	App        *types.App
	AdminToken string
	Users      map[string]types.User
	JWTSecret  []byte
}

// NewController reads credentials from ADMIN_TOKEN, ADMIN_USER, ADMIN_PASSWORD,
// ADMIN_USERS (a JSON object of extra users) and SESSION_SECRET.
func NewController(app *types.App) *Controller {
	users := map[string]types.User{}

	name := utils.Env("ADMIN_USER", "admin")
	hash, err := utils.HashOrRead(utils.Env("ADMIN_PASSWORD", "admin"))
	if err != nil {
		app.Logger.Error("hash admin password, login disabled for admin", zap.Error(err))
	} else {
		users[name] = types.User{Username: name, Hash: hash, Role: "admin"}
	}

	if extra := utils.Env("ADMIN_USERS", ""); extra != "" {
		var more map[string]types.User
		if err := json.Unmarshal([]byte(extra), &more); err != nil {
			app.Logger.Error("ignoring malformed ADMIN_USERS", zap.Error(err))
		}
		for k, u := range more {
			if u.Username == "" {
				u.Username = k
			}
			users[k] = u
		}
	}

	return &Controller{
		App:        app,
		AdminToken: utils.Env("ADMIN_TOKEN", "devtoken"),
		Users:      users,
		JWTSecret:  []byte(utils.Env("SESSION_SECRET", "change-me-please")),
	}
}

// WithCORS adds CORS headers. Credentialed requests are allowed only from
// allowedOrigins; with none configured every origin is echoed back, which is
// meant for development (set CORS_ALLOWED_ORIGINS in production).
func WithCORS(next http.Handler, allowedOrigins ...string) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(o, "/")] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		switch {
		case origin == "":
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case len(allowed) == 0 || allowed[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter wires the public probes, the login endpoints and the
// authenticated per-account routes.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)

	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if c.App.Metrics != nil {
		gatherer = c.App.Metrics
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.HandleFunc("/auth/login", c.HandleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", c.HandleLogout).Methods(http.MethodPost)

	accounts := r.PathPrefix("/chains/{chain}/accounts/{account}").Subrouter()
	accounts.Use(c.RequireAuth)
	accounts.HandleFunc("/schedule", c.HandleSchedule).Methods(http.MethodGet)
	accounts.HandleFunc("/locks", c.HandleLocks).Methods(http.MethodGet)
	accounts.HandleFunc("/unlock/affects", c.HandleUnlockAffects).Methods(http.MethodGet)
	accounts.HandleFunc("/unlock/calls", c.HandleUnlockCalls).Methods(http.MethodGet)

	r.Handle("/ws", c.RequireAuth(http.HandlerFunc(c.HandleWebSocket))).Methods(http.MethodGet)

	return r, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
