package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/canopy-network/govunlock/app/api/controller/types"
	"github.com/canopy-network/govunlock/pkg/governance"
	"github.com/canopy-network/govunlock/pkg/unlock"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxAccountLen = 128

// keyFromRequest reads {chain} and {account}; the bool is false when a 400 was written.
func keyFromRequest(w http.ResponseWriter, r *http.Request) (unlock.Key, bool) {
	vars := mux.Vars(r)
	key := unlock.Key{Chain: vars["chain"], Account: vars["account"]}
	if !validIdent(key.Chain, 64) {
		writeError(w, http.StatusBadRequest, "invalid chain")
		return key, false
	}
	if !validIdent(key.Account, maxAccountLen) {
		writeError(w, http.StatusBadRequest, "invalid account")
		return key, false
	}
	return key, true
}

// validIdent accepts ASCII letters, digits, '-' and '_'.
func validIdent(s string, maxLen int) bool {
	if s == "" || len(s) > maxLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '-', ch == '_':
		default:
			return false
		}
	}
	return true
}

func (c *Controller) writeServiceError(w http.ResponseWriter, key unlock.Key, err error) {
	switch {
	case errors.Is(err, unlock.ErrUnknownChain):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, governance.ErrNothingToClaim):
		writeError(w, http.StatusConflict, err.Error())
	default:
		c.App.Logger.Warn("unlock query failed", zap.String("key", key.String()), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (c *Controller) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	key, ok := keyFromRequest(w, r)
	if !ok {
		return
	}
	schedule, err := c.App.Service.ComputeClaimSchedule(r.Context(), key)
	if err != nil {
		c.writeServiceError(w, key, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewSchedule(key.Chain, key.Account, schedule))
}

func (c *Controller) HandleLocks(w http.ResponseWriter, r *http.Request) {
	key, ok := keyFromRequest(w, r)
	if !ok {
		return
	}
	overview, err := c.App.Service.ComputeLocksOverview(r.Context(), key)
	if err != nil {
		c.writeServiceError(w, key, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewOverview(key.Chain, key.Account, overview, time.Now()))
}

func (c *Controller) HandleUnlockAffects(w http.ResponseWriter, r *http.Request) {
	key, ok := keyFromRequest(w, r)
	if !ok {
		return
	}
	affects, err := c.App.Service.ComputeUnlockAffects(r.Context(), key)
	if err != nil {
		c.writeServiceError(w, key, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewAffects(key.Chain, key.Account, affects))
}

func (c *Controller) HandleUnlockCalls(w http.ResponseWriter, r *http.Request) {
	key, ok := keyFromRequest(w, r)
	if !ok {
		return
	}
	calls, err := c.App.Service.UnlockCalls(r.Context(), key)
	if err != nil {
		c.writeServiceError(w, key, err)
		return
	}
	writeJSON(w, http.StatusOK, types.CallsResponse{Chain: key.Chain, Account: key.Account, Calls: calls})
}
