package controller

import (
	"net/http"
)

func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if c.App.RedisClient != nil {
		if err := c.App.RedisClient.Health(r.Context()); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "errored", "error": "redis connection error"})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "chains": c.App.Registry.Chains()})
}
