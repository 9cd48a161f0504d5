package types

import (
	"context"
	"net/http"
	"time"

	"github.com/canopy-network/govunlock/pkg/redis"
	"github.com/canopy-network/govunlock/pkg/unlock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type User struct {
	Username string `json:"username"`
	Hash     []byte `json:"hash"`
	Role     string `json:"role"`
}

type App struct {
	// Chain sources and the live unlock views built on them
	Registry *unlock.Registry
	Service  *unlock.Service

	// Metrics is served on /metrics
	Metrics *prometheus.Registry

	// RedisClient is optional; nil when REDIS_ENABLED is false
	RedisClient *redis.Client

	// Zap Logger
	Logger *zap.Logger

	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
}

// Start serves until ctx ends, then drains connections and closes the service.
func (a *App) Start(ctx context.Context) {
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Error("Server stopped", zap.Error(err))
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.Logger.Info("shutting down server")
	_ = a.Server.Shutdown(shutdownCtx)

	a.Service.Close()

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
