package api

import (
	"context"

	"github.com/canopy-network/govunlock/app/api/types"
	"github.com/canopy-network/govunlock/pkg/logging"
	"github.com/canopy-network/govunlock/pkg/redis"
	"github.com/canopy-network/govunlock/pkg/rpc"
	"github.com/canopy-network/govunlock/pkg/unlock"
	"github.com/canopy-network/govunlock/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New("api")
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	endpoints, err := utils.ParseChainEndpoints(utils.Env("CHAIN_ENDPOINTS", ""))
	if err != nil {
		logger.Fatal("Invalid CHAIN_ENDPOINTS", zap.Error(err))
	}
	if len(endpoints) == 0 {
		logger.Warn("CHAIN_ENDPOINTS is empty, every account route will answer 404")
	}

	registry := unlock.NewRegistry()
	registry.RegisterEndpoints(rpc.NewHTTPFactory(rpc.Opts{Registerer: metrics}), endpoints)
	logger.Info("Chains registered", zap.Strings("chains", registry.Chains()))

	var feed unlock.ChangeFeed = &unlock.PollingFeed{
		Registry: registry,
		Interval: utils.EnvDuration("HEAD_POLL_INTERVAL", 0),
		Logger:   logger,
	}

	// Head stream is optional; polling stays on as a fallback.
	var redisClient *redis.Client
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - head stream feed will be disabled",
				zap.Error(err))
			redisClient = nil
		} else {
			feed = unlock.MergeFeeds(feed, redis.NewHeadStreamFeed(redisClient, logger))
			logger.Info("Redis client initialized for the head stream feed")
		}
	} else {
		logger.Info("Redis disabled - falling back to head polling only")
	}

	service, err := unlock.NewService(unlock.Config{
		Registry:         registry,
		Feed:             feed,
		Logger:           logger,
		Registerer:       metrics,
		Workers:          utils.EnvInt("SNAPSHOT_WORKERS", 16),
		GovernanceLockID: utils.Env("GOVERNANCE_LOCK_ID", ""),
	})
	if err != nil {
		logger.Fatal("Unable to initialize unlock service", zap.Error(err))
	}

	return &types.App{
		Registry:    registry,
		Service:     service,
		Metrics:     metrics,
		RedisClient: redisClient,
		Logger:      logger,
	}
}
