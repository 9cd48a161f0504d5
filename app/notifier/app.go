package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/canopy-network/govunlock/pkg/governance"
	"github.com/canopy-network/govunlock/pkg/logging"
	"github.com/canopy-network/govunlock/pkg/redis"
	"github.com/canopy-network/govunlock/pkg/rpc"
	"github.com/canopy-network/govunlock/pkg/unlock"
	"github.com/canopy-network/govunlock/pkg/utils"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const defaultCronSpec = "*/30 * * * * *"

// Evaluator loads the chain state for one watched account.
type Evaluator interface {
	LoadSnapshot(ctx context.Context, key unlock.Key) (unlock.Snapshot, error)
}

// App watches a fixed set of accounts and, every Cron tick, publishes the
// chain heads it saw plus any newly claimable governance unlocks.
type App struct {
	Evaluator Evaluator
	Calc      *governance.Calculator

	// Cron is the scheduler that triggers reconcile passes at specified intervals, according to CronSpec.
	Cron     *cron.Cron
	CronSpec string

	// Publisher (log or redis)
	Publisher Publisher

	Watches []unlock.Key

	// Notified holds the last announced claimable amount per key; a key is dropped once nothing is claimable.
	Notified *xsync.Map[unlock.Key, governance.Balance]

	Metrics *prometheus.Registry
	sent    prometheus.Counter
	failed  prometheus.Counter
	ready   atomic.Bool

	// Logger is used to log messages, errors, and events during the application's lifecycle and operations.
	Logger *zap.Logger

	// Server serves health probes and metrics.
	Server *http.Server
}

// New wires an App around its collaborators. Initialize builds them from the environment.
func New(evaluator Evaluator, publisher Publisher, watches []unlock.Key, cronSpec string, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cronSpec == "" {
		cronSpec = defaultCronSpec
	}
	metrics := prometheus.NewRegistry()
	factory := promauto.With(metrics)
	return &App{
		Evaluator: evaluator,
		Calc:      governance.NewCalculator(logger),
		CronSpec:  cronSpec,
		Publisher: publisher,
		Watches:   watches,
		Notified:  xsync.NewMap[unlock.Key, governance.Balance](),
		Metrics:   metrics,
		sent: factory.NewCounter(prometheus.CounterOpts{
			Name: "govunlock_notifier_notifications_total",
			Help: "Claimable notifications published.",
		}),
		failed: factory.NewCounter(prometheus.CounterOpts{
			Name: "govunlock_notifier_failures_total",
			Help: "Watched accounts that failed to evaluate or publish.",
		}),
		Logger: logger,
	}
}

// Initialize initializes the App.
func Initialize(ctx context.Context) (*App, error) {
	logger, err := logging.New("notifier")
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	endpoints, err := utils.ParseChainEndpoints(utils.Env("CHAIN_ENDPOINTS", ""))
	if err != nil {
		return nil, err
	}
	watches, err := ParseWatches(utils.Env("WATCH_ACCOUNTS", ""))
	if err != nil {
		return nil, err
	}
	if len(watches) == 0 {
		logger.Warn("WATCH_ACCOUNTS is empty, only health probes will run")
	}

	registry := unlock.NewRegistry()
	registry.RegisterEndpoints(rpc.NewHTTPFactory(rpc.Opts{}), endpoints)

	service, err := unlock.NewService(unlock.Config{
		Registry:         registry,
		Logger:           logger,
		GovernanceLockID: utils.Env("GOVERNANCE_LOCK_ID", ""),
	})
	if err != nil {
		return nil, err
	}

	var publisher Publisher = NewLogPublisher(logger)
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		client, err := redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - notifications will only be logged", zap.Error(err))
		} else {
			publisher = NewRedisPublisher(client)
		}
	}

	app := New(service, publisher, watches, utils.Env("NOTIFIER_CRON", defaultCronSpec), logger)
	if err := app.SetupScheduler(ctx, cron.VerbosePrintfLogger(zap.NewStdLog(logger)), app.CronSpec); err != nil {
		return nil, err
	}
	return app, nil
}

// SetupServer sets up the HTTP server.
func (a *App) SetupServer() {
	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := utils.Env("ADDR", ":3002")

	r := mux.NewRouter()

	r.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })).Methods(http.MethodGet)
	r.Handle("/readyz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if a.Ready() {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(a.Metrics, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	a.Server = &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
}

// SetupScheduler sets up the cron scheduler.
func (a *App) SetupScheduler(ctx context.Context, logger cron.Logger, cronSpec string) error {
	// Seconds field, optional
	a.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(logger)))

	_, err := a.Cron.AddFunc(cronSpec, func() {
		// keep each run bounded
		rctx, cancel := context.WithTimeout(ctx, 25*time.Second)
		defer cancel()
		if err := a.Reconcile(rctx); err != nil {
			a.Logger.Warn("[notifier] reconcile error", zap.Error(err))
		}
	})
	return err
}

// StartCron starts the cron scheduler.
func (a *App) StartCron() {
	a.Cron.Start()
	a.Logger.Info("[notifier] Cron started", zap.String("cronSpec", a.CronSpec))
}

// StopCron stops the cron scheduler.
func (a *App) StopCron() {
	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
	if err := a.Publisher.Close(); err != nil {
		a.Logger.Warn("[notifier] publisher close", zap.Error(err))
	}
	if closer, ok := a.Evaluator.(interface{ Close() }); ok {
		closer.Close()
	}
}

// Reconcile evaluates every watched account once. One account failing does not stop the others.
func (a *App) Reconcile(ctx context.Context) error {
	var errs []error
	for _, key := range a.Watches {
		if err := a.reconcileKey(ctx, key); err != nil {
			a.failed.Inc()
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	err := errors.Join(errs...)
	if err == nil {
		a.ready.Store(true)
	}
	return err
}

func (a *App) reconcileKey(ctx context.Context, key unlock.Key) error {
	snap, err := a.Evaluator.LoadSnapshot(ctx, key)
	if err != nil {
		return err
	}
	if err := a.Publisher.PublishHead(ctx, key.Chain, snap.Head); err != nil {
		return fmt.Errorf("publish head: %w", err)
	}

	schedule := a.Calc.ClaimSchedule(snap.Snapshot)
	chunk, ok := schedule.Claimable()
	if !ok {
		a.Notified.Delete(key)
		return nil
	}
	if last, seen := a.Notified.Load(key); seen && last == chunk.Amount {
		return nil
	}

	calls, err := governance.UnlockCalls(&chunk, key.Account)
	if err != nil {
		return err
	}
	n := Notification{
		Chain:   key.Chain,
		Account: key.Account,
		Head:    uint64(snap.Head),
		Amount:  governance.FormatBalance(chunk.Amount),
		Calls:   calls,
	}
	if err := a.Publisher.PublishClaimable(ctx, n); err != nil {
		return fmt.Errorf("publish claimable: %w", err)
	}
	a.Notified.Store(key, chunk.Amount)
	a.sent.Inc()
	a.Logger.Info("[notifier] claimable unlock announced",
		zap.String("key", key.String()),
		zap.String("amount", n.Amount))
	return nil
}

// ReconcileOnce is a convenience wrapper for Reconcile.
func (a *App) ReconcileOnce(ctx context.Context) {
	if err := a.Reconcile(ctx); err != nil {
		a.Logger.Warn("[notifier] initial reconcile error", zap.Error(err))
	}
}

// Ready reports whether at least one reconcile pass has fully succeeded.
func (a *App) Ready() bool { return a.ready.Load() || len(a.Watches) == 0 }

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()
	_ = a.Server.Close()
	a.Logger.Info("[notifier] shutting down…")
	a.StopCron()
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
