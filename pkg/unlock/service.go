package unlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/govunlock/pkg/governance"
	"github.com/canopy-network/govunlock/pkg/multicast"
	"github.com/canopy-network/govunlock/pkg/retry"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Snapshot is one consistent read of every source for a key.
type Snapshot struct {
	governance.Snapshot
	BlockDuration time.Duration
}

type Config struct {
	Registry         *Registry
	Feed             ChangeFeed
	Logger           *zap.Logger
	Registerer       prometheus.Registerer
	Retry            retry.Config
	Workers          int
	GovernanceLockID string
}

// Service evaluates claim schedules on demand and keeps shared live views per key.
type Service struct {
	registry *Registry
	feed     ChangeFeed
	logger   *zap.Logger
	retry    retry.Config
	lockID   string
	calc     *governance.Calculator
	pool     pond.Pool

	overviews *multicast.Group[Key, governance.LocksOverview]
	affects   *multicast.Group[Key, governance.UnlockAffects]
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	feed := cfg.Feed
	if feed == nil {
		feed = &PollingFeed{Registry: cfg.Registry, Logger: logger}
	}
	rc := cfg.Retry
	if rc.MaxRetries <= 0 {
		rc = retry.DefaultConfig()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 16
	}
	lockID := cfg.GovernanceLockID
	if lockID == "" {
		lockID = governance.DefaultLockID
	}

	s := &Service{
		registry: cfg.Registry,
		feed:     feed,
		logger:   logger,
		retry:    rc,
		lockID:   lockID,
		calc:     governance.NewCalculator(logger),
		pool:     pond.NewPool(workers, pond.WithQueueSize(workers*16)),
	}
	s.overviews = multicast.New[Key, governance.LocksOverview](multicast.Config{Name: "overview", Registerer: cfg.Registerer, Logger: logger},
		s.produceOverview, governance.LocksOverview.Equal)
	s.affects = multicast.New[Key, governance.UnlockAffects](multicast.Config{Name: "affects", Registerer: cfg.Registerer, Logger: logger},
		s.produceAffects, governance.UnlockAffects.Equal)
	return s, nil
}

// Close stops every live flow and the worker pool.
func (s *Service) Close() {
	s.affects.Close()
	s.overviews.Close()
	s.pool.StopAndWait()
}

func (s *Service) GovernanceLockID() string {
	return s.lockID
}

// LoadSnapshot fetches every source concurrently. The whole load is retried with backoff.
func (s *Service) LoadSnapshot(ctx context.Context, key Key) (Snapshot, error) {
	src, err := s.registry.Lookup(key.Chain)
	if err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	err = retry.WithBackoff(ctx, s.retry, s.logger, "load snapshot "+key.String(), func() error {
		var loadErr error
		snap, loadErr = s.loadOnce(ctx, src, key)
		return loadErr
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *Service) loadOnce(ctx context.Context, src Sources, key Key) (Snapshot, error) {
	var (
		snap Snapshot
		errs [6]error
	)

	group := s.pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	group.Submit(func() {
		snap.Head, errs[0] = src.ChainHead(groupCtx)
	})
	group.Submit(func() {
		snap.BlockDuration, errs[1] = src.BlockDuration(groupCtx)
	})
	group.Submit(func() {
		snap.Voting, errs[2] = src.VotingFor(groupCtx, key.Account)
	})
	group.Submit(func() {
		snap.Referenda, errs[3] = src.AllReferenda(groupCtx)
	})
	group.Submit(func() {
		snap.Tracks, errs[4] = src.Tracks(groupCtx)
		if errs[4] != nil {
			return
		}
		snap.VoteLockingPeriod, errs[4] = src.VoteLockingPeriod(groupCtx)
	})
	group.Submit(func() {
		snap.TrackLocks, errs[5] = src.TrackLocks(groupCtx, key.Account)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		s.logger.Warn("parallel snapshot fetch encountered error", zap.Stringer("key", key), zap.Error(err))
	}
	if err := errors.Join(errs[:]...); err != nil {
		return Snapshot{}, fmt.Errorf("load %s: %w", key, err)
	}
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *Service) accountState(ctx context.Context, key Key) (governance.AssetBalance, []governance.BalanceLock, error) {
	src, err := s.registry.Lookup(key.Chain)
	if err != nil {
		return governance.AssetBalance{}, nil, err
	}

	var (
		asset    governance.AssetBalance
		locks    []governance.BalanceLock
		assetErr error
		lockErr  error
	)
	group := s.pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	group.Submit(func() {
		asset, assetErr = src.AssetBalance(groupCtx, key.Account)
	})
	group.Submit(func() {
		locks, lockErr = src.BalanceLocks(groupCtx, key.Account)
	})
	_ = group.Wait()

	if err := errors.Join(assetErr, lockErr); err != nil {
		return governance.AssetBalance{}, nil, fmt.Errorf("load account %s: %w", key, err)
	}
	return asset, locks, nil
}

func (s *Service) ComputeClaimSchedule(ctx context.Context, key Key) (governance.ClaimSchedule, error) {
	snap, err := s.LoadSnapshot(ctx, key)
	if err != nil {
		return governance.ClaimSchedule{}, err
	}
	return s.calc.ClaimSchedule(snap.Snapshot), nil
}

func (s *Service) ComputeLocksOverview(ctx context.Context, key Key) (governance.LocksOverview, error) {
	snap, err := s.LoadSnapshot(ctx, key)
	if err != nil {
		return governance.LocksOverview{}, err
	}
	return s.calc.LocksOverview(snap.Snapshot, snap.BlockDuration), nil
}

func (s *Service) ComputeUnlockAffects(ctx context.Context, key Key) (governance.UnlockAffects, error) {
	overview, err := s.ComputeLocksOverview(ctx, key)
	if err != nil {
		return governance.UnlockAffects{}, err
	}
	return s.affectsFor(ctx, key, overview)
}

func (s *Service) affectsFor(ctx context.Context, key Key, overview governance.LocksOverview) (governance.UnlockAffects, error) {
	asset, locks, err := s.accountState(ctx, key)
	if err != nil {
		return governance.UnlockAffects{}, err
	}
	return governance.ComputeUnlockAffects(asset, locks, overview, s.lockID), nil
}

// UnlockCalls builds the call batch that claims everything unlockable right now.
func (s *Service) UnlockCalls(ctx context.Context, key Key) ([]governance.Call, error) {
	schedule, err := s.ComputeClaimSchedule(ctx, key)
	if err != nil {
		return nil, err
	}
	chunk, ok := schedule.Claimable()
	if !ok {
		return nil, governance.ErrNothingToClaim
	}
	return governance.UnlockCalls(&chunk, key.Account)
}

// SubscribeOverview attaches to the shared live overview for key.
func (s *Service) SubscribeOverview(key Key) *multicast.Subscription[governance.LocksOverview] {
	return s.overviews.Subscribe(key)
}

// ActiveOverview reports whether a live overview flow is running for key.
func (s *Service) ActiveOverview(key Key) bool {
	return s.overviews.Active(key)
}

// SubscribeUnlockAffects attaches to the shared live unlock projection for key.
func (s *Service) SubscribeUnlockAffects(key Key) *multicast.Subscription[governance.UnlockAffects] {
	return s.affects.Subscribe(key)
}

func (s *Service) produceOverview(ctx context.Context, key Key, emit func(governance.LocksOverview)) error {
	if _, err := s.registry.Lookup(key.Chain); err != nil {
		return err
	}

	changes := s.feed.Changes(ctx, key)
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			overview, err := s.ComputeLocksOverview(ctx, key)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			emit(overview)
		}
	}
}

// produceAffects recomputes on every overview change and on every feed
// signal, so balance and lock changes that leave the overview as it was
// still reach subscribers.
func (s *Service) produceAffects(ctx context.Context, key Key, emit func(governance.UnlockAffects)) error {
	sub := s.overviews.Subscribe(key)
	defer sub.Close()
	changes := s.feed.Changes(ctx, key)

	var (
		overview governance.LocksOverview
		have     bool
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-sub.Updates():
			if !ok {
				return nil
			}
			if u.Err != nil {
				return u.Err
			}
			overview, have = u.Value, true
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if !have {
				continue
			}
		}

		affects, err := s.affectsFor(ctx, key, overview)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		emit(affects)
	}
}
