package unlock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/canopy-network/govunlock/pkg/governance"
	"github.com/canopy-network/govunlock/pkg/retry"
)

func bal(v uint64) governance.Balance { return governance.NewBalance(v) }

// fakeSources holds a mutable chain state: 100 locked on track 0 until 500,
// 50 on track 1 until 800, and a 70 vesting lock next to the governance lock.
type fakeSources struct {
	mu        sync.Mutex
	head      governance.BlockNumber
	failures  int
	headCalls int
	err       error
	vesting   governance.Balance
}

func newFakeSources(head governance.BlockNumber) *fakeSources {
	return &fakeSources{head: head, vesting: bal(70)}
}

func (f *fakeSources) setVesting(v governance.Balance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vesting = v
}

func (f *fakeSources) setHead(h governance.BlockNumber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head = h
}

func (f *fakeSources) failNext(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures, f.err = n, err
}

func (f *fakeSources) ChainHead(context.Context) (governance.BlockNumber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headCalls++
	if f.failures > 0 {
		f.failures--
		return 0, f.err
	}
	return f.head, nil
}

func (f *fakeSources) BlockDuration(context.Context) (time.Duration, error) {
	return 6 * time.Second, nil
}

func (f *fakeSources) VotingFor(_ context.Context, account string) (map[governance.TrackID]governance.Voting, error) {
	if account != "alice" {
		return map[governance.TrackID]governance.Voting{}, nil
	}
	return map[governance.TrackID]governance.Voting{
		0: {Votes: []governance.Vote{governance.StandardVote(1, 0, bal(100), governance.None)}},
		1: {Votes: []governance.Vote{governance.StandardVote(2, 1, bal(50), governance.None)}},
	}, nil
}

func (f *fakeSources) AllReferenda(context.Context) (map[governance.ReferendumID]governance.Referendum, error) {
	return map[governance.ReferendumID]governance.Referendum{
		1: {ID: 1, Track: 0, Timeline: []governance.TimelineEntry{{State: governance.StateCreated, Block: 1}, {State: governance.StateApproved, Block: 500}}},
		2: {ID: 2, Track: 1, Timeline: []governance.TimelineEntry{{State: governance.StateCreated, Block: 1}, {State: governance.StateRejected, Block: 800}}},
	}, nil
}

func (f *fakeSources) Tracks(context.Context) (map[governance.TrackID]governance.TrackInfo, error) {
	return map[governance.TrackID]governance.TrackInfo{
		0: {ID: 0, Name: "root", UndecidingTimeout: 1000},
		1: {ID: 1, Name: "treasurer", UndecidingTimeout: 1000},
	}, nil
}

func (f *fakeSources) VoteLockingPeriod(context.Context) (governance.BlockNumber, error) {
	return 100, nil
}

func (f *fakeSources) TrackLocks(_ context.Context, account string) (map[governance.TrackID]governance.Balance, error) {
	if account != "alice" {
		return map[governance.TrackID]governance.Balance{}, nil
	}
	return map[governance.TrackID]governance.Balance{0: bal(100), 1: bal(50)}, nil
}

func (f *fakeSources) BalanceLocks(context.Context, string) ([]governance.BalanceLock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return []governance.BalanceLock{
		{ID: governance.DefaultLockID, Amount: bal(100)},
		{ID: "vesting", Amount: f.vesting},
	}, nil
}

func (f *fakeSources) AssetBalance(context.Context, string) (governance.AssetBalance, error) {
	return governance.AssetBalance{Free: bal(1000), Transferable: bal(900), Total: bal(1000)}, nil
}

// manualFeed signals every subscriber when poke is called.
type manualFeed struct {
	mu   sync.Mutex
	outs map[chan struct{}]struct{}
}

func newManualFeed() *manualFeed {
	return &manualFeed{outs: map[chan struct{}]struct{}{}}
}

func (m *manualFeed) Changes(ctx context.Context, _ Key) <-chan struct{} {
	out := make(chan struct{}, 1)
	out <- struct{}{}
	m.mu.Lock()
	m.outs[out] = struct{}{}
	m.mu.Unlock()
	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.outs, out)
		close(out)
		m.mu.Unlock()
	}()
	return out
}

func (m *manualFeed) poke() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for out := range m.outs {
		Signal(out)
	}
}

func fastRetry() retry.Config {
	return retry.Config{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

var errGatewayDown = errors.New("gateway down")
