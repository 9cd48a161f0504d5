package unlock

import (
	"context"
	"testing"
	"time"

	"github.com/canopy-network/govunlock/pkg/governance"
	"github.com/canopy-network/govunlock/pkg/multicast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

const wait = 2 * time.Second

func newTestService(t *testing.T, src Sources, feed ChangeFeed) *Service {
	t.Helper()
	reg := NewRegistry()
	reg.Register("polkadot", src)
	svc, err := NewService(Config{
		Registry: reg,
		Feed:     feed,
		Logger:   zaptest.NewLogger(t),
		Retry:    fastRetry(),
		Workers:  4,
	})
	require.NoError(t, err)
	return svc
}

func nextUpdate[V any](t *testing.T, s *multicast.Subscription[V]) multicast.Update[V] {
	t.Helper()
	select {
	case u, ok := <-s.Updates():
		require.True(t, ok, "subscription closed")
		return u
	case <-time.After(wait):
		t.Fatal("timed out waiting for update")
	}
	return multicast.Update[V]{}
}

func TestService_ComputeClaimSchedule(t *testing.T) {
	svc := newTestService(t, newFakeSources(600), newManualFeed())
	defer svc.Close()

	schedule, err := svc.ComputeClaimSchedule(context.Background(), Key{Chain: "polkadot", Account: "alice"})
	require.NoError(t, err)

	chunk, ok := schedule.Claimable()
	require.True(t, ok)
	assert.Equal(t, bal(50), chunk.Amount)
	assert.Equal(t, []governance.ClaimAction{governance.RemoveVote(0, 1), governance.Unlock(0)}, chunk.Actions)
	assert.Equal(t, bal(100), schedule.TotalLocked())
}

func TestService_UnknownChain(t *testing.T) {
	svc := newTestService(t, newFakeSources(600), newManualFeed())
	defer svc.Close()

	_, err := svc.ComputeClaimSchedule(context.Background(), Key{Chain: "kusama", Account: "alice"})
	assert.ErrorIs(t, err, ErrUnknownChain)
}

func TestService_LoadSnapshotRetries(t *testing.T) {
	src := newFakeSources(600)
	src.failNext(2, errGatewayDown)
	svc := newTestService(t, src, newManualFeed())
	defer svc.Close()

	snap, err := svc.LoadSnapshot(context.Background(), Key{Chain: "polkadot", Account: "alice"})
	require.NoError(t, err)
	assert.EqualValues(t, 600, snap.Head)
	assert.Equal(t, 6*time.Second, snap.BlockDuration)
	assert.Len(t, snap.Voting, 2)
	assert.Equal(t, 3, src.headCalls)

	src.failNext(10, errGatewayDown)
	_, err = svc.LoadSnapshot(context.Background(), Key{Chain: "polkadot", Account: "alice"})
	assert.ErrorIs(t, err, errGatewayDown)
}

func TestService_ComputeUnlockAffects(t *testing.T) {
	svc := newTestService(t, newFakeSources(600), newManualFeed())
	defer svc.Close()

	affects, err := svc.ComputeUnlockAffects(context.Background(), Key{Chain: "polkadot", Account: "alice"})
	require.NoError(t, err)

	assert.Equal(t, bal(50), affects.GovernanceLockChange.AbsoluteDifference)
	// vesting (70) still binds above the new governance lock (50)
	assert.Equal(t, bal(30), affects.TransferableChange.AbsoluteDifference)
	require.NotNil(t, affects.RemainsLocked)
	assert.Equal(t, bal(20), affects.RemainsLocked.Amount)
	assert.Equal(t, []string{"vesting"}, affects.RemainsLocked.LockedInIDs)
}

func TestService_UnlockCalls(t *testing.T) {
	src := newFakeSources(100)
	svc := newTestService(t, src, newManualFeed())
	defer svc.Close()
	key := Key{Chain: "polkadot", Account: "alice"}

	_, err := svc.UnlockCalls(context.Background(), key)
	assert.ErrorIs(t, err, governance.ErrNothingToClaim)

	src.setHead(900)
	calls, err := svc.UnlockCalls(context.Background(), key)
	require.NoError(t, err)
	require.Len(t, calls, 4)
	assert.Equal(t, "remove_vote", calls[0].Function)
	assert.Equal(t, map[string]string{"class": "1", "target": "alice"}, calls[3].Args)
}

func TestService_SubscribeOverview(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newFakeSources(100)
	feed := newManualFeed()
	svc := newTestService(t, src, feed)
	defer svc.Close()
	key := Key{Chain: "polkadot", Account: "alice"}

	a := svc.SubscribeOverview(key)
	defer a.Close()
	first := nextUpdate(t, a)
	require.NoError(t, first.Err)
	assert.Equal(t, bal(100), first.Value.TotalLocked)
	_, ok := first.Value.Claimable()
	assert.False(t, ok)

	// a late subscriber shares the flow and sees the latest overview
	b := svc.SubscribeOverview(key)
	defer b.Close()
	assert.True(t, first.Value.Equal(nextUpdate(t, b).Value))

	src.setHead(600)
	feed.poke()
	second := nextUpdate(t, a)
	chunk, ok := second.Value.Claimable()
	require.True(t, ok)
	assert.Equal(t, bal(50), chunk.Amount)
	assert.True(t, second.Value.Equal(nextUpdate(t, b).Value))
}

func TestService_SubscribeOverviewUnknownChain(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := newTestService(t, newFakeSources(100), newManualFeed())
	defer svc.Close()

	s := svc.SubscribeOverview(Key{Chain: "kusama", Account: "alice"})
	defer s.Close()
	u := nextUpdate(t, s)
	assert.ErrorIs(t, u.Err, ErrUnknownChain)
}

func TestService_SubscribeUnlockAffects(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newFakeSources(100)
	feed := newManualFeed()
	svc := newTestService(t, src, feed)
	defer svc.Close()
	key := Key{Chain: "polkadot", Account: "alice"}

	s := svc.SubscribeUnlockAffects(key)
	defer s.Close()

	u := nextUpdate(t, s)
	require.NoError(t, u.Err)
	assert.Nil(t, u.Value.ClaimableChunk)
	assert.False(t, u.Value.TransferableChange.Changed)

	src.setHead(900)
	feed.poke()
	u = nextUpdate(t, s)
	require.NoError(t, u.Err)
	require.NotNil(t, u.Value.ClaimableChunk)
	assert.Equal(t, bal(100), u.Value.ClaimableChunk.Amount)
	assert.Equal(t, bal(30), u.Value.TransferableChange.AbsoluteDifference)
}

func TestService_SubscribeUnlockAffects_FollowsBalanceLocks(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newFakeSources(900)
	feed := newManualFeed()
	svc := newTestService(t, src, feed)
	defer svc.Close()
	key := Key{Chain: "polkadot", Account: "alice"}

	s := svc.SubscribeUnlockAffects(key)
	defer s.Close()

	u := nextUpdate(t, s)
	require.NoError(t, u.Err)
	require.NotNil(t, u.Value.RemainsLocked)
	assert.Equal(t, bal(30), u.Value.TransferableChange.AbsoluteDifference)

	// the overview is unchanged: everything was already claimable
	src.setVesting(bal(0))
	feed.poke()
	u = nextUpdate(t, s)
	require.NoError(t, u.Err)
	assert.Nil(t, u.Value.RemainsLocked)
	assert.Equal(t, bal(1000), u.Value.TransferableChange.New)
	assert.Equal(t, bal(100), u.Value.TransferableChange.AbsoluteDifference)
}

func TestService_SubscribeOverviewPropagatesErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newFakeSources(100)
	feed := newManualFeed()
	svc := newTestService(t, src, feed)
	defer svc.Close()
	key := Key{Chain: "polkadot", Account: "alice"}

	s := svc.SubscribeOverview(key)
	defer s.Close()
	require.NoError(t, nextUpdate(t, s).Err)

	src.failNext(100, errGatewayDown)
	feed.poke()
	u := nextUpdate(t, s)
	assert.ErrorIs(t, u.Err, errGatewayDown)
	_, ok := <-s.Updates()
	assert.False(t, ok)
}
