package governance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestClaimSchedule_SingleLockSemantics(t *testing.T) {
	calc := NewCalculator(zaptest.NewLogger(t))

	s := calc.ClaimSchedule(twoTrackSnapshot(100))
	assert.Equal(t, bal(100), s.TotalLocked(), "tracks combine by max, not sum")
	_, ok := s.Claimable()
	assert.False(t, ok)
	assert.Equal(t, []UnlockChunk{
		{Kind: ChunkPending, Amount: bal(50), ClaimableAt: 500},
		{Kind: ChunkPending, Amount: bal(50), ClaimableAt: 800},
	}, s.Chunks)

	ceilings := calc.Ceilings(twoTrackSnapshot(100))
	global := func(b BlockNumber) Balance {
		var g Balance
		for _, c := range ceilings {
			g = MaxBalance(g, c.At(b))
		}
		return g
	}
	assert.Equal(t, bal(100), global(499))
	assert.Equal(t, bal(50), global(500))
	assert.Equal(t, bal(0), global(800))
}

func TestClaimSchedule_ClaimableActions(t *testing.T) {
	calc := NewCalculator(zaptest.NewLogger(t))

	t.Run("partially claimable touches only the binding track", func(t *testing.T) {
		s := calc.ClaimSchedule(twoTrackSnapshot(600))
		chunk, ok := s.Claimable()
		require.True(t, ok)
		assert.Equal(t, bal(50), chunk.Amount)
		assert.Equal(t, []ClaimAction{RemoveVote(0, 1), Unlock(0)}, chunk.Actions)
		assert.Equal(t, []UnlockChunk{{Kind: ChunkPending, Amount: bal(50), ClaimableAt: 800}}, s.Pending())
	})

	t.Run("fully claimable touches every track", func(t *testing.T) {
		s := calc.ClaimSchedule(twoTrackSnapshot(900))
		chunk, ok := s.Claimable()
		require.True(t, ok)
		assert.Equal(t, bal(100), chunk.Amount)
		assert.Equal(t, []ClaimAction{RemoveVote(0, 1), Unlock(0), RemoveVote(1, 2), Unlock(1)}, chunk.Actions)
		assert.Empty(t, s.Pending())
	})
}

func TestClaimSchedule_Idempotent(t *testing.T) {
	calc := NewCalculator(zaptest.NewLogger(t))
	snap := twoTrackSnapshot(600)

	first := calc.ClaimSchedule(snap)
	second := calc.ClaimSchedule(snap)
	assert.True(t, first.Equal(second))
	assert.Equal(t, first, second)
}

func TestClaimSchedule_Conservation(t *testing.T) {
	calc := NewCalculator(zaptest.NewLogger(t))
	snap := Snapshot{
		Head: 700,
		Voting: map[TrackID]Voting{
			0:  {Votes: []Vote{StandardVote(1, 0, bal(300), Locked1x), StandardVote(2, 0, bal(120), None)}},
			2:  {Votes: []Vote{StandardVote(3, 2, bal(250), Locked6x)}, Prior: PriorLock{UnlockAt: 650, Amount: bal(400)}},
			11: {Votes: []Vote{StandardVote(4, 11, bal(90), None)}, Delegation: &Delegation{Target: "carol", Amount: bal(60)}},
		},
		Referenda: refs(decided(1, 0, 400), decided(2, 0, 900), decided(3, 2, 600), ongoing(4, 11, 650)),
		Tracks: map[TrackID]TrackInfo{
			0:  {ID: 0, UndecidingTimeout: 200},
			2:  {ID: 2, UndecidingTimeout: 200},
			11: {ID: 11, UndecidingTimeout: 200},
		},
		VoteLockingPeriod: 100,
		TrackLocks:        map[TrackID]Balance{0: bal(300), 2: bal(450), 11: bal(90)},
	}

	for _, head := range []BlockNumber{0, 400, 500, 650, 700, 900, 1000, 5000} {
		snap.Head = head
		s := calc.ClaimSchedule(snap)

		var want Balance
		for _, c := range calc.Ceilings(snap) {
			want = MaxBalance(want, c.Initial)
		}
		assert.Equal(t, want, sumChunks(s), "head %d", head)
		assert.Equal(t, bal(450), s.TotalLocked(), "head %d", head)

		for i, c := range s.Pending() {
			if i > 0 {
				assert.Less(t, uint64(s.Pending()[i-1].ClaimableAt), uint64(c.ClaimableAt))
			}
			assert.Greater(t, uint64(c.ClaimableAt), uint64(head))
		}
	}
}

func TestClaimSchedule_MonotonicRelease(t *testing.T) {
	calc := NewCalculator(zaptest.NewLogger(t))

	before := calc.ClaimSchedule(twoTrackSnapshot(499))
	after := calc.ClaimSchedule(twoTrackSnapshot(500))

	require.Len(t, before.Pending(), 2)
	released := before.Pending()[0]
	assert.Equal(t, BlockNumber(500), released.ClaimableAt)

	chunk, ok := after.Claimable()
	require.True(t, ok)
	assert.Equal(t, released.Amount, chunk.Amount)
	assert.Equal(t, before.Pending()[1:], after.Pending())
}

func TestClaimSchedule_NeverUnlocksSortsLast(t *testing.T) {
	calc := NewCalculator(zaptest.NewLogger(t))
	snap := twoTrackSnapshot(100)
	snap.Voting[1] = Voting{Votes: []Vote{StandardVote(9, 1, bal(150), None)}}
	snap.TrackLocks[1] = bal(150)

	s := calc.ClaimSchedule(snap)
	require.NotEmpty(t, s.Chunks)
	last := s.Chunks[len(s.Chunks)-1]
	assert.Equal(t, NeverUnlocks, last.ClaimableAt)
	assert.Equal(t, bal(150), s.TotalLocked())
}

func TestClaimSchedule_UnknownTrackSkipped(t *testing.T) {
	calc := NewCalculator(zaptest.NewLogger(t))
	snap := twoTrackSnapshot(100)
	delete(snap.Tracks, 0)

	s := calc.ClaimSchedule(snap)
	assert.Equal(t, bal(50), s.TotalLocked())
}

func TestClaimSchedule_ExcessTrackLockClaimableNow(t *testing.T) {
	calc := NewCalculator(zaptest.NewLogger(t))
	snap := twoTrackSnapshot(100)
	snap.Voting[0] = Voting{}
	snap.TrackLocks[0] = bal(100)

	s := calc.ClaimSchedule(snap)
	chunk, ok := s.Claimable()
	require.True(t, ok)
	assert.Equal(t, bal(50), chunk.Amount)
	assert.Equal(t, []ClaimAction{Unlock(0)}, chunk.Actions)
}

func TestClaimSchedule_Empty(t *testing.T) {
	s := NewCalculator(nil).ClaimSchedule(Snapshot{})
	assert.Empty(t, s.Chunks)
	total := s.TotalLocked()
	assert.True(t, total.IsZero())
}

func TestLocksOverview(t *testing.T) {
	calc := NewCalculator(zaptest.NewLogger(t))
	snap := twoTrackSnapshot(600)
	snap.Voting[2] = Voting{Delegation: &Delegation{Target: "dave", Amount: bal(10)}}
	snap.Tracks[2] = TrackInfo{ID: 2}
	snap.TrackLocks[2] = bal(10)

	o := calc.LocksOverview(snap, 6*time.Second)
	assert.Equal(t, bal(100), o.TotalLocked)
	require.Len(t, o.Locks, 3)

	assert.Equal(t, ChunkClaimable, o.Locks[0].Kind)
	assert.Nil(t, o.Locks[0].Timer)

	require.NotNil(t, o.Locks[1].Timer)
	assert.Equal(t, uint64(200), o.Locks[1].Timer.Blocks)
	assert.Equal(t, 20*time.Minute, o.Locks[1].Timer.Remaining)

	assert.Equal(t, NeverUnlocks, o.Locks[2].ClaimableAt)
	assert.Nil(t, o.Locks[2].Timer)

	assert.True(t, o.Equal(calc.LocksOverview(snap, 6*time.Second)))
	assert.False(t, o.Equal(calc.LocksOverview(snap, 12*time.Second)))
}
