package governance

import (
	"time"

	"github.com/canopy-network/govunlock/pkg/blocktime"
)

// OverviewLock is a schedule chunk decorated for display. Timer is nil for
// claimable chunks and for chunks that never unlock.
type OverviewLock struct {
	Kind        ChunkKind
	Amount      Balance
	Actions     []ClaimAction
	ClaimableAt BlockNumber
	Timer       *blocktime.Timer
}

type LocksOverview struct {
	TotalLocked Balance
	Locks       []OverviewLock
	Schedule    ClaimSchedule
}

// BuildOverview projects a schedule into display locks with timers relative to head.
func BuildOverview(schedule ClaimSchedule, head BlockNumber, blockDuration time.Duration) LocksOverview {
	est := blocktime.New(uint64(head), blockDuration)
	locks := make([]OverviewLock, 0, len(schedule.Chunks))
	for _, c := range schedule.Chunks {
		lock := OverviewLock{Kind: c.Kind, Amount: c.Amount, Actions: c.Actions, ClaimableAt: c.ClaimableAt}
		if c.Kind == ChunkPending && c.ClaimableAt != NeverUnlocks {
			timer := est.TimerUntil(uint64(c.ClaimableAt))
			lock.Timer = &timer
		}
		locks = append(locks, lock)
	}
	return LocksOverview{
		TotalLocked: schedule.TotalLocked(),
		Locks:       locks,
		Schedule:    schedule,
	}
}

func (c *Calculator) LocksOverview(s Snapshot, blockDuration time.Duration) LocksOverview {
	return BuildOverview(c.ClaimSchedule(s), s.Head, blockDuration)
}

func (o LocksOverview) Claimable() (UnlockChunk, bool) {
	return o.Schedule.Claimable()
}

func (o LocksOverview) Equal(other LocksOverview) bool {
	if o.TotalLocked != other.TotalLocked || len(o.Locks) != len(other.Locks) {
		return false
	}
	for i := range o.Locks {
		a, b := o.Locks[i], other.Locks[i]
		if a.Kind != b.Kind || a.Amount != b.Amount || a.ClaimableAt != b.ClaimableAt {
			return false
		}
		if (a.Timer == nil) != (b.Timer == nil) || (a.Timer != nil && *a.Timer != *b.Timer) {
			return false
		}
	}
	return o.Schedule.Equal(other.Schedule)
}
