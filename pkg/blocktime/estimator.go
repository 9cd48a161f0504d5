package blocktime

import (
	"math"
	"time"
)

// Estimator converts block distances into wall-clock durations using the
// chain's predicted block interval.
type Estimator struct {
	Head          uint64
	BlockDuration time.Duration
}

// Timer is the distance to a future block, in blocks and expected time.
type Timer struct {
	Blocks    uint64
	Remaining time.Duration
}

// ETA is the expected wall-clock arrival measured from now.
func (t Timer) ETA(now time.Time) time.Time {
	return now.Add(t.Remaining)
}

func New(head uint64, blockDuration time.Duration) Estimator {
	return Estimator{Head: head, BlockDuration: blockDuration}
}

// BlocksUntil is zero for blocks at or behind the head.
func (e Estimator) BlocksUntil(block uint64) uint64 {
	if block <= e.Head {
		return 0
	}
	return block - e.Head
}

func (e Estimator) DurationUntil(block uint64) time.Duration {
	return e.DurationOf(e.BlocksUntil(block))
}

func (e Estimator) TimerUntil(block uint64) Timer {
	blocks := e.BlocksUntil(block)
	return Timer{Blocks: blocks, Remaining: e.DurationOf(blocks)}
}

// DurationOf saturates at the largest representable duration.
func (e Estimator) DurationOf(blocks uint64) time.Duration {
	if e.BlockDuration <= 0 || blocks == 0 {
		return 0
	}
	if blocks > uint64(math.MaxInt64/int64(e.BlockDuration)) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(blocks) * e.BlockDuration
}
