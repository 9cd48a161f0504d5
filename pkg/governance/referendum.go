package governance

import "strings"

type ReferendumState int

const (
	StateUnknown ReferendumState = iota
	StateCreated
	StateApproved
	StateRejected
	StateCancelled
	StateTimedOut
	StateKilled
	StateExecuted
)

var stateNames = map[string]ReferendumState{
	"created":   StateCreated,
	"ongoing":   StateCreated,
	"approved":  StateApproved,
	"rejected":  StateRejected,
	"cancelled": StateCancelled,
	"timedout":  StateTimedOut,
	"killed":    StateKilled,
	"executed":  StateExecuted,
}

func (s ReferendumState) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateApproved:
		return "Approved"
	case StateRejected:
		return "Rejected"
	case StateCancelled:
		return "Cancelled"
	case StateTimedOut:
		return "TimedOut"
	case StateKilled:
		return "Killed"
	case StateExecuted:
		return "Executed"
	default:
		return "Unknown"
	}
}

// ParseReferendumState never fails; unrecognized input maps to StateUnknown.
func ParseReferendumState(s string) ReferendumState {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	if st, ok := stateNames[key]; ok {
		return st
	}
	return StateUnknown
}

func (s ReferendumState) decides() bool {
	switch s {
	case StateApproved, StateRejected, StateCancelled, StateTimedOut, StateKilled:
		return true
	}
	return false
}

type outcome int

const (
	outcomeDecided outcome = iota
	outcomeOngoing
	outcomeUnknown
)

// decision resolves when the referendum was decided. Ongoing referenda past
// their undeciding timeout are treated as decided at the timeout boundary.
func (r Referendum) decision(head, undecidingTimeout BlockNumber) (BlockNumber, outcome) {
	if len(r.Timeline) == 0 {
		return NeverUnlocks, outcomeUnknown
	}

	var (
		created    BlockNumber
		hasCreated bool
		executed   BlockNumber
		hasExec    bool
		unknown    bool
	)
	for _, e := range r.Timeline {
		switch {
		case e.State.decides():
			return e.Block, outcomeDecided
		case e.State == StateExecuted:
			if !hasExec {
				executed, hasExec = e.Block, true
			}
		case e.State == StateCreated:
			if !hasCreated {
				created, hasCreated = e.Block, true
			}
		default:
			unknown = true
		}
	}
	if hasExec {
		return executed, outcomeDecided
	}
	if unknown || !hasCreated {
		return NeverUnlocks, outcomeUnknown
	}

	deadline := created.Add(undecidingTimeout)
	if head >= deadline {
		return deadline, outcomeDecided
	}
	return NeverUnlocks, outcomeOngoing
}
