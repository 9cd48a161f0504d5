package governance

import (
	"sort"

	"go.uber.org/zap"
)

// TrackInput is everything the ceiling builder needs for one track.
type TrackInput struct {
	Track             TrackID
	Voting            Voting
	Referenda         map[ReferendumID]Referendum
	Head              BlockNumber
	UndecidingTimeout BlockNumber
	VoteLockingPeriod BlockNumber
	TrackLock         Balance
}

// VoteExpiration records when a single vote stops binding its track.
type VoteExpiration struct {
	Referendum ReferendumID
	Amount     Balance
	UnlockAt   BlockNumber
}

// TrackCeiling is a non-increasing step function of the lock a track requires.
// Steps are strictly decreasing in Ceiling and strictly increasing in UnlockAt.
type TrackCeiling struct {
	Track       TrackID
	Initial     Balance
	Steps       []Breakpoint
	Expirations []VoteExpiration
}

// At returns the ceiling in effect once block b is reached.
func (c TrackCeiling) At(b BlockNumber) Balance {
	current := c.Initial
	for _, s := range c.Steps {
		if s.UnlockAt > b {
			break
		}
		current = s.Ceiling
	}
	return current
}

// Empty reports whether the track holds no lock at all.
func (c TrackCeiling) Empty() bool {
	return c.Initial.IsZero() && len(c.Steps) == 0
}

type lockItem struct {
	unlockAt BlockNumber
	amount   Balance
}

// BuildTrackCeiling sweeps the track's votes, prior lock and delegation in
// unlock order and emits a breakpoint every time the remaining maximum drops.
// The result is clipped to the track's on-chain lock.
func BuildTrackCeiling(logger *zap.Logger, in TrackInput) TrackCeiling {
	if logger == nil {
		logger = zap.NewNop()
	}

	out := TrackCeiling{Track: in.Track}
	items := make([]lockItem, 0, len(in.Voting.Votes)+2)

	for _, v := range in.Voting.Votes {
		at := voteUnlockAt(logger, in, v)
		out.Expirations = append(out.Expirations, VoteExpiration{Referendum: v.Referendum, Amount: v.Amount, UnlockAt: at})
		items = append(items, lockItem{unlockAt: at, amount: v.Amount})
	}
	if !in.Voting.Prior.Amount.IsZero() {
		items = append(items, lockItem{unlockAt: in.Voting.Prior.UnlockAt, amount: in.Voting.Prior.Amount})
	}
	if d := in.Voting.Delegation; d != nil && !d.Amount.IsZero() {
		items = append(items, lockItem{unlockAt: NeverUnlocks, amount: d.Amount})
	}
	sort.SliceStable(out.Expirations, func(i, j int) bool {
		return out.Expirations[i].Referendum < out.Expirations[j].Referendum
	})

	initial, steps := sweep(items)
	out.Initial, out.Steps = clip(initial, steps, in.TrackLock)
	return out
}

func voteUnlockAt(logger *zap.Logger, in TrackInput, v Vote) BlockNumber {
	ref, ok := in.Referenda[v.Referendum]
	if !ok {
		logger.Warn("vote references unknown referendum, lock never expires",
			zap.Uint16("track", uint16(in.Track)),
			zap.Uint32("referendum", uint32(v.Referendum)))
		return NeverUnlocks
	}

	decided, status := ref.decision(in.Head, in.UndecidingTimeout)
	switch status {
	case outcomeOngoing:
		return NeverUnlocks
	case outcomeUnknown:
		logger.Warn("referendum timeline has no recognized decision, lock never expires",
			zap.Uint16("track", uint16(in.Track)),
			zap.Uint32("referendum", uint32(v.Referendum)),
			zap.Int("timeline_entries", len(ref.Timeline)))
		return NeverUnlocks
	}
	return decided.Add(in.VoteLockingPeriod.Mul(v.Conviction.LockMultiplier()))
}

// sweep orders items by unlock block and walks them with a suffix maximum.
// Items sharing an unlock block produce at most one breakpoint.
func sweep(items []lockItem) (Balance, []Breakpoint) {
	if len(items) == 0 {
		return Balance{}, nil
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].unlockAt < items[j].unlockAt })

	// suffix[i] is the max amount over items[i:].
	suffix := make([]Balance, len(items)+1)
	for i := len(items) - 1; i >= 0; i-- {
		suffix[i] = MaxBalance(items[i].amount, suffix[i+1])
	}

	initial := suffix[0]
	current := initial
	var steps []Breakpoint
	for i := 0; i < len(items); {
		j := i
		for j < len(items) && items[j].unlockAt == items[i].unlockAt {
			j++
		}
		if after := suffix[j]; after.Lt(&current) {
			steps = append(steps, Breakpoint{UnlockAt: items[i].unlockAt, Ceiling: after})
			current = after
		}
		i = j
	}
	return initial, steps
}

// clip bounds the step function by the on-chain track lock. A track lock
// larger than the computed ceiling is released at block zero.
func clip(initial Balance, steps []Breakpoint, trackLock Balance) (Balance, []Breakpoint) {
	raw := make([]Breakpoint, 0, len(steps)+1)
	if initial.Lt(&trackLock) {
		raw = append(raw, Breakpoint{UnlockAt: 0, Ceiling: initial})
	}
	for _, s := range steps {
		raw = append(raw, Breakpoint{UnlockAt: s.UnlockAt, Ceiling: MinBalance(s.Ceiling, trackLock)})
	}

	start := trackLock
	current := start
	var out []Breakpoint
	for _, s := range raw {
		if !s.Ceiling.Lt(&current) {
			continue
		}
		if n := len(out); n > 0 && out[n-1].UnlockAt == s.UnlockAt {
			out[n-1].Ceiling = s.Ceiling
		} else {
			out = append(out, s)
		}
		current = s.Ceiling
	}
	return start, out
}
