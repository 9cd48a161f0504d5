package governance

import (
	"sort"

	"go.uber.org/zap"
)

// ClaimSchedule lists the governance lock in release order: the merged
// claimable chunk first, then pending chunks by ascending block.
type ClaimSchedule struct {
	Chunks []UnlockChunk
}

// Claimable returns the chunk that can be unlocked right now.
func (s ClaimSchedule) Claimable() (UnlockChunk, bool) {
	if len(s.Chunks) > 0 && s.Chunks[0].Kind == ChunkClaimable {
		return s.Chunks[0], true
	}
	return UnlockChunk{}, false
}

func (s ClaimSchedule) Pending() []UnlockChunk {
	if _, ok := s.Claimable(); ok {
		return s.Chunks[1:]
	}
	return s.Chunks
}

// TotalLocked is the global governance ceiling the schedule releases.
func (s ClaimSchedule) TotalLocked() Balance {
	var total Balance
	for _, c := range s.Chunks {
		total = AddBalance(total, c.Amount)
	}
	return total
}

func (s ClaimSchedule) Equal(o ClaimSchedule) bool {
	if len(s.Chunks) != len(o.Chunks) {
		return false
	}
	for i := range s.Chunks {
		if !s.Chunks[i].Equal(o.Chunks[i]) {
			return false
		}
	}
	return true
}

// MergeSchedule combines per-track ceilings into the single governance lock,
// which is the maximum over tracks at every block.
func MergeSchedule(ceilings []TrackCeiling, head BlockNumber) ClaimSchedule {
	tracks := make([]TrackCeiling, 0, len(ceilings))
	for _, c := range ceilings {
		if !c.Empty() {
			tracks = append(tracks, c)
		}
	}
	if len(tracks) == 0 {
		return ClaimSchedule{}
	}
	sort.SliceStable(tracks, func(i, j int) bool { return tracks[i].Track < tracks[j].Track })

	globalAt := func(b BlockNumber) Balance {
		var g Balance
		for _, t := range tracks {
			g = MaxBalance(g, t.At(b))
		}
		return g
	}

	var start Balance
	for _, t := range tracks {
		start = MaxBalance(start, t.Initial)
	}

	var (
		claimable Balance
		pending   []UnlockChunk
		previous  = start
	)
	for _, b := range breakpointBlocks(tracks) {
		current := globalAt(b)
		if !current.Lt(&previous) {
			continue
		}
		drop := SubClamped(previous, current)
		if b <= head {
			claimable = AddBalance(claimable, drop)
		} else {
			pending = append(pending, UnlockChunk{Kind: ChunkPending, Amount: drop, ClaimableAt: b})
		}
		previous = current
	}

	chunks := make([]UnlockChunk, 0, len(pending)+1)
	if !claimable.IsZero() {
		chunks = append(chunks, UnlockChunk{
			Kind:    ChunkClaimable,
			Amount:  claimable,
			Actions: claimActions(tracks, head, globalAt(head)),
		})
	}
	return ClaimSchedule{Chunks: append(chunks, pending...)}
}

func breakpointBlocks(tracks []TrackCeiling) []BlockNumber {
	seen := make(map[BlockNumber]struct{})
	var blocks []BlockNumber
	for _, t := range tracks {
		for _, s := range t.Steps {
			if _, ok := seen[s.UnlockAt]; ok {
				continue
			}
			seen[s.UnlockAt] = struct{}{}
			blocks = append(blocks, s.UnlockAt)
		}
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i] < blocks[j] })
	return blocks
}

// claimActions touches every track that currently holds more than the global
// lock will after the claim. Tracks are expected in ascending id order.
func claimActions(tracks []TrackCeiling, head BlockNumber, globalAtHead Balance) []ClaimAction {
	var actions []ClaimAction
	for _, t := range tracks {
		if !globalAtHead.Lt(&t.Initial) {
			continue
		}
		for _, e := range t.Expirations {
			if e.UnlockAt <= head {
				actions = append(actions, RemoveVote(t.Track, e.Referendum))
			}
		}
		actions = append(actions, Unlock(t.Track))
	}
	return actions
}

// Calculator evaluates snapshots. It holds no state besides its logger.
type Calculator struct {
	logger *zap.Logger
}

func NewCalculator(logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{logger: logger}
}

// Ceilings builds the step function of every track in the snapshot.
// Tracks without metadata are skipped.
func (c *Calculator) Ceilings(s Snapshot) []TrackCeiling {
	var out []TrackCeiling
	for _, id := range s.TrackIDs() {
		info, ok := s.Tracks[id]
		if !ok {
			c.logger.Warn("no metadata for track, skipping",
				zap.Uint16("track", uint16(id)),
				zap.Int("votes", len(s.Voting[id].Votes)))
			continue
		}
		out = append(out, BuildTrackCeiling(c.logger, TrackInput{
			Track:             id,
			Voting:            s.Voting[id],
			Referenda:         s.Referenda,
			Head:              s.Head,
			UndecidingTimeout: info.UndecidingTimeout,
			VoteLockingPeriod: s.VoteLockingPeriod,
			TrackLock:         s.TrackLocks[id],
		}))
	}
	return out
}

func (c *Calculator) ClaimSchedule(s Snapshot) ClaimSchedule {
	return MergeSchedule(c.Ceilings(s), s.Head)
}
