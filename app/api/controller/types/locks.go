package types

import (
	"math"
	"time"

	"github.com/canopy-network/govunlock/pkg/governance"
)

// Amounts are decimal strings so 128-bit balances survive JavaScript clients.

type ActionResponse struct {
	Kind       string  `json:"kind"`
	Track      uint16  `json:"track"`
	Referendum *uint32 `json:"referendum,omitempty"`
}

type TimerResponse struct {
	Blocks           uint64     `json:"blocks"`
	RemainingSeconds float64    `json:"remainingSeconds"`
	ETA              *time.Time `json:"eta,omitempty"`
}

type ChunkResponse struct {
	Kind        string           `json:"kind"`
	Amount      string           `json:"amount"`
	ClaimableAt *uint64          `json:"claimableAt,omitempty"`
	Never       bool             `json:"never,omitempty"`
	Actions     []ActionResponse `json:"actions,omitempty"`
	Timer       *TimerResponse   `json:"timer,omitempty"`
}

type ScheduleResponse struct {
	Chain       string          `json:"chain"`
	Account     string          `json:"account"`
	TotalLocked string          `json:"totalLocked"`
	Chunks      []ChunkResponse `json:"chunks"`
}

type OverviewResponse struct {
	Chain       string          `json:"chain"`
	Account     string          `json:"account"`
	TotalLocked string          `json:"totalLocked"`
	Locks       []ChunkResponse `json:"locks"`
}

type ChangeResponse struct {
	Previous           string `json:"previous"`
	New                string `json:"new"`
	AbsoluteDifference string `json:"absoluteDifference"`
	Changed            bool   `json:"changed"`
}

type RemainsLockedResponse struct {
	Amount      string   `json:"amount"`
	LockedInIDs []string `json:"lockedInIds"`
}

type AffectsResponse struct {
	Chain                string                 `json:"chain"`
	Account              string                 `json:"account"`
	TransferableChange   ChangeResponse         `json:"transferableChange"`
	GovernanceLockChange ChangeResponse         `json:"governanceLockChange"`
	ClaimableChunk       *ChunkResponse         `json:"claimableChunk,omitempty"`
	RemainsLocked        *RemainsLockedResponse `json:"remainsLocked,omitempty"`
}

type CallsResponse struct {
	Chain   string            `json:"chain"`
	Account string            `json:"account"`
	Calls   []governance.Call `json:"calls"`
}

func NewActions(actions []governance.ClaimAction) []ActionResponse {
	if len(actions) == 0 {
		return nil
	}
	out := make([]ActionResponse, 0, len(actions))
	for _, a := range actions {
		r := ActionResponse{Kind: a.Kind.String(), Track: uint16(a.Track)}
		if a.Kind == governance.ActionRemoveVote {
			ref := uint32(a.Referendum)
			r.Referendum = &ref
		}
		out = append(out, r)
	}
	return out
}

func NewChunk(c governance.UnlockChunk) ChunkResponse {
	r := ChunkResponse{
		Kind:    c.Kind.String(),
		Amount:  governance.FormatBalance(c.Amount),
		Actions: NewActions(c.Actions),
	}
	if c.ClaimableAt == governance.NeverUnlocks {
		r.Never = true
	} else if c.Kind == governance.ChunkPending {
		at := uint64(c.ClaimableAt)
		r.ClaimableAt = &at
	}
	return r
}

func NewSchedule(chain, account string, s governance.ClaimSchedule) ScheduleResponse {
	chunks := make([]ChunkResponse, 0, len(s.Chunks))
	for _, c := range s.Chunks {
		chunks = append(chunks, NewChunk(c))
	}
	return ScheduleResponse{
		Chain:       chain,
		Account:     account,
		TotalLocked: governance.FormatBalance(s.TotalLocked()),
		Chunks:      chunks,
	}
}

func NewOverview(chain, account string, o governance.LocksOverview, now time.Time) OverviewResponse {
	locks := make([]ChunkResponse, 0, len(o.Locks))
	for _, l := range o.Locks {
		r := NewChunk(governance.UnlockChunk{Kind: l.Kind, Amount: l.Amount, Actions: l.Actions, ClaimableAt: l.ClaimableAt})
		if l.Timer != nil {
			t := &TimerResponse{Blocks: l.Timer.Blocks, RemainingSeconds: l.Timer.Remaining.Seconds()}
			if l.Timer.Remaining < time.Duration(math.MaxInt64) {
				eta := l.Timer.ETA(now).UTC()
				t.ETA = &eta
			}
			r.Timer = t
		}
		locks = append(locks, r)
	}
	return OverviewResponse{
		Chain:       chain,
		Account:     account,
		TotalLocked: governance.FormatBalance(o.TotalLocked),
		Locks:       locks,
	}
}

func NewChange(c governance.Change[governance.Balance]) ChangeResponse {
	return ChangeResponse{
		Previous:           governance.FormatBalance(c.Previous),
		New:                governance.FormatBalance(c.New),
		AbsoluteDifference: governance.FormatBalance(c.AbsoluteDifference),
		Changed:            c.Changed,
	}
}

func NewAffects(chain, account string, a governance.UnlockAffects) AffectsResponse {
	r := AffectsResponse{
		Chain:                chain,
		Account:              account,
		TransferableChange:   NewChange(a.TransferableChange),
		GovernanceLockChange: NewChange(a.GovernanceLockChange),
	}
	if a.ClaimableChunk != nil {
		c := NewChunk(*a.ClaimableChunk)
		r.ClaimableChunk = &c
	}
	if a.RemainsLocked != nil {
		r.RemainsLocked = &RemainsLockedResponse{
			Amount:      governance.FormatBalance(a.RemainsLocked.Amount),
			LockedInIDs: a.RemainsLocked.LockedInIDs,
		}
	}
	return r
}
