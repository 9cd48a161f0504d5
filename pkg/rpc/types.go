package rpc

import (
	"fmt"
	"time"

	"github.com/canopy-network/govunlock/pkg/governance"
)

// --- Query types

// AccountRequest is the body of every per-account query.
type AccountRequest struct {
	Address string `json:"address" yaml:"address"`
}

// --- Response types

type HeadBlock struct {
	Height uint64 `json:"height" yaml:"height"`
}

// BlockTime is the predicted interval between blocks.
type BlockTime struct {
	BlockTimeMs int64 `json:"blockTimeMs" yaml:"blockTimeMs"`
}

func (b BlockTime) Duration() time.Duration {
	return time.Duration(b.BlockTimeMs) * time.Millisecond
}

type RpcGovParams struct {
	VoteLockingPeriod uint64 `json:"voteLockingPeriod" yaml:"voteLockingPeriod"`
}

type RpcTrack struct {
	ID                uint16 `json:"id" yaml:"id"`
	Name              string `json:"name" yaml:"name"`
	UndecidingTimeout uint64 `json:"undecidingTimeout" yaml:"undecidingTimeout"`
}

func (t RpcTrack) ToTrackInfo() governance.TrackInfo {
	return governance.TrackInfo{
		ID:                governance.TrackID(t.ID),
		Name:              t.Name,
		UndecidingTimeout: governance.BlockNumber(t.UndecidingTimeout),
	}
}

type RpcTracks struct {
	Tracks []RpcTrack `json:"tracks" yaml:"tracks"`
}

type RpcTimelineEntry struct {
	State string `json:"state" yaml:"state"`
	Block uint64 `json:"block" yaml:"block"`
}

type RpcReferendum struct {
	ID       uint32             `json:"id" yaml:"id"`
	Track    uint16             `json:"track" yaml:"track"`
	Timeline []RpcTimelineEntry `json:"timeline" yaml:"timeline"`
}

// ToReferendum keeps unrecognized states as StateUnknown so the engine can flag them.
func (r RpcReferendum) ToReferendum() governance.Referendum {
	timeline := make([]governance.TimelineEntry, 0, len(r.Timeline))
	for _, e := range r.Timeline {
		timeline = append(timeline, governance.TimelineEntry{
			State: governance.ParseReferendumState(e.State),
			Block: governance.BlockNumber(e.Block),
		})
	}
	return governance.Referendum{
		ID:       governance.ReferendumID(r.ID),
		Track:    governance.TrackID(r.Track),
		Timeline: timeline,
	}
}

// Vote kinds as reported by the gateway.
const (
	VoteStandard     = "standard"
	VoteSplit        = "split"
	VoteSplitAbstain = "splitAbstain"
)

// RpcVote is a tagged union: standard votes carry Amount and Conviction,
// split votes carry Aye/Nay and split-abstain votes also Abstain.
type RpcVote struct {
	Referendum uint32 `json:"referendum" yaml:"referendum"`
	Type       string `json:"type" yaml:"type"`
	Amount     string `json:"amount,omitempty" yaml:"amount,omitempty"`
	Conviction string `json:"conviction,omitempty" yaml:"conviction,omitempty"`
	Aye        string `json:"aye,omitempty" yaml:"aye,omitempty"`
	Nay        string `json:"nay,omitempty" yaml:"nay,omitempty"`
	Abstain    string `json:"abstain,omitempty" yaml:"abstain,omitempty"`
}

func (v RpcVote) ToVote(track governance.TrackID) (governance.Vote, error) {
	ref := governance.ReferendumID(v.Referendum)
	switch v.Type {
	case VoteStandard, "":
		amount, err := governance.ParseBalance(v.Amount)
		if err != nil {
			return governance.Vote{}, err
		}
		conviction, err := governance.ParseConviction(v.Conviction)
		if err != nil {
			return governance.Vote{}, err
		}
		return governance.StandardVote(ref, track, amount, conviction), nil
	case VoteSplit, VoteSplitAbstain:
		aye, err := governance.ParseBalance(v.Aye)
		if err != nil {
			return governance.Vote{}, err
		}
		nay, err := governance.ParseBalance(v.Nay)
		if err != nil {
			return governance.Vote{}, err
		}
		if v.Type == VoteSplit {
			return governance.SplitVote(ref, track, aye, nay), nil
		}
		abstain, err := governance.ParseBalance(v.Abstain)
		if err != nil {
			return governance.Vote{}, err
		}
		return governance.SplitAbstainVote(ref, track, aye, nay, abstain), nil
	default:
		return governance.Vote{}, fmt.Errorf("unknown vote type %q", v.Type)
	}
}

type RpcPriorLock struct {
	UnlockAt uint64 `json:"unlockAt" yaml:"unlockAt"`
	Amount   string `json:"amount" yaml:"amount"`
}

type RpcDelegation struct {
	Target     string `json:"target" yaml:"target"`
	Amount     string `json:"amount" yaml:"amount"`
	Conviction string `json:"conviction" yaml:"conviction"`
}

type RpcTrackVoting struct {
	Track      uint16         `json:"track" yaml:"track"`
	Votes      []RpcVote      `json:"votes" yaml:"votes"`
	Prior      *RpcPriorLock  `json:"prior,omitempty" yaml:"prior,omitempty"`
	Delegation *RpcDelegation `json:"delegation,omitempty" yaml:"delegation,omitempty"`
}

func (tv RpcTrackVoting) ToVoting() (governance.Voting, error) {
	track := governance.TrackID(tv.Track)
	var out governance.Voting
	for _, v := range tv.Votes {
		vote, err := v.ToVote(track)
		if err != nil {
			return governance.Voting{}, fmt.Errorf("track %d referendum %d: %w", tv.Track, v.Referendum, err)
		}
		out.Votes = append(out.Votes, vote)
	}
	if tv.Prior != nil {
		amount, err := governance.ParseBalance(tv.Prior.Amount)
		if err != nil {
			return governance.Voting{}, fmt.Errorf("track %d prior lock: %w", tv.Track, err)
		}
		out.Prior = governance.PriorLock{UnlockAt: governance.BlockNumber(tv.Prior.UnlockAt), Amount: amount}
	}
	if d := tv.Delegation; d != nil {
		amount, err := governance.ParseBalance(d.Amount)
		if err != nil {
			return governance.Voting{}, fmt.Errorf("track %d delegation: %w", tv.Track, err)
		}
		conviction, err := governance.ParseConviction(d.Conviction)
		if err != nil {
			return governance.Voting{}, fmt.Errorf("track %d delegation: %w", tv.Track, err)
		}
		out.Delegation = &governance.Delegation{Target: d.Target, Amount: amount, Conviction: conviction}
	}
	return out, nil
}

type RpcVoting struct {
	Tracks []RpcTrackVoting `json:"tracks" yaml:"tracks"`
}

type RpcTrackLock struct {
	Track  uint16 `json:"track" yaml:"track"`
	Amount string `json:"amount" yaml:"amount"`
}

type RpcTrackLocks struct {
	Locks []RpcTrackLock `json:"locks" yaml:"locks"`
}

type RpcBalanceLock struct {
	ID     string `json:"id" yaml:"id"`
	Amount string `json:"amount" yaml:"amount"`
}

type RpcBalanceLocks struct {
	Locks []RpcBalanceLock `json:"locks" yaml:"locks"`
}

// RpcAccount is the account's native balance.
type RpcAccount struct {
	Address      string `json:"address" yaml:"address"`
	Free         string `json:"free" yaml:"free"`
	Transferable string `json:"transferable" yaml:"transferable"`
	Total        string `json:"total" yaml:"total"`
}

func (a RpcAccount) ToAssetBalance() (governance.AssetBalance, error) {
	free, err := governance.ParseBalance(a.Free)
	if err != nil {
		return governance.AssetBalance{}, err
	}
	transferable, err := governance.ParseBalance(a.Transferable)
	if err != nil {
		return governance.AssetBalance{}, err
	}
	total, err := governance.ParseBalance(a.Total)
	if err != nil {
		return governance.AssetBalance{}, err
	}
	return governance.AssetBalance{Free: free, Transferable: transferable, Total: total}, nil
}
