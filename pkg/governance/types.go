package governance

import (
	"math"
	"sort"
)

// BlockNumber is a chain block height.
type BlockNumber uint64

// NeverUnlocks marks a lock whose release block is not known yet.
const NeverUnlocks BlockNumber = math.MaxUint64

// DefaultLockID is the balance lock id used by conviction voting.
const DefaultLockID = "pyconvot"

// Add returns b+n, saturating at NeverUnlocks.
func (b BlockNumber) Add(n BlockNumber) BlockNumber {
	if b > NeverUnlocks-n {
		return NeverUnlocks
	}
	return b + n
}

// Mul returns b*n, saturating at NeverUnlocks.
func (b BlockNumber) Mul(n uint64) BlockNumber {
	if n == 0 || b == 0 {
		return 0
	}
	if uint64(b) > math.MaxUint64/n {
		return NeverUnlocks
	}
	return b * BlockNumber(n)
}

type (
	TrackID      uint16
	ReferendumID uint32
)

// Vote is an account's standing vote on a referendum.
type Vote struct {
	Referendum ReferendumID
	Track      TrackID
	Amount     Balance
	Conviction Conviction
}

// StandardVote builds an aye/nay vote with conviction.
func StandardVote(ref ReferendumID, track TrackID, amount Balance, conviction Conviction) Vote {
	return Vote{Referendum: ref, Track: track, Amount: amount, Conviction: conviction}
}

// SplitVote locks aye+nay with no conviction.
func SplitVote(ref ReferendumID, track TrackID, aye, nay Balance) Vote {
	return Vote{Referendum: ref, Track: track, Amount: AddBalance(aye, nay), Conviction: None}
}

// SplitAbstainVote locks aye+nay+abstain with no conviction.
func SplitAbstainVote(ref ReferendumID, track TrackID, aye, nay, abstain Balance) Vote {
	return Vote{Referendum: ref, Track: track, Amount: AddBalance(AddBalance(aye, nay), abstain), Conviction: None}
}

// PriorLock is what remains locked on a track after votes were removed.
type PriorLock struct {
	UnlockAt BlockNumber
	Amount   Balance
}

// Delegation keeps its balance locked until the account undelegates.
type Delegation struct {
	Target     string
	Amount     Balance
	Conviction Conviction
}

// Voting is the account's voting state for a single track.
type Voting struct {
	Votes      []Vote
	Prior      PriorLock
	Delegation *Delegation
}

type TimelineEntry struct {
	State ReferendumState
	Block BlockNumber
}

type Referendum struct {
	ID       ReferendumID
	Track    TrackID
	Timeline []TimelineEntry
}

type TrackInfo struct {
	ID                TrackID
	Name              string
	UndecidingTimeout BlockNumber
}

// BalanceLock is a named lock on the account's free balance.
type BalanceLock struct {
	ID     string
	Amount Balance
}

// AssetBalance is the account's balance as reported by the chain.
type AssetBalance struct {
	Free         Balance
	Transferable Balance
	Total        Balance
}

// Snapshot is the immutable input of one evaluation pass.
type Snapshot struct {
	Head              BlockNumber
	Voting            map[TrackID]Voting
	Referenda         map[ReferendumID]Referendum
	Tracks            map[TrackID]TrackInfo
	VoteLockingPeriod BlockNumber
	TrackLocks        map[TrackID]Balance
}

// TrackIDs returns every track that has voting or a lock, ascending.
func (s Snapshot) TrackIDs() []TrackID {
	seen := make(map[TrackID]struct{}, len(s.Voting)+len(s.TrackLocks))
	for id := range s.Voting {
		seen[id] = struct{}{}
	}
	for id := range s.TrackLocks {
		seen[id] = struct{}{}
	}
	ids := make([]TrackID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type ActionKind int

const (
	ActionRemoveVote ActionKind = iota
	ActionUnlock
)

func (k ActionKind) String() string {
	switch k {
	case ActionRemoveVote:
		return "remove_vote"
	case ActionUnlock:
		return "unlock"
	default:
		return "unknown"
	}
}

// ClaimAction is one step required to realize a claimable chunk.
// Referendum is only meaningful for ActionRemoveVote.
type ClaimAction struct {
	Kind       ActionKind
	Track      TrackID
	Referendum ReferendumID
}

func RemoveVote(track TrackID, ref ReferendumID) ClaimAction {
	return ClaimAction{Kind: ActionRemoveVote, Track: track, Referendum: ref}
}

func Unlock(track TrackID) ClaimAction {
	return ClaimAction{Kind: ActionUnlock, Track: track}
}

type ChunkKind int

const (
	ChunkClaimable ChunkKind = iota
	ChunkPending
)

func (k ChunkKind) String() string {
	if k == ChunkClaimable {
		return "claimable"
	}
	return "pending"
}

// UnlockChunk is a portion of the governance lock released at a single block.
// Claimable chunks carry Actions; pending chunks carry ClaimableAt.
type UnlockChunk struct {
	Kind        ChunkKind
	Amount      Balance
	Actions     []ClaimAction
	ClaimableAt BlockNumber
}

func (c UnlockChunk) Equal(o UnlockChunk) bool {
	if c.Kind != o.Kind || c.Amount != o.Amount || c.ClaimableAt != o.ClaimableAt {
		return false
	}
	if len(c.Actions) != len(o.Actions) {
		return false
	}
	for i := range c.Actions {
		if c.Actions[i] != o.Actions[i] {
			return false
		}
	}
	return true
}

// Breakpoint is the ceiling a track drops to once UnlockAt is reached.
type Breakpoint struct {
	UnlockAt BlockNumber
	Ceiling  Balance
}
