package governance

import (
	"errors"
	"strconv"
)

var ErrNothingToClaim = errors.New("nothing to claim")

const convictionVotingModule = "ConvictionVoting"

// Call is a single runtime call of the unlock batch.
type Call struct {
	Module   string            `json:"module"`
	Function string            `json:"function"`
	Args     map[string]string `json:"args"`
}

// UnlockCalls turns the claimable chunk's actions into the runtime calls
// that realize it, in action order.
func UnlockCalls(chunk *UnlockChunk, account string) ([]Call, error) {
	if chunk == nil || chunk.Kind != ChunkClaimable || chunk.Amount.IsZero() {
		return nil, ErrNothingToClaim
	}

	calls := make([]Call, 0, len(chunk.Actions))
	for _, a := range chunk.Actions {
		class := strconv.FormatUint(uint64(a.Track), 10)
		switch a.Kind {
		case ActionRemoveVote:
			calls = append(calls, Call{
				Module:   convictionVotingModule,
				Function: "remove_vote",
				Args:     map[string]string{"class": class, "index": strconv.FormatUint(uint64(a.Referendum), 10)},
			})
		case ActionUnlock:
			calls = append(calls, Call{
				Module:   convictionVotingModule,
				Function: "unlock",
				Args:     map[string]string{"class": class, "target": account},
			})
		}
	}
	return calls, nil
}
