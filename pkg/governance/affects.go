package governance

// RemainsLockedInfo explains why part of a claim does not become transferable.
type RemainsLockedInfo struct {
	Amount      Balance
	LockedInIDs []string
}

type UnlockAffects struct {
	TransferableChange   Change[Balance]
	GovernanceLockChange Change[Balance]
	ClaimableChunk       *UnlockChunk
	RemainsLocked        *RemainsLockedInfo
}

// ComputeUnlockAffects projects the balance effect of claiming the overview's
// claimable chunk. Named locks on a balance overlap, so the binding lock is
// their maximum.
func ComputeUnlockAffects(asset AssetBalance, locks []BalanceLock, overview LocksOverview, governanceLockID string) UnlockAffects {
	if governanceLockID == "" {
		governanceLockID = DefaultLockID
	}

	chunk, ok := overview.Claimable()
	if !ok || chunk.Amount.IsZero() {
		return UnlockAffects{
			TransferableChange:   SameChange(asset.Transferable),
			GovernanceLockChange: SameChange(overview.TotalLocked),
		}
	}

	newGovernanceLock := SubClamped(overview.TotalLocked, chunk.Amount)
	newTotalLocked := maxLockReplacing(locks, governanceLockID, newGovernanceLock)
	newTransferable := SubClamped(asset.Free, newTotalLocked)

	transferable := BalanceChange(asset.Transferable, newTransferable, AbsDiff(asset.Transferable, newTransferable))
	governance := BalanceChange(overview.TotalLocked, newGovernanceLock, chunk.Amount)

	affects := UnlockAffects{
		TransferableChange:   transferable,
		GovernanceLockChange: governance,
		ClaimableChunk:       &chunk,
	}

	remains := SubClamped(chunk.Amount, transferable.AbsoluteDifference)
	if !remains.IsZero() {
		affects.RemainsLocked = &RemainsLockedInfo{
			Amount:      remains,
			LockedInIDs: locksAbove(locks, governanceLockID, newGovernanceLock),
		}
	}
	return affects
}

func maxLockReplacing(locks []BalanceLock, id string, replacement Balance) Balance {
	var highest Balance
	for _, l := range locks {
		amount := l.Amount
		if l.ID == id {
			amount = replacement
		}
		highest = MaxBalance(highest, amount)
	}
	return highest
}

func locksAbove(locks []BalanceLock, governanceLockID string, floor Balance) []string {
	var ids []string
	for _, l := range locks {
		if l.ID != governanceLockID && floor.Lt(&l.Amount) {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

func (a UnlockAffects) Equal(o UnlockAffects) bool {
	if a.TransferableChange != o.TransferableChange || a.GovernanceLockChange != o.GovernanceLockChange {
		return false
	}
	if (a.ClaimableChunk == nil) != (o.ClaimableChunk == nil) {
		return false
	}
	if a.ClaimableChunk != nil && !a.ClaimableChunk.Equal(*o.ClaimableChunk) {
		return false
	}
	if (a.RemainsLocked == nil) != (o.RemainsLocked == nil) {
		return false
	}
	if a.RemainsLocked == nil {
		return true
	}
	if a.RemainsLocked.Amount != o.RemainsLocked.Amount || len(a.RemainsLocked.LockedInIDs) != len(o.RemainsLocked.LockedInIDs) {
		return false
	}
	for i := range a.RemainsLocked.LockedInIDs {
		if a.RemainsLocked.LockedInIDs[i] != o.RemainsLocked.LockedInIDs[i] {
			return false
		}
	}
	return true
}
