package governance

// Change describes how a value moves when an action is applied.
// A change with Changed false is the "same" variant.
type Change[T comparable] struct {
	Previous           T
	New                T
	AbsoluteDifference T
	Changed            bool
}

func SameChange[T comparable](v T) Change[T] {
	return Change[T]{Previous: v, New: v}
}

// BalanceChange reports a move from previous to next.
func BalanceChange(previous, next, diff Balance) Change[Balance] {
	if previous == next {
		return SameChange(previous)
	}
	return Change[Balance]{Previous: previous, New: next, AbsoluteDifference: diff, Changed: true}
}
