package governance

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Balance is an amount of the chain's native asset expressed in planks.
// It is a value type: two balances holding the same amount compare equal with ==.
type Balance = uint256.Int

// NewBalance returns a Balance holding v planks.
func NewBalance(v uint64) Balance {
	return *uint256.NewInt(v)
}

// ParseBalance parses a decimal plank amount. An empty string is zero.
func ParseBalance(s string) (Balance, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Balance{}, nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Balance{}, fmt.Errorf("parse balance %q: %w", s, err)
	}
	return *v, nil
}

// MaxBalance returns the larger of a and b.
func MaxBalance(a, b Balance) Balance {
	if a.Lt(&b) {
		return b
	}
	return a
}

// MinBalance returns the smaller of a and b.
func MinBalance(a, b Balance) Balance {
	if b.Lt(&a) {
		return b
	}
	return a
}

// AddBalance returns a+b, saturating at the maximum representable amount.
func AddBalance(a, b Balance) Balance {
	var out Balance
	if _, overflow := out.AddOverflow(&a, &b); overflow {
		out.SetAllOne()
	}
	return out
}

// SubClamped returns a-b, or zero when b exceeds a.
func SubClamped(a, b Balance) Balance {
	var out Balance
	if _, underflow := out.SubOverflow(&a, &b); underflow {
		return Balance{}
	}
	return out
}

// AbsDiff returns |a-b|.
func AbsDiff(a, b Balance) Balance {
	if a.Lt(&b) {
		return SubClamped(b, a)
	}
	return SubClamped(a, b)
}

// FormatBalance renders a balance as a decimal plank string.
func FormatBalance(b Balance) string {
	return b.Dec()
}
