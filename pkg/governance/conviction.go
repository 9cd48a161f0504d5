package governance

import (
	"fmt"
	"strings"
)

type Conviction int

const (
	None Conviction = iota
	Locked1x
	Locked2x
	Locked3x
	Locked4x
	Locked5x
	Locked6x
)

var convictionNames = map[Conviction]string{
	None:     "None",
	Locked1x: "Locked1x",
	Locked2x: "Locked2x",
	Locked3x: "Locked3x",
	Locked4x: "Locked4x",
	Locked5x: "Locked5x",
	Locked6x: "Locked6x",
}

// LockMultiplier is the number of vote locking periods a decided vote stays locked.
func (c Conviction) LockMultiplier() uint64 {
	if c <= None || c > Locked6x {
		return 0
	}
	return 1 << uint(c-1)
}

func (c Conviction) String() string {
	if name, ok := convictionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Conviction(%d)", int(c))
}

// ParseConviction accepts the variant names, case-insensitively.
func ParseConviction(s string) (Conviction, error) {
	for c, name := range convictionNames {
		if strings.EqualFold(s, name) {
			return c, nil
		}
	}
	return None, fmt.Errorf("unknown conviction %q", s)
}
