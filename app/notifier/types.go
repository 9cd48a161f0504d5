package notifier

import (
	"fmt"
	"strings"

	"github.com/canopy-network/govunlock/pkg/governance"
	"github.com/canopy-network/govunlock/pkg/unlock"
	"github.com/canopy-network/govunlock/pkg/utils"
)

// Notification is published once per newly claimable amount for a watched account.
type Notification struct {
	Chain   string            `json:"chain"`
	Account string            `json:"account"`
	Head    uint64            `json:"head"`
	Amount  string            `json:"amount"`
	Calls   []governance.Call `json:"calls"`
}

// ParseWatches reads "chain/account" pairs separated by commas.
func ParseWatches(raw string) ([]unlock.Key, error) {
	var out []unlock.Key
	seen := map[unlock.Key]bool{}
	for _, entry := range utils.Dedup(strings.Split(raw, ",")) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		chain, account, ok := strings.Cut(entry, "/")
		if !ok || chain == "" || account == "" || strings.Contains(account, "/") {
			return nil, fmt.Errorf("watch %q: want chain/account", entry)
		}
		key := unlock.Key{Chain: chain, Account: account}
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out, nil
}
