// Package unlock composes chain-state sources, the governance engine and the
// multicast cache into per-account unlock computations.
package unlock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/canopy-network/govunlock/pkg/governance"
	"github.com/canopy-network/govunlock/pkg/rpc"
	"github.com/canopy-network/govunlock/pkg/utils"
	"github.com/puzpuzpuz/xsync/v4"
)

var ErrUnknownChain = errors.New("unknown chain")

// Key identifies one account on one chain.
type Key struct {
	Chain   string
	Account string
}

func (k Key) String() string {
	return k.Chain + "/" + k.Account
}

// Sources supplies the raw chain state one evaluation needs.
type Sources interface {
	ChainHead(ctx context.Context) (governance.BlockNumber, error)
	BlockDuration(ctx context.Context) (time.Duration, error)
	VotingFor(ctx context.Context, account string) (map[governance.TrackID]governance.Voting, error)
	AllReferenda(ctx context.Context) (map[governance.ReferendumID]governance.Referendum, error)
	Tracks(ctx context.Context) (map[governance.TrackID]governance.TrackInfo, error)
	VoteLockingPeriod(ctx context.Context) (governance.BlockNumber, error)
	TrackLocks(ctx context.Context, account string) (map[governance.TrackID]governance.Balance, error)
	BalanceLocks(ctx context.Context, account string) ([]governance.BalanceLock, error)
	AssetBalance(ctx context.Context, account string) (governance.AssetBalance, error)
}

// Registry resolves Sources by chain id.
type Registry struct {
	chains *xsync.Map[string, Sources]
}

func NewRegistry() *Registry {
	return &Registry{chains: xsync.NewMap[string, Sources]()}
}

func (r *Registry) Register(chain string, src Sources) {
	r.chains.Store(chain, src)
}

func (r *Registry) Lookup(chain string) (Sources, error) {
	src, ok := r.chains.Load(chain)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChain, chain)
	}
	return src, nil
}

// RegisterEndpoints builds one gateway client per chain.
func (r *Registry) RegisterEndpoints(factory rpc.Factory, endpoints map[string][]string) {
	for _, chain := range utils.SortedKeys(endpoints) {
		r.Register(chain, factory.NewClient(endpoints[chain]))
	}
}

// Chains returns the registered chain ids in lexical order.
func (r *Registry) Chains() []string {
	var out []string
	r.chains.Range(func(chain string, _ Sources) bool {
		out = append(out, chain)
		return true
	})
	sort.Strings(out)
	return out
}
