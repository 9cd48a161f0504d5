package rpc

import (
	"context"
	"time"

	"github.com/canopy-network/govunlock/pkg/governance"
)

// Client captures the chain-state queries the unlock engine needs.
type Client interface {
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

// Factory produces RPC clients for a given set of endpoints.
type Factory interface {
	NewClient(endpoints []string) Client
}

type httpFactory struct {
	opts Opts
}

// NewHTTPFactory returns a factory that builds HTTP clients with shared defaults.
func NewHTTPFactory(opts Opts) Factory {
	return &httpFactory{opts: opts}
}

func (f *httpFactory) NewClient(endpoints []string) Client {
	o := f.opts
	o.Endpoints = endpoints
	return NewHTTPWithOpts(o)
}
