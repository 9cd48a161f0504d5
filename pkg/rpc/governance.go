package rpc

import (
	"context"
	"fmt"
	"net/http"

	"github.com/canopy-network/govunlock/pkg/governance"
)

// VoteLockingPeriod returns the base number of blocks a conviction tier multiplies.
func (c *HTTPClient) VoteLockingPeriod(ctx context.Context) (governance.BlockNumber, error) {
	var params RpcGovParams
	if err := c.doJSON(ctx, http.MethodPost, govParamsPath, nil, &params); err != nil {
		return 0, fmt.Errorf("fetch gov params: %w", err)
	}
	return governance.BlockNumber(params.VoteLockingPeriod), nil
}

func (c *HTTPClient) Tracks(ctx context.Context) (map[governance.TrackID]governance.TrackInfo, error) {
	var resp RpcTracks
	if err := c.doJSON(ctx, http.MethodPost, tracksPath, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch tracks: %w", err)
	}
	out := make(map[governance.TrackID]governance.TrackInfo, len(resp.Tracks))
	for _, t := range resp.Tracks {
		info := t.ToTrackInfo()
		out[info.ID] = info
	}
	return out, nil
}

// AllReferenda lists every referendum the gateway knows about, across all pages.
func (c *HTTPClient) AllReferenda(ctx context.Context) (map[governance.ReferendumID]governance.Referendum, error) {
	refs, err := ListPaged[RpcReferendum](ctx, c, referendaPath, map[string]any{"perPage": 1000})
	if err != nil {
		return nil, fmt.Errorf("fetch referenda: %w", err)
	}
	out := make(map[governance.ReferendumID]governance.Referendum, len(refs))
	for _, r := range refs {
		ref := r.ToReferendum()
		out[ref.ID] = ref
	}
	return out, nil
}

// VotingFor returns the account's votes, prior locks and delegations grouped by track.
func (c *HTTPClient) VotingFor(ctx context.Context, account string) (map[governance.TrackID]governance.Voting, error) {
	var resp RpcVoting
	if err := c.doJSON(ctx, http.MethodPost, votingPath, AccountRequest{Address: account}, &resp); err != nil {
		return nil, fmt.Errorf("fetch voting for %s: %w", account, err)
	}
	out := make(map[governance.TrackID]governance.Voting, len(resp.Tracks))
	for _, tv := range resp.Tracks {
		voting, err := tv.ToVoting()
		if err != nil {
			return nil, fmt.Errorf("decode voting for %s: %w", account, err)
		}
		out[governance.TrackID(tv.Track)] = voting
	}
	return out, nil
}

// TrackLocks returns the lock the chain currently enforces per track.
func (c *HTTPClient) TrackLocks(ctx context.Context, account string) (map[governance.TrackID]governance.Balance, error) {
	var resp RpcTrackLocks
	if err := c.doJSON(ctx, http.MethodPost, trackLocksPath, AccountRequest{Address: account}, &resp); err != nil {
		return nil, fmt.Errorf("fetch track locks for %s: %w", account, err)
	}
	out := make(map[governance.TrackID]governance.Balance, len(resp.Locks))
	for _, l := range resp.Locks {
		amount, err := governance.ParseBalance(l.Amount)
		if err != nil {
			return nil, fmt.Errorf("decode track %d lock: %w", l.Track, err)
		}
		out[governance.TrackID(l.Track)] = amount
	}
	return out, nil
}
