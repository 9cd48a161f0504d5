package rpc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/canopy-network/govunlock/pkg/governance"
)

func (c *HTTPClient) ChainHead(ctx context.Context) (governance.BlockNumber, error) {
	var head HeadBlock
	if err := c.doJSON(ctx, http.MethodPost, headPath, nil, &head); err != nil {
		return 0, fmt.Errorf("fetch head: %w", err)
	}
	return governance.BlockNumber(head.Height), nil
}

// BlockDuration returns the gateway's predicted block interval.
func (c *HTTPClient) BlockDuration(ctx context.Context) (time.Duration, error) {
	var bt BlockTime
	if err := c.doJSON(ctx, http.MethodPost, blockTimePath, nil, &bt); err != nil {
		return 0, fmt.Errorf("fetch block time: %w", err)
	}
	return bt.Duration(), nil
}

// BalanceLocks lists every named lock on the account's native balance, in chain order.
func (c *HTTPClient) BalanceLocks(ctx context.Context, account string) ([]governance.BalanceLock, error) {
	var resp RpcBalanceLocks
	if err := c.doJSON(ctx, http.MethodPost, balanceLocksPath, AccountRequest{Address: account}, &resp); err != nil {
		return nil, fmt.Errorf("fetch balance locks for %s: %w", account, err)
	}
	out := make([]governance.BalanceLock, 0, len(resp.Locks))
	for _, l := range resp.Locks {
		amount, err := governance.ParseBalance(l.Amount)
		if err != nil {
			return nil, fmt.Errorf("decode lock %s: %w", l.ID, err)
		}
		out = append(out, governance.BalanceLock{ID: l.ID, Amount: amount})
	}
	return out, nil
}

func (c *HTTPClient) AssetBalance(ctx context.Context, account string) (governance.AssetBalance, error) {
	var acc RpcAccount
	if err := c.doJSON(ctx, http.MethodPost, accountPath, AccountRequest{Address: account}, &acc); err != nil {
		return governance.AssetBalance{}, fmt.Errorf("fetch account %s: %w", account, err)
	}
	bal, err := acc.ToAssetBalance()
	if err != nil {
		return governance.AssetBalance{}, fmt.Errorf("decode account %s: %w", account, err)
	}
	return bal, nil
}
