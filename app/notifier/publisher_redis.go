package notifier

import (
	"context"
	"fmt"

	"github.com/canopy-network/govunlock/pkg/governance"
	"github.com/canopy-network/govunlock/pkg/redis"
	"github.com/go-jose/go-jose/v4/json"
)

// RedisClient is the subset of redis.Client the publisher needs.
type RedisClient interface {
	redis.StreamWriter
	Publish(ctx context.Context, channel string, message interface{})
	Close() error
}

// RedisPublisher appends heads to the per-chain head stream and announces
// claimable amounts on the per-chain pub/sub channel.
type RedisPublisher struct {
	client RedisClient
	heads  *redis.HeadPublisher
}

func NewRedisPublisher(client RedisClient) *RedisPublisher {
	return &RedisPublisher{client: client, heads: redis.NewHeadPublisher(client)}
}

func (p *RedisPublisher) PublishHead(ctx context.Context, chain string, head governance.BlockNumber) error {
	p.heads.Publish(ctx, chain, head)
	return nil
}

func (p *RedisPublisher) PublishClaimable(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	p.client.Publish(ctx, redis.ClaimableChannel(n.Chain), string(payload))
	return nil
}

func (p *RedisPublisher) Close() error { return p.client.Close() }
