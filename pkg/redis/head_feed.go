package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/canopy-network/govunlock/pkg/governance"
	"github.com/canopy-network/govunlock/pkg/unlock"
	"go.uber.org/zap"
)

// HeadStreamFeed signals on every new head appended to a chain's head stream.
type HeadStreamFeed struct {
	client StreamReader
	logger *zap.Logger
	block  time.Duration
}

func NewHeadStreamFeed(client StreamReader, logger *zap.Logger) *HeadStreamFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HeadStreamFeed{client: client, logger: logger, block: 5 * time.Second}
}

func (f *HeadStreamFeed) Changes(ctx context.Context, key unlock.Key) <-chan struct{} {
	out := make(chan struct{}, 1)
	unlock.Signal(out)

	consumer, err := NewStreamConsumer(f.client, StreamConsumerConfig{
		Stream: HeadStream(key.Chain),
		LastID: "$",
		Count:  16,
		Block:  f.block,
		Logger: f.logger,
	})
	if err != nil {
		f.logger.Error("head stream consumer", zap.String("chain", key.Chain), zap.Error(err))
		go func() {
			<-ctx.Done()
			close(out)
		}()
		return out
	}

	go func() {
		defer close(out)
		err := consumer.Run(ctx, func(ctx context.Context, msg Message) error {
			unlock.Signal(out)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			f.logger.Warn("head stream consumer stopped", zap.String("chain", key.Chain), zap.Error(err))
		}
	}()
	return out
}

// StreamWriter is the subset of Client a HeadPublisher writes through.
type StreamWriter interface {
	XAdd(ctx context.Context, stream string, values map[string]interface{}) string
}

// HeadPublisher appends a chain's head to its stream whenever it advances.
type HeadPublisher struct {
	client StreamWriter

	mu   sync.Mutex
	last map[string]governance.BlockNumber
}

func NewHeadPublisher(client StreamWriter) *HeadPublisher {
	return &HeadPublisher{client: client, last: map[string]governance.BlockNumber{}}
}

// Publish returns the stream entry id, or "" when the head did not move.
func (p *HeadPublisher) Publish(ctx context.Context, chain string, head governance.BlockNumber) string {
	p.mu.Lock()
	if prev, ok := p.last[chain]; ok && prev == head {
		p.mu.Unlock()
		return ""
	}
	p.last[chain] = head
	p.mu.Unlock()

	return p.client.XAdd(ctx, HeadStream(chain), map[string]interface{}{
		"chain":  chain,
		"height": uint64(head),
	})
}
