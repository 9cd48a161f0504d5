package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamReader is the subset of Client a StreamConsumer reads through.
type StreamReader interface {
	XRead(ctx context.Context, stream, lastID string, count int64, block time.Duration) ([]redis.XMessage, error)
}

// StreamConsumerConfig configures a StreamConsumer. Zero fields take defaults.
type StreamConsumerConfig struct {
	// Stream is required.
	Stream string
	// LastID is where reading starts: "0" for the beginning (default), "$" for new entries only.
	LastID string
	// Count caps entries per read. Default 100.
	Count int64
	// Block is how long one read waits for entries. Default 5s.
	Block time.Duration
	// RetryInterval is the first pause after a failed read, doubled up to MaxRetryInterval. Defaults 1s and 30s.
	RetryInterval    time.Duration
	MaxRetryInterval time.Duration
	Logger           *zap.Logger
}

// MessageHandler processes one entry. An error is logged and the consumer moves on.
type MessageHandler func(ctx context.Context, msg Message) error

// Message is one stream entry.
type Message struct {
	ID     string
	Stream string
	Values map[string]interface{}
}

// Chain is the "chain" field, or "".
func (m Message) Chain() string {
	s, _ := m.Values["chain"].(string)
	return s
}

// Height is the "height" field, or 0 when absent or malformed.
func (m Message) Height() uint64 {
	switch v := m.Values["height"].(type) {
	case uint64:
		return v
	case int64:
		if v > 0 {
			return uint64(v)
		}
	case string:
		// Redis replies carry numbers as strings
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// StreamConsumer tails one stream, tracking its own position and
// reconnecting with backoff after read errors.
type StreamConsumer struct {
	client StreamReader
	cfg    StreamConsumerConfig
	logger *zap.Logger
}

func NewStreamConsumer(client StreamReader, cfg StreamConsumerConfig) (*StreamConsumer, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.Stream == "" {
		return nil, errors.New("stream name is required")
	}
	if cfg.LastID == "" {
		cfg.LastID = "0"
	}
	if cfg.Count <= 0 {
		cfg.Count = 100
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = time.Second
	}
	if cfg.MaxRetryInterval < cfg.RetryInterval {
		cfg.MaxRetryInterval = max(30*time.Second, cfg.RetryInterval)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamConsumer{client: client, cfg: cfg, logger: logger}, nil
}

// Run calls handler for every entry until ctx ends, then returns ctx.Err().
func (sc *StreamConsumer) Run(ctx context.Context, handler MessageHandler) error {
	lastID := sc.cfg.LastID
	backoff := sc.cfg.RetryInterval

	for ctx.Err() == nil {
		entries, err := sc.client.XRead(ctx, sc.cfg.Stream, lastID, sc.cfg.Count, sc.cfg.Block)
		switch {
		case err == nil:
			backoff = sc.cfg.RetryInterval
		case IsNil(err):
			continue
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			sc.logger.Warn("Stream read failed, will retry",
				zap.String("stream", sc.cfg.Stream),
				zap.Duration("retryIn", backoff),
				zap.Error(err))
			select {
			case <-time.After(backoff):
				backoff = min(backoff*2, sc.cfg.MaxRetryInterval)
			case <-ctx.Done():
			}
			continue
		}

		for _, e := range entries {
			lastID = e.ID
			msg := Message{ID: e.ID, Stream: sc.cfg.Stream, Values: e.Values}
			if err := handler(ctx, msg); err != nil {
				sc.logger.Error("Stream message handler failed",
					zap.String("stream", sc.cfg.Stream),
					zap.String("id", e.ID),
					zap.Error(err))
			}
		}
	}
	return ctx.Err()
}
