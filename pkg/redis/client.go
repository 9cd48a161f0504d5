package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/canopy-network/govunlock/pkg/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultStreamMaxLen = 10000

// HeadStream is the stream chain heads are appended to for chain.
func HeadStream(chain string) string {
	return "govunlock:" + chain + ":heads"
}

// ClaimableChannel is the pub/sub channel claimable events are published on for chain.
func ClaimableChannel(chain string) string {
	return "govunlock:" + chain + ":unlock.claimable"
}

// Config holds connection settings. StreamMaxLen 0 leaves streams uncapped.
type Config struct {
	Addr         string
	Password     string
	DB           int
	StreamMaxLen int64
}

// ConfigFromEnv reads REDIS_HOST, REDIS_PORT, REDIS_PASSWORD, REDIS_DB and REDIS_STREAM_MAXLEN.
func ConfigFromEnv() Config {
	return Config{
		Addr:         utils.Env("REDIS_HOST", "localhost") + ":" + utils.Env("REDIS_PORT", "6379"),
		Password:     utils.Env("REDIS_PASSWORD", ""),
		DB:           utils.EnvInt("REDIS_DB", 0),
		StreamMaxLen: utils.EnvInt64("REDIS_STREAM_MAXLEN", DefaultStreamMaxLen),
	}
}

// Client carries head streams and claimable notifications.
type Client struct {
	rdb          *redis.Client
	logger       *zap.Logger
	streamMaxLen int64
}

// NewClient connects with ConfigFromEnv.
func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	return Dial(ctx, ConfigFromEnv(), logger)
}

// Dial connects and pings once so a bad address fails at startup.
func Dial(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		// Blocking XREAD calls extend the read deadline themselves.
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}

	logger.Info("Connected to Redis",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.Int64("streamMaxLen", cfg.StreamMaxLen))

	return &Client{rdb: rdb, logger: logger, streamMaxLen: cfg.StreamMaxLen}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Publish is best effort: failures are logged, not returned.
func (c *Client) Publish(ctx context.Context, channel string, message interface{}) {
	if err := c.rdb.Publish(ctx, channel, message).Err(); err != nil {
		c.logger.Warn("Failed to publish Redis message",
			zap.String("channel", channel),
			zap.Error(err))
	}
}

// XAdd appends to stream, trimming approximately to the configured length.
// It returns the entry id, or "" when the write failed.
func (c *Client) XAdd(ctx context.Context, stream string, values map[string]interface{}) string {
	args := &redis.XAddArgs{Stream: stream, Values: values}
	if c.streamMaxLen > 0 {
		args.MaxLen = c.streamMaxLen
		args.Approx = true
	}

	id, err := c.rdb.XAdd(ctx, args).Result()
	if err != nil {
		c.logger.Warn("Failed to add to Redis stream",
			zap.String("stream", stream),
			zap.Error(err))
		return ""
	}
	return id
}

// XRead reads entries after lastID ("$" for only new entries).
func (c *Client) XRead(ctx context.Context, stream, lastID string, count int64, block time.Duration) ([]redis.XMessage, error) {
	res, err := c.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Count:   count,
		Block:   block,
	}).Result()
	if err != nil {
		return nil, err
	}
	var out []redis.XMessage
	for _, s := range res {
		out = append(out, s.Messages...)
	}
	return out, nil
}

// IsNil reports whether err is the empty reply of a timed out blocking read.
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
