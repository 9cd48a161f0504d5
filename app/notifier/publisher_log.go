package notifier

import (
	"context"

	"github.com/canopy-network/govunlock/pkg/governance"
	"go.uber.org/zap"
)

// LogPublisher writes notifications to the logger. Used when Redis is disabled.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher { return &LogPublisher{logger: logger} }

func (p *LogPublisher) PublishHead(_ context.Context, chain string, head governance.BlockNumber) error {
	p.logger.Debug("[notifier/Publisher=log] head", zap.String("chain", chain), zap.Uint64("head", uint64(head)))
	return nil
}

func (p *LogPublisher) PublishClaimable(_ context.Context, n Notification) error {
	p.logger.Info("[notifier/Publisher=log] claimable",
		zap.String("chain", n.Chain),
		zap.String("account", n.Account),
		zap.String("amount", n.Amount),
		zap.Int("calls", len(n.Calls)))
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error { return nil }
