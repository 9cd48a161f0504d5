package notifier

import (
	"context"

	"github.com/canopy-network/govunlock/pkg/governance"
)

// Publisher abstracts where notifications go.
// Implementations may talk to Redis, a log sink, etc.
type Publisher interface {
	// PublishHead records the chain head observed during a reconcile pass.
	PublishHead(ctx context.Context, chain string, head governance.BlockNumber) error
	// PublishClaimable announces a newly claimable amount.
	PublishClaimable(ctx context.Context, n Notification) error
	// Close releases any Publisher resources.
	Close() error
}
