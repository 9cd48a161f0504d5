package unlock

import (
	"context"
	"sync"
	"time"

	"github.com/canopy-network/govunlock/pkg/governance"
	"go.uber.org/zap"
)

// ChangeFeed signals that upstream state for key may have changed. Every
// feed sends one signal right away so a fresh subscriber computes at once.
// The channel closes when ctx ends.
type ChangeFeed interface {
	Changes(ctx context.Context, key Key) <-chan struct{}
}

// Signal performs a conflating send on a buffered channel.
func Signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// PollingFeed polls the chain head and signals whenever it moves.
type PollingFeed struct {
	Registry *Registry
	Interval time.Duration
	Logger   *zap.Logger
}

func (f *PollingFeed) Changes(ctx context.Context, key Key) <-chan struct{} {
	out := make(chan struct{}, 1)
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := f.Interval
	if interval <= 0 {
		interval = 6 * time.Second
	}

	go func() {
		defer close(out)

		var (
			last governance.BlockNumber
			seen bool
		)
		poll := func() {
			src, err := f.Registry.Lookup(key.Chain)
			if err != nil {
				return
			}
			head, err := src.ChainHead(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("head poll failed", zap.String("chain", key.Chain), zap.Error(err))
				}
				return
			}
			if seen && head == last {
				return
			}
			changed := seen
			last, seen = head, true
			if changed {
				Signal(out)
			}
		}

		poll()
		Signal(out)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				poll()
			}
		}
	}()
	return out
}

// MergeFeeds fans several feeds into one.
func MergeFeeds(feeds ...ChangeFeed) ChangeFeed {
	return mergedFeed(feeds)
}

type mergedFeed []ChangeFeed

func (m mergedFeed) Changes(ctx context.Context, key Key) <-chan struct{} {
	out := make(chan struct{}, 1)
	if len(m) == 0 {
		Signal(out)
		go func() {
			<-ctx.Done()
			close(out)
		}()
		return out
	}

	var wg sync.WaitGroup
	for _, feed := range m {
		in := feed.Changes(ctx, key)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range in {
				Signal(out)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
