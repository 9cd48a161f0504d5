// Package multicast shares one running computation per key between any
// number of subscribers.
package multicast

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// Producer computes values for key until ctx is cancelled or it fails.
// Returning a non-nil error ends the flow for every subscriber.
type Producer[K comparable, V any] func(ctx context.Context, key K, emit func(V)) error

// Update carries either a value or the error that ended the flow.
type Update[V any] struct {
	Value V
	Err   error
}

type Config struct {
	Name       string
	Registerer prometheus.Registerer
	Logger     *zap.Logger
}

// Group runs at most one producer per key and fans its values out.
type Group[K comparable, V any] struct {
	produce Producer[K, V]
	equal   func(a, b V) bool
	flows   *xsync.Map[K, *flow[K, V]]
	logger  *zap.Logger
	metrics *groupMetrics
	wg      sync.WaitGroup
}

type flow[K comparable, V any] struct {
	key    K
	cancel context.CancelFunc

	mu     sync.Mutex
	subs   map[*Subscription[V]]struct{}
	latest V
	has    bool
	done   bool
}

// Subscription receives a conflated stream: a slow reader only ever sees the
// most recent value. The channel is closed when the flow ends.
type Subscription[V any] struct {
	ch     chan Update[V]
	once   sync.Once
	detach func(*Subscription[V])
}

func (s *Subscription[V]) Updates() <-chan Update[V] {
	return s.ch
}

// Close detaches the subscription. The last detach stops the producer.
func (s *Subscription[V]) Close() {
	s.once.Do(func() { s.detach(s) })
}

// offer replaces any unread value. Callers hold the flow lock.
func (s *Subscription[V]) offer(u Update[V]) {
	select {
	case s.ch <- u:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- u:
	default:
	}
}

func New[K comparable, V any](cfg Config, produce Producer[K, V], equal func(a, b V) bool) *Group[K, V] {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	name := cfg.Name
	if name == "" {
		name = "default"
	}
	return &Group[K, V]{
		produce: produce,
		equal:   equal,
		flows:   xsync.NewMap[K, *flow[K, V]](),
		logger:  logger.With(zap.String("group", name)),
		metrics: newGroupMetrics(cfg.Registerer, name),
	}
}

// Subscribe attaches to the flow for key, starting it if none is running.
// A running flow replays its latest value to the new subscriber.
func (g *Group[K, V]) Subscribe(key K) *Subscription[V] {
	sub := &Subscription[V]{ch: make(chan Update[V], 1)}

	var started *flow[K, V]
	g.flows.Compute(key, func(old *flow[K, V], loaded bool) (*flow[K, V], xsync.ComputeOp) {
		if loaded {
			old.mu.Lock()
			alive := !old.done
			if alive {
				old.subs[sub] = struct{}{}
				if old.has {
					sub.offer(Update[V]{Value: old.latest})
				}
			}
			old.mu.Unlock()
			if alive {
				sub.detach = old.detach(g)
				return old, xsync.CancelOp
			}
		}
		f := &flow[K, V]{key: key, subs: map[*Subscription[V]]struct{}{sub: {}}}
		sub.detach = f.detach(g)
		started = f
		return f, xsync.UpdateOp
	})
	g.metrics.subscribers.Inc()

	if started != nil {
		g.start(started)
	}
	return sub
}

func (g *Group[K, V]) start(f *flow[K, V]) {
	ctx, cancel := context.WithCancel(context.Background())
	f.mu.Lock()
	f.cancel = cancel
	done := f.done
	f.mu.Unlock()
	if done {
		// every subscriber left before the producer was started
		cancel()
		return
	}

	g.metrics.activeFlows.Inc()
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer g.metrics.activeFlows.Dec()
		defer cancel()

		err := g.run(ctx, f)
		if err != nil && ctx.Err() == nil {
			g.metrics.producerFailures.Inc()
			g.logger.Warn("producer failed", zap.Any("key", f.key), zap.Error(err))
		} else {
			err = nil
		}
		g.finish(f, err)
	}()
}

func (g *Group[K, V]) run(ctx context.Context, f *flow[K, V]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("producer panic: %v", r)
		}
	}()
	return g.produce(ctx, f.key, func(v V) { g.emit(f, v) })
}

func (g *Group[K, V]) emit(f *flow[K, V], v V) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return
	}
	if f.has && g.equal(f.latest, v) {
		g.metrics.suppressed.Inc()
		return
	}
	f.latest, f.has = v, true
	g.metrics.emitted.Inc()
	for s := range f.subs {
		s.offer(Update[V]{Value: v})
	}
}

// finish ends the flow, delivering err (if any) before closing every channel.
func (g *Group[K, V]) finish(f *flow[K, V], err error) {
	f.mu.Lock()
	f.done = true
	for s := range f.subs {
		if err != nil {
			s.offer(Update[V]{Err: err})
		}
		close(s.ch)
		delete(f.subs, s)
		g.metrics.subscribers.Dec()
	}
	f.mu.Unlock()
	g.remove(f)
}

func (g *Group[K, V]) remove(f *flow[K, V]) {
	g.flows.Compute(f.key, func(old *flow[K, V], loaded bool) (*flow[K, V], xsync.ComputeOp) {
		if loaded && old == f {
			return nil, xsync.DeleteOp
		}
		return old, xsync.CancelOp
	})
}

func (f *flow[K, V]) detach(g *Group[K, V]) func(*Subscription[V]) {
	return func(s *Subscription[V]) {
		f.mu.Lock()
		if _, ok := f.subs[s]; !ok {
			f.mu.Unlock()
			return
		}
		delete(f.subs, s)
		select {
		case <-s.ch:
		default:
		}
		close(s.ch)
		g.metrics.subscribers.Dec()
		last := len(f.subs) == 0 && !f.done
		if last {
			f.done = true
		}
		cancel := f.cancel
		f.mu.Unlock()

		if last {
			if cancel != nil {
				cancel()
			}
			g.remove(f)
		}
	}
}

// Active reports whether a producer is running for key.
func (g *Group[K, V]) Active(key K) bool {
	f, ok := g.flows.Load(key)
	if !ok {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.done
}

// Close ends every flow and waits for the producers to return.
func (g *Group[K, V]) Close() {
	g.flows.Range(func(_ K, f *flow[K, V]) bool {
		f.mu.Lock()
		cancel := f.cancel
		f.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return true
	})
	g.wg.Wait()
}
