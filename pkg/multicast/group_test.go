package multicast

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

const wait = 2 * time.Second

func intEqual(a, b int) bool { return a == b }

// feedProducer emits every value sent on its source channel.
type feedProducer struct {
	starts atomic.Int32
	stops  atomic.Int32
	src    chan int
	fail   chan error
}

func newFeedProducer() *feedProducer {
	return &feedProducer{src: make(chan int), fail: make(chan error)}
}

func (p *feedProducer) produce(ctx context.Context, _ string, emit func(int)) error {
	p.starts.Add(1)
	defer p.stops.Add(1)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-p.fail:
			return err
		case v := <-p.src:
			emit(v)
		}
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func next(t *testing.T, s *Subscription[int]) Update[int] {
	t.Helper()
	select {
	case u, ok := <-s.Updates():
		require.True(t, ok, "subscription closed")
		return u
	case <-time.After(wait):
		t.Fatal("timed out waiting for update")
	}
	return Update[int]{}
}

func send(t *testing.T, p *feedProducer, v int) {
	t.Helper()
	select {
	case p.src <- v:
	case <-time.After(wait):
		t.Fatal("producer not running")
	}
}

func TestGroup_SharesOneProducerPerKey(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newFeedProducer()
	g := New[string, int](Config{Name: "shared", Logger: zaptest.NewLogger(t)}, p.produce, intEqual)
	defer g.Close()

	a := g.Subscribe("alice")
	b := g.Subscribe("alice")
	defer a.Close()
	defer b.Close()

	send(t, p, 1)
	assert.Equal(t, 1, next(t, a).Value)
	assert.Equal(t, 1, next(t, b).Value)
	assert.Equal(t, int32(1), p.starts.Load())
	assert.True(t, g.Active("alice"))
}

func TestGroup_ReplaysLatestToLateSubscriber(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newFeedProducer()
	g := New[string, int](Config{Logger: zaptest.NewLogger(t)}, p.produce, intEqual)
	defer g.Close()

	a := g.Subscribe("k")
	defer a.Close()
	send(t, p, 7)
	require.Equal(t, 7, next(t, a).Value)

	late := g.Subscribe("k")
	defer late.Close()
	assert.Equal(t, 7, next(t, late).Value)
	assert.Equal(t, int32(1), p.starts.Load())
}

func TestGroup_SuppressesDuplicates(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := prometheus.NewRegistry()
	p := newFeedProducer()
	g := New[string, int](Config{Name: "dedupe", Registerer: reg, Logger: zaptest.NewLogger(t)}, p.produce, intEqual)
	defer g.Close()

	s := g.Subscribe("k")
	defer s.Close()

	send(t, p, 1)
	require.Equal(t, 1, next(t, s).Value)
	send(t, p, 1)
	send(t, p, 2)
	assert.Equal(t, 2, next(t, s).Value)

	assert.Equal(t, float64(1), counterValue(t, g.metrics.suppressed))
	assert.Equal(t, float64(2), counterValue(t, g.metrics.emitted))
}

func TestGroup_ConflatesForSlowSubscriber(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newFeedProducer()
	g := New[string, int](Config{Logger: zaptest.NewLogger(t)}, p.produce, intEqual)
	defer g.Close()

	s := g.Subscribe("k")
	defer s.Close()
	for i := 1; i <= 5; i++ {
		send(t, p, i)
	}
	// the duplicate is only received once 5 has been offered
	send(t, p, 5)
	assert.Equal(t, 5, next(t, s).Value)
	select {
	case u := <-s.Updates():
		t.Fatalf("unexpected queued update %+v", u)
	default:
	}
}

func TestGroup_LastCloseTearsDown(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newFeedProducer()
	g := New[string, int](Config{Logger: zaptest.NewLogger(t)}, p.produce, intEqual)
	defer g.Close()

	a := g.Subscribe("k")
	b := g.Subscribe("k")
	send(t, p, 1)

	a.Close()
	assert.True(t, g.Active("k"))
	b.Close()
	b.Close()

	require.Eventually(t, func() bool { return p.stops.Load() == 1 }, wait, 10*time.Millisecond)
	assert.False(t, g.Active("k"))

	_, ok := <-a.Updates()
	assert.False(t, ok)

	c := g.Subscribe("k")
	defer c.Close()
	send(t, p, 2)
	assert.Equal(t, 2, next(t, c).Value)
	assert.Equal(t, int32(2), p.starts.Load())
}

func TestGroup_ProducerErrorPropagates(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := prometheus.NewRegistry()
	p := newFeedProducer()
	g := New[string, int](Config{Name: "errors", Registerer: reg, Logger: zaptest.NewLogger(t)}, p.produce, intEqual)
	defer g.Close()

	a := g.Subscribe("k")
	b := g.Subscribe("k")
	defer a.Close()
	defer b.Close()

	boom := errors.New("rpc unavailable")
	select {
	case p.fail <- boom:
	case <-time.After(wait):
		t.Fatal("producer not running")
	}

	for _, s := range []*Subscription[int]{a, b} {
		u := next(t, s)
		assert.ErrorIs(t, u.Err, boom)
		_, ok := <-s.Updates()
		assert.False(t, ok)
	}
	require.Eventually(t, func() bool { return !g.Active("k") }, wait, 10*time.Millisecond)
	assert.Equal(t, float64(1), counterValue(t, g.metrics.producerFailures))

	// a fresh subscriber restarts the flow
	c := g.Subscribe("k")
	defer c.Close()
	send(t, p, 3)
	assert.Equal(t, 3, next(t, c).Value)
}

func TestGroup_ProducerPanicBecomesError(t *testing.T) {
	defer goleak.VerifyNone(t)

	g := New[string, int](Config{Logger: zaptest.NewLogger(t)}, func(ctx context.Context, key string, emit func(int)) error {
		panic("bad snapshot")
	}, intEqual)
	defer g.Close()

	s := g.Subscribe("k")
	defer s.Close()
	u := next(t, s)
	require.Error(t, u.Err)
	assert.Contains(t, u.Err.Error(), "bad snapshot")
}

func TestGroup_IndependentKeys(t *testing.T) {
	defer goleak.VerifyNone(t)

	g := New[string, int](Config{Logger: zaptest.NewLogger(t)}, func(ctx context.Context, key string, emit func(int)) error {
		emit(len(key))
		<-ctx.Done()
		return nil
	}, intEqual)

	a := g.Subscribe("a")
	bb := g.Subscribe("bb")
	assert.Equal(t, 1, next(t, a).Value)
	assert.Equal(t, 2, next(t, bb).Value)

	g.Close()
	_, ok := <-a.Updates()
	assert.False(t, ok)
	_, ok = <-bb.Updates()
	assert.False(t, ok)
}
