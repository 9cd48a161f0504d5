package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/govunlock/pkg/retry"
	"github.com/canopy-network/govunlock/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
)

var errNoEndpoints = errors.New("no endpoints configured")

// StatusError is a non-2xx, non-5xx gateway reply. Asking again will not change it.
type StatusError struct {
	Path string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d %s", e.Code, e.Path)
}

// Opts configures an HTTPClient. Zero fields take defaults.
type Opts struct {
	Endpoints []string
	// Timeout bounds one request. Default 15s.
	Timeout time.Duration
	// RPS and Burst size the request budget shared by all endpoints. Defaults 20 and 40.
	RPS   int
	Burst int
	// BreakerFailures consecutive failures take an endpoint out for BreakerCooldown. Defaults 3 and 5s.
	BreakerFailures int
	BreakerCooldown time.Duration
	HTTPClient      *http.Client
	// PageWorkers bounds concurrent page fetches in ListPaged. Default 4.
	PageWorkers int
	// Registerer receives request metrics; nil leaves them unregistered.
	Registerer prometheus.Registerer
}

// HTTPClient queries a chain-state gateway over JSON, failing over across
// endpoints in order. It rate limits itself and benches endpoints that keep failing.
type HTTPClient struct {
	endpoints []string
	client    *http.Client
	metrics   *clientMetrics
	limit     *limiter
	breaker   *breaker
	pages     pond.Pool
}

func NewHTTPWithOpts(o Opts) *HTTPClient {
	if o.RPS <= 0 {
		o.RPS = 20
	}
	if o.Burst <= 0 {
		o.Burst = 40
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.BreakerFailures <= 0 {
		o.BreakerFailures = 3
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 5 * time.Second
	}
	if o.PageWorkers <= 0 {
		o.PageWorkers = 4
	}

	hc := o.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if hc.Timeout == 0 {
		hc.Timeout = o.Timeout
	}

	return &HTTPClient{
		endpoints: utils.Dedup(o.Endpoints),
		client:    hc,
		metrics:   metricsFor(o.Registerer),
		limit:     newLimiter(o.RPS, o.Burst),
		breaker:   newBreaker(o.BreakerFailures, o.BreakerCooldown),
		pages:     pond.NewPool(o.PageWorkers),
	}
}

// limiter is a token bucket refilled continuously at rate tokens per second.
type limiter struct {
	mu     sync.Mutex
	tokens float64
	burst  float64
	rate   float64
	last   time.Time
}

func newLimiter(rps, burst int) *limiter {
	return &limiter{tokens: float64(burst), burst: float64(burst), rate: float64(rps), last: time.Now()}
}

// take consumes a token, or reports how long until one is available.
func (l *limiter) take(now time.Time) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens = min(l.burst, l.tokens+now.Sub(l.last).Seconds()*l.rate)
	l.last = now
	if l.tokens >= 1 {
		l.tokens--
		return 0, true
	}
	return time.Duration((1 - l.tokens) / l.rate * float64(time.Second)), false
}

func (l *limiter) wait(ctx context.Context) error {
	for {
		d, ok := l.take(time.Now())
		if ok {
			return nil
		}
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// breaker benches an endpoint for cooldown after threshold consecutive failures.
type breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  map[string]int
	benched   map[string]time.Time
}

func newBreaker(threshold int, cooldown time.Duration) *breaker {
	return &breaker{
		threshold: threshold,
		cooldown:  cooldown,
		failures:  map[string]int{},
		benched:   map[string]time.Time{},
	}
}

func (b *breaker) allow(ep string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	until, ok := b.benched[ep]
	if !ok {
		return true
	}
	if time.Now().Before(until) {
		return false
	}
	// half open: one more failure benches it again
	delete(b.benched, ep)
	b.failures[ep] = b.threshold - 1
	return true
}

func (b *breaker) record(ep string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ok {
		delete(b.failures, ep)
		return
	}
	b.failures[ep]++
	if b.failures[ep] >= b.threshold {
		b.benched[ep] = time.Now().Add(b.cooldown)
	}
}

// doJSON posts payload to the first endpoint that answers and decodes the reply into out.
// Transport errors and 5xx replies count against the endpoint; other non-2xx replies
// come back wrapped in retry.Permanent.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, payload, out any) error {
	if len(c.endpoints) == 0 {
		return errNoEndpoints
	}

	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = b
	}

	lastErr := fmt.Errorf("all endpoints unavailable for %s", path)
	for _, ep := range c.endpoints {
		if !c.breaker.allow(ep) {
			continue
		}
		if err := c.limit.wait(ctx); err != nil {
			return err
		}

		retryable, err := c.attempt(ctx, method, ep, path, body, out)
		if err == nil {
			c.breaker.record(ep, true)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if retryable {
			c.breaker.record(ep, false)
		}
		lastErr = err
	}
	return lastErr
}

// attempt makes one request. retryable reports whether the failure is the endpoint's fault.
func (c *HTTPClient) attempt(ctx context.Context, method, ep, path string, body []byte, out any) (retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, method, ep+path, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.observe(path, "error", start)
		return true, err
	}
	defer func() { _ = utils.DrainAndClose(resp.Body) }()
	c.metrics.observe(path, strconv.Itoa(resp.StatusCode), start)

	switch {
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("server %d %s", resp.StatusCode, path)
	case resp.StatusCode >= 300:
		return false, retry.Permanent(&StatusError{Path: path, Code: resp.StatusCode})
	}
	if out == nil {
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return true, fmt.Errorf("decode %s: %w", path, err)
	}
	return false, nil
}

type pageResp[T any] struct {
	PageNumber int `json:"pageNumber"`
	PerPage    int `json:"perPage"`
	Results    []T `json:"results"`
	TotalPages int `json:"totalPages"`
	TotalCount int `json:"totalCount"`
}

// maxPages bounds how many pages ListPaged follows for one query.
const maxPages = 1000

// ListPaged fetches the first page, then the rest on the client's page pool,
// and returns every result in page order.
func ListPaged[T any](ctx context.Context, c *HTTPClient, path string, args map[string]any) ([]T, error) {
	var first pageResp[T]
	if err := c.doJSON(ctx, http.MethodPost, path, args, &first); err != nil {
		return nil, err
	}
	if first.TotalPages <= 1 {
		return first.Results, nil
	}
	if first.TotalPages > maxPages {
		return nil, fmt.Errorf("%s: %d pages exceeds limit of %d", path, first.TotalPages, maxPages)
	}

	rest := make([][]T, first.TotalPages-1)
	errs := make([]error, len(rest))
	group := c.pages.NewGroupContext(ctx)
	groupCtx := group.Context()
	for i := range rest {
		group.Submit(func() {
			payload := make(map[string]any, len(args)+1)
			for k, v := range args {
				payload[k] = v
			}
			payload["pageNumber"] = i + 2
			var page pageResp[T]
			errs[i] = c.doJSON(groupCtx, http.MethodPost, path, payload, &page)
			rest[i] = page.Results
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return nil, err
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	all := make([]T, 0, max(first.TotalCount, 0))
	all = append(all, first.Results...)
	for _, items := range rest {
		all = append(all, items...)
	}
	return all, nil
}
