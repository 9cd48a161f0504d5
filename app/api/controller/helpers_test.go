package controller

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apptypes "github.com/canopy-network/govunlock/app/api/types"
	"github.com/canopy-network/govunlock/pkg/retry"
	"github.com/canopy-network/govunlock/pkg/unlock"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

const testToken = "test-token"

// alice: 100 on track 0 free since block 500, 50 on track 1 until 800, head 600.
const testSnapshot = `
chain: polkadot
account: alice
head: 600
blockTimeMs: 6000
voteLockingPeriod: 100
tracks:
  - {id: 0, name: root, undecidingTimeout: 1000}
  - {id: 1, name: treasurer, undecidingTimeout: 1000}
referenda:
  - id: 1
    track: 0
    timeline: [{state: Ongoing, block: 1}, {state: Approved, block: 400}]
  - id: 2
    track: 1
    timeline: [{state: Ongoing, block: 1}, {state: Rejected, block: 800}]
voting:
  - track: 0
    votes:
      - {referendum: 1, type: standard, amount: "100", conviction: Locked1x}
  - track: 1
    votes:
      - {referendum: 2, type: split, aye: "30", nay: "20"}
trackLocks:
  - {track: 0, amount: "100"}
  - {track: 1, amount: "50"}
balanceLocks:
  - {id: pyconvot, amount: "100"}
balance: {free: "1000", transferable: "900", total: "1000"}
`

func newTestController(t *testing.T) (*Controller, http.Handler) {
	t.Helper()

	f, err := unlock.ParseSnapshotFile([]byte(testSnapshot))
	require.NoError(t, err)

	registry := unlock.NewRegistry()
	registry.Register(f.Chain, unlock.NewFileSources(f))

	metrics := prometheus.NewRegistry()
	service, err := unlock.NewService(unlock.Config{
		Registry:   registry,
		Feed:       unlock.MergeFeeds(),
		Logger:     zaptest.NewLogger(t),
		Registerer: metrics,
		Retry:      retry.Config{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
	})
	require.NoError(t, err)
	t.Cleanup(service.Close)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	c := &Controller{
		App: &apptypes.App{
			Registry: registry,
			Service:  service,
			Metrics:  metrics,
			Logger:   zaptest.NewLogger(t),
		},
		AdminToken: testToken,
		Users:      map[string]apptypes.User{"ops": {Username: "ops", Hash: hash, Role: "viewer"}},
		JWTSecret:  []byte("test-secret"),
	}
	router, err := c.NewRouter()
	require.NoError(t, err)
	return c, WithCORS(router)
}

func do(t *testing.T, h http.Handler, method, path string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
