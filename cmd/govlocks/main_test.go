package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const snapshot = `
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
  - {id: vesting, amount: "70"}
balance: {free: "1000", transferable: "900", total: "1000"}
`

func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(snapshot), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSchedule_YAML(t *testing.T) {
	out, err := run(t, "schedule", "--snapshot", writeSnapshot(t))
	require.NoError(t, err)

	var got struct {
		TotalLocked string `yaml:"totalLocked"`
		Chunks      []struct {
			Kind        string `yaml:"kind"`
			Amount      string `yaml:"amount"`
			ClaimableAt uint64 `yaml:"claimableAt"`
		} `yaml:"chunks"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &got), out)
	assert.Equal(t, "100", got.TotalLocked)
	require.Len(t, got.Chunks, 2)
	assert.Equal(t, "claimable", got.Chunks[0].Kind)
	assert.Equal(t, "50", got.Chunks[0].Amount)
	assert.Equal(t, uint64(800), got.Chunks[1].ClaimableAt)
}

func TestAffects_JSONWithCalls(t *testing.T) {
	out, err := run(t, "affects", "-s", writeSnapshot(t), "-o", "json", "--calls")
	require.NoError(t, err)

	var got struct {
		TransferableChange struct {
			New string `json:"new"`
		} `json:"transferableChange"`
		RemainsLocked *struct {
			Amount      string   `json:"amount"`
			LockedInIDs []string `json:"lockedInIds"`
		} `json:"remainsLocked"`
		Calls []map[string]any `json:"calls"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	// vesting keeps 70 locked: only 100 -> 70 frees up
	assert.Equal(t, "930", got.TransferableChange.New)
	require.NotNil(t, got.RemainsLocked)
	assert.Equal(t, "20", got.RemainsLocked.Amount)
	assert.Equal(t, []string{"vesting"}, got.RemainsLocked.LockedInIDs)
	assert.Len(t, got.Calls, 2)
}

func TestAffects_OtherAccountHasNothing(t *testing.T) {
	out, err := run(t, "affects", "-s", writeSnapshot(t), "-a", "bob", "-o", "json", "--calls")
	require.NoError(t, err)
	assert.NotContains(t, out, "calls")
	assert.NotContains(t, out, "claimableChunk")
}

func TestErrors(t *testing.T) {
	_, err := run(t, "schedule")
	assert.Error(t, err)

	_, err = run(t, "schedule", "-s", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = run(t, "schedule", "-s", writeSnapshot(t), "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "govlocks dev (none)\n", out)
}
