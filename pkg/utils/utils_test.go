package utils

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("GOVUNLOCK_TEST_STR", "value")
	t.Setenv("GOVUNLOCK_TEST_INT", "42")
	t.Setenv("GOVUNLOCK_TEST_BAD_INT", "-3")
	t.Setenv("GOVUNLOCK_TEST_DUR", "750ms")

	t.Setenv("GOVUNLOCK_TEST_LIST", " alice, ,bob ,")

	assert.Equal(t, "value", Env("GOVUNLOCK_TEST_STR", "def"))
	assert.Equal(t, "def", Env("GOVUNLOCK_TEST_MISSING", "def"))
	assert.Equal(t, 42, EnvInt("GOVUNLOCK_TEST_INT", 1))
	assert.Equal(t, 1, EnvInt("GOVUNLOCK_TEST_BAD_INT", 1))
	assert.Equal(t, int64(42), EnvInt64("GOVUNLOCK_TEST_INT", 1))
	assert.Equal(t, 750*time.Millisecond, EnvDuration("GOVUNLOCK_TEST_DUR", time.Second))
	assert.Equal(t, time.Second, EnvDuration("GOVUNLOCK_TEST_STR", time.Second))
	assert.Equal(t, []string{"alice", "bob"}, EnvList("GOVUNLOCK_TEST_LIST"))
	assert.Empty(t, EnvList("GOVUNLOCK_TEST_MISSING"))
}

func TestParseChainEndpoints(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[string][]string
		wantErr bool
	}{
		{name: "empty", raw: "", want: map[string][]string{}},
		{
			name: "two chains",
			raw:  "polkadot=http://a/,http://b ; kusama=http://c",
			want: map[string][]string{
				"polkadot": {"http://a", "http://b"},
				"kusama":   {"http://c"},
			},
		},
		{name: "duplicate urls", raw: "polkadot=http://a,http://a/", want: map[string][]string{"polkadot": {"http://a"}}},
		{name: "missing equals", raw: "polkadot", wantErr: true},
		{name: "missing chain", raw: "=http://a", wantErr: true},
		{name: "missing urls", raw: "polkadot= , ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseChainEndpoints(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(map[string]int{"c": 1, "a": 2, "b": 3}))
}

func TestHashOrRead(t *testing.T) {
	hashed, err := HashOrRead("hunter2")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword(hashed, []byte("hunter2")))

	again, err := HashOrRead(string(hashed))
	require.NoError(t, err)
	assert.Equal(t, hashed, again)
}

type trackingCloser struct {
	io.Reader
	closed bool
}

func (c *trackingCloser) Close() error {
	c.closed = true
	return errors.New("closed")
}

func TestDrainAndClose(t *testing.T) {
	assert.NoError(t, DrainAndClose(nil))

	rc := &trackingCloser{Reader: strings.NewReader("body")}
	assert.EqualError(t, DrainAndClose(rc), "closed")
	assert.True(t, rc.closed)
}
