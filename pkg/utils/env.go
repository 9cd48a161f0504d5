package utils

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

func Env(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func EnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func EnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// EnvDuration accepts Go duration strings ("30s", "2m").
func EnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

// EnvList splits a comma separated variable, dropping blanks.
func EnvList(key string) []string {
	return splitList(os.Getenv(key), ",")
}

// ParseChainEndpoints parses "polkadot=http://a,http://b;kusama=http://c".
func ParseChainEndpoints(raw string) (map[string][]string, error) {
	out := map[string][]string{}
	for _, entry := range splitList(raw, ";") {
		chain, urls, ok := strings.Cut(entry, "=")
		chain = strings.TrimSpace(chain)
		if !ok || chain == "" {
			return nil, fmt.Errorf("chain endpoints: malformed entry %q", entry)
		}
		endpoints := Dedup(splitList(urls, ","))
		if len(endpoints) == 0 {
			return nil, fmt.Errorf("chain endpoints: %s has no urls", chain)
		}
		out[chain] = append(out[chain], endpoints...)
	}
	return out, nil
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func splitList(raw, sep string) []string {
	var out []string
	for _, part := range strings.Split(raw, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
