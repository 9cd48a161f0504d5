package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/canopy-network/govunlock/app/api/controller/types"
	"github.com/canopy-network/govunlock/pkg/retry"
	"github.com/canopy-network/govunlock/pkg/unlock"
	"github.com/go-jose/go-jose/v4/json"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// offline wraps a snapshot file in a single-chain service.
type offline struct {
	service *unlock.Service
	key     unlock.Key
}

func openSnapshot(path, account, lockID string, logger *zap.Logger) (*offline, error) {
	if path == "" {
		return nil, errors.New("--snapshot is required")
	}
	f, err := unlock.ReadSnapshotFile(path)
	if err != nil {
		return nil, err
	}
	key := f.Key()
	if account != "" {
		key.Account = account
	}

	registry := unlock.NewRegistry()
	registry.Register(f.Chain, unlock.NewFileSources(f))
	service, err := unlock.NewService(unlock.Config{
		Registry:         registry,
		Feed:             unlock.MergeFeeds(),
		Logger:           logger,
		Retry:            retry.Config{MaxRetries: 1},
		Workers:          4,
		GovernanceLockID: lockID,
	})
	if err != nil {
		return nil, err
	}
	return &offline{service: service, key: key}, nil
}

func (o *offline) Close() { o.service.Close() }

func (o *offline) schedule(ctx context.Context) (any, error) {
	s, err := o.service.ComputeClaimSchedule(ctx, o.key)
	if err != nil {
		return nil, err
	}
	return types.NewSchedule(o.key.Chain, o.key.Account, s), nil
}

func (o *offline) affects(ctx context.Context, withCalls bool) (any, error) {
	a, err := o.service.ComputeUnlockAffects(ctx, o.key)
	if err != nil {
		return nil, err
	}
	out := struct {
		types.AffectsResponse
		Calls any `json:"calls,omitempty"`
	}{AffectsResponse: types.NewAffects(o.key.Chain, o.key.Account, a)}
	if withCalls && a.ClaimableChunk != nil {
		calls, err := o.service.UnlockCalls(ctx, o.key)
		if err != nil {
			return nil, err
		}
		out.Calls = calls
	}
	return out, nil
}

// render round-trips through JSON so YAML output keeps the wire field names.
func render(w io.Writer, format string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	switch format {
	case "json":
		_, err = fmt.Fprintln(w, string(raw))
		return err
	case "yaml", "":
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func newLogger(debug bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
