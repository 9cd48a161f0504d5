package unlock

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/canopy-network/govunlock/pkg/governance"
	"github.com/canopy-network/govunlock/pkg/rpc"
	"gopkg.in/yaml.v3"
)

// SnapshotFile is a captured chain state for one account. It uses the
// gateway's wire types so captured responses can be pasted in as-is.
// JSON files parse too since YAML is a superset.
type SnapshotFile struct {
	Chain             string               `yaml:"chain"`
	Account           string               `yaml:"account"`
	Head              uint64               `yaml:"head"`
	BlockTimeMs       int64                `yaml:"blockTimeMs"`
	VoteLockingPeriod uint64               `yaml:"voteLockingPeriod"`
	Tracks            []rpc.RpcTrack       `yaml:"tracks"`
	Referenda         []rpc.RpcReferendum  `yaml:"referenda"`
	Voting            []rpc.RpcTrackVoting `yaml:"voting"`
	TrackLocks        []rpc.RpcTrackLock   `yaml:"trackLocks"`
	BalanceLocks      []rpc.RpcBalanceLock `yaml:"balanceLocks"`
	Balance           rpc.RpcAccount       `yaml:"balance"`
}

func ReadSnapshotFile(path string) (*SnapshotFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}
	return ParseSnapshotFile(raw)
}

func ParseSnapshotFile(raw []byte) (*SnapshotFile, error) {
	var f SnapshotFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse snapshot file: %w", err)
	}
	if f.Chain == "" {
		f.Chain = "offline"
	}
	return &f, nil
}

func (f *SnapshotFile) Key() Key {
	return Key{Chain: f.Chain, Account: f.Account}
}

// FileSources serves a SnapshotFile through the Sources interface.
type FileSources struct {
	file *SnapshotFile
}

func NewFileSources(f *SnapshotFile) *FileSources {
	return &FileSources{file: f}
}

func (s *FileSources) ChainHead(context.Context) (governance.BlockNumber, error) {
	return governance.BlockNumber(s.file.Head), nil
}

func (s *FileSources) BlockDuration(context.Context) (time.Duration, error) {
	return rpc.BlockTime{BlockTimeMs: s.file.BlockTimeMs}.Duration(), nil
}

func (s *FileSources) VotingFor(_ context.Context, account string) (map[governance.TrackID]governance.Voting, error) {
	out := make(map[governance.TrackID]governance.Voting, len(s.file.Voting))
	if account != s.file.Account {
		return out, nil
	}
	for _, tv := range s.file.Voting {
		voting, err := tv.ToVoting()
		if err != nil {
			return nil, err
		}
		out[governance.TrackID(tv.Track)] = voting
	}
	return out, nil
}

func (s *FileSources) AllReferenda(context.Context) (map[governance.ReferendumID]governance.Referendum, error) {
	out := make(map[governance.ReferendumID]governance.Referendum, len(s.file.Referenda))
	for _, r := range s.file.Referenda {
		out[governance.ReferendumID(r.ID)] = r.ToReferendum()
	}
	return out, nil
}

func (s *FileSources) Tracks(context.Context) (map[governance.TrackID]governance.TrackInfo, error) {
	out := make(map[governance.TrackID]governance.TrackInfo, len(s.file.Tracks))
	for _, t := range s.file.Tracks {
		out[governance.TrackID(t.ID)] = t.ToTrackInfo()
	}
	return out, nil
}

func (s *FileSources) VoteLockingPeriod(context.Context) (governance.BlockNumber, error) {
	return governance.BlockNumber(s.file.VoteLockingPeriod), nil
}

func (s *FileSources) TrackLocks(_ context.Context, account string) (map[governance.TrackID]governance.Balance, error) {
	out := make(map[governance.TrackID]governance.Balance, len(s.file.TrackLocks))
	if account != s.file.Account {
		return out, nil
	}
	for _, l := range s.file.TrackLocks {
		amount, err := governance.ParseBalance(l.Amount)
		if err != nil {
			return nil, fmt.Errorf("track %d lock: %w", l.Track, err)
		}
		out[governance.TrackID(l.Track)] = amount
	}
	return out, nil
}

func (s *FileSources) BalanceLocks(_ context.Context, account string) ([]governance.BalanceLock, error) {
	if account != s.file.Account {
		return nil, nil
	}
	out := make([]governance.BalanceLock, 0, len(s.file.BalanceLocks))
	for _, l := range s.file.BalanceLocks {
		amount, err := governance.ParseBalance(l.Amount)
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", l.ID, err)
		}
		out = append(out, governance.BalanceLock{ID: l.ID, Amount: amount})
	}
	return out, nil
}

func (s *FileSources) AssetBalance(_ context.Context, account string) (governance.AssetBalance, error) {
	if account != s.file.Account {
		return governance.AssetBalance{}, nil
	}
	return s.file.Balance.ToAssetBalance()
}
