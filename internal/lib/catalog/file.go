package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/TxnLab/stakeplan/internal/lib/allocation"
)

// Provider supplies the current catalog of staking pools.
type Provider interface {
	StakingPools(ctx context.Context) ([]allocation.StakingPool, error)
}

// FileProvider serves a catalog from a json file - either a bare array of pool records or the
// backend's {"stakingPools": [...]} response saved to disk.
type FileProvider struct {
	Path string
}

func (f FileProvider) StakingPools(_ context.Context) ([]allocation.StakingPool, error) {
	return LoadFile(f.Path)
}

func LoadFile(path string) ([]allocation.StakingPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file %s: %w", path, err)
	}
	records, err := decodePools(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog file %s: %w", path, err)
	}
	return toStakingPools(records), nil
}

// SaveFile writes a catalog snapshot in the backend's response format, so it can be read back w/
// LoadFile.  The data is first written to a temp file which only replaces path once fully written.
func SaveFile(path string, records []PoolWithStats) error {
	err := os.MkdirAll(filepath.Dir(path), 0775) // user+group RWX, others RX
	if err != nil {
		return fmt.Errorf("error making directory for:%s, error:%w", path, err)
	}
	temp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(temp)
	encoder.SetIndent("", "  ")
	err = encoder.Encode(poolsResponse{StakingPools: records})
	if err != nil {
		_ = temp.Close()
		_ = os.Remove(temp.Name())
		return fmt.Errorf("error saving catalog: %w", err)
	}

	err = temp.Close()
	if err != nil {
		_ = os.Remove(temp.Name())
		return err
	}
	return os.Rename(temp.Name(), path)
}

func decodePools(data []byte) ([]PoolWithStats, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []PoolWithStats
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, err
		}
		return records, nil
	}
	var resp poolsResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, err
	}
	if resp.StakingPools == nil {
		return nil, fmt.Errorf("%w: missing stakingPools", ErrBadResponse)
	}
	return resp.StakingPools, nil
}

// Select returns the pools w/ the given ids, in the order requested.
func Select(pools []allocation.StakingPool, ids []string) ([]allocation.StakingPool, error) {
	selected := make([]allocation.StakingPool, 0, len(ids))
	for _, id := range ids {
		idx := slices.IndexFunc(pools, func(p allocation.StakingPool) bool { return p.PoolID == id })
		if idx == -1 {
			return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, id)
		}
		selected = append(selected, pools[idx])
	}
	return selected, nil
}
