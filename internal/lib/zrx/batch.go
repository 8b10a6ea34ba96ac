package zrx

import (
	"bytes"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/TxnLab/stakeplan/internal/lib/allocation"
)

// StakeStatus mirrors the staking contract's IStructs.StakeStatus enum.
type StakeStatus uint8

const (
	Undelegated StakeStatus = iota
	Delegated
)

// NilPoolID is the pool id used for undelegated stake.
var NilPoolID = common.Hash{}

var (
	ErrEmptyPlan     = errors.New("plan has nothing to stake")
	ErrInvalidPoolID = errors.New("invalid pool id")
)

// stakeInfo is the (status, poolId) tuple moveStake takes.
type stakeInfo struct {
	Status uint8    `abi:"status"`
	PoolID [32]byte `abi:"poolId"`
}

//go:embed artifacts/staking.abi.json
var embeddedF embed.FS

// StakingABI returns the parsed abi of the staking proxy methods used for staking.
func StakingABI() (abi.ABI, error) {
	data, err := embeddedF.ReadFile("artifacts/staking.abi.json")
	if err != nil {
		return abi.ABI{}, err
	}
	return abi.JSON(bytes.NewReader(data))
}

// PoolIDToBytes32 converts a pool id as the backend reports it (decimal, or 0x prefixed hex) into
// the bytes32 the staking contract keys pools by.
func PoolIDToBytes32(poolID string) (common.Hash, error) {
	if poolID == "" {
		return common.Hash{}, fmt.Errorf("%w: empty", ErrInvalidPoolID)
	}
	if hexID, found := strings.CutPrefix(strings.ToLower(poolID), "0x"); found {
		if hexID == "" || len(hexID) > 2*common.HashLength {
			return common.Hash{}, fmt.Errorf("%w: %q", ErrInvalidPoolID, poolID)
		}
		raw, err := hex.DecodeString(strings.Repeat("0", 2*common.HashLength-len(hexID)) + hexID)
		if err != nil {
			return common.Hash{}, fmt.Errorf("%w: %q: %v", ErrInvalidPoolID, poolID, err)
		}
		return common.BytesToHash(raw), nil
	}
	val, err := uint256.FromDecimal(poolID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %q: %v", ErrInvalidPoolID, poolID, err)
	}
	return common.Hash(val.Bytes32()), nil
}

// Move is one delegation out of the undelegated balance into a pool.
type Move struct {
	PoolID    string
	PoolHash  common.Hash
	ZrxAmount *uint256.Int // base units
	Calldata  []byte
}

// StakeBatch is the unsigned call a staker would send to the staking proxy to carry out a plan:
// deposit the plan total, then move it from undelegated into each pool.
type StakeBatch struct {
	To        common.Address
	Total     *uint256.Int // base units
	StakeCall []byte
	Moves     []Move
	// batchExecute(bytes[]) wrapping StakeCall followed by each move
	Calldata []byte
}

func (b *StakeBatch) CalldataHex() string {
	return hexutil.Encode(b.Calldata)
}

// BuildStakeBatch encodes the staking proxy calls for the given plan.  Entries w/ a zero amount
// get no moveStake call.  Nothing is signed or submitted.
func BuildStakeBatch(network Network, plan []allocation.AllocationEntry) (*StakeBatch, error) {
	stakingABI, err := StakingABI()
	if err != nil {
		return nil, fmt.Errorf("loading staking abi: %w", err)
	}
	total, err := ToBaseUnits(allocation.Total(plan), Decimals)
	if err != nil {
		return nil, err
	}
	if total.IsZero() {
		return nil, ErrEmptyPlan
	}

	batch := &StakeBatch{To: network.StakingProxy, Total: total}
	batch.StakeCall, err = stakingABI.Pack("stake", total.ToBig())
	if err != nil {
		return nil, fmt.Errorf("encoding stake: %w", err)
	}
	calls := [][]byte{batch.StakeCall}

	from := stakeInfo{Status: uint8(Undelegated), PoolID: NilPoolID}
	for _, entry := range plan {
		if entry.ZrxAmount.IsZero() {
			continue
		}
		amount, err := ToBaseUnits(entry.ZrxAmount, Decimals)
		if err != nil {
			return nil, fmt.Errorf("pool %s: %w", entry.Pool.PoolID, err)
		}
		poolHash, err := PoolIDToBytes32(entry.Pool.PoolID)
		if err != nil {
			return nil, err
		}
		to := stakeInfo{Status: uint8(Delegated), PoolID: poolHash}
		calldata, err := stakingABI.Pack("moveStake", from, to, amount.ToBig())
		if err != nil {
			return nil, fmt.Errorf("encoding moveStake for pool %s: %w", entry.Pool.PoolID, err)
		}
		batch.Moves = append(batch.Moves, Move{
			PoolID:    entry.Pool.PoolID,
			PoolHash:  poolHash,
			ZrxAmount: amount,
			Calldata:  calldata,
		})
		calls = append(calls, calldata)
	}

	batch.Calldata, err = stakingABI.Pack("batchExecute", calls)
	if err != nil {
		return nil, fmt.Errorf("encoding batchExecute: %w", err)
	}
	return batch, nil
}
