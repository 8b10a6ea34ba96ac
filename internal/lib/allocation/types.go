package allocation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// StakingPool is a read-only snapshot of a single pool and its current statistics.
// Only the numeric statistics are interpreted when allocating - OperatorAddress and
// Metadata are carried through to the plan untouched.
type StakingPool struct {
	PoolID string `json:"poolId"`
	// fraction [0,1] of rewards kept by the pool operator
	OperatorShare              decimal.Decimal `json:"operatorShare"`
	CurrentZrxStaked           decimal.Decimal `json:"currentZrxStaked"`
	NextEpochZrxStaked         decimal.Decimal `json:"nextEpochZrxStaked"`
	SevenDayFeesGeneratedInEth decimal.Decimal `json:"sevenDayFeesGeneratedInEth"`

	OperatorAddress string       `json:"operatorAddress,omitempty"`
	Metadata        PoolMetadata `json:"metaData"`
}

type PoolMetadata struct {
	Name        string `json:"name,omitempty"`
	Bio         string `json:"bio,omitempty"`
	Location    string `json:"location,omitempty"`
	IsVerified  bool   `json:"isVerified"`
	LogoURL     string `json:"logoUrl,omitempty"`
	WebsiteURL  string `json:"websiteUrl,omitempty"`
	CreatedTxID string `json:"createdTxId,omitempty"`
}

// DisplayName returns the pool name if one was registered, otherwise its id.
func (p StakingPool) DisplayName() string {
	if p.Metadata.Name != "" {
		return p.Metadata.Name
	}
	return fmt.Sprintf("Pool %s", p.PoolID)
}

// AllocationEntry is one line of an allocation plan - the pool and the amount of ZRX
// (always exactly two fraction digits) to delegate to it.
type AllocationEntry struct {
	Pool      StakingPool     `json:"pool"`
	ZrxAmount decimal.Decimal `json:"zrxAmount"`
}

func (e AllocationEntry) String() string {
	return fmt.Sprintf("%s: %s ZRX", e.Pool.PoolID, e.ZrxAmount.StringFixed(2))
}

// RankedPool pairs a pool with the desirability score it was ranked by.
type RankedPool struct {
	Pool  StakingPool
	Score decimal.Decimal
}

// Eligible reports whether the pool has anything going for it - a score, existing delegation
// or fee history.  Ineligible pools only receive stake when they're the sole pool in the catalog
// or when no pool in the catalog has a score or stake.
func (rp RankedPool) Eligible() bool {
	return !(rp.Score.IsZero() && rp.Pool.CurrentZrxStaked.IsZero() && rp.Pool.SevenDayFeesGeneratedInEth.IsZero())
}

// Total sums the amounts of a plan.
func Total(plan []AllocationEntry) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range plan {
		total = total.Add(entry.ZrxAmount)
	}
	return total
}
