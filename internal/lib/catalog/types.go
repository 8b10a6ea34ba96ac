package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/TxnLab/stakeplan/internal/lib/allocation"
)

// PoolWithStats is the pool record as returned by the staking backend.  All numbers are
// decoded as exact decimals - the backend sends them as json numbers w/ up to 17 significant
// digits and we don't want float64 anywhere near them.
type PoolWithStats struct {
	PoolID          string `json:"poolId"`
	OperatorAddress string `json:"operatorAddress"`
	CreatedAt       struct {
		BlockNumber uint64 `json:"blockNumber"`
		TxHash      string `json:"txHash"`
	} `json:"createdAt"`
	MetaData                           PoolMetaData    `json:"metaData"`
	SevenDayProtocolFeesGeneratedInEth decimal.Decimal `json:"sevenDayProtocolFeesGeneratedInEth"`
	CurrentEpochStats                  EpochStats      `json:"currentEpochStats"`
	NextEpochStats                     EpochStats      `json:"nextEpochStats"`
}

type PoolMetaData struct {
	Name       string `json:"name,omitempty"`
	Bio        string `json:"bio,omitempty"`
	Location   string `json:"location,omitempty"`
	IsVerified bool   `json:"isVerified"`
	LogoURL    string `json:"logoUrl,omitempty"`
	WebsiteURL string `json:"websiteUrl,omitempty"`
}

type EpochStats struct {
	PoolID                          string          `json:"poolId"`
	ZrxStaked                       decimal.Decimal `json:"zrxStaked"`
	OperatorShare                   decimal.Decimal `json:"operatorShare"`
	ApproximateStakeRatio           decimal.Decimal `json:"approximateStakeRatio"`
	MakerAddresses                  []string        `json:"makerAddresses"`
	TotalProtocolFeesGeneratedInEth decimal.Decimal `json:"totalProtocolFeesGeneratedInEth"`
}

type poolsResponse struct {
	StakingPools []PoolWithStats `json:"stakingPools"`
}

type poolResponse struct {
	StakingPool PoolWithStats `json:"stakingPool"`
}

// StakingPool converts the backend record into the snapshot the allocation engine works from.
// The operator share of the current epoch is the one used.
func (p PoolWithStats) StakingPool() allocation.StakingPool {
	return allocation.StakingPool{
		PoolID:                     p.PoolID,
		OperatorShare:              p.CurrentEpochStats.OperatorShare,
		CurrentZrxStaked:           p.CurrentEpochStats.ZrxStaked,
		NextEpochZrxStaked:         p.NextEpochStats.ZrxStaked,
		SevenDayFeesGeneratedInEth: p.SevenDayProtocolFeesGeneratedInEth,
		OperatorAddress:            p.OperatorAddress,
		Metadata: allocation.PoolMetadata{
			Name:        p.MetaData.Name,
			Bio:         p.MetaData.Bio,
			Location:    p.MetaData.Location,
			IsVerified:  p.MetaData.IsVerified,
			LogoURL:     p.MetaData.LogoURL,
			WebsiteURL:  p.MetaData.WebsiteURL,
			CreatedTxID: p.CreatedAt.TxHash,
		},
	}
}

func toStakingPools(records []PoolWithStats) []allocation.StakingPool {
	pools := make([]allocation.StakingPool, 0, len(records))
	for _, rec := range records {
		pools = append(pools, rec.StakingPool())
	}
	return pools
}
