package allocation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// ScoreFunc computes the desirability of a pool for a delegator.  Higher is better and
// the result must never be negative.
type ScoreFunc func(pool StakingPool) decimal.Decimal

var (
	one               = decimal.NewFromInt(1)
	defaultFeeEpsilon = decimal.New(1, -6)
)

// DefaultScore returns the stock scoring rule: (1 - operatorShare) * (sevenDayFees + epsilon).
// The epsilon keeps pools without any fee history in the running, ranked below every pool
// which has generated fees (given equal operator share).
func DefaultScore(feeEpsilon decimal.Decimal) ScoreFunc {
	return func(pool StakingPool) decimal.Decimal {
		return one.Sub(pool.OperatorShare).Mul(pool.SevenDayFeesGeneratedInEth.Add(feeEpsilon))
	}
}

// Rank scores every pool and orders them best first.  Ties are broken by ascending pool id so
// the order never depends on the order of the input.
func (p Policy) Rank(pools []StakingPool) ([]RankedPool, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if err := validatePools(pools); err != nil {
		return nil, err
	}
	return p.rank(pools)
}

func (p Policy) rank(pools []StakingPool) ([]RankedPool, error) {
	score := p.scorer()
	ranked := make([]RankedPool, 0, len(pools))
	for _, pool := range pools {
		s := score(pool)
		if s.IsNegative() {
			return nil, fmt.Errorf("%w: score for pool %s is negative (%s)", ErrInvalidInput, pool.PoolID, s)
		}
		ranked = append(ranked, RankedPool{Pool: pool, Score: s})
	}
	slices.SortFunc(ranked, func(a, b RankedPool) int {
		if c := b.Score.Cmp(a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.Pool.PoolID, b.Pool.PoolID)
	})
	return ranked, nil
}

func (p Policy) scorer() ScoreFunc {
	if p.Score != nil {
		return p.Score
	}
	eps := p.FeeEpsilon
	if eps.IsZero() {
		eps = defaultFeeEpsilon
	}
	return DefaultScore(eps)
}

func validatePools(pools []StakingPool) error {
	seen := make(map[string]struct{}, len(pools))
	for i, pool := range pools {
		if pool.PoolID == "" {
			return fmt.Errorf("%w: pool at index %d has no pool id", ErrInvalidInput, i)
		}
		if _, found := seen[pool.PoolID]; found {
			return fmt.Errorf("%w: duplicate pool id %s", ErrInvalidInput, pool.PoolID)
		}
		seen[pool.PoolID] = struct{}{}

		if pool.OperatorShare.IsNegative() || pool.OperatorShare.GreaterThan(one) {
			return fmt.Errorf("%w: pool %s operator share %s is outside [0, 1]", ErrInvalidInput, pool.PoolID, pool.OperatorShare)
		}
		switch {
		case pool.CurrentZrxStaked.IsNegative():
			return fmt.Errorf("%w: pool %s has negative current stake", ErrInvalidInput, pool.PoolID)
		case pool.NextEpochZrxStaked.IsNegative():
			return fmt.Errorf("%w: pool %s has negative next epoch stake", ErrInvalidInput, pool.PoolID)
		case pool.SevenDayFeesGeneratedInEth.IsNegative():
			return fmt.Errorf("%w: pool %s has negative fees", ErrInvalidInput, pool.PoolID)
		}
	}
	return nil
}
