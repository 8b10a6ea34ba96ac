package allocation

import (
	"fmt"
	"math/big"
	"slices"

	"github.com/shopspring/decimal"
)

// centDigits is the number of fraction digits every allocated amount carries.
const centDigits = 2

// Policy holds the knobs of the allocation engine.  The zero value is usable and equal to
// DefaultPolicy.  A Policy holds no state, so a single value can be shared by any number of
// concurrent callers.
type Policy struct {
	// Score overrides the ranking rule - when nil DefaultScore(FeeEpsilon) is used.
	Score ScoreFunc
	// FeeEpsilon is the fee bonus every pool receives in the default score (0 = 0.000001)
	FeeEpsilon decimal.Decimal
	// MaxPools caps how many pools a plan spreads over.  0 means no cap.
	MaxPools int
}

func DefaultPolicy() Policy {
	return Policy{FeeEpsilon: defaultFeeEpsilon}
}

// Allocate splits requested across pools using the default policy.
func Allocate(requested decimal.Decimal, pools []StakingPool) ([]AllocationEntry, error) {
	return DefaultPolicy().Allocate(requested, pools)
}

// EffectiveAmount truncates (never rounds) an amount to whole cents.  The plan returned by
// Allocate always sums to exactly this value.
func EffectiveAmount(requested decimal.Decimal) decimal.Decimal {
	return requested.Truncate(centDigits)
}

// Allocate selects pools from the catalog and computes the amount of stake each should
// receive.  The amounts sum exactly to the requested amount truncated to cents, and the
// entries are returned best pool first.  A request which truncates to zero always yields an
// empty plan.
func (p Policy) Allocate(requested decimal.Decimal, pools []StakingPool) ([]AllocationEntry, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if requested.IsNegative() {
		return nil, fmt.Errorf("%w: requested amount %s is negative", ErrInvalidInput, requested)
	}
	effective := EffectiveAmount(requested)
	if effective.IsZero() {
		return []AllocationEntry{}, nil
	}
	if len(pools) == 0 {
		return nil, fmt.Errorf("%w: cannot place %s ZRX", ErrInsufficientCapacity, effective.StringFixed(centDigits))
	}
	if err := validatePools(pools); err != nil {
		return nil, err
	}

	ranked, err := p.rank(pools)
	if err != nil {
		return nil, err
	}
	selected, weights := p.selectPools(ranked)

	totalCents := effective.Shift(centDigits).BigInt()
	cents := apportion(totalCents, weights)

	plan := make([]AllocationEntry, len(selected))
	for i, rp := range selected {
		plan[i] = AllocationEntry{
			Pool:      rp.Pool,
			ZrxAmount: decimal.NewFromBigInt(cents[i], -centDigits),
		}
	}
	return plan, nil
}

func (p Policy) validate() error {
	if p.MaxPools < 0 {
		return fmt.Errorf("%w: max pools must not be negative, got %d", ErrInvalidInput, p.MaxPools)
	}
	if p.FeeEpsilon.IsNegative() {
		return fmt.Errorf("%w: fee epsilon must not be negative, got %s", ErrInvalidInput, p.FeeEpsilon)
	}
	return nil
}

// selectPools picks the pools receiving stake along with the weight each is apportioned by.
// Weights are the scores, falling back to current stake when every score is zero and to an
// even split when there's nothing else to go on.  Pools with a zero weight are dropped.
func (p Policy) selectPools(ranked []RankedPool) ([]RankedPool, []decimal.Decimal) {
	if len(ranked) == 1 {
		// only choice - use it regardless of its stats
		return ranked, []decimal.Decimal{one}
	}
	eligible := slices.DeleteFunc(slices.Clone(ranked), func(rp RankedPool) bool { return !rp.Eligible() })

	var weightOf func(rp RankedPool) decimal.Decimal
	switch {
	case slices.ContainsFunc(eligible, func(rp RankedPool) bool { return rp.Score.IsPositive() }):
		weightOf = func(rp RankedPool) decimal.Decimal { return rp.Score }
	case slices.ContainsFunc(eligible, func(rp RankedPool) bool { return rp.Pool.CurrentZrxStaked.IsPositive() }):
		weightOf = func(rp RankedPool) decimal.Decimal { return rp.Pool.CurrentZrxStaked }
	default:
		// degenerate catalog - spread evenly, across every pool if none are eligible
		if len(eligible) == 0 {
			eligible = slices.Clone(ranked)
		}
		weightOf = func(RankedPool) decimal.Decimal { return one }
	}

	var (
		selected []RankedPool
		weights  []decimal.Decimal
	)
	for _, rp := range eligible {
		if p.MaxPools > 0 && len(selected) == p.MaxPools {
			break
		}
		w := weightOf(rp)
		if !w.IsPositive() {
			continue
		}
		selected = append(selected, rp)
		weights = append(weights, w)
	}
	return selected, weights
}

// apportion splits totalCents proportionally to weights using the largest remainder method.
// Every share is first rounded down, then the leftover cents (always fewer than the number
// of shares) go one each to the shares which lost the most to rounding.  Equal remainders
// favour the earlier (better ranked) entry.
// All math is done on integers - the weights are rescaled to a common exponent first - so
// the result is exact no matter the magnitude of the amount.
func apportion(totalCents *big.Int, weights []decimal.Decimal) []*big.Int {
	minExp := weights[0].Exponent()
	for _, w := range weights[1:] {
		minExp = min(minExp, w.Exponent())
	}
	var (
		scaled = make([]*big.Int, len(weights))
		sum    = new(big.Int)
	)
	for i, w := range weights {
		scaled[i] = new(big.Int).Mul(w.Coefficient(), pow10(int64(w.Exponent()-minExp)))
		sum.Add(sum, scaled[i])
	}

	var (
		shares     = make([]*big.Int, len(weights))
		remainders = make([]*big.Int, len(weights))
		allocated  = new(big.Int)
	)
	for i := range scaled {
		num := new(big.Int).Mul(totalCents, scaled[i])
		shares[i], remainders[i] = new(big.Int).QuoRem(num, sum, new(big.Int))
		allocated.Add(allocated, shares[i])
	}

	leftover := new(big.Int).Sub(totalCents, allocated).Int64()
	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return remainders[b].Cmp(remainders[a])
	})
	for _, idx := range order[:leftover] {
		shares[idx].Add(shares[idx], big.NewInt(1))
	}
	return shares
}

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}
