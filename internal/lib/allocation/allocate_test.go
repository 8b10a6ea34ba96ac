package allocation

import (
	"math/big"
	"slices"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testPool(id, staked, nextStaked, share, fees string) StakingPool {
	return StakingPool{
		PoolID:                     id,
		OperatorShare:              dec(share),
		CurrentZrxStaked:           dec(staked),
		NextEpochZrxStaked:         dec(nextStaked),
		SevenDayFeesGeneratedInEth: dec(fees),
		Metadata:                   PoolMetadata{Name: "pool " + id},
	}
}

// Snapshot from Kovan (1/3/2020)
func kovanPools() []StakingPool {
	return []StakingPool{
		testPool("1", "29602.75", "29602.75", "0.000004", "0"),
		testPool("2", "1738.6666666666667", "1738.6666666666667", "0.000002", "0"),
		testPool("3", "318.26666666666665", "318.26666666666665", "0.49", "0"),
		testPool("4", "1145.4833333333333", "1145.4833333333333", "0.000095", "0"),
		testPool("5", "35.33333333333333", "49.70333333333333", "0.7", "0"),
		testPool("6", "2", "2", "0.999999", "0"),
		testPool("7", "0", "0", "1", "0"),
		testPool("8", "1474.0966666666668", "1174.0966666666668", "0", "0"),
		testPool("9", "0", "0", "1", "0"),
		testPool("10", "0", "0", "1", "0"),
	}
}

func poolIDs(plan []AllocationEntry) []string {
	var ids []string
	for _, entry := range plan {
		ids = append(ids, entry.Pool.PoolID)
	}
	return ids
}

func amounts(plan []AllocationEntry) []string {
	var amts []string
	for _, entry := range plan {
		amts = append(amts, entry.ZrxAmount.StringFixed(2))
	}
	return amts
}

func TestAllocateZero(t *testing.T) {
	plan, err := Allocate(decimal.Zero, kovanPools())
	require.NoError(t, err)
	assert.Empty(t, plan)

	// sub-cent requests truncate to zero as well
	plan, err = Allocate(dec("0.009"), kovanPools())
	require.NoError(t, err)
	assert.Empty(t, plan)

	plan, err = Allocate(decimal.Zero, nil)
	require.NoError(t, err)
	assert.Empty(t, plan)
}

func TestAllocateExactSum(t *testing.T) {
	testCases := []struct {
		name      string
		requested string
		expected  string
	}{
		{"whole number", "470", "470"},
		{"odd decimal", "177.77", "177.77"},
		{"another odd decimal", "4200.27", "4200.27"},
		{"very large number", "123456789.12", "123456789.12"},
		{"truncates extra decimals", "1277.12999", "1277.12"},
		{"single cent", "0.01", "0.01"},
		{"hundreds of millions w/ dust", "987654321.987654321", "987654321.98"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			plan, err := Allocate(dec(tc.requested), kovanPools())
			require.NoError(t, err)
			require.NotEmpty(t, plan)

			total := Total(plan)
			assert.True(t, total.Equal(dec(tc.expected)), "expected total of %s, got %s", tc.expected, total)
			for _, entry := range plan {
				assert.False(t, entry.ZrxAmount.IsNegative(), "negative amount for pool %s", entry.Pool.PoolID)
				assert.True(t, entry.ZrxAmount.Equal(entry.ZrxAmount.Truncate(2)), "%s has more than two decimals", entry.ZrxAmount)
				assert.True(t, entry.ZrxAmount.LessThanOrEqual(total))
			}
		})
	}
}

func TestAllocateRankingAndExclusion(t *testing.T) {
	plan, err := Allocate(dec("470"), kovanPools())
	require.NoError(t, err)

	// pools 7, 9 and 10 take 100% of rewards and have no stake or fees - they're skipped
	assert.Equal(t, []string{"8", "2", "1", "4", "3", "5", "6"}, poolIDs(plan))
	// metadata carried through untouched
	assert.Equal(t, "pool 8", plan[0].Pool.Metadata.Name)
	assert.True(t, plan[0].ZrxAmount.GreaterThanOrEqual(plan[1].ZrxAmount))
}

func TestAllocateFeesOutrankNoHistory(t *testing.T) {
	pools := []StakingPool{
		testPool("a", "100", "100", "0", "0"),
		testPool("b", "0", "0", "0.5", "0.25"),
	}
	ranked, err := DefaultPolicy().Rank(pools)
	require.NoError(t, err)
	assert.Equal(t, "b", ranked[0].Pool.PoolID)
	assert.True(t, ranked[0].Score.GreaterThan(ranked[1].Score))
}

func TestAllocateDeterministic(t *testing.T) {
	pools := kovanPools()
	first, err := Allocate(dec("4200.27"), pools)
	require.NoError(t, err)

	reversed := slices.Clone(pools)
	slices.Reverse(reversed)
	second, err := Allocate(dec("4200.27"), reversed)
	require.NoError(t, err)

	assert.Equal(t, poolIDs(first), poolIDs(second))
	assert.Equal(t, amounts(first), amounts(second))
}

func TestAllocateTiesBrokenByPoolID(t *testing.T) {
	pools := []StakingPool{
		testPool("c", "0", "0", "0.1", "1"),
		testPool("a", "0", "0", "0.1", "1"),
		testPool("b", "0", "0", "0.1", "1"),
	}
	plan, err := Allocate(dec("100"), pools)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, poolIDs(plan))
	// leftover cent goes to the best ranked pool on equal remainders
	assert.Equal(t, []string{"33.34", "33.33", "33.33"}, amounts(plan))
}

func TestAllocateDegenerateWeights(t *testing.T) {
	pools := []StakingPool{
		testPool("z", "0", "0", "1", "0"),
		testPool("x", "0", "0", "1", "0"),
		testPool("y", "0", "0", "1", "0"),
	}
	plan, err := Allocate(dec("10.00"), pools)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, poolIDs(plan))
	assert.Equal(t, []string{"3.34", "3.33", "3.33"}, amounts(plan))
	assert.True(t, Total(plan).Equal(dec("10")))
}

func TestAllocateEvenSplitSkipsIneligible(t *testing.T) {
	// a keeps all its fees so it scores zero, but its fee history keeps it eligible
	pools := []StakingPool{
		testPool("a", "0", "0", "1", "3"),
		testPool("b", "0", "0", "1", "0"),
	}
	plan, err := Allocate(dec("10"), pools)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, poolIDs(plan))
	assert.Equal(t, []string{"10.00"}, amounts(plan))
}

func TestAllocateCapacityFallback(t *testing.T) {
	// every pool keeps all rewards so scores are zero - existing stake decides the split
	pools := []StakingPool{
		testPool("a", "1", "1", "1", "0"),
		testPool("b", "3", "3", "1", "0"),
		testPool("c", "0", "0", "1", "0"),
	}
	plan, err := Allocate(dec("100"), pools)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, poolIDs(plan))
	assert.Equal(t, []string{"25.00", "75.00"}, amounts(plan))
}

func TestAllocateSinglePool(t *testing.T) {
	pools := []StakingPool{testPool("only", "0", "0", "1", "0")}
	plan, err := Allocate(dec("5.555"), pools)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, "only", plan[0].Pool.PoolID)
	assert.Equal(t, "5.55", plan[0].ZrxAmount.StringFixed(2))
}

func TestAllocateMaxPools(t *testing.T) {
	plan, err := Policy{MaxPools: 2}.Allocate(dec("1000"), kovanPools())
	require.NoError(t, err)
	assert.Equal(t, []string{"8", "2"}, poolIDs(plan))
	assert.True(t, Total(plan).Equal(dec("1000")))
}

func TestAllocateCustomScore(t *testing.T) {
	flat := Policy{Score: func(StakingPool) decimal.Decimal { return one }}
	plan, err := flat.Allocate(dec("0.07"), kovanPools())
	require.NoError(t, err)
	// all ten pools score 1 - seven cents can't cover them all so the first ids (lexically) win
	assert.Len(t, plan, 10)
	assert.Equal(t, []string{"0.01", "0.01", "0.01", "0.01", "0.01", "0.01", "0.01", "0.00", "0.00", "0.00"},
		amounts(plan))
	assert.Equal(t, "1", plan[0].Pool.PoolID)
	assert.Equal(t, "10", plan[1].Pool.PoolID)

	negative := Policy{Score: func(StakingPool) decimal.Decimal { return dec("-1") }}
	_, err = negative.Allocate(dec("1"), kovanPools())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAllocateErrors(t *testing.T) {
	testCases := []struct {
		name      string
		policy    Policy
		requested string
		pools     []StakingPool
		expected  error
	}{
		{"empty catalog", DefaultPolicy(), "10", nil, ErrInsufficientCapacity},
		{"negative amount", DefaultPolicy(), "-1", kovanPools(), ErrInvalidInput},
		{"operator share above one", DefaultPolicy(), "10", []StakingPool{testPool("1", "0", "0", "1.5", "0")}, ErrInvalidInput},
		{"operator share below zero", DefaultPolicy(), "10", []StakingPool{testPool("1", "0", "0", "-0.1", "0")}, ErrInvalidInput},
		{"negative stake", DefaultPolicy(), "10", []StakingPool{testPool("1", "-5", "0", "0.1", "0")}, ErrInvalidInput},
		{"negative next epoch stake", DefaultPolicy(), "10", []StakingPool{testPool("1", "5", "-1", "0.1", "0")}, ErrInvalidInput},
		{"negative fees", DefaultPolicy(), "10", []StakingPool{testPool("1", "5", "0", "0.1", "-2")}, ErrInvalidInput},
		{"duplicate pool", DefaultPolicy(), "10", []StakingPool{testPool("1", "5", "5", "0.1", "0"), testPool("1", "5", "5", "0.1", "0")}, ErrInvalidInput},
		{"missing pool id", DefaultPolicy(), "10", []StakingPool{testPool("", "5", "5", "0.1", "0")}, ErrInvalidInput},
		{"negative max pools", Policy{MaxPools: -1}, "10", kovanPools(), ErrInvalidInput},
		{"negative epsilon", Policy{FeeEpsilon: dec("-0.1")}, "10", kovanPools(), ErrInvalidInput},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			plan, err := tc.policy.Allocate(dec(tc.requested), tc.pools)
			assert.ErrorIs(t, err, tc.expected)
			assert.Nil(t, plan)

			// errors are a pure function of the input
			_, again := tc.policy.Allocate(dec(tc.requested), tc.pools)
			assert.Equal(t, err.Error(), again.Error())
		})
	}
}

func TestAllocateConcurrent(t *testing.T) {
	pools := kovanPools()
	expected, err := Allocate(dec("123456789.12"), pools)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]AllocationEntry, 8)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = Allocate(dec("123456789.12"), pools)
		}()
	}
	wg.Wait()
	for _, plan := range results {
		assert.Equal(t, amounts(expected), amounts(plan))
	}
}

func TestApportion(t *testing.T) {
	testCases := []struct {
		name     string
		total    int64
		weights  []string
		expected []int64
	}{
		{"even thirds", 100, []string{"1", "1", "1"}, []int64{34, 33, 33}},
		{"mixed exponents", 100, []string{"0.5", "0.25", "2.5e-1"}, []int64{50, 25, 25}},
		{"largest remainder wins", 10, []string{"0.34", "0.33", "0.33"}, []int64{4, 3, 3}},
		{"remainder beats rank", 10, []string{"1", "2"}, []int64{3, 7}},
		{"tiny weight", 1, []string{"1000000", "0.000001"}, []int64{1, 0}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var weights []decimal.Decimal
			for _, w := range tc.weights {
				weights = append(weights, dec(w))
			}
			shares := apportion(big.NewInt(tc.total), weights)
			var got []int64
			var sum int64
			for _, s := range shares {
				got = append(got, s.Int64())
				sum += s.Int64()
			}
			assert.Equal(t, tc.expected, got)
			assert.Equal(t, tc.total, sum)
		})
	}
}
