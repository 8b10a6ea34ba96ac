package recorder

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder(t *testing.T) *SQLiteRecorder {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	rec, err := NewSQLiteRecorder(logger, filepath.Join(t.TempDir(), "plans.db"))
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })
	return rec
}

func testPlan(created time.Time, amounts ...string) *PlanRecord {
	plan := &PlanRecord{
		Source:    "testdata/kovan_pools.json",
		Network:   "kovan",
		CreatedAt: created,
		Requested: decimal.RequireFromString("177.779"),
		Effective: decimal.RequireFromString("177.77"),
	}
	for i, amount := range amounts {
		plan.Entries = append(plan.Entries, PlanEntry{
			PoolID:    string(rune('1' + i)),
			PoolName:  "pool",
			Score:     decimal.New(int64(i+1), -6),
			ZrxAmount: decimal.RequireFromString(amount),
		})
	}
	return plan
}

func TestSQLiteRecorderRoundTrip(t *testing.T) {
	ctx := context.Background()
	rec := newTestRecorder(t)

	base := time.UnixMilli(1_700_000_000_000)
	first := testPlan(base, "100.00", "77.77")
	second := testPlan(base.Add(time.Minute), "0.01", "0.00", "177.76")
	require.NoError(t, rec.RecordPlan(ctx, first))
	require.NoError(t, rec.RecordPlan(ctx, second))
	assert.NotZero(t, first.ID)
	assert.Greater(t, second.ID, first.ID)

	plans, err := rec.RecentPlans(ctx, 10)
	require.NoError(t, err)
	require.Len(t, plans, 2)

	got := plans[0]
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, "kovan", got.Network)
	assert.True(t, got.CreatedAt.Equal(second.CreatedAt))
	assert.Equal(t, "177.779", got.Requested.String())
	assert.Equal(t, "177.77", got.Effective.String())
	require.Len(t, got.Entries, 3)
	for i, entry := range got.Entries {
		assert.Equal(t, second.Entries[i].PoolID, entry.PoolID)
		assert.True(t, second.Entries[i].ZrxAmount.Equal(entry.ZrxAmount), entry.PoolID)
		assert.True(t, second.Entries[i].Score.Equal(entry.Score), entry.PoolID)
	}

	limited, err := rec.RecentPlans(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, second.ID, limited[0].ID)
}

func TestSQLiteRecorderSetsCreatedAt(t *testing.T) {
	rec := newTestRecorder(t)
	plan := testPlan(time.Time{}, "1.00")
	require.NoError(t, rec.RecordPlan(context.Background(), plan))
	assert.False(t, plan.CreatedAt.IsZero())
}

func TestNoopRecorder(t *testing.T) {
	var rec Recorder = NewNoopRecorder()
	require.NoError(t, rec.RecordPlan(context.Background(), testPlan(time.Now(), "1")))
	plans, err := rec.RecentPlans(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, plans)
	assert.NoError(t, rec.Close())
}
