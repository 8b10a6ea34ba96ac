package recorder

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PlanRecord is one computed allocation plan.
type PlanRecord struct {
	ID int64
	// Source of the catalog the plan was computed from - "backend", a file path, "daemon"
	Source    string
	Network   string
	CreatedAt time.Time
	Requested decimal.Decimal
	// Requested truncated to cents - the total of Entries
	Effective decimal.Decimal
	Entries   []PlanEntry
}

type PlanEntry struct {
	PoolID    string
	PoolName  string
	Score     decimal.Decimal
	ZrxAmount decimal.Decimal
}

// Recorder persists computed plans for later review.
type Recorder interface {
	RecordPlan(ctx context.Context, plan *PlanRecord) error
	RecentPlans(ctx context.Context, limit int) ([]PlanRecord, error)
	Close() error
}
