package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/TxnLab/stakeplan/internal/lib/misc"
)

// SQLiteRecorder persists plans to a SQLite database.  Amounts are stored as decimal text so they
// read back exactly.
type SQLiteRecorder struct {
	logger *slog.Logger
	db     *sql.DB
	mu     sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(logger *slog.Logger, dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// pragmas are per connection
	db.SetMaxOpenConns(1)

	// WAL so `history` can read while the daemon writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	r := &SQLiteRecorder{logger: logger, db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	misc.Infof(logger, "sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS plans (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			source     TEXT,
			network    TEXT,
			requested  TEXT NOT NULL,
			effective  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_plans_ts ON plans(timestamp)`,

		`CREATE TABLE IF NOT EXISTS plan_entries (
			plan_id    INTEGER NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
			position   INTEGER NOT NULL,
			pool_id    TEXT NOT NULL,
			pool_name  TEXT,
			score      TEXT,
			zrx_amount TEXT NOT NULL,
			PRIMARY KEY (plan_id, position)
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordPlan stores the plan and its entries in one transaction, setting plan.ID (and CreatedAt if
// unset).
func (r *SQLiteRecorder) RecordPlan(ctx context.Context, plan *PlanRecord) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	res, err := tx.ExecContext(ctx, `INSERT INTO plans (timestamp, source, network, requested, effective)
		VALUES (?,?,?,?,?)`,
		plan.CreatedAt.UnixMilli(), plan.Source, plan.Network, plan.Requested.String(), plan.Effective.String())
	if err != nil {
		return err
	}
	planID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for i, entry := range plan.Entries {
		_, err = tx.ExecContext(ctx, `INSERT INTO plan_entries (plan_id, position, pool_id, pool_name, score, zrx_amount)
			VALUES (?,?,?,?,?,?)`,
			planID, i, entry.PoolID, entry.PoolName, entry.Score.String(), entry.ZrxAmount.String())
		if err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	plan.ID = planID
	return nil
}

// RecentPlans returns the most recent plans, newest first.
func (r *SQLiteRecorder) RecentPlans(ctx context.Context, limit int) ([]PlanRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryContext(ctx, `SELECT id, timestamp, source, network, requested, effective
		FROM plans ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	var plans []PlanRecord
	for rows.Next() {
		var (
			plan                 PlanRecord
			ts                   int64
			requested, effective string
		)
		if err := rows.Scan(&plan.ID, &ts, &plan.Source, &plan.Network, &requested, &effective); err != nil {
			rows.Close()
			return nil, err
		}
		plan.CreatedAt = time.UnixMilli(ts)
		if plan.Requested, err = decimal.NewFromString(requested); err != nil {
			rows.Close()
			return nil, fmt.Errorf("plan %d requested: %w", plan.ID, err)
		}
		if plan.Effective, err = decimal.NewFromString(effective); err != nil {
			rows.Close()
			return nil, fmt.Errorf("plan %d effective: %w", plan.ID, err)
		}
		plans = append(plans, plan)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range plans {
		if plans[i].Entries, err = r.planEntries(ctx, plans[i].ID); err != nil {
			return nil, err
		}
	}
	return plans, nil
}

func (r *SQLiteRecorder) planEntries(ctx context.Context, planID int64) ([]PlanEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT pool_id, pool_name, score, zrx_amount
		FROM plan_entries WHERE plan_id = ? ORDER BY position`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []PlanEntry
	for rows.Next() {
		var (
			entry         PlanEntry
			score, amount string
		)
		if err := rows.Scan(&entry.PoolID, &entry.PoolName, &score, &amount); err != nil {
			return nil, err
		}
		if entry.Score, err = decimal.NewFromString(score); err != nil {
			return nil, fmt.Errorf("plan %d pool %s score: %w", planID, entry.PoolID, err)
		}
		if entry.ZrxAmount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("plan %d pool %s amount: %w", planID, entry.PoolID, err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	misc.Infof(r.logger, "closing sqlite recorder")
	return r.db.Close()
}
