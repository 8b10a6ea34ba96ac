package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/TxnLab/stakeplan/internal/config"
	"github.com/TxnLab/stakeplan/internal/lib/allocation"
	"github.com/TxnLab/stakeplan/internal/lib/catalog"
	"github.com/TxnLab/stakeplan/internal/lib/misc"
	"github.com/TxnLab/stakeplan/internal/lib/recorder"
)

// Daemon periodically refreshes the pool catalog and recomputes a plan for a reference amount, so
// the state of the catalog can be watched (via prometheus) and the current best plan fetched w/o
// hitting the staking backend.
type Daemon struct {
	logger          *slog.Logger
	provider        catalog.Provider
	policy          allocation.Policy
	network         string
	referenceAmount decimal.Decimal
	recorder        recorder.Recorder
	schedule        string

	// embed mutex for locking state for members below the mutex
	sync.RWMutex
	lastReport  *planReport
	lastRefresh time.Time
}

func newDaemon(logger *slog.Logger, provider catalog.Provider, policy allocation.Policy, network string,
	referenceAmount decimal.Decimal, rec recorder.Recorder, schedule string) *Daemon {
	return &Daemon{
		logger:          logger,
		provider:        provider,
		policy:          policy,
		network:         network,
		referenceAmount: referenceAmount,
		recorder:        rec,
		schedule:        schedule,
	}
}

// start does an initial refresh then schedules further refreshes until ctx is cancelled.
func (d *Daemon) start(ctx context.Context, wg *sync.WaitGroup) error {
	misc.Infof(d.logger, "Starting stakeplan daemon, refresh schedule:%s, reference amount:%s ZRX", d.schedule, d.referenceAmount)

	scheduler := cron.New(cron.WithParser(config.CronParser))
	if _, err := scheduler.AddFunc(d.schedule, func() { d.refresh(ctx) }); err != nil {
		return err
	}
	d.refresh(ctx)
	scheduler.Start()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer d.logger.Info("exiting catalog refresher")
		<-ctx.Done()
		// wait for any running refresh to finish
		<-scheduler.Stop().Done()
	}()
	return nil
}

// refresh fetches the catalog, updates the metrics and recomputes (and records) the reference plan.
func (d *Daemon) refresh(ctx context.Context) {
	pools, err := d.provider.StakingPools(ctx)
	if err != nil {
		promRefreshFailures.Inc()
		misc.Warnf(d.logger, "catalog refresh failed: %v", err)
		return
	}
	report, err := computePlan(d.policy, d.network, d.referenceAmount, pools)
	if err != nil {
		promRefreshFailures.Inc()
		misc.Warnf(d.logger, "reference plan failed: %v", err)
		return
	}
	ranked, err := d.policy.Rank(pools)
	if err != nil {
		promRefreshFailures.Inc()
		misc.Errorf(d.logger, "ranking failed: %v", err)
		return
	}

	now := time.Now()
	promNumPools.Set(float64(len(pools)))
	promNumEligiblePools.Set(float64(len(slices.DeleteFunc(slices.Clone(ranked), func(rp allocation.RankedPool) bool {
		return !rp.Eligible()
	}))))
	if len(ranked) > 0 {
		promTopScore.Set(ranked[0].Score.InexactFloat64())
	}
	promPlanPools.Set(float64(len(report.Plan)))
	promLastRefresh.Set(float64(now.Unix()))

	d.Lock()
	d.lastReport = report
	d.lastRefresh = now
	d.Unlock()
	misc.Infof(d.logger, "catalog refreshed: %d pools, reference plan over %d pools", len(pools), len(report.Plan))

	if len(report.Plan) > 0 {
		if err := d.recorder.RecordPlan(ctx, report.toRecord("daemon")); err != nil {
			misc.Warnf(d.logger, "unable to record reference plan: %v", err)
		}
	}
}

// ServeHTTP returns the most recent reference plan as json.
func (d *Daemon) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	d.RLock()
	report, refreshed := d.lastReport, d.lastRefresh
	d.RUnlock()

	if report == nil {
		http.Error(w, "no plan computed yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Last-Modified", refreshed.UTC().Format(http.TimeFormat))
	if err := json.NewEncoder(w).Encode(report.toJSON()); err != nil {
		misc.Warnf(d.logger, "unable to write plan response: %v", err)
	}
}
