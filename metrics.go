package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	promNumPools = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "stakeplan",
		Name:      "pool_count",
		Help:      "Pools in the catalog as of the last refresh",
	})
	promNumEligiblePools = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "stakeplan",
		Name:      "eligible_pool_count",
		Help:      "Pools with a score, existing stake or fee history",
	})
	promTopScore = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "stakeplan",
		Name:      "top_score",
		Help:      "Score of the best ranked pool",
	})
	promPlanPools = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "stakeplan",
		Name:      "reference_plan_pool_count",
		Help:      "Pools receiving stake in the reference plan",
	})
	promLastRefresh = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "stakeplan",
		Name:      "last_refresh_timestamp_seconds",
		Help:      "Unix time of the last successful catalog refresh",
	})
	promRefreshFailures = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "stakeplan",
		Name:      "refresh_failures_total",
		Help:      "Catalog refreshes which failed",
	})
)
