package logger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics registry for Prometheus metrics

var (
	ScanCyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scan_cycles_total",
			Help: "Total number of completed scan cycles",
		},
	)

	ScanCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scan_cycle_duration_seconds",
			Help:    "Duration of scan cycles in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ScanCandidates = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scan_candidates",
			Help: "Number of candidate markets in the last scan cycle",
		},
	)

	MarketFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_fetch_errors_total",
			Help: "Total number of market data fetch failures",
		},
		[]string{"market"},
	)

	SignalIntentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_intents_total",
			Help: "Total number of trade intents emitted",
		},
		[]string{"strategy"},
	)

	RiskRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_rejections_total",
			Help: "Total number of trade intents rejected by the risk gate",
		},
		[]string{"reason"},
	)

	OrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_total",
			Help: "Total number of orders by side and terminal state",
		},
		[]string{"side", "state"},
	)

	PositionsClosedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "positions_closed_total",
			Help: "Total number of closed positions by exit reason",
		},
		[]string{"reason"},
	)

	DailyPnL = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "daily_pnl",
			Help: "Realized profit and loss for the current trading day",
		},
	)

	NotifyFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_failures_total",
			Help: "Total number of notification delivery failures",
		},
	)
)
