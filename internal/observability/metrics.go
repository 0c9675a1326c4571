// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Signal metrics
	SignalsEvaluated *prometheus.CounterVec
	EvaluationErrors *prometheus.CounterVec

	// Trade metrics
	TradesOpened prometheus.Counter
	TradesClosed *prometheus.CounterVec
	TradePnL     prometheus.Histogram

	// Execution metrics
	OrdersPlaced    *prometheus.CounterVec
	ExecutionErrors prometheus.Counter
	OrderLatency    prometheus.Histogram

	// Market data metrics
	FetchErrors     prometheus.Counter
	CandlesIngested prometheus.Counter
	TicksReceived   prometheus.Counter

	// Position metrics
	PositionOpen     prometheus.Gauge
	PositionQuantity prometheus.Gauge
	UnrealizedPnL    prometheus.Gauge
	AccountBalance   prometheus.Gauge

	// Health metrics
	LastSuccessfulCycle prometheus.Gauge
	CycleDuration       prometheus.Histogram
}

// NewMetrics creates a Metrics instance registered on the default
// registerer.
func NewMetrics(namespace string) *Metrics {
	return newMetrics(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry registers on a private registry; used by
// tests to avoid duplicate registration panics.
func NewMetricsWithRegistry(namespace string, reg prometheus.Registerer) *Metrics {
	return newMetrics(namespace, reg)
}

func newMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "spot_trader"
	}
	factory := promauto.With(reg)

	return &Metrics{
		SignalsEvaluated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "signals_total",
			Help:      "Total number of strategy evaluations by resulting signal",
		}, []string{"signal"}),
		EvaluationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "evaluation_errors_total",
			Help:      "Total number of evaluation cycle errors by type",
		}, []string{"error_type"}),

		TradesOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_opened_total",
			Help:      "Total number of positions opened",
		}),
		TradesClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_closed_total",
			Help:      "Total number of positions closed by exit reason",
		}, []string{"exit_reason"}),
		TradePnL: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trade_pnl",
			Help:      "Realized PnL per closed trade in quote currency",
			Buckets:   []float64{-1000, -100, -10, -1, 0, 1, 10, 100, 1000},
		}),

		OrdersPlaced: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "orders_placed_total",
			Help:      "Total number of orders placed by side",
		}, []string{"side"}),
		ExecutionErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "errors_total",
			Help:      "Total number of order execution failures",
		}),
		OrderLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "order_latency_seconds",
			Help:      "Order placement latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		FetchErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "fetch_errors_total",
			Help:      "Total number of candle fetch failures",
		}),
		CandlesIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "candles_ingested_total",
			Help:      "Total number of candles stored",
		}),
		TicksReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "ticks_received_total",
			Help:      "Total number of ticker updates received",
		}),

		PositionOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "open",
			Help:      "1 while a position is held, 0 while flat",
		}),
		PositionQuantity: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "quantity",
			Help:      "Quantity of the open position in base units",
		}),
		UnrealizedPnL: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "unrealized_pnl",
			Help:      "Unrealized PnL of the open position in quote currency",
		}),
		AccountBalance: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "account",
			Name:      "balance",
			Help:      "Tracked account balance in quote currency",
		}),

		LastSuccessfulCycle: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of the last completed evaluation cycle",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "cycle_duration_seconds",
			Help:      "Evaluation cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSignal increments the signal counter for an evaluation result.
func RecordSignal(signal string) {
	DefaultMetrics.SignalsEvaluated.WithLabelValues(signal).Inc()
}

// RecordEvaluationError increments the evaluation error counter.
func RecordEvaluationError(errorType string) {
	DefaultMetrics.EvaluationErrors.WithLabelValues(errorType).Inc()
}

// RecordTradeOpened increments the opened-trade counter and marks the
// position held.
func RecordTradeOpened(quantity float64) {
	DefaultMetrics.TradesOpened.Inc()
	DefaultMetrics.PositionOpen.Set(1)
	DefaultMetrics.PositionQuantity.Set(quantity)
}

// RecordTradeClosed records a closed trade and marks the position flat.
func RecordTradeClosed(exitReason string, pnl float64) {
	DefaultMetrics.TradesClosed.WithLabelValues(exitReason).Inc()
	DefaultMetrics.TradePnL.Observe(pnl)
	DefaultMetrics.PositionOpen.Set(0)
	DefaultMetrics.PositionQuantity.Set(0)
	DefaultMetrics.UnrealizedPnL.Set(0)
}

// RecordOrder records an order placement and its latency.
func RecordOrder(side string, seconds float64, err error) {
	DefaultMetrics.OrdersPlaced.WithLabelValues(side).Inc()
	DefaultMetrics.OrderLatency.Observe(seconds)
	if err != nil {
		DefaultMetrics.ExecutionErrors.Inc()
	}
}

// RecordFetchError increments the candle fetch error counter.
func RecordFetchError() {
	DefaultMetrics.FetchErrors.Inc()
}

// RecordCandlesIngested adds to the stored-candle counter.
func RecordCandlesIngested(count int) {
	DefaultMetrics.CandlesIngested.Add(float64(count))
}

// RecordTick increments the ticker update counter.
func RecordTick() {
	DefaultMetrics.TicksReceived.Inc()
}

// UpdateBalance sets the tracked account balance gauge.
func UpdateBalance(balance float64) {
	DefaultMetrics.AccountBalance.Set(balance)
}

// UpdateUnrealizedPnL sets the open-position PnL gauge.
func UpdateUnrealizedPnL(pnl float64) {
	DefaultMetrics.UnrealizedPnL.Set(pnl)
}

// RecordCycle marks a completed evaluation cycle.
func RecordCycle(unixTime float64, durationSeconds float64) {
	DefaultMetrics.LastSuccessfulCycle.Set(unixTime)
	DefaultMetrics.CycleDuration.Observe(durationSeconds)
}
