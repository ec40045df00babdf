package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// Purchase results
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultConflict = "conflict"
	ResultError    = "error"
)

var (
	ticketsImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tigets_tickets_imported_total",
			Help: "Total number of tickets imported",
		},
	)

	purchases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tigets_purchases_total",
			Help: "Total purchase attempts by result",
		},
		[]string{"result"},
	)

	stateMoves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tigets_state_moves_total",
			Help: "Total ticket state changes by target state",
		},
		[]string{"state"},
	)

	purchaseAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tigets_purchase_amount",
			Help:    "Amount paid per successful purchase",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
	)

	purchaseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tigets_purchase_duration_seconds",
			Help:    "Duration of the purchase transaction",
			Buckets: prometheus.DefBuckets,
		},
	)

	outboxMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tigets_outbox_messages_total",
			Help: "Outbox messages relayed to Kafka by status",
		},
		[]string{"status"},
	)
)

// RecordImport counts an imported ticket
func RecordImport() {
	ticketsImported.Inc()
}

// RecordPurchase counts a purchase attempt. Amount is observed on success only.
func RecordPurchase(result string, amount decimal.Decimal, took time.Duration) {
	purchases.WithLabelValues(result).Inc()
	purchaseDuration.Observe(took.Seconds())
	if result == ResultSuccess {
		purchaseAmount.Observe(amount.InexactFloat64())
	}
}

// RecordStateMove counts a state change
func RecordStateMove(state string) {
	stateMoves.WithLabelValues(state).Inc()
}

// RecordOutbox counts relayed outbox messages
func RecordOutbox(status string, n int) {
	if n > 0 {
		outboxMessages.WithLabelValues(status).Add(float64(n))
	}
}

// PoolStats is the subset of *pgxpool.Stat exported as gauges
type PoolStats interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
	MaxConns() int32
}

// RegisterPoolStats exposes database pool usage, read at scrape time
func RegisterPoolStats(reg prometheus.Registerer, stats func() PoolStats) {
	factory := promauto.With(reg)
	gauge := func(name, help string, value func(PoolStats) int32) {
		factory.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			return float64(value(stats()))
		})
	}

	gauge("tigets_db_pool_acquired_conns", "Connections currently in use", PoolStats.AcquiredConns)
	gauge("tigets_db_pool_idle_conns", "Idle connections in the pool", PoolStats.IdleConns)
	gauge("tigets_db_pool_total_conns", "Total connections in the pool", PoolStats.TotalConns)
	gauge("tigets_db_pool_max_conns", "Maximum pool size", PoolStats.MaxConns)
}
