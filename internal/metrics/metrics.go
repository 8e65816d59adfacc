package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// LedgerRequestsTotal counts ledger API round trips by operation and outcome.
	LedgerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "metergate",
			Name:      "ledger_requests_total",
			Help:      "Total ledger API requests by operation and status",
		},
		[]string{"operation", "status"},
	)

	// LedgerRequestDuration tracks ledger API latency by operation.
	LedgerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "metergate",
			Name:      "ledger_request_duration_seconds",
			Help:      "Ledger API request duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// TopUpOrdersTotal counts top-up orders placed against the ledger.
	TopUpOrdersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "metergate",
			Name:      "topup_orders_total",
			Help:      "Total top-up orders placed",
		},
	)

	// InvocationsTotal counts metered endpoint calls by outcome.
	InvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "metergate",
			Name:      "invocations_total",
			Help:      "Total metered endpoint invocations by status",
		},
		[]string{"status"},
	)

	// CyclesTotal counts reconciliation cycles by outcome.
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "metergate",
			Name:      "cycles_total",
			Help:      "Total reconciliation cycles by status",
		},
		[]string{"status"},
	)

	// ChargeMismatchesTotal counts verification failures.
	ChargeMismatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "metergate",
			Name:      "charge_mismatches_total",
			Help:      "Total charge verification mismatches",
		},
	)

	// SettleWaitSeconds tracks time spent waiting for ledger settlement.
	SettleWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "metergate",
			Name:      "settle_wait_seconds",
			Help:      "Time spent waiting for the ledger to reflect a debit",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
	)
)

func init() {
	prometheus.MustRegister(LedgerRequestsTotal)
	prometheus.MustRegister(LedgerRequestDuration)
	prometheus.MustRegister(TopUpOrdersTotal)
	prometheus.MustRegister(InvocationsTotal)
	prometheus.MustRegister(CyclesTotal)
	prometheus.MustRegister(ChargeMismatchesTotal)
	prometheus.MustRegister(SettleWaitSeconds)
}
