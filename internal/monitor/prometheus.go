package monitor

import "github.com/prometheus/client_golang/prometheus"

var (
	// HeadsReceived counts new-head notifications handled by the rescue loop.
	HeadsReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rescue_heads_received_total",
			Help: "Total number of new block headers processed.",
		},
	)
	BalanceReadErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rescue_balance_read_errors_total",
			Help: "Total number of failed balance reads.",
		},
	)
	SubscriptionErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rescue_subscription_errors_total",
			Help: "Total number of new-head subscription failures.",
		},
	)
	AccountBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rescue_account_balance_ether",
			Help: "Last observed native balance of the watched account.",
		},
	)
	Phase = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rescue_phase",
			Help: "Current rescue phase (0 watching, 1 triggered, 2 confirming, 3 sweeping, 4 done).",
		},
	)

	// TransfersSubmitted is labelled by result: ok or error.
	TransfersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rescue_transfers_submitted_total",
			Help: "Token transfer submissions by result.",
		},
		[]string{"result"},
	)
	TransfersConfirmed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rescue_transfers_confirmed_total",
			Help: "Token transfers with a receipt.",
		},
	)
	SweepsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rescue_sweeps_submitted_total",
			Help: "Final sweep submissions by result.",
		},
		[]string{"result"},
	)
	RPCDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rescue_rpc_duration_seconds",
			Help:    "Latency of node RPC calls.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(
		HeadsReceived,
		BalanceReadErrors,
		SubscriptionErrors,
		AccountBalance,
		Phase,

		TransfersSubmitted,
		TransfersConfirmed,
		SweepsSubmitted,
		RPCDuration,
	)
}
