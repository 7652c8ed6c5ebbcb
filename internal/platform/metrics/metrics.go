package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Charge lifecycle counters, poller activity and gateway call latency.

var (
	// Initiator
	ChargesInitiated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wirepos",
		Subsystem: "initiator",
		Name:      "charges_total",
		Help:      "Charge requests by outcome (accepted, invalid, conflict, gateway_error, ...)",
	}, []string{"result"})

	// Poller
	PollTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wirepos",
		Subsystem: "poller",
		Name:      "ticks_total",
		Help:      "Poll ticks by outcome (not_ready, ready, check_failed, store_failed)",
	}, []string{"outcome"})

	ActivePollers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "wirepos",
		Subsystem: "poller",
		Name:      "active",
		Help:      "Pollers currently running",
	})

	PollerRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wirepos",
		Subsystem: "poller",
		Name:      "rejections_total",
		Help:      "Pollers the scheduler could not start",
	})

	TransactionsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wirepos",
		Subsystem: "transactions",
		Name:      "finalized_total",
		Help:      "Transactions that reached a terminal state",
	}, []string{"state"})

	TransactionsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wirepos",
		Subsystem: "transactions",
		Name:      "evicted_total",
		Help:      "Finished transactions removed by the retention job",
	})

	// Gateway
	GatewayCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wirepos",
		Subsystem: "gateway",
		Name:      "call_duration_seconds",
		Help:      "Terminal gateway call latency",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
	}, []string{"operation", "status"})

	GatewayRateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wirepos",
		Subsystem: "gateway",
		Name:      "rate_limit_waits_total",
		Help:      "Gateway calls delayed by the client-side rate limiter",
	}, []string{"operation"})

	// Callbacks
	CallbacksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wirepos",
		Subsystem: "callbacks",
		Name:      "received_total",
		Help:      "Push-style terminal responses by source and outcome",
	}, []string{"source", "outcome"})
)
