// Package metrics defines the Prometheus instrumentation for the lifecycle
// engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the engine's Prometheus collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	CrankTicks        prometheus.Counter
	CrankTicksSkipped prometheus.Counter
	CrankStepErrors   *prometheus.CounterVec
	CrankStepDuration *prometheus.HistogramVec

	EpochsFinalized   prometheus.Counter
	EpochsSkipped     prometheus.Counter
	AuctionsSettled   prometheus.Counter
	BidsAccepted      prometheus.Counter
	RefundsSent       prometheus.Counter
	RefundsFailed     prometheus.Counter
	VotesCast         *prometheus.CounterVec
	PredictionsGraded prometheus.Counter
}

// New creates the collector set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		Registry: registry,

		CrankTicks: factory.NewCounter(prometheus.CounterOpts{
			Name: "artkey_crank_ticks_total",
			Help: "Lifecycle crank ticks executed",
		}),
		CrankTicksSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "artkey_crank_ticks_skipped_total",
			Help: "Crank ticks skipped because a previous tick was still running or the leader lock was held elsewhere",
		}),
		CrankStepErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "artkey_crank_step_errors_total",
			Help: "Crank step failures",
		}, []string{"step"}),
		CrankStepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "artkey_crank_step_duration_seconds",
			Help:    "Crank step wall time",
			Buckets: prometheus.DefBuckets,
		}, []string{"step"}),

		EpochsFinalized: factory.NewCounter(prometheus.CounterOpts{
			Name: "artkey_epochs_finalized_total",
			Help: "Epochs finalized",
		}),
		EpochsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "artkey_epochs_skipped_total",
			Help: "Epochs ended with no votes and no winner",
		}),
		AuctionsSettled: factory.NewCounter(prometheus.CounterOpts{
			Name: "artkey_auctions_settled_total",
			Help: "Auctions settled",
		}),
		BidsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "artkey_bids_accepted_total",
			Help: "Bids accepted after confirmation",
		}),
		RefundsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "artkey_refunds_sent_total",
			Help: "Outbid refunds sent",
		}),
		RefundsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "artkey_refunds_failed_total",
			Help: "Outbid refund attempts that failed and were queued for retry",
		}),
		VotesCast: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "artkey_votes_cast_total",
			Help: "Votes recorded",
		}, []string{"type"}),
		PredictionsGraded: factory.NewCounter(prometheus.CounterOpts{
			Name: "artkey_predictions_graded_total",
			Help: "Epoch prediction grading passes",
		}),
	}
}
