package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Preparation modes used as the "mode" label.
const (
	ModeDeliver = "deliver"
	ModeSummary = "summary"
)

var (
	PreparationOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "preparation_outcomes_total",
		Help: "Total number of preparation requests by outcome",
	}, []string{"outcome", "mode"})

	PreparationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "preparation_duration_seconds",
		Help:    "Time taken to prepare a request",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"mode"})

	// RoutingCandidatesTotal uses "selected" or a rejection code as reason.
	RoutingCandidatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "routing_candidates_total",
		Help: "Total number of routing candidates evaluated",
	}, []string{"reason"})

	EnvelopesPersistedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "envelopes_persisted_total",
		Help: "Total number of message envelopes persisted and enqueued",
	}, []string{"channel", "status"})

	EventMapStubsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "event_map_stubs_total",
		Help: "Total number of event map stub creation attempts",
	}, []string{"result"})

	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prepare_cache_lookups_total",
		Help: "Total number of prepare cache lookups",
	}, []string{"kind", "result"})

	RequeuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prepare_requeues_total",
		Help: "Total number of transient failures by disposition",
	}, []string{"disposition"})
)

// RecordPreparation records the outcome and duration of one preparation.
func RecordPreparation(outcome, mode string, duration time.Duration) {
	PreparationOutcomesTotal.WithLabelValues(outcome, mode).Inc()
	PreparationDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordRoutingCandidate records one evaluated candidate. An empty reason
// means the candidate was selected.
func RecordRoutingCandidate(reason string) {
	if reason == "" {
		reason = "selected"
	}
	RoutingCandidatesTotal.WithLabelValues(reason).Inc()
}

func RecordEnvelope(channel string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	EnvelopesPersistedTotal.WithLabelValues(channel, status).Inc()
}

// RecordEventMapStub records a stub creation attempt. created is false when
// the stub already existed or could not be written.
func RecordEventMapStub(created bool) {
	result := "created"
	if !created {
		result = "existing"
	}
	EventMapStubsTotal.WithLabelValues(result).Inc()
}

// RecordCacheLookup records a prepare cache lookup.
// Result is one of "hit", "miss", "shared", "error" or "bypass".
func RecordCacheLookup(kind, result string) {
	CacheLookupsTotal.WithLabelValues(kind, result).Inc()
}

// RecordRequeue records whether a transiently failed message went back to
// the queue or to the dead-letter path.
func RecordRequeue(requeued bool) {
	disposition := "requeued"
	if !requeued {
		disposition = "dead_lettered"
	}
	RequeuesTotal.WithLabelValues(disposition).Inc()
}
