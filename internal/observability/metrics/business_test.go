package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordPreparation(t *testing.T) {
	before := testutil.ToFloat64(PreparationOutcomesTotal.WithLabelValues("ROUTED", ModeDeliver))

	RecordPreparation("ROUTED", ModeDeliver, 15*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(PreparationOutcomesTotal.WithLabelValues("ROUTED", ModeDeliver)))
}

func TestRecordRoutingCandidate(t *testing.T) {
	tests := []struct {
		name   string
		reason string
		label  string
	}{
		{name: "selected", reason: "", label: "selected"},
		{name: "rejected", reason: "MISSING_CONFIGURATION_ID", label: "MISSING_CONFIGURATION_ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(RoutingCandidatesTotal.WithLabelValues(tt.label))
			RecordRoutingCandidate(tt.reason)
			assert.Equal(t, before+1, testutil.ToFloat64(RoutingCandidatesTotal.WithLabelValues(tt.label)))
		})
	}
}

func TestRecordEnvelope(t *testing.T) {
	okBefore := testutil.ToFloat64(EnvelopesPersistedTotal.WithLabelValues("sms", "success"))
	failBefore := testutil.ToFloat64(EnvelopesPersistedTotal.WithLabelValues("sms", "failure"))

	RecordEnvelope("sms", true)
	RecordEnvelope("sms", false)
	RecordEnvelope("sms", false)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(EnvelopesPersistedTotal.WithLabelValues("sms", "success")))
	assert.Equal(t, failBefore+2, testutil.ToFloat64(EnvelopesPersistedTotal.WithLabelValues("sms", "failure")))
}

func TestRecordEventMapStubAndRequeue(t *testing.T) {
	created := testutil.ToFloat64(EventMapStubsTotal.WithLabelValues("created"))
	existing := testutil.ToFloat64(EventMapStubsTotal.WithLabelValues("existing"))
	requeued := testutil.ToFloat64(RequeuesTotal.WithLabelValues("requeued"))
	dead := testutil.ToFloat64(RequeuesTotal.WithLabelValues("dead_lettered"))

	RecordEventMapStub(true)
	RecordEventMapStub(false)
	RecordRequeue(true)
	RecordRequeue(false)

	assert.Equal(t, created+1, testutil.ToFloat64(EventMapStubsTotal.WithLabelValues("created")))
	assert.Equal(t, existing+1, testutil.ToFloat64(EventMapStubsTotal.WithLabelValues("existing")))
	assert.Equal(t, requeued+1, testutil.ToFloat64(RequeuesTotal.WithLabelValues("requeued")))
	assert.Equal(t, dead+1, testutil.ToFloat64(RequeuesTotal.WithLabelValues("dead_lettered")))
}

func TestRecordCacheLookup(t *testing.T) {
	before := testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("notification", "hit"))
	RecordCacheLookup("notification", "hit")
	assert.Equal(t, before+1, testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("notification", "hit")))
}

func TestMetricsFunctions_AllCallable(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordHTTPRequest("POST", "/routing/summary", "200", 10*time.Millisecond, 128, 512)
		RecordQueryDuration("query", 3*time.Millisecond)
		UpdateDBConnectionStats(5, 10)
	})
}
