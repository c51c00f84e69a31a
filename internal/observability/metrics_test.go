package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, vec.WithLabelValues(labels...).(prometheus.Metric).Write(m))
	return m.GetCounter().GetValue()
}

func TestRecordCacheResult(t *testing.T) {
	m := NewMetrics()

	m.RecordCacheResult("assistant", "assistant:{id}", true)
	m.RecordCacheResult("assistant", "assistant:{id}", false)

	require.Equal(t, float64(1), counterValue(t, m.CacheHits, "assistant", "assistant:{id}"))
	require.Equal(t, float64(1), counterValue(t, m.CacheMisses, "assistant", "assistant:{id}"))
}

func TestRecordRESTCall(t *testing.T) {
	m := NewMetrics()

	m.RecordRESTCall("rest-data-plane", "/users/{id}", "GET", 0.05, nil)
	m.RecordRESTCall("rest-data-plane", "/users/{id}", "GET", 0.05, errors.New("timeout"))

	require.Equal(t, float64(1), counterValue(t, m.RESTRequestCounter, "rest-data-plane", "/users/{id}", "GET", "success"))
	require.Equal(t, float64(1), counterValue(t, m.RESTRequestCounter, "rest-data-plane", "/users/{id}", "GET", "error"))
}

func TestRecordCircuitTransition(t *testing.T) {
	m := NewMetrics()
	m.RecordCircuitTransition("rest-data-plane:/users/{id}", "closed", "open")
	require.Equal(t, float64(1), counterValue(t, m.CircuitBreakerTransitions, "rest-data-plane:/users/{id}", "closed", "open"))
}

func TestRecordJob(t *testing.T) {
	m := NewMetrics()
	m.RecordJob("reconcile", 0.2, nil)
	m.RecordJob("reconcile", 0.2, errors.New("boom"))

	require.Equal(t, float64(1), counterValue(t, m.JobStatusCounter, "reconcile", "success"))
	require.Equal(t, float64(1), counterValue(t, m.JobStatusCounter, "reconcile", "error"))
}

func TestSetQueueDepth(t *testing.T) {
	m := NewMetrics()
	m.SetQueueDepth("queue:to_secretary", 12)
	m.SetDLQDepth("queue:to_secretary:dlq", 2)

	gm := &dto.Metric{}
	require.NoError(t, m.QueueDepth.WithLabelValues("queue:to_secretary").(prometheus.Metric).Write(gm))
	require.Equal(t, float64(12), gm.GetGauge().GetValue())
}
