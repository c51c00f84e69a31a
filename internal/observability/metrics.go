package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application
// metrics across the three service binaries (orchestrator, scheduler,
// memory extractor). Built on Prometheus, it tracks:
//   - Read-through cache hit/miss rates per key prefix (C2)
//   - REST Data Plane call latency per target service and endpoint (C2)
//   - Circuit breaker state transitions (C2)
//   - Stream queue depth, DLQ depth, and retry counts (C1)
//   - Background job duration and outcome (C3, C8)
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RecordCacheResult("assistant", "assistant:123", true)
//	metrics.RecordRESTCall("rest-data-plane", "/users/{id}", "GET", 0.012, nil)
type Metrics struct {
	// CacheHits counts read-through cache hits.
	// Labels: prefix, key_pattern
	CacheHits *prometheus.CounterVec

	// CacheMisses counts read-through cache misses.
	// Labels: prefix, key_pattern
	CacheMisses *prometheus.CounterVec

	// RESTRequestDuration measures REST Data Plane call latency in seconds.
	// Labels: target_service, endpoint_template, method
	// Buckets: 0.005s, 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 30s
	RESTRequestDuration *prometheus.HistogramVec

	// RESTRequestCounter counts REST Data Plane calls by outcome.
	// Labels: target_service, endpoint_template, method, status
	RESTRequestCounter *prometheus.CounterVec

	// CircuitBreakerTransitions counts state transitions per circuit.
	// Labels: name (service+endpoint_template), from_state, to_state
	CircuitBreakerTransitions *prometheus.CounterVec

	// QueueDepth tracks the pending length of a stream.
	// Labels: stream
	QueueDepth *prometheus.GaugeVec

	// DLQDepth tracks the length of a dead-letter stream.
	// Labels: stream
	DLQDepth *prometheus.GaugeVec

	// MessageRetries counts redeliveries, by stream and the retry count
	// reached at the time of this delivery.
	// Labels: stream
	// Buckets: 1, 2, 3, 4, 5
	MessageRetries *prometheus.HistogramVec

	// JobDuration measures the wall time of a scheduled or background job.
	// Labels: job_kind (reminder|batch_extract|reconcile)
	// Buckets: 0.1s, 0.5s, 1s, 5s, 10s, 30s, 60s, 300s
	JobDuration *prometheus.HistogramVec

	// JobStatusCounter counts job completions by outcome.
	// Labels: job_kind, status (success|error)
	JobStatusCounter *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations by name and outcome.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	// Buckets: 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 10s, 30s
	ToolExecutionDuration *prometheus.HistogramVec

	// LLMRequestDuration measures LLM API call latency in seconds.
	// Labels: provider, model
	// Buckets: 0.1s, 0.5s, 1s, 2s, 5s, 10s, 30s, 60s
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// SummarizationTriggered counts summarization passes fired by the
	// context ratio crossing its threshold.
	// Labels: assistant_id
	SummarizationTriggered *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics. This should be
// called once at application startup in each service binary's main.
func NewMetrics() *Metrics {
	return &Metrics{
		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretary_cache_hits_total",
				Help: "Total number of read-through cache hits by prefix and key pattern",
			},
			[]string{"prefix", "key_pattern"},
		),

		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretary_cache_misses_total",
				Help: "Total number of read-through cache misses by prefix and key pattern",
			},
			[]string{"prefix", "key_pattern"},
		),

		RESTRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "secretary_rest_request_duration_seconds",
				Help:    "Duration of REST Data Plane calls in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"target_service", "endpoint_template", "method"},
		),

		RESTRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretary_rest_requests_total",
				Help: "Total number of REST Data Plane calls by target, endpoint, method, and status",
			},
			[]string{"target_service", "endpoint_template", "method", "status"},
		),

		CircuitBreakerTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretary_circuit_breaker_transitions_total",
				Help: "Total number of circuit breaker state transitions",
			},
			[]string{"name", "from_state", "to_state"},
		),

		QueueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "secretary_queue_depth",
				Help: "Current pending length of a Redis stream",
			},
			[]string{"stream"},
		),

		DLQDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "secretary_dlq_depth",
				Help: "Current length of a dead-letter stream",
			},
			[]string{"stream"},
		),

		MessageRetries: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "secretary_message_retry_count",
				Help:    "Retry count reached at time of redelivery, by stream",
				Buckets: []float64{1, 2, 3, 4, 5},
			},
			[]string{"stream"},
		),

		JobDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "secretary_job_duration_seconds",
				Help:    "Duration of a scheduled or background job in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"job_kind"},
		),

		JobStatusCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretary_job_completions_total",
				Help: "Total number of job completions by kind and outcome",
			},
			[]string{"job_kind", "status"},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretary_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "secretary_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"tool_name"},
		),

		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "secretary_llm_request_duration_seconds",
				Help:    "Duration of LLM API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretary_llm_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),

		SummarizationTriggered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretary_summarization_triggered_total",
				Help: "Total number of times the context ratio crossed the summarization threshold",
			},
			[]string{"assistant_id"},
		),
	}
}

// RecordCacheResult increments the hit or miss counter for a key prefix
// and pattern (e.g. prefix "assistant", pattern "assistant:{id}").
func (m *Metrics) RecordCacheResult(prefix, keyPattern string, hit bool) {
	if hit {
		m.CacheHits.WithLabelValues(prefix, keyPattern).Inc()
	} else {
		m.CacheMisses.WithLabelValues(prefix, keyPattern).Inc()
	}
}

// RecordRESTCall records metrics for a REST Data Plane call.
//
// Example:
//
//	start := time.Now()
//	// ... call rest-data-plane ...
//	metrics.RecordRESTCall("rest-data-plane", "/users/{id}", "GET", time.Since(start).Seconds(), err)
func (m *Metrics) RecordRESTCall(targetService, endpointTemplate, method string, durationSeconds float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RESTRequestCounter.WithLabelValues(targetService, endpointTemplate, method, status).Inc()
	m.RESTRequestDuration.WithLabelValues(targetService, endpointTemplate, method).Observe(durationSeconds)
}

// RecordCircuitTransition records a circuit breaker moving between states.
//
// Example:
//
//	metrics.RecordCircuitTransition("rest-data-plane:/users/{id}", "closed", "open")
func (m *Metrics) RecordCircuitTransition(name, fromState, toState string) {
	m.CircuitBreakerTransitions.WithLabelValues(name, fromState, toState).Inc()
}

// SetQueueDepth sets the current pending length of a stream.
func (m *Metrics) SetQueueDepth(stream string, depth int64) {
	m.QueueDepth.WithLabelValues(stream).Set(float64(depth))
}

// SetDLQDepth sets the current length of a dead-letter stream.
func (m *Metrics) SetDLQDepth(stream string, depth int64) {
	m.DLQDepth.WithLabelValues(stream).Set(float64(depth))
}

// RecordMessageRetry records the retry count reached at redelivery.
func (m *Metrics) RecordMessageRetry(stream string, retryCount int) {
	m.MessageRetries.WithLabelValues(stream).Observe(float64(retryCount))
}

// RecordJob records a job's duration and outcome.
//
// Example:
//
//	start := time.Now()
//	// ... run reconcile pass ...
//	metrics.RecordJob("reconcile", time.Since(start).Seconds(), nil)
func (m *Metrics) RecordJob(jobKind string, durationSeconds float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.JobDuration.WithLabelValues(jobKind).Observe(durationSeconds)
	m.JobStatusCounter.WithLabelValues(jobKind, status).Inc()
}

// RecordToolExecution records metrics for a tool execution.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordLLMRequest records metrics for an LLM API request.
func (m *Metrics) RecordLLMRequest(provider, model string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordSummarizationTriggered records a summarization pass for an assistant.
func (m *Metrics) RecordSummarizationTriggered(assistantID string) {
	m.SummarizationTriggered.WithLabelValues(assistantID).Inc()
}
