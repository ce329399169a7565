// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring lokal.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for generation latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// FastBuckets suit in-process operations such as retrieval and tool calls.
var FastBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

var (
	// HTTPRequestsTotal counts HTTP requests by method and status class.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lokal_http_requests_total",
			Help: "HTTP requests",
		},
		[]string{"method", "status"},
	)

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lokal_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method"},
	)

	// HTTPInFlight tracks HTTP requests currently being served.
	HTTPInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lokal_http_requests_in_flight",
			Help: "HTTP requests in flight",
		},
	)

	// RequestsTotal counts engine requests by kind and outcome
	// (success or the error type).
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lokal_requests_total",
			Help: "Engine requests",
		},
		[]string{"kind", "status"},
	)

	// RequestDuration records engine processing time by kind.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lokal_request_duration_seconds",
			Help:    "Engine request duration",
			Buckets: LLMBuckets,
		},
		[]string{"kind"},
	)

	// ProviderRequestsTotal counts capability provider calls.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lokal_provider_requests_total",
			Help: "Provider requests",
		},
		[]string{"provider", "operation", "status"},
	)

	// ProviderLatency records capability provider latency in seconds.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lokal_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "operation"},
	)

	// ProviderTokensTotal counts generated tokens.
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lokal_provider_tokens_total",
			Help: "Generated tokens",
		},
		[]string{"provider", "model"},
	)

	// ToolExecutionsTotal counts tool executions by name and outcome.
	ToolExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lokal_tool_executions_total",
			Help: "Tool executions",
		},
		[]string{"tool_name", "status"},
	)

	// ToolDuration records tool execution time.
	ToolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lokal_tool_duration_seconds",
			Help:    "Tool execution duration",
			Buckets: FastBuckets,
		},
		[]string{"tool_name"},
	)

	// WorkflowStepsTotal counts enhanced workflow steps by outcome.
	WorkflowStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lokal_workflow_steps_total",
			Help: "Enhanced workflow steps",
		},
		[]string{"step", "status"},
	)

	// RetrievalDuration records top-k retrieval time.
	RetrievalDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lokal_retrieval_duration_seconds",
			Help:    "Retrieval duration",
			Buckets: FastBuckets,
		},
	)

	// Documents tracks the number of indexed documents.
	Documents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lokal_documents",
			Help: "Indexed documents",
		},
	)

	// Contexts tracks the number of stored context records.
	Contexts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lokal_contexts",
			Help: "Stored context records",
		},
	)

	// PersistenceErrorsTotal counts failed saves and loads by store.
	PersistenceErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lokal_persistence_errors_total",
			Help: "Persistence failures",
		},
		[]string{"store", "operation"},
	)

	// IngestFilesTotal counts files processed by the ingester.
	IngestFilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lokal_ingest_files_total",
			Help: "Ingested files",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		HTTPInFlight,
		RequestsTotal,
		RequestDuration,
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
		ToolExecutionsTotal,
		ToolDuration,
		WorkflowStepsTotal,
		RetrievalDuration,
		Documents,
		Contexts,
		PersistenceErrorsTotal,
		IngestFilesTotal,
	)
}

// Status returns the metric label for an outcome: "ok" for a nil error,
// otherwise "error".
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
