package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/patent-assistant-client/internal/core/domain"
)

// ClientMetrics records document lifecycle and backend traffic for one
// client process.
type ClientMetrics struct {
	registry *prometheus.Registry
	service  string

	uploadsTotal      *prometheus.CounterVec
	stageTransitions  *prometheus.CounterVec
	analysisTotal     *prometheus.CounterVec
	cacheLookupsTotal *prometheus.CounterVec
	queriesTotal      *prometheus.CounterVec
	backendTotal      *prometheus.CounterVec
	backendDuration   *prometheus.HistogramVec
	retriesTotal      *prometheus.CounterVec
	breakerState      *prometheus.GaugeVec
}

func NewClientMetrics(service string) *ClientMetrics {
	registry := prometheus.NewRegistry()

	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "patent_client",
			Subsystem: "upload",
			Name:      "phase_total",
			Help:      "Upload phase transitions by phase.",
		},
		[]string{"service", "phase"},
	)
	stageTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "patent_client",
			Subsystem: "processing",
			Name:      "stage_transitions_total",
			Help:      "Processing stage transitions by target stage.",
		},
		[]string{"service", "stage"},
	)
	analysisTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "patent_client",
			Subsystem: "analysis",
			Name:      "resolutions_total",
			Help:      "Analysis resolutions by source and outcome.",
		},
		[]string{"service", "source", "outcome"},
	)
	cacheLookupsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "patent_client",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Analysis cache lookups by result.",
		},
		[]string{"service", "result"},
	)
	queriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "patent_client",
			Subsystem: "conversation",
			Name:      "queries_total",
			Help:      "Conversation queries by outcome.",
		},
		[]string{"service", "outcome"},
	)
	backendTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "patent_client",
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Backend requests by operation and status.",
		},
		[]string{"service", "operation", "status"},
	)
	backendDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "patent_client",
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Backend request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"service", "operation"},
	)
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "patent_client",
			Subsystem: "resilience",
			Name:      "retries_total",
			Help:      "Retried operations.",
		},
		[]string{"service", "operation"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "patent_client",
			Subsystem: "resilience",
			Name:      "breaker_open",
			Help:      "1 while the operation's circuit breaker is not closed.",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(
		uploadsTotal,
		stageTransitions,
		analysisTotal,
		cacheLookupsTotal,
		queriesTotal,
		backendTotal,
		backendDuration,
		retriesTotal,
		breakerState,
	)

	return &ClientMetrics{
		registry:          registry,
		service:           service,
		uploadsTotal:      uploadsTotal,
		stageTransitions:  stageTransitions,
		analysisTotal:     analysisTotal,
		cacheLookupsTotal: cacheLookupsTotal,
		queriesTotal:      queriesTotal,
		backendTotal:      backendTotal,
		backendDuration:   backendDuration,
		retriesTotal:      retriesTotal,
		breakerState:      breakerState,
	}
}

func (m *ClientMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ClientMetrics) ObserveUpload(phase domain.UploadPhase) {
	m.uploadsTotal.WithLabelValues(m.service, string(phase)).Inc()
}

func (m *ClientMetrics) ObserveStage(stage domain.ProcessingStage) {
	m.stageTransitions.WithLabelValues(m.service, stageLabel(stage)).Inc()
}

func (m *ClientMetrics) ObserveAnalysis(source domain.AnalysisSource, err error) {
	m.analysisTotal.WithLabelValues(m.service, string(source), analysisOutcome(err)).Inc()
}

func (m *ClientMetrics) ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(m.service, result).Inc()
}

func (m *ClientMetrics) ObserveQuery(outcome string) {
	m.queriesTotal.WithLabelValues(m.service, outcome).Inc()
}

func (m *ClientMetrics) ObserveBackendRequest(operation string, status int, duration time.Duration) {
	code := "network_error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.backendTotal.WithLabelValues(m.service, operation, code).Inc()
	m.backendDuration.WithLabelValues(m.service, operation).Observe(duration.Seconds())
}

func (m *ClientMetrics) ObserveRetry(operation string) {
	m.retriesTotal.WithLabelValues(m.service, operation).Inc()
}

func (m *ClientMetrics) ObserveBreakerState(operation string, state string) {
	value := 1.0
	if state == "closed" {
		value = 0
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}

func stageLabel(stage domain.ProcessingStage) string {
	switch stage {
	case domain.StageUploaded:
		return "uploaded"
	case domain.StageProcessing:
		return "processing"
	case domain.StageComplete:
		return "complete"
	case domain.StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func analysisOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case domain.IsKind(err, domain.ErrNoAnalysisAvailable):
		return "unavailable"
	case domain.IsKind(err, domain.ErrMalformedResponse):
		return "malformed"
	case domain.IsKind(err, domain.ErrTransport):
		return "transport_error"
	default:
		return "error"
	}
}
