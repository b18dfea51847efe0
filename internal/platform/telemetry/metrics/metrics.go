package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mythos"

// Choice outcomes recorded by ChoiceResolved.
const (
	OutcomeAdvanced  = "advanced"
	OutcomeStayed    = "stayed"
	OutcomeGenerated = "generated"
	OutcomeDied      = "died"
	OutcomeReplayed  = "replayed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Generation results recorded by GenerationAttempt.
const (
	ResultSuccess     = "success"
	ResultUnavailable = "unavailable"
	ResultParseError  = "parse_error"
)

// Metrics holds the story service collectors. A nil *Metrics is a no-op.
type Metrics struct {
	choices           *prometheus.CounterVec
	generations       *prometheus.CounterVec
	generationLatency *prometheus.HistogramVec
	deaths            prometheus.Counter
	httpRequests      *prometheus.CounterVec
	httpLatency       *prometheus.HistogramVec
}

// New registers the story collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		choices: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "story",
			Name:      "choices_total",
			Help:      "Choice submissions by outcome.",
		}, []string{"outcome"}),
		generations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "story",
			Name:      "generation_total",
			Help:      "Narrative generation attempts by provider and result.",
		}, []string{"provider", "result"}),
		generationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "story",
			Name:      "generation_seconds",
			Help:      "Narrative generation latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"provider"}),
		deaths: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "story",
			Name:      "deaths_total",
			Help:      "Characters that reached the death node.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		httpLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// ChoiceResolved counts one choice submission.
func (m *Metrics) ChoiceResolved(outcome string) {
	if m == nil {
		return
	}
	m.choices.WithLabelValues(outcome).Inc()
	if outcome == OutcomeDied {
		m.deaths.Inc()
	}
}

// GenerationAttempt records one generation call and its latency.
func (m *Metrics) GenerationAttempt(provider, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(provider, result).Inc()
	m.generationLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}

// Handler serves the gathered metrics in Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
