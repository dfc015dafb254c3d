package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmosk/agro-evidence-qa/internal/core/domain"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	questionsTotal         *prometheus.CounterVec
	abstentionReasonsTotal *prometheus.CounterVec
	questionDuration       *prometheus.HistogramVec
	supportCount           *prometheus.HistogramVec
	redundancyBefore       *prometheus.HistogramVec
	redundancyAfter        *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agroqa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agroqa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "agroqa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	questionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agroqa",
			Subsystem: "qa",
			Name:      "questions_total",
			Help:      "Total questions by outcome (answered, abstained, error).",
		},
		[]string{"service", "outcome"},
	)
	abstentionReasonsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agroqa",
			Subsystem: "qa",
			Name:      "abstention_reasons_total",
			Help:      "Total abstentions by violated rule.",
		},
		[]string{"service", "rule"},
	)
	questionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agroqa",
			Subsystem: "qa",
			Name:      "question_duration_seconds",
			Help:      "Question pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	supportCount := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agroqa",
			Subsystem: "qa",
			Name:      "support_count",
			Help:      "Distribution of selected evidence sentences per question.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6},
		},
		[]string{"service"},
	)
	redundancyBefore := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agroqa",
			Subsystem: "qa",
			Name:      "redundancy_before",
			Help:      "Mean pairwise candidate similarity before diversity selection.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"service"},
	)
	redundancyAfter := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agroqa",
			Subsystem: "qa",
			Name:      "redundancy_after",
			Help:      "Mean pairwise similarity of the selected evidence set.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		questionsTotal,
		abstentionReasonsTotal,
		questionDuration,
		supportCount,
		redundancyBefore,
		redundancyAfter,
	)

	return &HTTPServerMetrics{
		registry:               registry,
		requestTotal:           requestTotal,
		requestDuration:        requestDuration,
		requestInFlight:        requestInFlight,
		questionsTotal:         questionsTotal,
		abstentionReasonsTotal: abstentionReasonsTotal,
		questionDuration:       questionDuration,
		supportCount:           supportCount,
		redundancyBefore:       redundancyBefore,
		redundancyAfter:        redundancyAfter,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

// RecordQuestion tracks one completed pipeline run. A nil record means
// the pipeline itself failed before producing a decision.
func (m *HTTPServerMetrics) RecordQuestion(service string, record *domain.AnswerRecord, duration time.Duration) {
	m.questionDuration.WithLabelValues(service).Observe(duration.Seconds())

	if record == nil {
		m.questionsTotal.WithLabelValues(service, "error").Inc()
		return
	}

	m.supportCount.WithLabelValues(service).Observe(float64(record.RunNotes.Scores.SupportCount))
	m.redundancyBefore.WithLabelValues(service).Observe(record.RunNotes.Scores.RedundancyBefore)
	m.redundancyAfter.WithLabelValues(service).Observe(record.RunNotes.Scores.RedundancyAfter)

	if !record.Abstained {
		m.questionsTotal.WithLabelValues(service, "answered").Inc()
		return
	}
	m.questionsTotal.WithLabelValues(service, "abstained").Inc()
	for _, reason := range record.RunNotes.Decision {
		m.abstentionReasonsTotal.WithLabelValues(service, abstentionRule(reason)).Inc()
	}
}

// abstentionRule folds free-form decision reasons into a bounded label
// set.
func abstentionRule(reason string) string {
	switch {
	case strings.HasPrefix(reason, "Entity grounding failed"):
		return "entity"
	case strings.HasPrefix(reason, "Low retrieval score"):
		return "score"
	case strings.HasPrefix(reason, "Insufficient support"):
		return "support"
	case strings.HasPrefix(reason, "Numeric safeguard failed"):
		return "numeric"
	case reason == "No sentences selected":
		return "empty"
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
