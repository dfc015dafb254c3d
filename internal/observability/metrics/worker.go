package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal          *prometheus.CounterVec
	processDuration       *prometheus.HistogramVec
	processInFlight       prometheus.Gauge
	sentencesIndexedTotal *prometheus.CounterVec
	queueLagSeconds       *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agroqa",
			Subsystem: "worker",
			Name:      "document_process_total",
			Help:      "Total document processing attempts by final status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agroqa",
			Subsystem: "worker",
			Name:      "document_process_duration_seconds",
			Help:      "Document processing duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "agroqa",
			Subsystem: "worker",
			Name:      "document_process_in_flight",
			Help:      "Number of documents currently being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	sentencesIndexedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agroqa",
			Subsystem: "worker",
			Name:      "sentences_indexed_total",
			Help:      "Total corpus sentences persisted and indexed.",
		},
		[]string{"service"},
	)
	queueLagSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agroqa",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between event publication and worker pickup.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(
		processTotal,
		processDuration,
		processInFlight,
		sentencesIndexedTotal,
		queueLagSeconds,
	)

	return &WorkerMetrics{
		registry:              registry,
		processTotal:          processTotal,
		processDuration:       processDuration,
		processInFlight:       processInFlight,
		sentencesIndexedTotal: sentencesIndexedTotal,
		queueLagSeconds:       queueLagSeconds,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDocument() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishDocument(service string, duration time.Duration, err error) {
	m.processInFlight.Dec()
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.processTotal.WithLabelValues(service, status).Inc()
	m.processDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (m *WorkerMetrics) AddSentencesIndexed(service string, count int) {
	m.sentencesIndexedTotal.WithLabelValues(service).Add(float64(count))
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		lag = 0
	}
	m.queueLagSeconds.WithLabelValues(service).Observe(lag.Seconds())
}
