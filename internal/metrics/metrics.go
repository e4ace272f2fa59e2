package metrics

import (
	"net/http"

	"github.com/drakos74/hybrid-digits/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hybrid"

// Observer is the process wide metrics instance.
var Observer = New()

// Metrics holds the prometheus collectors of the feedback loop.
type Metrics struct {
	registry          *prometheus.Registry
	predictions       *prometheus.CounterVec
	feedback          *prometheus.CounterVec
	persistenceErrors *prometheus.CounterVec
	clusters          prometheus.Gauge
	accuracy          prometheus.Gauge
	confidence        prometheus.Histogram
}

// New creates a new set of collectors on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "predictions_total",
				Help:      "predictions served, by predicted label",
			}, []string{"label"}),
		feedback: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feedback_total",
				Help:      "feedback events, by kind",
			}, []string{"kind"}),
		persistenceErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persistence_errors_total",
				Help:      "failed archive writes, by operation",
			}, []string{"op"}),
		clusters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clusters",
			Help:      "clusters in the active generation",
		}),
		accuracy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "accuracy",
			Help:      "fraction of answered samples predicted correctly",
		}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_confidence",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
	}
	m.registry.MustRegister(m.predictions, m.feedback, m.persistenceErrors, m.clusters, m.accuracy, m.confidence)
	return m
}

func (m *Metrics) Prediction(label model.Label, confidence float64) {
	m.predictions.WithLabelValues(label.String()).Inc()
	m.confidence.Observe(confidence)
}

func (m *Metrics) Feedback(kind model.Feedback) {
	m.feedback.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) PersistenceError(op string) {
	m.persistenceErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) Clusters(n int) {
	m.clusters.Set(float64(n))
}

func (m *Metrics) Accuracy(acc float64) {
	m.accuracy.Set(acc)
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
