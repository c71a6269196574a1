package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "askpdf"

// Recorder counts what happens during agent runs.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	documents     *prometheus.CounterVec
	chunks        prometheus.Counter
	predictions   *prometheus.CounterVec
	answers       *prometheus.CounterVec
	notifications *prometheus.CounterVec
	runDuration   prometheus.Histogram
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,

		documents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents processed, by result.",
		}, []string{"result"}),
		chunks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Chunks added to the pool.",
		}),
		predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Model calls on chunks, by result.",
		}, []string{"result"}),
		answers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Answered questions, by result.",
		}, []string{"result"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Report deliveries, by result.",
		}, []string{"result"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a full agent run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

// Registry returns the registry holding all metrics of the recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) Document(chunks int, err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.documents.WithLabelValues("failed").Inc()
		return
	}
	r.documents.WithLabelValues("ok").Inc()
	r.chunks.Add(float64(chunks))
}

func (r *Recorder) Predictions(evaluated int, skipped int) {
	if r == nil {
		return
	}
	r.predictions.WithLabelValues("ok").Add(float64(evaluated - skipped))
	r.predictions.WithLabelValues("failed").Add(float64(skipped))
}

func (r *Recorder) Answer(available bool) {
	if r == nil {
		return
	}
	if available {
		r.answers.WithLabelValues("answered").Inc()
		return
	}
	r.answers.WithLabelValues("unavailable").Inc()
}

func (r *Recorder) Notification(err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.notifications.WithLabelValues("failed").Inc()
		return
	}
	r.notifications.WithLabelValues("ok").Inc()
}

func (r *Recorder) RunDuration(d time.Duration) {
	if r == nil {
		return
	}
	r.runDuration.Observe(d.Seconds())
}

// WriteToTextfile writes all metrics in the text format read by the node exporter textfile collector.
func (r *Recorder) WriteToTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
