// Package metrics exports pipeline and dispatcher instrumentation to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/contract-intelligence/constants"
)

const namespace = "contracts"

// Recorder holds every collector the service exports.
type Recorder struct {
	gatherer prometheus.Gatherer

	// Pipeline
	StageDuration     *prometheus.HistogramVec
	StageRetries      *prometheus.CounterVec
	ContractsFinished *prometheus.CounterVec

	// Dispatcher
	QueueDepth    prometheus.Gauge
	ActiveWorkers prometheus.Gauge
	JobsRejected  prometheus.Counter
	JobsSkipped   prometheus.Counter

	// HTTP
	UploadsTotal *prometheus.CounterVec
}

// New registers the collectors on a fresh registry together with the Go and
// process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on reg and serves them from g.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	factory := promauto.With(reg)
	r := &Recorder{gatherer: g}
	r.initPipeline(factory)
	r.initDispatcher(factory)
	r.UploadsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "Upload requests by outcome",
	}, []string{"outcome"})
	return r
}

func (r *Recorder) initPipeline(factory promauto.Factory) {
	r.StageDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Time spent in one stage attempt",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"stage", "outcome"})

	r.StageRetries = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "stage_retries_total",
		Help:      "Retries scheduled after a retryable stage failure",
	}, []string{"stage"})

	r.ContractsFinished = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "contracts_finished_total",
		Help:      "Contracts that reached a terminal status",
	}, []string{"status"})
}

func (r *Recorder) initDispatcher(factory promauto.Factory) {
	r.QueueDepth = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "queue_depth",
		Help:      "Jobs waiting for a worker",
	})

	r.ActiveWorkers = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "active_workers",
		Help:      "Workers currently running a contract",
	})

	r.JobsRejected = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "jobs_rejected_total",
		Help:      "Jobs refused because the queue was full",
	})

	r.JobsSkipped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "jobs_skipped_total",
		Help:      "Jobs dropped because another worker held the contract",
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// StageObserved records one stage attempt.
func (r *Recorder) StageObserved(stage constants.Stage, outcome string, d time.Duration) {
	r.StageDuration.WithLabelValues(string(stage), outcome).Observe(d.Seconds())
}

func (r *Recorder) RetryScheduled(stage constants.Stage) {
	r.StageRetries.WithLabelValues(string(stage)).Inc()
}

func (r *Recorder) ContractFinished(status constants.Status) {
	r.ContractsFinished.WithLabelValues(string(status)).Inc()
}

func (r *Recorder) SetQueueDepth(n int) { r.QueueDepth.Set(float64(n)) }

// WorkerBusy moves the active worker gauge up or down.
func (r *Recorder) WorkerBusy(busy bool) {
	if busy {
		r.ActiveWorkers.Inc()
		return
	}
	r.ActiveWorkers.Dec()
}

func (r *Recorder) JobRejected() { r.JobsRejected.Inc() }

func (r *Recorder) JobSkipped() { r.JobsSkipped.Inc() }

func (r *Recorder) UploadObserved(outcome string) {
	r.UploadsTotal.WithLabelValues(outcome).Inc()
}
