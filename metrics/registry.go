package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Object processing outcomes.
const (
	OutcomeSuccess        = "success"
	OutcomeDownloadFailed = "download_failed"
	OutcomeProcessFailed  = "process_failed"
	OutcomeStopped        = "stopped"
)

// Registry holds the Prometheus collectors of the ingestion pipeline.
//
// All recording methods are safe to call on a nil *Registry, which records
// nothing. Library packages therefore accept an optional registry.
type Registry struct {
	registry *prometheus.Registry

	messagesReceived prometheus.Counter
	messagesDeleted  prometheus.Counter
	messagesRetained prometheus.Counter
	objectsProcessed *prometheus.CounterVec
	objectDuration   prometheus.Histogram
	recordsEmitted   *prometheus.CounterVec
	leaseRenewals    *prometheus.CounterVec
	backoffSleeps    prometheus.Counter
	activeWorkers    prometheus.Gauge
	startTime        prometheus.Gauge
}

// NewRegistry creates a registry with all collectors registered, including
// the Go runtime and process collectors.
func NewRegistry() *Registry {
	registry := prometheus.NewRegistry()

	r := &Registry{
		registry: registry,

		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "s3ingest_messages_received_total",
			Help: "Total number of queue messages received",
		}),
		messagesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "s3ingest_messages_deleted_total",
			Help: "Total number of queue messages deleted after processing",
		}),
		messagesRetained: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "s3ingest_messages_retained_total",
			Help: "Total number of queue messages left for redelivery",
		}),
		objectsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3ingest_objects_processed_total",
				Help: "Total number of referenced objects handled, by outcome",
			},
			[]string{"outcome"},
		),
		objectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "s3ingest_object_duration_seconds",
			Help:    "Time spent downloading and decoding one object",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		}),
		recordsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3ingest_records_emitted_total",
				Help: "Total number of decoded records sent downstream, by folder",
			},
			[]string{"folder"},
		),
		leaseRenewals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3ingest_lease_renewals_total",
				Help: "Total number of visibility timeout renewals, by status",
			},
			[]string{"status"}, // status: success, error
		),
		backoffSleeps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "s3ingest_backoff_sleeps_total",
			Help: "Total number of poll loop backoff sleeps after queue service errors",
		}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "s3ingest_active_workers",
			Help: "Number of running poll loops",
		}),
		startTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "s3ingest_start_time_seconds",
			Help: "Unix time the process started",
		}),
	}

	registry.MustRegister(
		r.messagesReceived,
		r.messagesDeleted,
		r.messagesRetained,
		r.objectsProcessed,
		r.objectDuration,
		r.recordsEmitted,
		r.leaseRenewals,
		r.backoffSleeps,
		r.activeWorkers,
		r.startTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r.startTime.Set(float64(time.Now().Unix()))

	return r
}

// Handler returns the HTTP handler serving the registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer exposes the underlying registry, mostly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

func (r *Registry) MessageReceived() {
	if r == nil {
		return
	}
	r.messagesReceived.Inc()
}

func (r *Registry) MessageDeleted() {
	if r == nil {
		return
	}
	r.messagesDeleted.Inc()
}

func (r *Registry) MessageRetained() {
	if r == nil {
		return
	}
	r.messagesRetained.Inc()
}

// ObjectProcessed records the outcome of one referenced object and the time
// it took.
func (r *Registry) ObjectProcessed(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.objectsProcessed.WithLabelValues(outcome).Inc()
	r.objectDuration.Observe(elapsed.Seconds())
}

func (r *Registry) RecordEmitted(folder string) {
	if r == nil {
		return
	}
	r.recordsEmitted.WithLabelValues(folder).Inc()
}

func (r *Registry) LeaseRenewed(ok bool) {
	if r == nil {
		return
	}

	status := "success"
	if !ok {
		status = "error"
	}

	r.leaseRenewals.WithLabelValues(status).Inc()
}

func (r *Registry) BackoffSlept() {
	if r == nil {
		return
	}
	r.backoffSleeps.Inc()
}

// WorkerStarted and WorkerStopped track the number of running poll loops.
func (r *Registry) WorkerStarted() {
	if r == nil {
		return
	}
	r.activeWorkers.Inc()
}

func (r *Registry) WorkerStopped() {
	if r == nil {
		return
	}
	r.activeWorkers.Dec()
}
