package daemon

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the daemon's prometheus instruments. They live on a
// private registry so multiple daemons in one process (tests, mostly)
// never collide.
type Metrics struct {
	registry *prometheus.Registry

	JobRuns       *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec
	JobsScheduled prometheus.Gauge
	EventsDropped prometheus.Counter
}

// NewMetrics builds the instrument set on a fresh registry, including
// the standard Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		JobRuns: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "cronus_job_runs_total",
			Help: "Job executions by job name and final status.",
		}, []string{"job", "status"}),
		JobDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name: "cronus_job_duration_seconds",
			Help: "Job execution wall time in seconds.",
			// Jobs range from sub-second probes to multi-minute batch
			// work, so the buckets stretch further than the defaults.
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"job"}),
		JobsScheduled: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "cronus_jobs_scheduled",
			Help: "Number of jobs currently scheduled.",
		}),
		EventsDropped: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "cronus_events_dropped_total",
			Help: "Events dropped because a subscriber's buffer was full.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the private registry for the metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
