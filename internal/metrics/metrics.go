package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "smsarchive"

// Ingest holds the collectors updated by import runs. A nil *Ingest is valid
// and records nothing.
type Ingest struct {
	records  *prometheus.CounterVec
	media    *prometheus.CounterVec
	jobs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
	dlq      prometheus.Counter
}

func NewIngest(reg prometheus.Registerer) *Ingest {
	m := &Ingest{
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_total",
			Help:      "Archive records processed, by format and outcome.",
		}, []string{"format", "outcome"}),
		media: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "media_total",
			Help:      "Attachment candidates processed, by format and outcome.",
		}, []string{"format", "outcome"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "finished_total",
			Help:      "Import jobs that reached a final status.",
		}, []string{"status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a complete import run.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"format"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "in_flight",
			Help:      "Import jobs currently being executed.",
		}),
		dlq: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "dead_lettered_total",
			Help:      "Queue deliveries routed to the dead letter queue.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.records, m.media, m.jobs, m.duration, m.inFlight, m.dlq)
	}
	return m
}

func (m *Ingest) Record(format, outcome string) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(format, outcome).Inc()
}

func (m *Ingest) Media(format, outcome string) {
	if m == nil {
		return
	}
	m.media.WithLabelValues(format, outcome).Inc()
}

func (m *Ingest) JobFinished(status string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(status).Inc()
}

func (m *Ingest) RunFinished(format string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(format).Observe(d.Seconds())
}

// JobStarted marks a job in flight; call the returned func when it ends.
func (m *Ingest) JobStarted() func() {
	if m == nil {
		return func() {}
	}
	m.inFlight.Inc()
	return m.inFlight.Dec
}

func (m *Ingest) DeadLettered() {
	if m == nil {
		return
	}
	m.dlq.Inc()
}
