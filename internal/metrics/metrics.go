package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "trivia"

// Metrics exposes Prometheus collectors for asset uploads, batches and the
// reconcile sweep. A nil *Metrics is valid and records nothing.
type Metrics struct {
	uploads        *prometheus.CounterVec
	uploadDuration *prometheus.HistogramVec
	uploadBytes    *prometheus.CounterVec
	batchTuples    *prometheus.CounterVec
	batchFailures  *prometheus.CounterVec
	reclaimed      prometheus.Counter
	sweepFailures  prometheus.Counter
}

// New constructs Metrics and registers them with reg. Collectors that are
// already registered are reused.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "objectstore",
			Name:      "uploads_total",
			Help:      "Object uploads by resource and outcome.",
		}, []string{"resource", "outcome"}),
		uploadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "objectstore",
			Name:      "upload_duration_seconds",
			Help:      "Time spent writing and publishing one object.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"resource"}),
		uploadBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "objectstore",
			Name:      "uploaded_bytes_total",
			Help:      "Bytes successfully uploaded.",
		}, []string{"resource"}),
		batchTuples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "tuples_persisted_total",
			Help:      "Question tuples committed by add-batch.",
		}, []string{"resource"}),
		batchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "failures_total",
			Help:      "Batches rejected or aborted, by taxonomy kind.",
		}, []string{"resource", "kind"}),
		reclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "objects_reclaimed_total",
			Help:      "Unreferenced objects deleted by the reconcile sweep.",
		}),
		sweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "delete_failures_total",
			Help:      "Object deletions that failed during a sweep.",
		}),
	}

	m.uploads = register(reg, m.uploads)
	m.uploadDuration = register(reg, m.uploadDuration)
	m.uploadBytes = register(reg, m.uploadBytes)
	m.batchTuples = register(reg, m.batchTuples)
	m.batchFailures = register(reg, m.batchFailures)
	m.reclaimed = register(reg, m.reclaimed)
	m.sweepFailures = register(reg, m.sweepFailures)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveUpload records one object upload attempt.
func (m *Metrics) ObserveUpload(resource, outcome string, size int, d time.Duration) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(resource, outcome).Inc()
	if outcome == "ok" {
		m.uploadDuration.WithLabelValues(resource).Observe(d.Seconds())
		m.uploadBytes.WithLabelValues(resource).Add(float64(size))
	}
}

// AddBatchTuples counts committed question tuples.
func (m *Metrics) AddBatchTuples(resource string, n int) {
	if m == nil {
		return
	}
	m.batchTuples.WithLabelValues(resource).Add(float64(n))
}

// IncBatchFailure counts a rejected or aborted batch.
func (m *Metrics) IncBatchFailure(resource, kind string) {
	if m == nil {
		return
	}
	m.batchFailures.WithLabelValues(resource, kind).Inc()
}

// AddReclaimed counts objects deleted by the sweep.
func (m *Metrics) AddReclaimed(n int) {
	if m == nil {
		return
	}
	m.reclaimed.Add(float64(n))
}

// IncSweepFailure counts one failed object deletion.
func (m *Metrics) IncSweepFailure() {
	if m == nil {
		return
	}
	m.sweepFailures.Inc()
}
