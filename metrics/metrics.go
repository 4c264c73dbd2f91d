// Package metrics provides RAII-style latency/counter recorders for the
// query, write, and get-document paths, using a "*.n" (counter) / "*.μs"
// (latency) naming convention on top of a Prometheus registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry owns every metric this service exposes; callers hand it to an
// HTTP handler's /metrics route via Registry.Gatherer().
type Registry struct {
	reg *prometheus.Registry

	queryLatency  *prometheus.HistogramVec
	queryCount    *prometheus.CounterVec
	writeLatency  *prometheus.HistogramVec
	writeCount    *prometheus.CounterVec
	getDocLatency *prometheus.HistogramVec
	getDocCount   *prometheus.CounterVec
}

// NewRegistry constructs and registers every metric.
func NewRegistry() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.queryLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vsearch_query_latency_us",
		Help:    "k-NN query latency in microseconds.",
		Buckets: prometheus.ExponentialBuckets(100, 2, 16),
	}, []string{"collection", "result"})
	r.queryCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vsearch_query_n",
		Help: "k-NN query count.",
	}, []string{"collection", "result"})

	r.writeLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vsearch_write_latency_us",
		Help:    "Write request latency in microseconds.",
		Buckets: prometheus.ExponentialBuckets(100, 2, 16),
	}, []string{"collection", "result"})
	r.writeCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vsearch_write_n",
		Help: "Write request count.",
	}, []string{"collection", "result"})

	r.getDocLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vsearch_get_document_latency_us",
		Help:    "get_document_by_key latency in microseconds.",
		Buckets: prometheus.ExponentialBuckets(100, 2, 16),
	}, []string{"collection", "result"})
	r.getDocCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vsearch_get_document_n",
		Help: "get_document_by_key count.",
	}, []string{"collection", "result"})

	r.reg.MustRegister(r.queryLatency, r.queryCount, r.writeLatency, r.writeCount, r.getDocLatency, r.getDocCount)
	return r
}

// Gatherer exposes the underlying prometheus.Gatherer for the HTTP /metrics
// endpoint.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// resultLabel turns an error into the "ok"/"error" label value shared by
// every recorder below.
func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// StartQueryTimer starts a query-latency/counter recorder. Call the
// returned func with the operation's terminal error once it completes;
// this is the RAII-style "stop the clock on scope exit" pattern expressed
// as a deferred closure instead of a destructor.
func (r *Registry) StartQueryTimer(collection string) func(err error) {
	return r.startTimer(r.queryLatency, r.queryCount, collection)
}

// StartWriteTimer is StartQueryTimer's write-path counterpart.
func (r *Registry) StartWriteTimer(collection string) func(err error) {
	return r.startTimer(r.writeLatency, r.writeCount, collection)
}

// StartGetDocumentTimer is StartQueryTimer's get-by-key-path counterpart.
func (r *Registry) StartGetDocumentTimer(collection string) func(err error) {
	return r.startTimer(r.getDocLatency, r.getDocCount, collection)
}

func (r *Registry) startTimer(latency *prometheus.HistogramVec, count *prometheus.CounterVec, collection string) func(err error) {
	start := time.Now()
	return func(err error) {
		label := resultLabel(err)
		latency.WithLabelValues(collection, label).Observe(float64(time.Since(start).Microseconds()))
		count.WithLabelValues(collection, label).Inc()
	}
}
