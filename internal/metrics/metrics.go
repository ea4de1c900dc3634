// Package metrics exposes prometheus instrumentation for the data-access
// layer: change-feed traffic, accessor refetches, mutations, bootstraps,
// and uploads.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FeedEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "warbler_feed_events_total",
		Help: "Change-feed events published, by table and action",
	}, []string{"table", "action"})
	Refetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "warbler_refetches_total",
		Help: "Accessor refetches, by table",
	}, []string{"table"})
	Mutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "warbler_mutations_total",
		Help: "Mutation helper invocations, by action",
	}, []string{"action"})
	BootstrapDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "warbler_bootstrap_duration_seconds",
		Help:    "Session bootstrap duration in seconds",
		Buckets: prometheus.DefBuckets,
	})
	Uploads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "warbler_uploads_total",
		Help: "Image uploads stored",
	})
)

func init() {
	prometheus.MustRegister(FeedEvents, Refetches, Mutations, BootstrapDuration, Uploads)
}

// ObserveBootstrap records the duration of one bootstrap run.
func ObserveBootstrap(start time.Time) {
	BootstrapDuration.Observe(time.Since(start).Seconds())
}

// Handler returns an http.Handler serving /metrics and /health.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// StartServer serves Handler on addr in the background. Empty addr is a
// no-op.
func StartServer(addr string) {
	if addr == "" {
		return
	}
	go func() { _ = http.ListenAndServe(addr, Handler()) }()
}
