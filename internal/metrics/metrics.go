// file: internal/metrics/metrics.go
// version: 1.1.0
// guid: 9f8e7d6c-5b4a-4210-9fed-cba876543210

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	cacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookstrack",
		Name:      "cache_hits_total",
		Help:      "Total cache hits by tier",
	}, []string{"tier"})
	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bookstrack",
		Name:      "cache_misses_total",
		Help:      "Total cache misses across all tiers",
	})
	cacheWriteErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bookstrack",
		Name:      "cache_write_errors_total",
		Help:      "Total failed cache write-backs (fail-open)",
	})

	providerLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bookstrack",
		Name:      "provider_request_duration_seconds",
		Help:      "Histogram of provider request durations by provider",
		Buckets:   prometheus.ExponentialBuckets(0.05, 1.6, 10), // ~50ms up to several seconds
	}, []string{"provider"})
	providerFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookstrack",
		Name:      "provider_failures_total",
		Help:      "Total provider failures by provider and kind",
	}, []string{"provider", "kind"})

	jobsLaunched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bookstrack",
		Name:      "jobs_launched_total",
		Help:      "Total batch jobs launched",
	})
	jobsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookstrack",
		Name:      "jobs_finished_total",
		Help:      "Total batch jobs by terminal status",
	}, []string{"status"})
	jobItemDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bookstrack",
		Name:      "job_item_duration_seconds",
		Help:      "Histogram of per-item enrichment durations inside batch jobs",
		Buckets:   prometheus.ExponentialBuckets(0.05, 1.6, 10),
	})

	streamMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookstrack",
		Name:      "stream_messages_total",
		Help:      "Total progress stream messages sent by type",
	}, []string{"type"})

	rateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookstrack",
		Name:      "rate_limited_total",
		Help:      "Total requests rejected by the rate limiter by endpoint class",
	}, []string{"class"})
)

// Register initializes metrics with the global Prometheus registry (idempotent)
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(cacheHits, cacheMisses, cacheWriteErrors,
			providerLatency, providerFailures,
			jobsLaunched, jobsFinished, jobItemDuration,
			streamMessages, rateLimited)
	})
}

// Cache path helpers. Counter increments are lock-free adds, so emission
// stays off the request critical path.
func IncCacheHit(tier string) { cacheHits.WithLabelValues(tier).Inc() }
func IncCacheMiss()           { cacheMisses.Inc() }
func IncCacheWriteError()     { cacheWriteErrors.Inc() }

// Provider path
func ObserveProviderLatency(provider string, d time.Duration) {
	providerLatency.WithLabelValues(provider).Observe(d.Seconds())
}
func IncProviderFailure(provider, kind string) {
	providerFailures.WithLabelValues(provider, kind).Inc()
}

// Job lifecycle
func IncJobLaunched()                { jobsLaunched.Inc() }
func IncJobFinished(status string)   { jobsFinished.WithLabelValues(status).Inc() }
func ObserveJobItem(d time.Duration) { jobItemDuration.Observe(d.Seconds()) }

// Stream and admission
func IncStreamMessage(msgType string) { streamMessages.WithLabelValues(msgType).Inc() }
func IncRateLimited(class string)     { rateLimited.WithLabelValues(class).Inc() }
