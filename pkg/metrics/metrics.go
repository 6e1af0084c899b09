// Package metrics 定义了服务与批处理共用的 prometheus 指标。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Document outcomes recorded by DocumentsTotal.
const (
	OutcomeSuccess = "success"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

var (
	// DocumentsTotal counts processed documents by entry point and outcome.
	DocumentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pliego",
		Name:      "documents_total",
		Help:      "Documents processed, by entry point and outcome.",
	}, []string{"source", "outcome"})

	// ExtractionDuration observes one successful extraction end to end.
	ExtractionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pliego",
		Name:      "extraction_duration_seconds",
		Help:      "Time spent extracting metadata from one document.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	// RateLimitRetries counts waits caused by provider throttling.
	RateLimitRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pliego",
		Name:      "rate_limit_retries_total",
		Help:      "Retries scheduled after a rate limit error.",
	})

	// HTTPRequests counts handled HTTP requests by route and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pliego",
		Name:      "http_requests_total",
		Help:      "HTTP requests handled, by route and status code.",
	}, []string{"route", "status"})
)
