// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartbook_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartbook_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ReadingEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smartbook_reading_events_total",
		Help: "Recorded reading events",
	})

	ReviewsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smartbook_reviews_created_total",
		Help: "Reviews written",
	})

	BooksUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smartbook_books_uploaded_total",
		Help: "Books uploaded",
	})

	// CASRetries counts optimistic update conflicts, labelled by document kind (history, rating).
	CASRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartbook_cas_retries_total",
			Help: "Optimistic concurrency conflicts that forced a retry",
		},
		[]string{"kind"},
	)

	MailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartbook_mails_sent_total",
			Help: "Transactional mails by purpose and outcome",
		},
		[]string{"purpose", "outcome"},
	)

	// EnrichmentResults counts upload enrichment steps (metadata, summary) by outcome.
	EnrichmentResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartbook_enrichment_results_total",
			Help: "Upload enrichment attempts by step and outcome",
		},
		[]string{"step", "outcome"},
	)
)

func RecordHTTPRequest(method, route, status string, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Outcome maps an error to the "ok"/"error" label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
