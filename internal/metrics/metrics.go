// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	Uploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authmedia_uploads_total",
			Help: "Processed uploads by category and result",
		},
		[]string{"category", "result"},
	)

	ImageProcessing = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authmedia_image_processing_seconds",
			Help:    "Time spent decoding, resizing and encoding images",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"profile"},
	)

	AuthEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authmedia_auth_events_total",
			Help: "Authentication events by type and result",
		},
		[]string{"event", "result"},
	)

	Emails = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authmedia_emails_total",
			Help: "Transactional emails by template and result",
		},
		[]string{"template", "result"},
	)
)

// Result maps an error to the result label.
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

// ObserveSince records the time elapsed since start for profile.
func ObserveSince(profile string, start time.Time) {
	ImageProcessing.WithLabelValues(profile).Observe(time.Since(start).Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
