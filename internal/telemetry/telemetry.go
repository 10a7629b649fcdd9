// Package telemetry holds the service's Prometheus metrics.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liamcoop/healthpro/internal/logger"
)

var (
	// assessmentsTotal counts produced assessments by profile, level and source
	assessmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "healthpro_assessments_total",
		Help: "Risk assessments produced by profile, level and source",
	}, []string{"profile", "level", "source"})

	// assessmentErrors counts failed assessments by reason
	assessmentErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "healthpro_assessment_errors_total",
		Help: "Failed risk assessments by reason",
	}, []string{"profile", "reason"})

	// assessmentScore tracks the distribution of total rule scores
	assessmentScore = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "healthpro_assessment_score",
		Help:    "Total rule score per assessment",
		Buckets: []float64{0, 1, 2, 3, 4, 5, 7, 10, 15},
	}, []string{"profile"})

	// classifyDuration tracks aggregation plus classification latency
	classifyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "healthpro_classify_duration_seconds",
		Help:    "Aggregate and classify duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14), // 50µs to ~400ms
	}, []string{"profile"})

	// batchUsers counts users handled by batch scoring by outcome
	batchUsers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "healthpro_batch_users_total",
		Help: "Users handled by batch scoring by outcome",
	}, []string{"outcome"})

	// httpResponses counts API responses by status class
	httpResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "healthpro_http_responses_total",
		Help: "HTTP responses by status code",
	}, []string{"code"})

	_ = promauto.NewCounterFunc(prometheus.CounterOpts{
		Name: "healthpro_log_errors_total",
		Help: "Error-level log calls, counted before sampling",
	}, func() float64 { return float64(logger.TotalErrors.Load()) })

	_ = promauto.NewCounterFunc(prometheus.CounterOpts{
		Name: "healthpro_log_warnings_total",
		Help: "Warning-level log calls, counted before sampling",
	}, func() float64 { return float64(logger.TotalWarnings.Load()) })
)

// RecordAssessment records a successful assessment.
func RecordAssessment(profile, level, source string, score int, duration time.Duration) {
	assessmentsTotal.WithLabelValues(profile, level, source).Inc()
	if source == "rules" {
		assessmentScore.WithLabelValues(profile).Observe(float64(score))
		classifyDuration.WithLabelValues(profile).Observe(duration.Seconds())
	}
}

// RecordError records a failed assessment.
func RecordError(profile, reason string) {
	assessmentErrors.WithLabelValues(profile, reason).Inc()
}

// RecordBatchUser records one user's batch outcome: scored, skipped or failed.
func RecordBatchUser(outcome string) {
	batchUsers.WithLabelValues(outcome).Inc()
}

// RecordResponse records an HTTP response status.
func RecordResponse(status int) {
	httpResponses.WithLabelValues(strconv.Itoa(status)).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
