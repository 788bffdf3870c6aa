package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// Submission pipeline metrics
	SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "anchor_submissions_total",
		Help: "Total number of ledger write submissions",
	}, []string{"protocol", "operation"})

	SubmissionFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "anchor_submission_failures_total",
		Help: "Total number of failed ledger write submissions",
	}, []string{"protocol", "operation"})

	SubmissionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "anchor_submission_duration_seconds",
		Help:    "End-to-end submission duration including confirmation wait",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"protocol", "operation"})

	// Verification metrics
	VerificationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "verifications_total",
		Help: "Total number of document verifications",
	})

	VerificationFragmentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "verification_fragments_total",
		Help: "Verification fragments produced, by verifier and status",
	}, []string{"verifier", "status"})

	// Notifier metrics
	FailureReportsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "failure_reports_total",
		Help: "Total number of failure reports handed to the notifier",
	})
)

// RegisterMetrics registers all metrics with Prometheus.
func RegisterMetrics() {
	prometheus.MustRegister(
		SubmissionsTotal,
		SubmissionFailuresTotal,
		SubmissionDuration,
		VerificationsTotal,
		VerificationFragmentsTotal,
		FailureReportsTotal,
	)
}

// StartMetricsServer starts the Prometheus metrics HTTP server.
func StartMetricsServer(addr string, logger *zap.Logger) error {
	RegisterMetrics()

	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	logger.Info("starting metrics server", zap.String("addr", addr))
	return http.ListenAndServe(addr, nil)
}
