// Package metrics defines and registers all custom Prometheus metrics for the
// skincheck API. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// init through promauto and exposed on /metrics by the router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "skincheck"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthAttemptsTotal counts register and login attempts.
// Labels:
//   - action: "register" or "login"
//   - result: "success" or "failure"
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of register/login attempts, by action and result.",
	},
	[]string{"action", "result"},
)

// ── Diagnosis metrics ─────────────────────────────────────────────────────────

// DiagnosesCreatedTotal counts diagnoses created by an image upload.
var DiagnosesCreatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "diagnoses_created_total",
		Help:      "Total number of diagnoses created from an image upload.",
	},
)

// DiagnosesCompletedTotal counts diagnoses moved to completed.
// Label:
//   - severity: severity label returned by the classifier (e.g. "Moderate")
var DiagnosesCompletedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "diagnoses_completed_total",
		Help:      "Total number of diagnoses completed, by severity.",
	},
	[]string{"severity"},
)

// DiagnosisErrorsTotal counts failed workflow calls.
// Labels:
//   - step: "upload", "symptoms", "results" or "history"
//   - reason: short error kind (e.g. "forbidden", "not_found", "inference")
var DiagnosisErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "diagnosis_errors_total",
		Help:      "Total number of failed diagnosis workflow calls, by step and reason.",
	},
	[]string{"step", "reason"},
)

// SubmitDuration measures symptom submission end-to-end, classifier call included.
// Label:
//   - result: "ok" or "error"
var SubmitDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "diagnosis_submit_duration_seconds",
		Help:      "Duration of symptom submission including inference and persistence.",
		Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
	},
	[]string{"result"},
)

// ImageUploadBytes tracks the size distribution of accepted uploads.
var ImageUploadBytes = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "image_upload_bytes",
		Help:      "Size of accepted image uploads in bytes.",
		Buckets:   prometheus.ExponentialBuckets(16<<10, 4, 6), // 16KiB … 16MiB
	},
)
