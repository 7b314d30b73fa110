package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nlopt"

// Recorder holds the pipeline collectors.
type Recorder struct {
	registry *prometheus.Registry

	runs           *prometheus.CounterVec
	stageFailures  *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	verifierIssues *prometheus.CounterVec
	repairs        *prometheus.CounterVec
	solveStatus    *prometheus.CounterVec
	confidence     prometheus.Histogram
}

// New creates a Recorder with a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome (solved or failed).",
		}, []string{"outcome"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_failures_total",
			Help:      "Pipeline runs that stopped at a stage.",
		}, []string{"stage"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		verifierIssues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verifier",
			Name:      "issues_total",
			Help:      "Verifier issues by rule and kind.",
		}, []string{"rule", "kind"}),
		repairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verifier",
			Name:      "repairs_total",
			Help:      "Verifier repairs by rule and action.",
		}, []string{"rule", "action"}),
		solveStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "status_total",
			Help:      "Solver terminations by status name.",
		}, []string{"status"}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "estimator",
			Name:      "confidence",
			Help:      "Self-check confidence scores.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}),
	}
	r.registry.MustRegister(
		r.runs,
		r.stageFailures,
		r.stageDuration,
		r.verifierIssues,
		r.repairs,
		r.solveStatus,
		r.confidence,
	)
	return r
}

// Registry returns the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Stage records the duration of one stage.
func (r *Recorder) Stage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Run records the end of a run. An empty failedStage means the run solved.
func (r *Recorder) Run(failedStage string) {
	if r == nil {
		return
	}
	if failedStage == "" {
		r.runs.WithLabelValues("solved").Inc()
		return
	}
	r.runs.WithLabelValues("failed").Inc()
	r.stageFailures.WithLabelValues(failedStage).Inc()
}

// Issue records one verifier issue.
func (r *Recorder) Issue(rule, kind string) {
	if r == nil {
		return
	}
	r.verifierIssues.WithLabelValues(rule, kind).Inc()
}

// Repair records one verifier repair.
func (r *Recorder) Repair(rule, action string) {
	if r == nil {
		return
	}
	r.repairs.WithLabelValues(rule, action).Inc()
}

// Status records a solver termination.
func (r *Recorder) Status(name string) {
	if r == nil {
		return
	}
	r.solveStatus.WithLabelValues(name).Inc()
}

// Confidence records a self-check score.
func (r *Recorder) Confidence(score float64) {
	if r == nil {
		return
	}
	r.confidence.Observe(score)
}
