// Package metrics exposes pipeline counters and histograms for Prometheus.
//
// Every Recorder owns its own registry; nothing is registered globally, so
// independent pipelines and parallel tests never share collectors. A nil
// *Recorder is valid and records nothing.
package metrics
