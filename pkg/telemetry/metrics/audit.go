package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"governor-hq/ganymede/pkg/config"
)

// AuditMetrics tracks metrics for the audit log.
//
// Metrics:
//   - ganymede_audit_entries_total: entries appended by kind
//   - ganymede_audit_archive_runs_total: archive runs by result
//   - ganymede_audit_last_sequence: sequence number of the newest entry
type AuditMetrics struct {
	entriesTotal     *prometheus.CounterVec
	archiveRunsTotal *prometheus.CounterVec
	lastSequence     prometheus.Gauge
}

// NewAuditMetrics creates and registers audit metrics with the provided registry.
func NewAuditMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *AuditMetrics {
	am := &AuditMetrics{
		entriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_entries_total",
				Help:      "Total number of audit entries appended by kind",
			},
			[]string{"kind"},
		),
		archiveRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_archive_runs_total",
				Help:      "Total number of archive runs by result",
			},
			[]string{"result"},
		),
		lastSequence: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_last_sequence",
				Help:      "Sequence number of the newest audit entry",
			},
		),
	}

	registry.MustRegister(am.entriesTotal, am.archiveRunsTotal, am.lastSequence)
	return am
}

// RecordEntry records one appended entry.
func (am *AuditMetrics) RecordEntry(kind string, sequence uint64) {
	if am == nil {
		return
	}
	am.entriesTotal.WithLabelValues(kind).Inc()
	am.lastSequence.Set(float64(sequence))
}

// RecordArchiveRun records one archive run. Result is "ok" or "error".
func (am *AuditMetrics) RecordArchiveRun(result string) {
	if am == nil {
		return
	}
	am.archiveRunsTotal.WithLabelValues(result).Inc()
}
