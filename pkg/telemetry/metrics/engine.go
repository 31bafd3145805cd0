package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"governor-hq/ganymede/pkg/config"
)

// EngineMetrics tracks metrics for the rollout controller's event pipeline.
//
// Metrics:
//   - ganymede_engine_events_total: events by result (processed, duplicate)
//   - ganymede_engine_decisions_total: policy decisions by mode and outcome
//   - ganymede_engine_previews_total: blast-radius previews by risk level
//   - ganymede_engine_actions_enqueued_total: outbound action requests
//   - ganymede_engine_actions_dropped_total: action requests dropped on overflow
type EngineMetrics struct {
	eventsTotal     *prometheus.CounterVec
	decisionsTotal  *prometheus.CounterVec
	previewsTotal   *prometheus.CounterVec
	actionsEnqueued prometheus.Counter
	actionsDropped  prometheus.Counter
}

// NewEngineMetrics creates and registers engine metrics with the provided registry.
func NewEngineMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *EngineMetrics {
	em := &EngineMetrics{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "engine_events_total",
				Help:      "Total number of emitted events by result",
			},
			[]string{"result"},
		),
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "engine_decisions_total",
				Help:      "Total number of policy decisions by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		previewsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "engine_previews_total",
				Help:      "Total number of blast-radius previews by risk level",
			},
			[]string{"risk_level"},
		),
		actionsEnqueued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "engine_actions_enqueued_total",
				Help:      "Total number of outbound action requests enqueued",
			},
		),
		actionsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "engine_actions_dropped_total",
				Help:      "Total number of outbound action requests dropped on queue overflow",
			},
		),
	}

	registry.MustRegister(
		em.eventsTotal,
		em.decisionsTotal,
		em.previewsTotal,
		em.actionsEnqueued,
		em.actionsDropped,
	)

	return em
}

// RecordEvent records one emitted event.
func (em *EngineMetrics) RecordEvent(duplicate bool) {
	if em == nil {
		return
	}
	result := "processed"
	if duplicate {
		result = "duplicate"
	}
	em.eventsTotal.WithLabelValues(result).Inc()
}

// RecordDecision records one policy decision.
func (em *EngineMetrics) RecordDecision(mode, outcome string) {
	if em == nil {
		return
	}
	em.decisionsTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordPreview records one blast-radius preview.
func (em *EngineMetrics) RecordPreview(riskLevel string) {
	if em == nil {
		return
	}
	em.previewsTotal.WithLabelValues(riskLevel).Inc()
}

// RecordActionEnqueued records one enqueued action request.
func (em *EngineMetrics) RecordActionEnqueued() {
	if em == nil {
		return
	}
	em.actionsEnqueued.Inc()
}

// RecordActionDropped records one dropped action request.
func (em *EngineMetrics) RecordActionDropped() {
	if em == nil {
		return
	}
	em.actionsDropped.Inc()
}
