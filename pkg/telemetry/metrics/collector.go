package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"governor-hq/ganymede/pkg/config"
)

// Metrics aggregates all engine collectors over one Prometheus registry.
type Metrics struct {
	// Registry is the Prometheus registry all collectors are registered with.
	Registry *prometheus.Registry

	// Engine tracks the rollout controller's event pipeline.
	Engine *EngineMetrics

	// Policy tracks confidence and promotion.
	Policy *PolicyMetrics

	// Audit tracks the audit log.
	Audit *AuditMetrics
}

// New creates a registry with all engine collectors plus the standard Go
// runtime and process collectors. Returns nil when metrics are disabled;
// all record methods tolerate nil receivers.
func New(cfg *config.MetricsConfig) *Metrics {
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		Registry: registry,
		Engine:   NewEngineMetrics(cfg, registry),
		Policy:   NewPolicyMetrics(cfg, registry),
		Audit:    NewAuditMetrics(cfg, registry),
	}
}

// EngineOrNil returns the engine collector, tolerating a nil aggregate.
func (m *Metrics) EngineOrNil() *EngineMetrics {
	if m == nil {
		return nil
	}
	return m.Engine
}

// PolicyOrNil returns the policy collector, tolerating a nil aggregate.
func (m *Metrics) PolicyOrNil() *PolicyMetrics {
	if m == nil {
		return nil
	}
	return m.Policy
}

// AuditOrNil returns the audit collector, tolerating a nil aggregate.
func (m *Metrics) AuditOrNil() *AuditMetrics {
	if m == nil {
		return nil
	}
	return m.Audit
}
