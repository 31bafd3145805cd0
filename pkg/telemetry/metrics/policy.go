package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"governor-hq/ganymede/pkg/config"
)

// PolicyMetrics tracks metrics related to policy confidence and promotion.
//
// Metrics:
//   - ganymede_policy_observations_total: confidence observations by correctness
//   - ganymede_policy_promotions_total: promotions by target mode and trigger
//   - ganymede_policy_kills_total: manual kills
//   - ganymede_policy_mode: current number of policies per mode
type PolicyMetrics struct {
	observationsTotal *prometheus.CounterVec
	promotionsTotal   *prometheus.CounterVec
	killsTotal        prometheus.Counter
	modeGauge         *prometheus.GaugeVec
}

// NewPolicyMetrics creates and registers policy metrics with the provided registry.
func NewPolicyMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PolicyMetrics {
	pm := &PolicyMetrics{
		observationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_observations_total",
				Help:      "Total number of confidence observations",
			},
			[]string{"correct"},
		),
		promotionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_promotions_total",
				Help:      "Total number of policy promotions by target mode and trigger",
			},
			[]string{"to", "trigger"},
		),
		killsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_kills_total",
				Help:      "Total number of policies killed",
			},
		),
		modeGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_mode",
				Help:      "Current number of policies per promotion mode",
			},
			[]string{"mode"},
		),
	}

	registry.MustRegister(
		pm.observationsTotal,
		pm.promotionsTotal,
		pm.killsTotal,
		pm.modeGauge,
	)

	return pm
}

// RecordObservation records one confidence observation.
func (pm *PolicyMetrics) RecordObservation(correct bool) {
	if pm == nil {
		return
	}
	label := "false"
	if correct {
		label = "true"
	}
	pm.observationsTotal.WithLabelValues(label).Inc()
}

// RecordPromotion records one promotion. Trigger is "automatic" or "manual".
func (pm *PolicyMetrics) RecordPromotion(to, trigger string) {
	if pm == nil {
		return
	}
	pm.promotionsTotal.WithLabelValues(to, trigger).Inc()
}

// RecordKill records one manual kill.
func (pm *PolicyMetrics) RecordKill() {
	if pm == nil {
		return
	}
	pm.killsTotal.Inc()
}

// SetModeCount sets the per-mode policy count gauge.
func (pm *PolicyMetrics) SetModeCount(mode string, count int) {
	if pm == nil {
		return
	}
	pm.modeGauge.WithLabelValues(mode).Set(float64(count))
}
