package blast

import (
	"fmt"

	"governor-hq/ganymede/pkg/entity"
)

// RiskLevel bands a blast radius report.
type RiskLevel string

const (
	// RiskLow means the change affects little beyond the target entity.
	RiskLow RiskLevel = "low"

	// RiskMedium means the change has non-trivial spread or value.
	RiskMedium RiskLevel = "medium"

	// RiskHigh means the change exceeds a configured spread or value limit.
	RiskHigh RiskLevel = "high"
)

// Report is the ephemeral result of one preview. It is computed on demand,
// never persisted, and has no effect on system state.
type Report struct {
	// EntityID is the target entity.
	EntityID string `json:"entity_id"`

	// ProposedState is the state the preview was asked about.
	ProposedState entity.State `json:"proposed_state"`

	// AffectedCount is the size of the affected set.
	AffectedCount int `json:"affected_count"`

	// UniqueCustomerCount is the number of distinct customers affected.
	UniqueCustomerCount int `json:"unique_customer_count"`

	// MonetaryImpact is the summed monetary value of the affected set.
	MonetaryImpact float64 `json:"monetary_impact"`

	// RiskLevel is the banded risk.
	RiskLevel RiskLevel `json:"risk_level"`
}

// Thresholds band a report into a risk level. All are external
// configuration.
type Thresholds struct {
	// HighAffectedCount: affected sets at least this large are high risk.
	HighAffectedCount int

	// HighMonetaryImpact: impacts at least this large are high risk.
	HighMonetaryImpact float64

	// MediumAffectedCount: affected sets at least this large are at least
	// medium risk.
	MediumAffectedCount int

	// MediumMonetaryImpact: impacts at least this large are at least
	// medium risk.
	MediumMonetaryImpact float64
}

// DefaultThresholds returns the default risk bands.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighAffectedCount:    10,
		HighMonetaryImpact:   10000,
		MediumAffectedCount:  3,
		MediumMonetaryImpact: 1000,
	}
}

// Simulator computes blast radius previews over the entity machine.
type Simulator struct {
	machine    *entity.Machine
	thresholds Thresholds
}

// NewSimulator creates a simulator reading from the given machine.
func NewSimulator(machine *entity.Machine, thresholds Thresholds) (*Simulator, error) {
	if machine == nil {
		return nil, fmt.Errorf("entity machine cannot be nil")
	}
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}
	return &Simulator{
		machine:    machine,
		thresholds: thresholds,
	}, nil
}

// Preview computes the blast radius of transitioning the entity to the
// proposed state. It answers "what would be affected", not "is this legal":
// an illegal proposed state still yields a report, only a missing entity is
// an error.
func (s *Simulator) Preview(entityID string, proposed entity.State) (Report, error) {
	target, err := s.machine.Get(entityID)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		EntityID:      entityID,
		ProposedState: proposed,
	}

	customers := make(map[string]struct{})
	for _, e := range s.machine.List() {
		if !linked(target, e) {
			continue
		}
		report.AffectedCount++
		report.MonetaryImpact += e.MonetaryValue
		customers[e.CustomerRef] = struct{}{}
	}
	report.UniqueCustomerCount = len(customers)
	report.RiskLevel = s.band(report)

	return report, nil
}

// linked reports whether e belongs to the affected set of target: the target
// itself, plus any entity structurally coupled through the same producer or
// resource slot grouping.
func linked(target, e entity.ManagedEntity) bool {
	if e.ID == target.ID {
		return true
	}
	if target.ProducerRef != "" && e.ProducerRef == target.ProducerRef {
		return true
	}
	if target.ResourceSlotRef != "" && e.ResourceSlotRef == target.ResourceSlotRef {
		return true
	}
	return false
}

// band applies the configured thresholds.
func (s *Simulator) band(r Report) RiskLevel {
	switch {
	case r.AffectedCount >= s.thresholds.HighAffectedCount,
		r.MonetaryImpact >= s.thresholds.HighMonetaryImpact:
		return RiskHigh
	case r.AffectedCount >= s.thresholds.MediumAffectedCount,
		r.MonetaryImpact >= s.thresholds.MediumMonetaryImpact:
		return RiskMedium
	default:
		return RiskLow
	}
}
