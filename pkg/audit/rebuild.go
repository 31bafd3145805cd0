package audit

import (
	"context"
	"fmt"
)

// RebuiltEntity is a managed entity reconstructed from the audit log.
type RebuiltEntity struct {
	ID              string  `json:"id"`
	CustomerRef     string  `json:"customer_ref"`
	ProducerRef     string  `json:"producer_ref"`
	ResourceSlotRef string  `json:"resource_slot_ref"`
	MonetaryValue   float64 `json:"monetary_value"`
	State           string  `json:"state"`

	// SampleCount and Positives reconstruct the entity's value verdict.
	SampleCount int `json:"sample_count"`
	Positives   int `json:"positives"`
}

// RebuiltPolicy is a policy reconstructed from the audit log.
type RebuiltPolicy struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	TriggerPattern      string `json:"trigger_pattern"`
	Action              string `json:"action"`
	ExpectedOutcomeSign string `json:"expected_outcome_sign"`
	Mode                string `json:"mode"`
	ObservationCount    int    `json:"observation_count"`
	CorrectPredictions  int    `json:"correct_predictions"`
}

// RebuiltState is the engine state reconstructed by replaying the audit log
// from empty. It is keyed by entity and policy ID.
type RebuiltState struct {
	Entities map[string]*RebuiltEntity `json:"entities"`
	Policies map[string]*RebuiltPolicy `json:"policies"`

	// Entries is the number of log entries applied.
	Entries int `json:"entries"`
}

// NewRebuiltState returns an empty state ready to apply entries.
func NewRebuiltState() *RebuiltState {
	return &RebuiltState{
		Entities: make(map[string]*RebuiltEntity),
		Policies: make(map[string]*RebuiltPolicy),
	}
}

// Apply folds a single audit entry into the state. Entries must be applied
// in sequence order.
func (s *RebuiltState) Apply(entry Entry) error {
	s.Entries++

	switch entry.Kind {
	case KindEventEmitted:
		if entry.Event == nil {
			return fmt.Errorf("entry %d: event_emitted without event payload", entry.Sequence)
		}
		for _, obs := range entry.Event.Observations {
			p, ok := s.Policies[obs.PolicyID]
			if !ok {
				return fmt.Errorf("entry %d: observation for unregistered policy %q", entry.Sequence, obs.PolicyID)
			}
			p.ObservationCount++
			if obs.Correct {
				p.CorrectPredictions++
			}
		}
		// Events against unknown entities were accepted but had no verdict
		// to land on; mirror that here.
		if e, ok := s.Entities[entry.Event.EntityID]; ok {
			e.SampleCount++
			if entry.Event.Outcome == "positive" {
				e.Positives++
			}
		}

	case KindStateTransitioned:
		t := entry.Transition
		if t == nil {
			return fmt.Errorf("entry %d: state_transitioned without transition payload", entry.Sequence)
		}
		if t.From == "" {
			s.Entities[t.EntityID] = &RebuiltEntity{
				ID:              t.EntityID,
				CustomerRef:     t.CustomerRef,
				ProducerRef:     t.ProducerRef,
				ResourceSlotRef: t.ResourceSlotRef,
				MonetaryValue:   t.MonetaryValue,
				State:           t.To,
			}
			return nil
		}
		e, ok := s.Entities[t.EntityID]
		if !ok {
			return fmt.Errorf("entry %d: transition for unregistered entity %q", entry.Sequence, t.EntityID)
		}
		if e.State != t.From {
			return fmt.Errorf("entry %d: entity %q is in state %q, entry expects %q",
				entry.Sequence, t.EntityID, e.State, t.From)
		}
		e.State = t.To

	case KindPolicyModeChanged:
		m := entry.ModeChange
		if m == nil {
			return fmt.Errorf("entry %d: policy_mode_changed without mode_change payload", entry.Sequence)
		}
		if m.From == "" {
			s.Policies[m.PolicyID] = &RebuiltPolicy{
				ID:                  m.PolicyID,
				Name:                m.Name,
				TriggerPattern:      m.TriggerPattern,
				Action:              m.Action,
				ExpectedOutcomeSign: m.ExpectedOutcomeSign,
				Mode:                m.To,
			}
			return nil
		}
		p, ok := s.Policies[m.PolicyID]
		if !ok {
			return fmt.Errorf("entry %d: mode change for unregistered policy %q", entry.Sequence, m.PolicyID)
		}
		p.Mode = m.To

	default:
		return fmt.Errorf("entry %d: unknown kind %q", entry.Sequence, entry.Kind)
	}

	return nil
}

// Rebuild replays the entire log into a fresh RebuiltState.
func Rebuild(ctx context.Context, log *Log) (*RebuiltState, error) {
	state := NewRebuiltState()
	if err := log.Replay(ctx, state.Apply); err != nil {
		return nil, err
	}
	return state, nil
}
