package entity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"governor-hq/ganymede/pkg/audit"
)

// Verdict banding thresholds over the positive-outcome ratio.
const (
	verdictGreenMin  = 0.8
	verdictYellowMin = 0.5
)

// Machine owns all managed entities and the legal transition graph.
// It is the single writer for entity state: every mutation is serialized
// and committed atomically with its audit entry.
type Machine struct {
	mu       sync.RWMutex
	entities map[string]*ManagedEntity
	table    map[State]StateSpec
	log      *audit.Log
	logger   *slog.Logger
}

// RegisterInput carries an entity's immutable identity at registration.
type RegisterInput struct {
	CustomerRef     string
	ProducerRef     string
	ResourceSlotRef string
	MonetaryValue   float64
}

// NewMachine creates a state machine writing to the given audit log.
func NewMachine(log *audit.Log, logger *slog.Logger) (*Machine, error) {
	if log == nil {
		return nil, fmt.Errorf("audit log cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Machine{
		entities: make(map[string]*ManagedEntity),
		table:    StateTable(),
		log:      log,
		logger:   logger.With("component", "entity.machine"),
	}, nil
}

// Register creates a new entity in the initial state and appends its
// registration audit entry (a transition from the empty state into Draft).
func (m *Machine) Register(ctx context.Context, input RegisterInput) (ManagedEntity, error) {
	if input.CustomerRef == "" {
		return ManagedEntity{}, fmt.Errorf("customer ref cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e := &ManagedEntity{
		ID:              uuid.NewString(),
		CustomerRef:     input.CustomerRef,
		ProducerRef:     input.ProducerRef,
		ResourceSlotRef: input.ResourceSlotRef,
		MonetaryValue:   input.MonetaryValue,
		State:           InitialState,
		Verdict:         ValueVerdict{Status: VerdictUnknown},
		RegisteredAt:    time.Now().UTC(),
	}

	_, err := m.log.AppendTransition(ctx, audit.TransitionRecord{
		EntityID:        e.ID,
		To:              string(InitialState),
		CustomerRef:     e.CustomerRef,
		ProducerRef:     e.ProducerRef,
		ResourceSlotRef: e.ResourceSlotRef,
		MonetaryValue:   e.MonetaryValue,
	})
	if err != nil {
		return ManagedEntity{}, err
	}

	m.entities[e.ID] = e
	m.logger.Info("entity registered",
		"entity_id", e.ID,
		"customer_ref", e.CustomerRef,
		"producer_ref", e.ProducerRef,
	)
	return *e, nil
}

// Transition moves an entity to target if target is in the current state's
// allowed-successor set. On success the state change and its audit entry
// commit atomically; on failure the entity is untouched.
func (m *Machine) Transition(ctx context.Context, entityID string, target State, actorRef, reason string) (StateChangeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entities[entityID]
	if !ok {
		return StateChangeRecord{}, &UnknownEntityError{EntityID: entityID}
	}

	spec, ok := m.table[e.State]
	if !ok || !containsState(spec.Successors, target) {
		return StateChangeRecord{}, &IllegalTransitionError{
			EntityID: entityID,
			From:     e.State,
			To:       target,
		}
	}

	entry, err := m.log.AppendTransition(ctx, audit.TransitionRecord{
		EntityID: entityID,
		From:     string(e.State),
		To:       string(target),
		ActorRef: actorRef,
		Reason:   reason,
	})
	if err != nil {
		return StateChangeRecord{}, err
	}

	from := e.State
	e.State = target

	m.logger.Info("entity transitioned",
		"entity_id", entityID,
		"from", from,
		"to", target,
		"actor_ref", actorRef,
	)

	return StateChangeRecord{
		EntityID:  entityID,
		From:      from,
		To:        target,
		ActorRef:  actorRef,
		Reason:    reason,
		Sequence:  entry.Sequence,
		Timestamp: entry.Timestamp,
	}, nil
}

// RecordOutcome folds one observed outcome into the entity's derived
// ValueVerdict.
func (m *Machine) RecordOutcome(entityID string, positive bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entities[entityID]
	if !ok {
		return &UnknownEntityError{EntityID: entityID}
	}

	e.Verdict.SampleCount++
	if positive {
		e.positives++
	}

	ratio := float64(e.positives) / float64(e.Verdict.SampleCount)
	e.Verdict.Value = &ratio
	switch {
	case ratio >= verdictGreenMin:
		e.Verdict.Status = VerdictGreen
	case ratio >= verdictYellowMin:
		e.Verdict.Status = VerdictYellow
	default:
		e.Verdict.Status = VerdictRed
	}

	return nil
}

// Restore inserts an entity recovered from the audit log without writing a
// registration entry. Intended for startup hydration only; positives and
// samples rebuild the derived verdict.
func (m *Machine) Restore(e ManagedEntity, positives, samples int) error {
	if e.ID == "" {
		return fmt.Errorf("entity id cannot be empty")
	}
	if _, ok := m.table[e.State]; !ok {
		return fmt.Errorf("entity %q has unknown state %q", e.ID, e.State)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	restored := e
	restored.positives = positives
	restored.Verdict = ValueVerdict{Status: VerdictUnknown}
	if samples > 0 {
		ratio := float64(positives) / float64(samples)
		restored.Verdict.SampleCount = samples
		restored.Verdict.Value = &ratio
		switch {
		case ratio >= verdictGreenMin:
			restored.Verdict.Status = VerdictGreen
		case ratio >= verdictYellowMin:
			restored.Verdict.Status = VerdictYellow
		default:
			restored.Verdict.Status = VerdictRed
		}
	}
	m.entities[e.ID] = &restored
	return nil
}

// Get returns a copy of the entity.
func (m *Machine) Get(entityID string) (ManagedEntity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entities[entityID]
	if !ok {
		return ManagedEntity{}, &UnknownEntityError{EntityID: entityID}
	}
	return copyEntity(e), nil
}

// List returns copies of all entities.
func (m *Machine) List() []ManagedEntity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ManagedEntity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, copyEntity(e))
	}
	return out
}

// Count returns the number of registered entities.
func (m *Machine) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entities)
}

// Spec returns the table entry for a state.
func (m *Machine) Spec(state State) (StateSpec, bool) {
	spec, ok := m.table[state]
	return spec, ok
}

// copyEntity deep-copies an entity so callers cannot reach the machine's
// internal pointers.
func copyEntity(e *ManagedEntity) ManagedEntity {
	out := *e
	if e.Verdict.Value != nil {
		v := *e.Verdict.Value
		out.Verdict.Value = &v
	}
	return out
}

func containsState(states []State, target State) bool {
	for _, s := range states {
		if s == target {
			return true
		}
	}
	return false
}
