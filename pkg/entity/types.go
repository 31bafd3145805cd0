package entity

import "time"

// VerdictStatus bands an entity's observed outcome history.
type VerdictStatus string

const (
	// VerdictGreen means the entity's outcomes are predominantly positive.
	VerdictGreen VerdictStatus = "green"

	// VerdictYellow means outcomes are mixed.
	VerdictYellow VerdictStatus = "yellow"

	// VerdictRed means outcomes are predominantly negative.
	VerdictRed VerdictStatus = "red"

	// VerdictUnknown means no outcomes have been observed yet.
	VerdictUnknown VerdictStatus = "unknown"
)

// ValueVerdict is derived from an entity's observed outcome history.
type ValueVerdict struct {
	// Status is the banded verdict.
	Status VerdictStatus `json:"status"`

	// Value is the positive-outcome ratio, nil until the first observation.
	Value *float64 `json:"value"`

	// SampleCount is the number of outcomes observed.
	SampleCount int `json:"sample_count"`
}

// ManagedEntity is a tracked entity (e.g. a service contract). Identity
// fields are immutable after registration; State changes only through the
// Machine's Transition operation. Entities are never deleted: terminal
// states are final, not removed.
type ManagedEntity struct {
	// ID is the unique entity identifier.
	ID string `json:"id"`

	// CustomerRef identifies the owning customer.
	CustomerRef string `json:"customer_ref"`

	// ProducerRef identifies the producer serving this entity.
	ProducerRef string `json:"producer_ref"`

	// ResourceSlotRef identifies the resource slot this entity occupies.
	ResourceSlotRef string `json:"resource_slot_ref"`

	// MonetaryValue is the entity's monetary value.
	MonetaryValue float64 `json:"monetary_value"`

	// State is the current lifecycle state.
	State State `json:"state"`

	// Verdict is derived from the observed outcome history.
	Verdict ValueVerdict `json:"verdict"`

	// RegisteredAt is when the entity was registered.
	RegisteredAt time.Time `json:"registered_at"`

	// positives counts positive observed outcomes; kept unexported so the
	// verdict is recomputed only by RecordOutcome.
	positives int
}

// StateChangeRecord describes one committed transition.
type StateChangeRecord struct {
	// EntityID is the entity that transitioned.
	EntityID string `json:"entity_id"`

	// From is the previous state.
	From State `json:"from"`

	// To is the new state.
	To State `json:"to"`

	// ActorRef identifies who requested the transition.
	ActorRef string `json:"actor_ref"`

	// Reason is the free-form transition reason.
	Reason string `json:"reason"`

	// Sequence is the audit entry sequence recording this transition.
	Sequence uint64 `json:"sequence"`

	// Timestamp is when the transition committed.
	Timestamp time.Time `json:"timestamp"`
}
