package audit

import (
	"context"
	"time"
)

// Kind identifies the type of an audit entry.
type Kind string

const (
	// KindEventEmitted records an accepted outcome event and the confidence
	// observations recorded for it.
	KindEventEmitted Kind = "event_emitted"

	// KindStateTransitioned records a managed-entity lifecycle transition.
	KindStateTransitioned Kind = "state_transitioned"

	// KindPolicyModeChanged records a policy promotion-mode change.
	KindPolicyModeChanged Kind = "policy_mode_changed"
)

// Entry is a single immutable audit log entry. Exactly one of Event,
// Transition, or ModeChange is set, matching Kind.
type Entry struct {
	// Sequence is the strictly increasing, gap-free entry sequence number.
	// The first entry of a log has sequence 1.
	Sequence uint64 `json:"sequence"`

	// Timestamp is when the entry was appended.
	Timestamp time.Time `json:"timestamp"`

	// Kind identifies which payload field is set.
	Kind Kind `json:"kind"`

	// Event is the payload for KindEventEmitted entries.
	Event *EventRecord `json:"event,omitempty"`

	// Transition is the payload for KindStateTransitioned entries.
	Transition *TransitionRecord `json:"transition,omitempty"`

	// ModeChange is the payload for KindPolicyModeChanged entries.
	ModeChange *ModeChangeRecord `json:"mode_change,omitempty"`
}

// EventRecord is the payload of a KindEventEmitted entry.
type EventRecord struct {
	// EventID is the unique identifier of the outcome event.
	EventID string `json:"event_id"`

	// Type is the classified event type.
	Type string `json:"type"`

	// Tier is the classified severity tier.
	Tier string `json:"tier"`

	// Outcome is the classified outcome sign ("positive", "negative").
	Outcome string `json:"outcome"`

	// EntityID is the managed entity the event concerns.
	EntityID string `json:"entity_id"`

	// EmittedAt is the event timestamp as classified.
	EmittedAt time.Time `json:"emitted_at"`

	// Payload carries the opaque upstream payload.
	Payload map[string]any `json:"payload,omitempty"`

	// Observations are the confidence observations recorded for this event,
	// one per matched policy. They are embedded here so that replaying the
	// log reconstructs every policy's counters exactly.
	Observations []ObservationRecord `json:"observations,omitempty"`
}

// ObservationRecord captures a single confidence observation made while
// processing an event.
type ObservationRecord struct {
	// PolicyID is the observed policy.
	PolicyID string `json:"policy_id"`

	// Predicted is the policy's expected outcome sign ("positive", "negative").
	Predicted string `json:"predicted"`

	// Actual is the classified outcome sign of the event.
	Actual string `json:"actual"`

	// Correct is true when Predicted equals Actual.
	Correct bool `json:"correct"`
}

// TransitionRecord is the payload of a KindStateTransitioned entry.
// Entity registration is recorded as a transition with an empty From state;
// registration entries also carry the entity's immutable identity so that
// replay can recreate the entity from the log alone.
type TransitionRecord struct {
	// EntityID is the entity that transitioned.
	EntityID string `json:"entity_id"`

	// From is the previous state. Empty for registration entries.
	From string `json:"from,omitempty"`

	// To is the new state.
	To string `json:"to"`

	// ActorRef identifies who or what requested the transition
	// (e.g. "operator:alice", "policy:<id>").
	ActorRef string `json:"actor_ref,omitempty"`

	// Reason is the free-form transition reason.
	Reason string `json:"reason,omitempty"`

	// Identity fields, set only on registration entries (From == "").
	CustomerRef     string  `json:"customer_ref,omitempty"`
	ProducerRef     string  `json:"producer_ref,omitempty"`
	ResourceSlotRef string  `json:"resource_slot_ref,omitempty"`
	MonetaryValue   float64 `json:"monetary_value,omitempty"`
}

// ModeChangeRecord is the payload of a KindPolicyModeChanged entry.
// Policy registration is recorded as a change with an empty From mode;
// registration entries also carry the policy definition so that replay can
// recreate the policy from the log alone.
type ModeChangeRecord struct {
	// PolicyID is the policy that changed mode.
	PolicyID string `json:"policy_id"`

	// From is the previous mode. Empty for registration entries.
	From string `json:"from,omitempty"`

	// To is the new mode.
	To string `json:"to"`

	// Automatic is true for threshold-driven promotions and false for
	// manual overrides (force-promote, kill).
	Automatic bool `json:"automatic"`

	// Reason is the free-form mode change reason.
	Reason string `json:"reason,omitempty"`

	// Definition fields, set only on registration entries (From == "").
	Name                string `json:"name,omitempty"`
	TriggerPattern      string `json:"trigger_pattern,omitempty"`
	Action              string `json:"action,omitempty"`
	ExpectedOutcomeSign string `json:"expected_outcome_sign,omitempty"`
}

// Storage defines the interface for audit storage backends.
// Implementations must be safe for concurrent use. Backends never update or
// delete entries; the log above them enforces append-only semantics.
type Storage interface {
	// Append persists an entry. The log guarantees entries arrive in
	// sequence order; backends must reject an entry whose sequence is not
	// exactly one greater than the last persisted sequence.
	Append(ctx context.Context, entry *Entry) error

	// LastSequence returns the highest persisted sequence number, or 0 for
	// an empty log.
	LastSequence(ctx context.Context) (uint64, error)

	// Range returns entries with from <= sequence <= to, in sequence order.
	// A to of 0 means "through the end of the log".
	Range(ctx context.Context, from, to uint64) ([]*Entry, error)

	// Stream returns a channel of all entries in sequence order, for
	// memory-efficient sequential replay and export.
	//
	// The channels are closed when the stream completes or errors. Callers
	// should drain both channels.
	Stream(ctx context.Context) (<-chan *Entry, <-chan error, error)

	// Count returns the total number of persisted entries.
	Count(ctx context.Context) (int64, error)

	// Close releases any resources held by the backend.
	Close() error
}
