package rollout

import (
	"time"

	"governor-hq/ganymede/pkg/blast"
	"governor-hq/ganymede/pkg/classifier"
	"governor-hq/ganymede/pkg/entity"
	"governor-hq/ganymede/pkg/policy"
)

// OutcomeEvent is a real-world occurrence submitted to the controller.
type OutcomeEvent struct {
	// ID uniquely identifies the event for deduplication. When empty the
	// controller assigns one.
	ID string `json:"id"`

	// Type is the raw event type, normalized during classification.
	Type string `json:"type"`

	// EntityID is the managed entity the event concerns.
	EntityID string `json:"entity_id"`

	// EmittedAt is when the event occurred upstream. Zero means "now".
	EmittedAt time.Time `json:"emitted_at"`

	// Payload carries opaque upstream data. A string field "outcome" with
	// value "positive" or "negative" overrides the tier-derived outcome sign.
	Payload map[string]any `json:"payload,omitempty"`
}

// Stage names a step of the event pipeline, in processing order.
type Stage string

const (
	StageReceived          Stage = "received"
	StageClassified        Stage = "classified"
	StageMatched           Stage = "matched"
	StageConfidenceUpdated Stage = "confidence_updated"
	StageDecided           Stage = "decided"
	StageBlastChecked      Stage = "blast_checked"
	StageExecuted          Stage = "executed"
	StageRejected          Stage = "rejected"
	StageDeferred          Stage = "deferred"
)

// TraceStep is one recorded step of an event's trip through the pipeline.
type TraceStep struct {
	// Stage is the pipeline stage reached.
	Stage Stage `json:"stage"`

	// At is when the stage was reached.
	At time.Time `json:"at"`

	// Note carries stage-specific detail, e.g. the matched policy count.
	Note string `json:"note,omitempty"`
}

// DecisionOutcome is what happened to one policy's action for one event.
type DecisionOutcome string

const (
	// OutcomeExecuted means the action was carried out.
	OutcomeExecuted DecisionOutcome = "executed"

	// OutcomeRejected means the action was attempted and refused, e.g. an
	// illegal lifecycle transition.
	OutcomeRejected DecisionOutcome = "rejected"

	// OutcomeDeferred means no action was taken now: shadow policies record
	// their prediction only, and candidate actions over the risk limit are
	// parked for operator approval.
	OutcomeDeferred DecisionOutcome = "deferred"
)

// Decision records the controller's per-policy verdict for one event.
type Decision struct {
	// PolicyID is the deciding policy.
	PolicyID string `json:"policy_id"`

	// PolicyName is the policy's human-readable name.
	PolicyName string `json:"policy_name"`

	// Mode is the policy's promotion mode at decision time, after the
	// event's confidence observation was folded in.
	Mode policy.Mode `json:"mode"`

	// Action is the policy's configured action.
	Action string `json:"action"`

	// Outcome is what happened.
	Outcome DecisionOutcome `json:"outcome"`

	// Reason explains the outcome.
	Reason string `json:"reason,omitempty"`

	// Preview is the blast-radius report computed for this decision, if a
	// blast check ran.
	Preview *blast.Report `json:"preview,omitempty"`

	// DeferredID identifies the parked action when Outcome is deferred
	// because of blast risk. Empty for shadow deferrals.
	DeferredID string `json:"deferred_id,omitempty"`
}

// EventResult is the controller's full answer for one submitted event.
type EventResult struct {
	// EventID is the event's identifier, assigned if it arrived empty.
	EventID string `json:"event_id"`

	// Duplicate is true when the event ID had been processed before. No
	// other field except EventID is meaningful on a duplicate.
	Duplicate bool `json:"duplicate"`

	// Sequence is the audit sequence number of the event's log entry.
	Sequence uint64 `json:"sequence,omitempty"`

	// Classification is the classifier's verdict.
	Classification classifier.Classification `json:"classification"`

	// Decisions holds one entry per matched live policy.
	Decisions []Decision `json:"decisions,omitempty"`

	// Trace records the event's trip through the pipeline.
	Trace []TraceStep `json:"trace,omitempty"`
}

// ActionRequest is an executed action handed to downstream effectors over
// the controller's action channel.
type ActionRequest struct {
	// Action is the policy action string.
	Action string `json:"action"`

	// EntityID is the acted-on entity.
	EntityID string `json:"entity_id"`

	// PolicyID is the policy that acted.
	PolicyID string `json:"policy_id"`

	// EventID is the event that triggered the action. Operator-approved
	// deferred actions carry the original triggering event's ID.
	EventID string `json:"event_id,omitempty"`
}

// DeferredAction is a candidate-mode action parked because its blast-radius
// preview banded high risk. It waits for operator approval or dismissal.
type DeferredAction struct {
	// ID uniquely identifies the parked action.
	ID string `json:"id"`

	// PolicyID is the policy whose action was parked.
	PolicyID string `json:"policy_id"`

	// Action is the parked action string.
	Action string `json:"action"`

	// EntityID is the target entity.
	EntityID string `json:"entity_id"`

	// EventID is the triggering event.
	EventID string `json:"event_id"`

	// Preview is the blast-radius report that caused the deferral.
	Preview blast.Report `json:"preview"`

	// CreatedAt is when the action was parked.
	CreatedAt time.Time `json:"created_at"`
}

// Stats are the controller's monotonic counters since startup.
type Stats struct {
	EventsProcessed  uint64 `json:"events_processed"`
	EventsDuplicate  uint64 `json:"events_duplicate"`
	ActionsExecuted  uint64 `json:"actions_executed"`
	ActionsRejected  uint64 `json:"actions_rejected"`
	ActionsDeferred  uint64 `json:"actions_deferred"`
	ActionsDropped   uint64 `json:"actions_dropped"`
	PoliciesPromoted uint64 `json:"policies_promoted"`
}

// Snapshot is a point-in-time view of the controller's world, complete
// enough for a dashboard to render without further queries.
type Snapshot struct {
	// Entities are copies of all managed entities.
	Entities []entity.ManagedEntity `json:"entities"`

	// Policies are copies of all registered policies.
	Policies []policy.Policy `json:"policies"`

	// PoliciesByMode counts registered policies per promotion mode.
	PoliciesByMode map[policy.Mode]int `json:"policies_by_mode"`

	// LastSequence is the audit log's newest sequence number.
	LastSequence uint64 `json:"last_sequence"`

	// DeferredActions is the number of actions awaiting approval.
	DeferredActions int `json:"deferred_actions"`

	// Halted is true when the audit log has latched corrupt and the
	// controller refuses further events.
	Halted bool `json:"halted"`

	// Stats are the controller's counters.
	Stats Stats `json:"stats"`

	// TakenAt is when the snapshot was taken.
	TakenAt time.Time `json:"taken_at"`
}
