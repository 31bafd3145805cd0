package entity

// State is a managed entity's lifecycle state.
type State string

const (
	// StateDraft is the sole legal initial state.
	StateDraft State = "draft"

	// StateSubmitted means the entity awaits approval.
	StateSubmitted State = "submitted"

	// StateApproved means the entity is approved but not yet scheduled.
	StateApproved State = "approved"

	// StateScheduled means the entity is bound to a resource slot.
	StateScheduled State = "scheduled"

	// StateActive means the entity is in service.
	StateActive State = "active"

	// StateSuspended means service is paused pending resolution.
	StateSuspended State = "suspended"

	// StateCompleted means service finished and settlement is pending.
	StateCompleted State = "completed"

	// StateSettled is terminal: service finished and settled.
	StateSettled State = "settled"

	// StateCancelled is terminal: the entity was cancelled.
	StateCancelled State = "cancelled"

	// StateExpired is terminal: the entity lapsed without completing.
	StateExpired State = "expired"
)

// StateSpec describes one state in the lifecycle table: its legal successor
// set and display metadata.
type StateSpec struct {
	// Label is the human-readable display name.
	Label string

	// Color is the dashboard display color.
	Color string

	// Successors is the set of states legally reachable from this one.
	// Empty for terminal states.
	Successors []State

	// Terminal is true when the state has no successors.
	Terminal bool
}

// StateTable returns the lifecycle table. It is built fresh on each call so
// a Machine owns its own copy; the transition graph is fixed at construction
// and never consulted from call sites directly.
func StateTable() map[State]StateSpec {
	return map[State]StateSpec{
		StateDraft: {
			Label:      "Draft",
			Color:      "#9ca3af",
			Successors: []State{StateSubmitted, StateCancelled},
		},
		StateSubmitted: {
			Label:      "Submitted",
			Color:      "#60a5fa",
			Successors: []State{StateApproved, StateCancelled, StateExpired},
		},
		StateApproved: {
			Label:      "Approved",
			Color:      "#34d399",
			Successors: []State{StateScheduled, StateCancelled, StateExpired},
		},
		StateScheduled: {
			Label:      "Scheduled",
			Color:      "#10b981",
			Successors: []State{StateActive, StateCancelled, StateExpired},
		},
		StateActive: {
			Label:      "Active",
			Color:      "#059669",
			Successors: []State{StateSuspended, StateCompleted, StateCancelled},
		},
		StateSuspended: {
			Label:      "Suspended",
			Color:      "#f59e0b",
			Successors: []State{StateActive, StateCancelled, StateExpired},
		},
		StateCompleted: {
			Label:      "Completed",
			Color:      "#3b82f6",
			Successors: []State{StateSettled},
		},
		StateSettled: {
			Label:    "Settled",
			Color:    "#1d4ed8",
			Terminal: true,
		},
		StateCancelled: {
			Label:    "Cancelled",
			Color:    "#ef4444",
			Terminal: true,
		},
		StateExpired: {
			Label:    "Expired",
			Color:    "#b91c1c",
			Terminal: true,
		},
	}
}

// InitialState is the only state entities may be registered in.
const InitialState = StateDraft

// ParseState validates a state name against the lifecycle table.
func ParseState(s string) (State, bool) {
	state := State(s)
	_, ok := StateTable()[state]
	return state, ok
}
