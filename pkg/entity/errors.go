package entity

import "fmt"

// UnknownEntityError reports an operation against an entity that does not
// exist. Recoverable by the caller; never retried automatically.
type UnknownEntityError struct {
	// EntityID is the missing entity.
	EntityID string
}

// Error implements the error interface.
func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("unknown entity %q", e.EntityID)
}

// IllegalTransitionError reports a transition whose target is not in the
// current state's allowed-successor set. The entity's state is unchanged.
type IllegalTransitionError struct {
	// EntityID is the entity the transition was attempted on.
	EntityID string

	// From is the entity's current state.
	From State

	// To is the rejected target state.
	To State
}

// Error implements the error interface.
func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition for entity %q: %s -> %s", e.EntityID, e.From, e.To)
}
