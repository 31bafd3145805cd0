package rollout

import "fmt"

// InvalidEventError reports a rejected event submission.
type InvalidEventError struct {
	// Field is the offending event field.
	Field string

	// Reason describes what is wrong with it.
	Reason string
}

func (e *InvalidEventError) Error() string {
	return fmt.Sprintf("invalid event: field %q %s", e.Field, e.Reason)
}

// UnknownDeferredActionError reports an operation against a deferred action
// ID that is not waiting for approval.
type UnknownDeferredActionError struct {
	// ID is the unknown deferred action ID.
	ID string
}

func (e *UnknownDeferredActionError) Error() string {
	return fmt.Sprintf("unknown deferred action %q", e.ID)
}
