package policy

import "fmt"

// UnknownPolicyError reports an operation against a policy that does not
// exist. Recoverable by the caller; never retried automatically.
type UnknownPolicyError struct {
	// PolicyID is the missing policy.
	PolicyID string
}

// Error implements the error interface.
func (e *UnknownPolicyError) Error() string {
	return fmt.Sprintf("unknown policy %q", e.PolicyID)
}

// InvalidPolicyDefinitionError reports a definition rejected at registration.
type InvalidPolicyDefinitionError struct {
	// Field is the offending definition field.
	Field string

	// Reason explains the rejection.
	Reason string
}

// Error implements the error interface.
func (e *InvalidPolicyDefinitionError) Error() string {
	return fmt.Sprintf("invalid policy definition: %s: %s", e.Field, e.Reason)
}
