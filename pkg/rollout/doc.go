// Package rollout implements the controller that drives the policy rollout
// pipeline. Every accepted outcome event flows through a fixed sequence:
// classification, policy matching, confidence observation, a per-policy
// mode-gated decision, an optional blast-radius check, and finally execution,
// rejection, or deferral of the policy's action.
//
// The controller is the composition root of the engine's domain components.
// It owns the deduplication index, the deferred-action queue, and the
// outbound action channel, and it is the only layer that records pipeline
// metrics. Event processing is serialized so that the audit log entries for
// one event are contiguous and replay deterministically.
package rollout
