// Package audit provides the append-only audit log for the rollout engine.
// Every emitted event, entity state transition, and policy mode change is
// recorded as an immutable entry with a strictly increasing sequence number.
//
// # Architecture
//
// The audit system consists of three layers:
//
//  1. Log - assigns sequence numbers and appends entries (single writer)
//  2. Storage Backend - persists entries (memory, SQLite)
//  3. Replay - sequential re-read for state reconstruction and export
//
// # Entries
//
// There are exactly three entry kinds:
//
//   - EventEmitted: an outcome event was accepted, with the confidence
//     observations it produced
//   - StateTransitioned: a managed entity changed lifecycle state (entity
//     registration is a transition from the empty state into the initial one)
//   - PolicyModeChanged: a policy changed promotion mode (policy registration
//     is a change from the empty mode into shadow)
//
// # Replay
//
// The log is the sole source of truth for the engine's mutable state. Replaying
// it from an empty state rebuilds the exact lifecycle state of every entity and
// the exact mode and confidence counters of every policy. Replay verifies that
// sequence numbers are contiguous and strictly increasing; any violation is
// reported as a CorruptLogError and halts further processing.
//
// # Basic Usage
//
//	store := storage.NewMemoryStorage()
//	log, err := audit.New(store, nil)
//	if err != nil { ... }
//
//	entry, err := log.AppendTransition(ctx, audit.TransitionRecord{
//		EntityID: "e1",
//		From:     "draft",
//		To:       "submitted",
//		ActorRef: "operator:alice",
//	})
package audit
