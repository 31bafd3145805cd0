// Package dedup provides the processed-event index the rollout controller
// uses to keep event emission idempotent under at-least-once delivery from
// upstream systems.
//
// Two backends are available: an in-memory set for tests and short-lived
// embeddings, and a SQLite-backed index that survives restarts.
package dedup
