// Package storage provides audit log storage backends.
//
// Two backends are available:
//
//   - MemoryStorage: in-memory slice, for tests and short-lived embeddings
//   - SQLiteStorage: durable single-file backend with WAL mode
//
// Both enforce the append-only contract: an entry whose sequence number is
// not exactly one greater than the last persisted sequence is rejected with
// an audit.CorruptLogError, and entries are never updated or deleted.
package storage
