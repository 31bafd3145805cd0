// Package metrics provides Prometheus metrics for the rollout engine.
//
// Collectors are split per concern:
//
//   - EngineMetrics: event pipeline throughput, decisions, action queue
//   - PolicyMetrics: observations, promotions, kills, per-mode gauge
//   - AuditMetrics: entries appended by kind, archive runs
//
// All record methods are nil-safe so components can run without metrics
// wired (tests, embeddings).
package metrics
