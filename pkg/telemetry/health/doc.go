// Package health provides liveness and readiness checking for the engine's
// host process. Components register named check functions; the checker runs
// them with a per-check timeout and aggregates the results for the /healthz
// and /readyz endpoints.
package health
