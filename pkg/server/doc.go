// Package server hosts the engine's HTTP API. It exposes event submission,
// entity and policy management, blast-radius previews, deferred-action
// approvals, audit log access, and the operational endpoints for metrics,
// liveness, and readiness.
//
// The server owns only transport concerns. All domain behavior lives behind
// the rollout controller; handlers translate HTTP to controller calls and
// typed domain errors back to status codes.
package server
