// Package telemetry groups the engine's observability concerns: structured
// logging, Prometheus metrics, and health checking. Each concern lives in
// its own subpackage and is wired by the host process.
package telemetry
