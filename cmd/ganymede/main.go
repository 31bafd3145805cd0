// Ganymede is a policy rollout governance engine.
//
// It manages if-trigger-then-action policies through a confidence-gated
// promotion ladder (shadow, candidate, promoted), drives a managed-entity
// lifecycle state machine, previews the blast radius of proposed changes,
// and records every state change in an append-only, replayable audit log.
//
// Usage:
//
//	# Start the engine with default configuration
//	ganymede run
//
//	# Start with a custom configuration file
//	ganymede run --config /path/to/config.yaml
//
//	# Rebuild engine state from the audit log and print it
//	ganymede replay
//
//	# Rebuild from an exported JSONL archive
//	ganymede replay --file audit-20260830.jsonl
//
//	# Validate configuration and policy definitions
//	ganymede validate --policies policies.yaml
//
//	# Show version information
//	ganymede version
package main

func main() {
	Execute()
}
