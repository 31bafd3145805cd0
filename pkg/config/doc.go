// Package config defines the configuration model for the Ganymede rollout
// governance engine and the machinery to load it.
//
// Configuration is expressed as a single YAML document mapped onto the Config
// struct. Loading proceeds in a fixed sequence: parse the file, apply
// defaults for any omitted fields, optionally apply GANYMEDE_* environment
// variable overrides, and validate the final result. A Config that survives
// Validate is safe to hand to every engine component without further
// checking.
//
// Example minimal configuration:
//
//	server:
//	  listen_address: "127.0.0.1:8080"
//	policies:
//	  path: "./policies.yaml"
//	  watch: true
//	audit:
//	  backend: "sqlite"
//	  sqlite:
//	    path: "./data/audit.db"
//
// Environment overrides follow the convention GANYMEDE_SECTION_FIELD, for
// example GANYMEDE_SERVER_LISTEN_ADDRESS or GANYMEDE_AUDIT_BACKEND, and
// always take precedence over file values.
package config
