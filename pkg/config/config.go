package config

import "time"

// Config is the root configuration structure for the Ganymede engine.
// It contains all configuration sections for the rollout controller, blast
// radius simulation, event classification, policy loading, audit storage,
// deduplication, the HTTP server, and telemetry.
type Config struct {
	// Engine contains rollout controller configuration including promotion
	// thresholds and the action queue size.
	Engine EngineConfig `yaml:"engine"`

	// Blast contains blast radius simulation thresholds.
	Blast BlastConfig `yaml:"blast"`

	// Classifier contains the event severity tier table.
	Classifier ClassifierConfig `yaml:"classifier"`

	// Policies contains configuration for policy definition loading
	// including the source path and watch mode.
	Policies PoliciesConfig `yaml:"policies"`

	// Audit contains configuration for the append-only audit log including
	// backend selection and archival.
	Audit AuditConfig `yaml:"audit"`

	// Dedup contains configuration for the event deduplication index.
	Dedup DedupConfig `yaml:"dedup"`

	// Server contains HTTP server configuration including listen address
	// and timeouts.
	Server ServerConfig `yaml:"server"`

	// Telemetry contains observability configuration for logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// EngineConfig contains configuration for the rollout controller.
type EngineConfig struct {
	// Promotion contains the confidence gates for automatic policy promotion.
	Promotion PromotionConfig `yaml:"promotion"`

	// ActionQueueSize is the capacity of the executed-action queue consumed
	// by downstream effectors. When the queue is full, further actions are
	// dropped and counted rather than blocking the controller.
	// Default: 256
	ActionQueueSize int `yaml:"action_queue_size"`
}

// PromotionConfig contains the confidence gates evaluated after every
// policy observation. A policy moves up one mode when it has at least the
// minimum number of observations and its confidence meets the threshold.
type PromotionConfig struct {
	// CandidateMinObservations is the minimum observation count before a
	// shadow policy is considered for promotion to candidate.
	// Default: 20
	CandidateMinObservations int `yaml:"candidate_min_observations"`

	// CandidateThreshold is the confidence required for promotion from
	// shadow to candidate. Range: (0, 1].
	// Default: 0.70
	CandidateThreshold float64 `yaml:"candidate_threshold"`

	// PromotedMinObservations is the minimum observation count before a
	// candidate policy is considered for promotion to promoted.
	// Default: 100
	PromotedMinObservations int `yaml:"promoted_min_observations"`

	// PromotedThreshold is the confidence required for promotion from
	// candidate to promoted. Range: (0, 1].
	// Default: 0.90
	PromotedThreshold float64 `yaml:"promoted_threshold"`
}

// BlastConfig contains thresholds for banding a simulated blast radius
// into a risk level. A preview is high risk when either the affected entity
// count or the value at risk meets the high threshold, medium when either
// meets the medium threshold, and low otherwise.
type BlastConfig struct {
	// HighCount is the affected entity count at or above which a preview
	// is banded high risk.
	// Default: 10
	HighCount int `yaml:"high_count"`

	// HighValue is the value at risk at or above which a preview is banded
	// high risk.
	// Default: 10000
	HighValue float64 `yaml:"high_value"`

	// MediumCount is the affected entity count at or above which a preview
	// is banded at least medium risk.
	// Default: 3
	MediumCount int `yaml:"medium_count"`

	// MediumValue is the value at risk at or above which a preview is
	// banded at least medium risk.
	// Default: 1000
	MediumValue float64 `yaml:"medium_value"`
}

// ClassifierConfig contains the event classification tier table.
type ClassifierConfig struct {
	// Tiers maps event type names to severity tiers. Valid tiers are
	// "critical", "elevated", and "terminal". Event types absent from the
	// table fall back to DefaultTier.
	Tiers map[string]string `yaml:"tiers"`

	// DefaultTier is the severity assigned to event types not present in
	// Tiers.
	// Default: "elevated"
	DefaultTier string `yaml:"default_tier"`
}

// PoliciesConfig contains configuration for policy definition loading.
type PoliciesConfig struct {
	// Path is the policy definitions file or directory. A directory is
	// scanned for *.yaml and *.yml files.
	// Default: "./policies.yaml"
	Path string `yaml:"path"`

	// Watch enables automatic registration of new policy definitions when
	// the source path changes on disk.
	// Default: false
	Watch bool `yaml:"watch"`
}

// AuditConfig contains configuration for audit log storage and archival.
type AuditConfig struct {
	// Backend selects the audit storage implementation.
	// Options: "memory", "sqlite"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLite contains settings for the sqlite backend.
	SQLite AuditSQLiteConfig `yaml:"sqlite"`

	// Archive contains settings for scheduled audit log archival.
	Archive ArchiveConfig `yaml:"archive"`
}

// AuditSQLiteConfig contains settings for SQLite-backed audit storage.
type AuditSQLiteConfig struct {
	// Path is the SQLite database file path.
	// Default: "./data/audit.db"
	Path string `yaml:"path"`
}

// ArchiveConfig contains settings for scheduled audit archival.
type ArchiveConfig struct {
	// Enabled controls whether scheduled archival runs.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Schedule is a standard five-field cron expression controlling when
	// archive runs happen.
	// Default: "0 2 * * *" (daily at 02:00)
	Schedule string `yaml:"schedule"`

	// Dir is the directory archive files are written to.
	// Default: "./data/archive"
	Dir string `yaml:"dir"`
}

// DedupConfig contains configuration for the event deduplication index.
type DedupConfig struct {
	// Backend selects the dedup index implementation.
	// Options: "memory", "sqlite"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLite contains settings for the sqlite backend.
	SQLite DedupSQLiteConfig `yaml:"sqlite"`
}

// DedupSQLiteConfig contains settings for the SQLite-backed dedup index.
type DedupSQLiteConfig struct {
	// Path is the SQLite database file path.
	// Default: "./data/dedup.db"
	Path string `yaml:"path"`

	// BusyTimeout is the SQLite busy timeout in milliseconds.
	// Default: 5000
	BusyTimeout int `yaml:"busy_timeout"`
}

// ServerConfig contains configuration for the HTTP API server.
type ServerConfig struct {
	// ListenAddress is the address and port for the server to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next
	// request when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown
	// before in-flight requests are abandoned.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format selects the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes the source file and line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path the metrics endpoint is served on.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the Prometheus namespace prefix for all metrics.
	// Default: "ganymede"
	Namespace string `yaml:"namespace"`

	// Subsystem is the Prometheus subsystem for all metrics.
	// Default: "" (none)
	Subsystem string `yaml:"subsystem"`
}
