package config

import "time"

// Default values applied to omitted configuration fields.
const (
	DefaultCandidateMinObservations = 20
	DefaultCandidateThreshold       = 0.70
	DefaultPromotedMinObservations  = 100
	DefaultPromotedThreshold        = 0.90

	DefaultActionQueueSize = 256

	DefaultBlastHighCount   = 10
	DefaultBlastHighValue   = 10000
	DefaultBlastMediumCount = 3
	DefaultBlastMediumValue = 1000

	DefaultClassifierTier = "elevated"

	DefaultPoliciesPath = "./policies.yaml"

	DefaultAuditBackend    = "memory"
	DefaultAuditSQLitePath = "./data/audit.db"
	DefaultArchiveSchedule = "0 2 * * *"
	DefaultArchiveDir      = "./data/archive"

	DefaultDedupBackend     = "memory"
	DefaultDedupSQLitePath  = "./data/dedup.db"
	DefaultDedupBusyTimeout = 5000

	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "ganymede"
)

// ApplyDefaults fills in default values for any configuration fields that
// were not set. It modifies the configuration in place.
func ApplyDefaults(cfg *Config) {
	applyEngineDefaults(&cfg.Engine)
	applyBlastDefaults(&cfg.Blast)
	applyClassifierDefaults(&cfg.Classifier)
	applyPoliciesDefaults(&cfg.Policies)
	applyAuditDefaults(&cfg.Audit)
	applyDedupDefaults(&cfg.Dedup)
	applyServerDefaults(&cfg.Server)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyEngineDefaults(cfg *EngineConfig) {
	if cfg.Promotion.CandidateMinObservations == 0 {
		cfg.Promotion.CandidateMinObservations = DefaultCandidateMinObservations
	}
	if cfg.Promotion.CandidateThreshold == 0 {
		cfg.Promotion.CandidateThreshold = DefaultCandidateThreshold
	}
	if cfg.Promotion.PromotedMinObservations == 0 {
		cfg.Promotion.PromotedMinObservations = DefaultPromotedMinObservations
	}
	if cfg.Promotion.PromotedThreshold == 0 {
		cfg.Promotion.PromotedThreshold = DefaultPromotedThreshold
	}
	if cfg.ActionQueueSize == 0 {
		cfg.ActionQueueSize = DefaultActionQueueSize
	}
}

func applyBlastDefaults(cfg *BlastConfig) {
	if cfg.HighCount == 0 {
		cfg.HighCount = DefaultBlastHighCount
	}
	if cfg.HighValue == 0 {
		cfg.HighValue = DefaultBlastHighValue
	}
	if cfg.MediumCount == 0 {
		cfg.MediumCount = DefaultBlastMediumCount
	}
	if cfg.MediumValue == 0 {
		cfg.MediumValue = DefaultBlastMediumValue
	}
}

func applyClassifierDefaults(cfg *ClassifierConfig) {
	if cfg.DefaultTier == "" {
		cfg.DefaultTier = DefaultClassifierTier
	}
}

func applyPoliciesDefaults(cfg *PoliciesConfig) {
	if cfg.Path == "" {
		cfg.Path = DefaultPoliciesPath
	}
}

func applyAuditDefaults(cfg *AuditConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultAuditBackend
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = DefaultAuditSQLitePath
	}
	if cfg.Archive.Schedule == "" {
		cfg.Archive.Schedule = DefaultArchiveSchedule
	}
	if cfg.Archive.Dir == "" {
		cfg.Archive.Dir = DefaultArchiveDir
	}
}

func applyDedupDefaults(cfg *DedupConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultDedupBackend
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = DefaultDedupSQLitePath
	}
	if cfg.SQLite.BusyTimeout == 0 {
		cfg.SQLite.BusyTimeout = DefaultDedupBusyTimeout
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}

// NewDefaultConfig returns a configuration with all defaults applied and
// metrics enabled. Useful for tests and embedded use.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Telemetry.Metrics.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}
