package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	// Field is the dotted path of the offending field, e.g. "audit.backend".
	Field string

	// Message describes what is wrong with the value.
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration field %q: %s", e.Field, e.Message)
}

// Validate checks the configuration for invalid or inconsistent values.
// It returns the first error encountered, or nil if the configuration is valid.
// Validate assumes ApplyDefaults has already run.
func Validate(cfg *Config) error {
	if err := validateEngine(&cfg.Engine); err != nil {
		return err
	}
	if err := validateBlast(&cfg.Blast); err != nil {
		return err
	}
	if err := validateClassifier(&cfg.Classifier); err != nil {
		return err
	}
	if err := validateAudit(&cfg.Audit); err != nil {
		return err
	}
	if err := validateDedup(&cfg.Dedup); err != nil {
		return err
	}
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}
	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return err
	}
	return nil
}

func validateEngine(cfg *EngineConfig) error {
	p := cfg.Promotion
	if p.CandidateMinObservations < 1 {
		return &ValidationError{Field: "engine.promotion.candidate_min_observations", Message: "must be at least 1"}
	}
	if p.PromotedMinObservations < 1 {
		return &ValidationError{Field: "engine.promotion.promoted_min_observations", Message: "must be at least 1"}
	}
	if p.CandidateThreshold <= 0 || p.CandidateThreshold > 1 {
		return &ValidationError{Field: "engine.promotion.candidate_threshold", Message: "must be in (0, 1]"}
	}
	if p.PromotedThreshold <= 0 || p.PromotedThreshold > 1 {
		return &ValidationError{Field: "engine.promotion.promoted_threshold", Message: "must be in (0, 1]"}
	}
	if p.PromotedThreshold < p.CandidateThreshold {
		return &ValidationError{Field: "engine.promotion.promoted_threshold", Message: "must not be lower than candidate_threshold"}
	}
	if cfg.ActionQueueSize < 1 {
		return &ValidationError{Field: "engine.action_queue_size", Message: "must be at least 1"}
	}
	return nil
}

func validateBlast(cfg *BlastConfig) error {
	if cfg.HighCount < 1 {
		return &ValidationError{Field: "blast.high_count", Message: "must be at least 1"}
	}
	if cfg.MediumCount < 1 {
		return &ValidationError{Field: "blast.medium_count", Message: "must be at least 1"}
	}
	if cfg.MediumCount > cfg.HighCount {
		return &ValidationError{Field: "blast.medium_count", Message: "must not exceed high_count"}
	}
	if cfg.HighValue <= 0 {
		return &ValidationError{Field: "blast.high_value", Message: "must be positive"}
	}
	if cfg.MediumValue <= 0 {
		return &ValidationError{Field: "blast.medium_value", Message: "must be positive"}
	}
	if cfg.MediumValue > cfg.HighValue {
		return &ValidationError{Field: "blast.medium_value", Message: "must not exceed high_value"}
	}
	return nil
}

var validTiers = map[string]bool{
	"critical": true,
	"elevated": true,
	"terminal": true,
}

func validateClassifier(cfg *ClassifierConfig) error {
	if !validTiers[cfg.DefaultTier] {
		return &ValidationError{
			Field:   "classifier.default_tier",
			Message: fmt.Sprintf("unknown tier %q, must be one of: critical, elevated, terminal", cfg.DefaultTier),
		}
	}
	for eventType, tier := range cfg.Tiers {
		if strings.TrimSpace(eventType) == "" {
			return &ValidationError{Field: "classifier.tiers", Message: "event type must not be empty"}
		}
		if !validTiers[tier] {
			return &ValidationError{
				Field:   "classifier.tiers." + eventType,
				Message: fmt.Sprintf("unknown tier %q, must be one of: critical, elevated, terminal", tier),
			}
		}
	}
	return nil
}

func validateAudit(cfg *AuditConfig) error {
	switch cfg.Backend {
	case "memory", "sqlite":
	default:
		return &ValidationError{
			Field:   "audit.backend",
			Message: fmt.Sprintf("unknown backend %q, must be one of: memory, sqlite", cfg.Backend),
		}
	}
	if cfg.Backend == "sqlite" && cfg.SQLite.Path == "" {
		return &ValidationError{Field: "audit.sqlite.path", Message: "required when backend is sqlite"}
	}
	if cfg.Archive.Enabled {
		if cfg.Archive.Dir == "" {
			return &ValidationError{Field: "audit.archive.dir", Message: "required when archival is enabled"}
		}
		if _, err := cron.ParseStandard(cfg.Archive.Schedule); err != nil {
			return &ValidationError{
				Field:   "audit.archive.schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			}
		}
	}
	return nil
}

func validateDedup(cfg *DedupConfig) error {
	switch cfg.Backend {
	case "memory", "sqlite":
	default:
		return &ValidationError{
			Field:   "dedup.backend",
			Message: fmt.Sprintf("unknown backend %q, must be one of: memory, sqlite", cfg.Backend),
		}
	}
	if cfg.Backend == "sqlite" {
		if cfg.SQLite.Path == "" {
			return &ValidationError{Field: "dedup.sqlite.path", Message: "required when backend is sqlite"}
		}
		if cfg.SQLite.BusyTimeout < 0 {
			return &ValidationError{Field: "dedup.sqlite.busy_timeout", Message: "must not be negative"}
		}
	}
	return nil
}

func validateServer(cfg *ServerConfig) error {
	if cfg.ListenAddress == "" {
		return &ValidationError{Field: "server.listen_address", Message: "must not be empty"}
	}
	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		return &ValidationError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("must be host:port: %v", err),
		}
	}
	if cfg.ReadTimeout < 0 {
		return &ValidationError{Field: "server.read_timeout", Message: "must not be negative"}
	}
	if cfg.WriteTimeout < 0 {
		return &ValidationError{Field: "server.write_timeout", Message: "must not be negative"}
	}
	if cfg.IdleTimeout < 0 {
		return &ValidationError{Field: "server.idle_timeout", Message: "must not be negative"}
	}
	if cfg.ShutdownTimeout <= 0 {
		return &ValidationError{Field: "server.shutdown_timeout", Message: "must be positive"}
	}
	return nil
}

func validateTelemetry(cfg *TelemetryConfig) error {
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown level %q, must be one of: debug, info, warn, error", cfg.Logging.Level),
		}
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return &ValidationError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown format %q, must be one of: json, text", cfg.Logging.Format),
		}
	}
	if cfg.Metrics.Enabled {
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			return &ValidationError{Field: "telemetry.metrics.path", Message: "must start with /"}
		}
		if cfg.Metrics.Namespace == "" {
			return &ValidationError{Field: "telemetry.metrics.namespace", Message: "must not be empty"}
		}
	}
	return nil
}
