package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"governor-hq/ganymede/pkg/audit"
	"governor-hq/ganymede/pkg/audit/archive"
	auditstorage "governor-hq/ganymede/pkg/audit/storage"
	"governor-hq/ganymede/pkg/blast"
	"governor-hq/ganymede/pkg/classifier"
	"governor-hq/ganymede/pkg/config"
	"governor-hq/ganymede/pkg/entity"
	"governor-hq/ganymede/pkg/policy"
	"governor-hq/ganymede/pkg/policy/source"
	"governor-hq/ganymede/pkg/rollout"
	"governor-hq/ganymede/pkg/rollout/dedup"
	"governor-hq/ganymede/pkg/server"
	"governor-hq/ganymede/pkg/telemetry/health"
	"governor-hq/ganymede/pkg/telemetry/logging"
	"governor-hq/ganymede/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Ganymede engine",
	Long: `Start the Ganymede engine with the specified configuration.

The engine loads policy definitions, rehydrates state from the audit log,
and serves the governance API on the configured address.

Examples:
  # Start with default config
  ganymede run

  # Start with custom config
  ganymede run --config /etc/ganymede/config.yaml

  # Override listen address
  ganymede run --listen 0.0.0.0:8080

  # Validate config without starting
  ganymede run --dry-run`,
	RunE: runEngine,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the engine")
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	m := metrics.New(&cfg.Telemetry.Metrics)

	auditLog, err := openAuditLog(cfg, logger)
	if err != nil {
		return err
	}
	defer auditLog.Close()

	index, err := openDedupIndex(cfg)
	if err != nil {
		return err
	}

	machine, err := entity.NewMachine(auditLog, logger)
	if err != nil {
		return err
	}

	registry, err := policy.NewRegistry(auditLog, policy.Thresholds{
		CandidateObservations: cfg.Engine.Promotion.CandidateMinObservations,
		CandidateConfidence:   cfg.Engine.Promotion.CandidateThreshold,
		PromotedObservations:  cfg.Engine.Promotion.PromotedMinObservations,
		PromotedConfidence:    cfg.Engine.Promotion.PromotedThreshold,
	}, logger)
	if err != nil {
		return err
	}

	if err := hydrate(cmd.Context(), auditLog, machine, registry, logger); err != nil {
		return err
	}

	simulator, err := blast.NewSimulator(machine, blast.Thresholds{
		HighAffectedCount:    cfg.Blast.HighCount,
		HighMonetaryImpact:   cfg.Blast.HighValue,
		MediumAffectedCount:  cfg.Blast.MediumCount,
		MediumMonetaryImpact: cfg.Blast.MediumValue,
	})
	if err != nil {
		return err
	}

	controller, err := rollout.New(rollout.Deps{
		Classifier: classifier.New(classifier.Config{
			Tiers:       cfg.Classifier.Tiers,
			DefaultTier: cfg.Classifier.DefaultTier,
		}),
		Policies:        registry,
		Machine:         machine,
		Simulator:       simulator,
		Log:             auditLog,
		Dedup:           index,
		Metrics:         m,
		Logger:          logger,
		ActionQueueSize: cfg.Engine.ActionQueueSize,
	})
	if err != nil {
		return err
	}
	defer controller.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Drain executed actions. Downstream effectors would subscribe here; the
	// engine itself only records them.
	go func() {
		for req := range controller.Actions() {
			logger.Info("action executed",
				"action", req.Action,
				"entity_id", req.EntityID,
				"policy_id", req.PolicyID,
				"event_id", req.EventID,
			)
		}
	}()

	if err := loadPolicies(ctx, cfg, registry, logger); err != nil {
		return err
	}

	if cfg.Audit.Archive.Enabled {
		archiver, err := archive.NewArchiver(auditLog, archive.Config{
			Dir:      cfg.Audit.Archive.Dir,
			Schedule: cfg.Audit.Archive.Schedule,
		}, logger)
		if err != nil {
			return err
		}
		scheduler := archive.NewScheduler(archiver)
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	checker := health.New(5 * time.Second)
	checker.RegisterCheck("audit_log", func(ctx context.Context) error {
		if auditLog.Corrupt() {
			return fmt.Errorf("audit log halted after sequence violation")
		}
		_, err := auditLog.Count(ctx)
		return err
	})
	checker.RegisterCheck("dedup_index", func(ctx context.Context) error {
		_, err := index.Seen(ctx, "health-check-probe")
		return err
	})

	srv, err := server.New(cfg, controller, auditLog, checker, m, logger)
	if err != nil {
		return err
	}

	logger.Info("engine started",
		"address", cfg.Server.ListenAddress,
		"audit_backend", cfg.Audit.Backend,
		"dedup_backend", cfg.Dedup.Backend,
		"policies", len(registry.List()),
		"entities", machine.Count(),
	)

	return srv.Start(ctx)
}

// openAuditLog opens the configured audit storage backend and the log over it.
func openAuditLog(cfg *config.Config, logger *slog.Logger) (*audit.Log, error) {
	var storage audit.Storage
	switch cfg.Audit.Backend {
	case "sqlite":
		s, err := auditstorage.NewSQLiteStorage(&auditstorage.SQLiteConfig{
			Path:    cfg.Audit.SQLite.Path,
			WALMode: true,
		})
		if err != nil {
			return nil, fmt.Errorf("open audit storage: %w", err)
		}
		storage = s
	case "memory":
		storage = auditstorage.NewMemoryStorage()
	default:
		return nil, fmt.Errorf("unsupported audit backend: %s", cfg.Audit.Backend)
	}

	return audit.New(storage, logger)
}

// openDedupIndex opens the configured deduplication index backend.
func openDedupIndex(cfg *config.Config) (dedup.Index, error) {
	switch cfg.Dedup.Backend {
	case "sqlite":
		return dedup.NewSQLiteIndex(dedup.SQLiteIndexConfig{
			Path:        cfg.Dedup.SQLite.Path,
			BusyTimeout: time.Duration(cfg.Dedup.SQLite.BusyTimeout) * time.Millisecond,
		})
	case "memory":
		return dedup.NewMemoryIndex(), nil
	default:
		return nil, fmt.Errorf("unsupported dedup backend: %s", cfg.Dedup.Backend)
	}
}

// hydrate replays a non-empty audit log and restores entities and policies
// into the live components, so a restarted engine continues where the log
// left off.
func hydrate(ctx context.Context, auditLog *audit.Log, machine *entity.Machine, registry *policy.Registry, logger *slog.Logger) error {
	if auditLog.LastSequence() == 0 {
		return nil
	}

	state, err := audit.Rebuild(ctx, auditLog)
	if err != nil {
		return fmt.Errorf("rebuild state from audit log: %w", err)
	}

	for _, e := range state.Entities {
		err := machine.Restore(entity.ManagedEntity{
			ID:              e.ID,
			CustomerRef:     e.CustomerRef,
			ProducerRef:     e.ProducerRef,
			ResourceSlotRef: e.ResourceSlotRef,
			MonetaryValue:   e.MonetaryValue,
			State:           entity.State(e.State),
		}, e.Positives, e.SampleCount)
		if err != nil {
			return fmt.Errorf("restore entity %q: %w", e.ID, err)
		}
	}

	for _, p := range state.Policies {
		err := registry.Restore(policy.Policy{
			ID:                  p.ID,
			Name:                p.Name,
			TriggerPattern:      p.TriggerPattern,
			Action:              p.Action,
			ExpectedOutcomeSign: classifier.OutcomeSign(p.ExpectedOutcomeSign),
			Mode:                policy.Mode(p.Mode),
			ObservationCount:    p.ObservationCount,
			CorrectPredictions:  p.CorrectPredictions,
		})
		if err != nil {
			return fmt.Errorf("restore policy %q: %w", p.ID, err)
		}
	}

	logger.Info("state rehydrated from audit log",
		"entries", state.Entries,
		"entities", len(state.Entities),
		"policies", len(state.Policies),
	)
	return nil
}

// loadPolicies registers definitions from the configured source and starts
// the change watcher when enabled. Definitions already registered (matched
// by trigger and action) are skipped by the watcher on subsequent reloads.
func loadPolicies(ctx context.Context, cfg *config.Config, registry *policy.Registry, logger *slog.Logger) error {
	if cfg.Policies.Path == "" {
		return nil
	}

	fileSource := source.NewFileSource(cfg.Policies.Path, logger)

	if cfg.Policies.Watch {
		watcher, err := source.NewWatcher(fileSource, registry, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := watcher.Start(ctx); err != nil {
				logger.Error("definitions watcher stopped", "error", err)
			}
		}()
		return nil
	}

	defs, err := fileSource.LoadDefinitions(ctx)
	if err != nil {
		return err
	}
	registered := registeredDefinitions(registry)
	for _, def := range defs {
		if _, ok := registered[def.TriggerPattern+"\x00"+def.Action]; ok {
			continue
		}
		if _, err := registry.Register(ctx, def); err != nil {
			return fmt.Errorf("register policy %q: %w", def.Name, err)
		}
	}
	return nil
}

// registeredDefinitions keys existing policies by trigger and action so
// hydrated policies are not re-registered from the definitions file.
func registeredDefinitions(registry *policy.Registry) map[string]struct{} {
	out := make(map[string]struct{})
	for _, p := range registry.List() {
		out[p.TriggerPattern+"\x00"+p.Action] = struct{}{}
	}
	return out
}
