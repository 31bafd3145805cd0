package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"governor-hq/ganymede/pkg/audit"
	"governor-hq/ganymede/pkg/audit/export"
	"governor-hq/ganymede/pkg/config"
	"governor-hq/ganymede/pkg/telemetry/logging"
)

var replayFlags struct {
	file   string
	pretty bool
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Rebuild engine state from the audit log",
	Long: `Replay the audit log from the beginning and print the reconstructed
engine state as JSON.

By default the configured audit backend is replayed. With --file, a JSONL
archive produced by the audit archiver is replayed instead. Replay verifies
that sequence numbers are contiguous and strictly increasing; any gap or
reordering is reported as corruption.

Examples:
  # Replay the configured audit backend
  ganymede replay

  # Replay an exported archive
  ganymede replay --file ./data/archive/audit-20260830T020000Z-1-512.jsonl`,
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVarP(&replayFlags.file, "file", "f", "", "replay a JSONL archive instead of the configured backend")
	replayCmd.Flags().BoolVar(&replayFlags.pretty, "pretty", true, "pretty-print the reconstructed state")
}

func runReplay(cmd *cobra.Command, args []string) error {
	state := audit.NewRebuiltState()

	if replayFlags.file != "" {
		if err := replayArchive(cmd, state); err != nil {
			return err
		}
	} else {
		if err := replayBackend(cmd, state); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if replayFlags.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(state)
}

// replayArchive rebuilds state from a JSONL archive file, verifying that
// sequence numbers are contiguous from the file's first entry.
func replayArchive(cmd *cobra.Command, state *audit.RebuiltState) error {
	f, err := os.Open(replayFlags.file)
	if err != nil {
		return err
	}
	defer f.Close()

	var expected uint64
	apply := func(entry audit.Entry) error {
		if expected == 0 {
			expected = entry.Sequence
		}
		if entry.Sequence != expected {
			return &audit.CorruptLogError{Expected: expected, Got: entry.Sequence}
		}
		expected++
		return state.Apply(entry)
	}

	count, err := export.ReadLines(cmd.Context(), f, apply)
	if err != nil {
		return fmt.Errorf("replay archive %q: %w", replayFlags.file, err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "replayed %d entries from %s\n", count, replayFlags.file)
	return nil
}

// replayBackend rebuilds state from the configured audit storage backend.
func replayBackend(cmd *cobra.Command, state *audit.RebuiltState) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:  "warn",
		Format: cfg.Telemetry.Logging.Format,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	auditLog, err := openAuditLog(cfg, logger)
	if err != nil {
		return err
	}
	defer auditLog.Close()

	if err := auditLog.Replay(cmd.Context(), state.Apply); err != nil {
		return fmt.Errorf("replay audit log: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "replayed %d entries from %s backend\n", state.Entries, cfg.Audit.Backend)
	return nil
}
