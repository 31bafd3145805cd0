package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"governor-hq/ganymede/pkg/config"
	"governor-hq/ganymede/pkg/policy/source"
	"governor-hq/ganymede/pkg/telemetry/logging"
)

var validateFlags struct {
	policies string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and policy definitions",
	Long: `Validate the configuration file and, optionally, a policy
definitions file or directory without starting the engine.

Examples:
  # Validate the configuration only
  ganymede validate --config config.yaml

  # Also validate policy definitions
  ganymede validate --policies policies.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.policies, "policies", "p", "", "policy definitions file or directory to validate")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "configuration valid: %s\n", cfgFile)

	path := validateFlags.policies
	if path == "" {
		return nil
	}

	logger, err := logging.New(logging.Config{
		Level:  "warn",
		Format: cfg.Telemetry.Logging.Format,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	defs, err := source.NewFileSource(path, logger).LoadDefinitions(cmd.Context())
	if err != nil {
		return err
	}

	var invalid int
	for i, def := range defs {
		if def.TriggerPattern == "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "definition %d (%s): trigger_pattern is empty\n", i, def.Name)
			invalid++
		}
		if def.Action == "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "definition %d (%s): action is empty\n", i, def.Name)
			invalid++
		}
		switch def.ExpectedOutcomeSign {
		case "positive", "negative":
		default:
			fmt.Fprintf(cmd.ErrOrStderr(), "definition %d (%s): expected_outcome_sign must be positive or negative\n", i, def.Name)
			invalid++
		}
	}

	if invalid > 0 {
		return fmt.Errorf("%d problem(s) in %d definition(s)", invalid, len(defs))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "policy definitions valid: %d definition(s) in %s\n", len(defs), path)
	return nil
}
