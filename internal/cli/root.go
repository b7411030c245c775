package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rshade/finwatch/internal/config"
	"github.com/rshade/finwatch/internal/logging"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// rootFlags holds the persistent flags shared by every subcommand.
type rootFlags struct {
	debug      bool
	configFile string
	projectDir string
	source     string
}

// NewRootCmd creates the root Cobra command for the finwatch CLI.
// It resolves configuration (global file, project overlay, --config, env, flags),
// wires up logging and tracing, and registers the subcommands.
func NewRootCmd(ver string) *cobra.Command {
	var logResult *logging.LogPathResult
	var flags rootFlags

	cmd := &cobra.Command{
		Use:          "finwatch",
		Short:        "Watch financial instruments from the terminal",
		Long:         "finwatch: load, cache and refresh quotes, fundamentals and statements for a watchlist",
		Version:      ver,
		Example:      rootCmdExample,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd.Context(), flags)
			if err != nil {
				return err
			}
			config.SetGlobalConfig(cfg)

			result := setupLogging(cmd, flags.debug)
			logResult = &result
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return cleanupLogging(logResult)
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVar(&flags.debug, "debug", false, "enable debug logging to stderr")
	pf.StringVar(&flags.configFile, "config", "", "extra config file merged over the global and project config")
	pf.StringVar(&flags.projectDir, "project-dir", "", "project directory containing .finwatch/config.yaml")
	pf.StringVar(&flags.source, "source", "", "data source to use: sim, http or redis")

	cmd.AddCommand(newWatchCmd(), newSnapshotCmd(), newSeedCmd(), newConfigCmd(), newWatchlistCmd())

	return cmd
}

// resolveConfig builds the effective configuration. Precedence from lowest to
// highest: defaults, global file, project overlay, --config file, environment,
// flags.
func resolveConfig(ctx context.Context, flags rootFlags) (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		wd = ""
	}

	projectDir := config.ResolveProjectDir(ctx, flags.projectDir, wd)
	config.SetResolvedProjectDir(projectDir)

	cfg := config.NewWithProjectDir(ctx, projectDir)
	if flags.configFile != "" {
		if err := config.ShallowMergeYAML(cfg, flags.configFile); err != nil {
			return nil, fmt.Errorf("loading --config: %w", err)
		}
		if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
			return nil, err
		}
	}
	if flags.source != "" {
		cfg.Source.Kind = flags.source
	}
	return cfg, nil
}

const rootCmdExample = `  # Watch the default view in an interactive table
  finwatch watch

  # Stream events as plain text for 30 seconds
  finwatch watch --plain --duration 30s

  # Print a one-shot snapshot of a view as JSON
  finwatch snapshot --view tech --output json --sort change_pct:desc

  # Fill Redis with simulated data and watch it through the redis source
  finwatch seed --ticks 12
  finwatch watch --source redis

  # Manage watchlist views
  finwatch watchlist add tech AAPL MSFT NVDA
  finwatch watchlist list

  # Initialize and validate configuration
  finwatch config init
  finwatch config validate`

// newConfigCmd creates the config command group with configuration subcommands.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(NewConfigInitCmd(), NewConfigShowCmd(), NewConfigValidateCmd())
	return cmd
}
