package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/finwatch/internal/config"
)

// NewConfigValidateCmd creates the config validate command for validating configuration.
func NewConfigValidateCmd() *cobra.Command {
	var (
		verbose bool
		file    string
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		Long: `Validates the effective configuration (global file, project overlay,
--config and environment), or a single file given with --file.

This includes:
- Engine tunables (delays, refresh interval, batch size, cache TTL, pacing)
- Data source settings for the selected kind
- Kafka settings when notifications are enabled
- Logging level and format`,
		Example: `  # Validate current configuration
  finwatch config validate

  # Validate a file and show detailed information
  finwatch config validate --file ./finwatch.yaml --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigValidate(cmd, file, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed validation information")
	cmd.Flags().StringVar(&file, "file", "", "validate this file instead of the effective configuration")

	return cmd
}

// runConfigValidate executes the configuration validation logic.
func runConfigValidate(cmd *cobra.Command, file string, verbose bool) error {
	cfg := config.GetGlobalConfig()
	if file != "" {
		loaded, err := config.Load(file)
		if err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		cfg = loaded
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cmd.Printf("Configuration is valid\n")

	if verbose {
		printVerboseDetails(cmd, cfg)
	}

	return nil
}

// printVerboseDetails prints detailed configuration information.
func printVerboseDetails(cmd *cobra.Command, cfg *config.Config) {
	cmd.Println()
	cmd.Println("Configuration details:")
	cmd.Printf("  Source: %s\n", cfg.Source.Kind)
	cmd.Printf("  Refresh interval: %s\n", cfg.Engine.RefreshInterval)
	cmd.Printf("  Refresh batch size: %d\n", cfg.Engine.RefreshBatchSize)
	cmd.Printf("  Cache TTL: %s\n", cfg.Engine.CacheTTL)
	cmd.Printf("  Pacing: %s\n", cfg.Engine.Pacing)
	cmd.Printf("  Logging level: %s\n", cfg.Logging.Level)
	cmd.Printf("  Log file: %s\n", cfg.Logging.File)
	cmd.Printf("  Watchlist: %s\n", cfg.Watchlist.File)

	if cfg.Notify.Kafka.Enabled {
		cmd.Printf("  Kafka: %v -> %s\n", cfg.Notify.Kafka.Brokers, cfg.Notify.Kafka.Topic)
	} else {
		cmd.Println("  Kafka notifications disabled")
	}
}
