package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rshade/finwatch/internal/config"
)

const redacted = "********"

// NewConfigShowCmd creates the config show command which prints the effective
// configuration as YAML.
func NewConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [section]",
		Short: "Show the effective configuration",
		Long: `Prints the configuration finwatch would run with, after merging the
global file, project overlay, --config and environment. Secrets are redacted.
Pass a top-level section name to print only that section.`,
		Example: `  # Show everything
  finwatch config show

  # Show only the engine tunables
  finwatch config show engine`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := redactSecrets(*config.GetGlobalConfig())

			var value any = cfg
			if len(args) == 1 {
				section, err := configSection(&cfg, args[0])
				if err != nil {
					return err
				}
				value = section
			}

			out, err := yaml.Marshal(value)
			if err != nil {
				return fmt.Errorf("marshaling configuration: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func redactSecrets(cfg config.Config) config.Config {
	if cfg.Source.HTTP.APIKey != "" {
		cfg.Source.HTTP.APIKey = redacted
	}
	if cfg.Source.Redis.Password != "" {
		cfg.Source.Redis.Password = redacted
	}
	return cfg
}

func configSection(cfg *config.Config, name string) (any, error) {
	switch name {
	case "engine":
		return cfg.Engine, nil
	case "source":
		return cfg.Source, nil
	case "notify":
		return cfg.Notify, nil
	case "logging":
		return cfg.Logging, nil
	case "watchlist":
		return cfg.Watchlist, nil
	default:
		return nil, fmt.Errorf("unknown config section %q (valid: %s)", name, strings.Join(config.Keys(), ", "))
	}
}
