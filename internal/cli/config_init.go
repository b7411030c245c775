package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rshade/finwatch/internal/config"
)

// NewConfigInitCmd creates the config init command for initializing configuration.
// Inside a project (a resolved .finwatch directory) it writes the project-local
// config.yaml; otherwise, or with --global, it writes the global one.
func NewConfigInitCmd() *cobra.Command {
	var (
		force  bool
		global bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file with default values",
		Long: `Creates a new configuration file with default values.

When a project directory is set (--project-dir, FINWATCH_PROJECT_DIR, or a
.finwatch/config.yaml found above the working directory), the file is written
to $PROJECT/.finwatch/config.yaml. Use --global to write ~/.finwatch/config.yaml
instead.`,
		Example: `  # Create configuration for the current project or globally
  finwatch config init

  # Create global configuration
  finwatch config init --global

  # Create configuration, overwriting existing
  finwatch config init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configInitPath(global)
			if err != nil {
				return err
			}
			return initConfigFile(cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration file")
	cmd.Flags().BoolVar(&global, "global", false, "write the global configuration even inside a project")

	return cmd
}

func configInitPath(global bool) (string, error) {
	if projectDir := config.GetResolvedProjectDir(); projectDir != "" && !global {
		return filepath.Join(projectDir, "config.yaml"), nil
	}
	return config.ConfigFilePath()
}

func initConfigFile(cmd *cobra.Command, path string, force bool) error {
	if !force {
		_, err := os.Stat(path)
		if err == nil {
			return errors.New("configuration file already exists, use --force to overwrite")
		}
		if !os.IsNotExist(err) {
			return fmt.Errorf("cannot access config path %s: %w", path, err)
		}
	}

	if err := config.Default().Save(path); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	cmd.Printf("Configuration initialized at %s\n", path)
	return nil
}
