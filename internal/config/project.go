package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/rshade/finwatch/internal/logging"
)

// ProjectDirName is the project-local config directory name.
const ProjectDirName = ".finwatch"

// errNoProject is returned by findProjectDir when no ancestor holds a
// project config directory.
var errNoProject = errors.New("no finwatch project directory found")

// resolvedProjectDir holds the project directory resolved at startup.
var (
	resolvedProjectDir   string       //nolint:gochecknoglobals // Set once at startup, read by config loaders
	resolvedProjectDirMu sync.RWMutex //nolint:gochecknoglobals // Protects resolvedProjectDir
)

// SetResolvedProjectDir stores the resolved project directory for use by other config functions.
func SetResolvedProjectDir(dir string) {
	resolvedProjectDirMu.Lock()
	defer resolvedProjectDirMu.Unlock()
	resolvedProjectDir = dir
}

// GetResolvedProjectDir returns the stored resolved project directory.
func GetResolvedProjectDir() string {
	resolvedProjectDirMu.RLock()
	defer resolvedProjectDirMu.RUnlock()
	return resolvedProjectDir
}

// ResolveProjectDir determines the project-local .finwatch directory path.
// It checks (in order):
//  1. flagValue (--project-dir CLI flag)
//  2. FINWATCH_PROJECT_DIR env var
//  3. a walk up from startDir looking for .finwatch/config.yaml
//
// Returns an absolute path or "" when no project is found. The global config
// directory is never treated as a project.
func ResolveProjectDir(ctx context.Context, flagValue, startDir string) string {
	if flagValue != "" {
		return toAbsProjectDir(ctx, flagValue)
	}

	if envDir := os.Getenv(EnvProjectDir); envDir != "" {
		return toAbsProjectDir(ctx, envDir)
	}

	dir, err := findProjectDir(startDir)
	if err != nil {
		if !errors.Is(err, errNoProject) {
			logging.FromContext(ctx).Warn().
				Str("component", "config").
				Err(err).
				Str("start_dir", startDir).
				Msg("unexpected error during project discovery")
		}
		return ""
	}
	return dir
}

// NewWithProjectDir loads the global config and shallow-merges
// projectDir/config.yaml on top. Environment overrides are reapplied after
// the merge. An empty projectDir behaves like New.
func NewWithProjectDir(ctx context.Context, projectDir string) *Config {
	cfg := New()

	if projectDir == "" {
		return cfg
	}

	overlayPath := filepath.Join(projectDir, "config.yaml")
	if _, err := os.Stat(overlayPath); err != nil {
		return cfg
	}

	merged := New()
	if err := ShallowMergeYAML(merged, overlayPath); err != nil {
		logging.FromContext(ctx).Warn().
			Str("component", "config").
			Str("operation", "merge_project_config").
			Err(err).
			Str("overlay_path", overlayPath).
			Msg("failed to merge project config, using global defaults")
		return cfg
	}
	if err := merged.ApplyEnv(os.LookupEnv); err != nil {
		logging.FromContext(ctx).Warn().
			Str("component", "config").
			Err(err).
			Msg("ignoring invalid environment override")
	}

	return merged
}

// findProjectDir walks up from start until it finds a directory containing
// .finwatch/config.yaml.
func findProjectDir(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	globalDir, _ := GetConfigDir()

	for {
		candidate := filepath.Join(dir, ProjectDirName)
		if candidate != globalDir {
			if _, statErr := os.Stat(filepath.Join(candidate, "config.yaml")); statErr == nil {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errNoProject
		}
		dir = parent
	}
}

// toAbsProjectDir converts dir to an absolute path and appends ".finwatch"
// unless it already ends with it.
func toAbsProjectDir(ctx context.Context, dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		logging.FromContext(ctx).Warn().
			Str("component", "config").
			Err(err).
			Str("dir", dir).
			Msg("failed to resolve absolute path for project directory")
		abs = dir
	}

	if filepath.Base(abs) == ProjectDirName {
		return abs
	}
	return filepath.Join(abs, ProjectDirName)
}
