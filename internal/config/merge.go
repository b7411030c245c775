package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Top-level YAML config key names used for shallow merge.
const (
	keyEngine    = "engine"
	keySource    = "source"
	keyNotify    = "notify"
	keyLogging   = "logging"
	keyWatchlist = "watchlist"
)

// knownTopLevelKeys lists the YAML keys that correspond to exported Config fields.
// Keys not in this list are silently ignored during merge.
//
//nolint:gochecknoglobals // Compile-time constant lookup table.
var knownTopLevelKeys = map[string]bool{
	keyEngine:    true,
	keySource:    true,
	keyNotify:    true,
	keyLogging:   true,
	keyWatchlist: true,
}

// ShallowMergeYAML loads a YAML file and merges its top-level keys onto
// the target Config. Keys present in the overlay replace entire sections
// in the target. Keys absent in the overlay are left unchanged.
func ShallowMergeYAML(target *Config, overlayPath string) error {
	if target == nil {
		return errors.New("nil target *Config in ShallowMergeYAML")
	}

	data, err := os.ReadFile(overlayPath)
	if err != nil {
		return fmt.Errorf("reading overlay file %s: %w", overlayPath, err)
	}

	var overlay map[string]yaml.Node
	if err = yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing overlay YAML from %s: %w", overlayPath, err)
	}

	// Empty or comment-only file: nothing to merge.
	if len(overlay) == 0 {
		return nil
	}

	for key, node := range overlay {
		if !knownTopLevelKeys[key] {
			continue
		}
		if err = decodeSection(target, key, &node); err != nil {
			return fmt.Errorf("applying overlay section %q: %w", key, err)
		}
	}

	return nil
}

// decodeSection decodes node into a fresh zero value of the section named by
// key and replaces the target field with it.
func decodeSection(target *Config, key string, node *yaml.Node) error {
	switch key {
	case keyEngine:
		var v EngineConfig
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Engine = v
	case keySource:
		var v SourceConfig
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Source = v
	case keyNotify:
		var v NotifyConfig
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Notify = v
	case keyLogging:
		var v LoggingConfig
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Logging = v
	case keyWatchlist:
		var v WatchlistConfig
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Watchlist = v
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
