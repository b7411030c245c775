package cache

import (
	"fmt"
	"strconv"
	"time"
)

// TTL configuration constants and defaults.
const (
	// DefaultTTL is the default full-record TTL (5 minutes).
	DefaultTTL = 5 * time.Minute

	// MaxTTL is the maximum allowed TTL (7 days).
	MaxTTL = 7 * 24 * time.Hour

	// minutesPerHour is used for duration formatting calculations.
	minutesPerHour = 60

	// hoursPerDay is used for duration formatting calculations.
	hoursPerDay = 24
)

// ErrInvalidTTL is returned for TTLs outside [0, MaxTTL].
var ErrInvalidTTL = fmt.Errorf("TTL must be between 0 and %s", MaxTTL)

// ValidateTTL checks that ttl is within range. Zero disables staleness checks.
func ValidateTTL(ttl time.Duration) error {
	if ttl < 0 || ttl > MaxTTL {
		return fmt.Errorf("%w: got %s", ErrInvalidTTL, ttl)
	}
	return nil
}

// ParseTTL parses a TTL string in various formats:
// - Integer seconds: "300".
// - Duration string: "5m", "1h30m".
func ParseTTL(s string) (time.Duration, error) {
	// Try parsing as integer seconds first
	if seconds, err := strconv.Atoi(s); err == nil {
		ttl := time.Duration(seconds) * time.Second
		if vErr := ValidateTTL(ttl); vErr != nil {
			return 0, vErr
		}
		return ttl, nil
	}

	ttl, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid TTL format: %w", err)
	}
	if vErr := ValidateTTL(ttl); vErr != nil {
		return 0, vErr
	}
	return ttl, nil
}

// FormatDuration formats a duration in a human-readable way.
// Examples: "45s", "30m", "2h30m", "3d2h".
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	if d < hoursPerDay*time.Hour {
		hours := int(d.Hours())
		minutes := int(d.Minutes()) % minutesPerHour
		if minutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh%dm", hours, minutes)
	}
	days := int(d.Hours()) / hoursPerDay
	hours := int(d.Hours()) % hoursPerDay
	if hours == 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dd%dh", days, hours)
}
