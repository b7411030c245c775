package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/rshade/finwatch/internal/logging"
	"github.com/rshade/finwatch/internal/record"
)

// ErrInvalidFilter is returned for a malformed or unsupported filter expression.
var ErrInvalidFilter = errors.New("invalid filter")

// filterFields maps filter keys to the record field they match.
var filterFields = map[string]func(record.Record) string{ //nolint:gochecknoglobals // Read-only lookup table
	"symbol":   func(r record.Record) string { return r.Key.String() },
	"exchange": func(r record.Record) string { return r.Profile.Exchange },
	"currency": func(r record.Record) string { return r.Profile.Currency },
	"sector":   func(r record.Record) string { return r.Profile.Sector },
	"industry": func(r record.Record) string { return r.Profile.Industry },
	"rating":   func(r record.Record) string { return r.Analysis.Recommendation },
}

// filterKeys returns the supported filter keys, sorted.
func filterKeys() []string {
	keys := make([]string, 0, len(filterFields))
	for k := range filterFields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// parseFilter splits "key=value" and checks the key is supported.
func parseFilter(expr string) (string, string, error) {
	key, value, ok := strings.Cut(expr, "=")
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)
	if !ok || key == "" || value == "" {
		return "", "", fmt.Errorf("%w: %q (use key=value)", ErrInvalidFilter, expr)
	}
	if _, known := filterFields[key]; !known {
		return "", "", fmt.Errorf("%w: unknown key %q (valid: %s)", ErrInvalidFilter, key, strings.Join(filterKeys(), ", "))
	}
	return key, value, nil
}

// ApplyFilters validates and applies a slice of "key=value" filters to records.
// All filters are validated before any is applied; matching is
// case-insensitive and every filter must match. Empty expressions are ignored.
func ApplyFilters(ctx context.Context, records []record.Record, filters []string) ([]record.Record, error) {
	log := logging.FromContext(ctx)

	type filter struct{ key, value string }
	parsed := make([]filter, 0, len(filters))
	for _, f := range filters {
		if f == "" {
			continue
		}
		key, value, err := parseFilter(f)
		if err != nil {
			log.Warn().Ctx(ctx).
				Str("component", "cli").
				Str("operation", "apply_filters").
				Str("filter", f).
				Err(err).
				Msg("invalid filter expression")
			return nil, err
		}
		parsed = append(parsed, filter{key, value})
	}
	if len(parsed) == 0 {
		return records, nil
	}

	result := records
	for _, f := range parsed {
		before := len(result)
		field := filterFields[f.key]
		result = slices.DeleteFunc(slices.Clone(result), func(r record.Record) bool {
			return !strings.EqualFold(field(r), f.value)
		})
		log.Debug().Ctx(ctx).
			Str("component", "cli").
			Str("operation", "apply_filters").
			Str("filter", f.key+"="+f.value).
			Int("before", before).
			Int("after", len(result)).
			Msg("applied filter")
	}

	if len(result) == 0 && len(records) > 0 {
		log.Warn().Ctx(ctx).
			Str("component", "cli").
			Str("operation", "apply_filters").
			Int("original_count", len(records)).
			Msg("no records match filter criteria")
	}

	return result, nil
}
