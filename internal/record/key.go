package record

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// maxKeyLength bounds symbol length; real tickers stay far below it.
const maxKeyLength = 32

// ErrInvalidKey is returned when a symbol cannot be used as a Key.
var ErrInvalidKey = errors.New("invalid key")

// keyPattern allows exchange suffixes and share classes (BRK.B, 7203.T, BTC-USD, ^GSPC).
var keyPattern = regexp.MustCompile(`^[A-Z0-9^][A-Z0-9.\-=^]*$`)

// Key identifies a tracked instrument, typically its ticker symbol.
type Key string

// String returns the symbol.
func (k Key) String() string {
	return string(k)
}

// ParseKey normalizes a user supplied symbol (trim, upper-case) and validates it.
func ParseKey(s string) (Key, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	if norm == "" {
		return "", fmt.Errorf("%w: empty symbol", ErrInvalidKey)
	}
	if len(norm) > maxKeyLength {
		return "", fmt.Errorf("%w: %q exceeds %d characters", ErrInvalidKey, s, maxKeyLength)
	}
	if !keyPattern.MatchString(norm) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return Key(norm), nil
}

// ParseKeys parses a list of symbols, dropping duplicates while keeping the
// first occurrence's position.
func ParseKeys(symbols []string) ([]Key, error) {
	keys := make([]Key, 0, len(symbols))
	for _, s := range symbols {
		k, err := ParseKey(s)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return UniqueKeys(keys), nil
}

// UniqueKeys returns keys without repeats, each at its first position.
// The input is not modified.
func UniqueKeys(keys []Key) []Key {
	if keys == nil {
		return nil
	}
	out := make([]Key, 0, len(keys))
	seen := make(map[Key]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// SameKeys reports whether two tracked sets are value-equal: same keys in the same order.
func SameKeys(a, b []Key) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// CloneKeys returns a copy of keys so callers cannot mutate a stored tracked set.
func CloneKeys(keys []Key) []Key {
	if keys == nil {
		return nil
	}
	out := make([]Key, len(keys))
	copy(out, keys)
	return out
}

// Strings converts keys to plain strings.
func Strings(keys []Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}
