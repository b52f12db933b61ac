package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses a Go duration string at a config path. Empty
// means zero; negative values are rejected.
func ParseDurationField(path, raw string) (time.Duration, error) {
	return parseDuration(path, raw, 0)
}

// ParseDurationOrDefault is ParseDurationField with def for empty or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	return parseDuration(path, raw, def)
}

func parseDuration(path, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: duration must be >= 0, got %s", path, d)
	case d == 0:
		return def, nil
	}
	return d, nil
}
