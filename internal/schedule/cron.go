package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts both 5-field and 6-field (leading seconds) specs plus
// descriptors like "@hourly" and "@every 15m".
var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// strictParser is the plain 5-field crontab dialect the backend stores.
var strictParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Parse parses a cron expression. Evaluation happens in the location of the
// time passed to Next; callers pass UTC.
func Parse(expr string) (cron.Schedule, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return nil, errors.New("cron expression required")
	}
	sched, err := parser.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return sched, nil
}

// NextAfter returns the first fire time of expr strictly after t, in UTC.
func NextAfter(expr string, t time.Time) (time.Time, error) {
	sched, err := Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	next := sched.Next(t.UTC())
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("cron %q never fires", expr)
	}
	return next.UTC(), nil
}

// IsValid reports whether expr is a strict five-part crontab expression
// (minute hour day-of-month month day-of-week).
func IsValid(expr string) bool {
	s := strings.TrimSpace(expr)
	if s == "" {
		return false
	}
	if len(strings.Fields(s)) != 5 {
		return false
	}
	_, err := strictParser.Parse(s)
	return err == nil
}

// Match reports whether t (taken in UTC) falls on the schedule expr.
//
// Only "*" and comma-separated numbers are understood; ranges ("-") and
// steps ("/") are rejected with an error. Day-of-week uses 0 for Sunday.
func Match(expr string, t time.Time) (bool, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return false, fmt.Errorf("cron %q: expected 5 fields, got %d", expr, len(fields))
	}
	t = t.UTC()
	targets := [5]int{t.Minute(), t.Hour(), t.Day(), int(t.Month()), int(t.Weekday())}
	// Every field is checked before the verdict so unsupported syntax in a
	// later field is reported even when an earlier field already misses.
	all := true
	for i, f := range fields {
		ok, err := matchField(f, targets[i])
		if err != nil {
			return false, fmt.Errorf("cron %q: %w", expr, err)
		}
		all = all && ok
	}
	return all, nil
}

func matchField(value string, target int) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "*" {
		return true, nil
	}
	if strings.Contains(value, "-") {
		return false, errors.New(`unsupported syntax used in cron: "-"`)
	}
	if strings.Contains(value, "/") {
		return false, errors.New(`unsupported syntax used in cron: "/"`)
	}
	matched := false
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !isDigits(part) {
			return false, fmt.Errorf("failed to parse %q as integer", part)
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return false, fmt.Errorf("failed to parse %q as integer", part)
		}
		if n == target {
			matched = true
		}
	}
	return matched, nil
}

// isDigits rejects signs and anything else strconv.Atoi would tolerate.
func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
