package model

import (
	"encoding/json"
	"strings"
)

// Status is the lifecycle state of a pipeline or job, as reported by the
// backend. The client never transitions it.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusWaiting   Status = "waiting"
	StatusRunning   Status = "running"
	StatusStopping  Status = "stopping"
	StatusFinished  Status = "finished"
	StatusFailed    Status = "failed"
	StatusSucceeded Status = "succeeded"

	// StatusUnknown stands in for any wire value outside the set above.
	StatusUnknown Status = "unknown"
)

// Statuses lists the known wire values in display order.
var Statuses = []Status{
	StatusIdle,
	StatusWaiting,
	StatusRunning,
	StatusStopping,
	StatusFinished,
	StatusFailed,
	StatusSucceeded,
}

// ParseStatus maps a wire value onto the closed set. Unrecognized values
// resolve to StatusUnknown.
func ParseStatus(raw string) Status {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if s.Known() {
		return s
	}
	return StatusUnknown
}

// Known reports whether s is one of the backend wire values.
func (s Status) Known() bool {
	switch s {
	case StatusIdle, StatusWaiting, StatusRunning, StatusStopping,
		StatusFinished, StatusFailed, StatusSucceeded:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	if s == "" {
		return string(StatusUnknown)
	}
	return string(s)
}

// Icon returns the icon token for the status. It is total: any value outside
// the known set gets the fallback token.
func (s Status) Icon() string {
	switch s {
	case StatusIdle:
		return "clock"
	case StatusSucceeded, StatusFinished:
		return "check-circle-outline"
	case StatusWaiting:
		return "pause-circle-outline"
	case StatusRunning:
		return "play-circle-outline"
	case StatusStopping:
		return "stop-circle-outline"
	case StatusFailed:
		return "close-circle-outline"
	default:
		return "help-circle-outline"
	}
}

// IconClass is the icon font class list, e.g. "mdi mdi-clock".
func (s Status) IconClass() string { return "mdi mdi-" + s.Icon() }

// ColorClass is the badge class list, e.g. "crmi-status crmi-status-idle".
func (s Status) ColorClass() string {
	name := StatusUnknown
	if s.Known() {
		name = s
	}
	return "crmi-status crmi-status-" + string(name)
}

// UnmarshalJSON keeps decoding total: unexpected strings become StatusUnknown
// instead of failing the whole payload.
func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		*s = StatusUnknown
		return nil
	}
	*s = ParseStatus(raw)
	return nil
}
