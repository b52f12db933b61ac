package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// TasksInfo is a transient snapshot of the backend task queue.
type TasksInfo struct {
	OldestTaskTime    *Timestamp `json:"oldest_task_time"`
	RunningTasksCount int        `json:"running_tasks_count"`
}

// Oldest returns the oldest pending task time, if any.
func (t TasksInfo) Oldest() (time.Time, bool) {
	if t.OldestTaskTime == nil || t.OldestTaskTime.IsZero() {
		return time.Time{}, false
	}
	return t.OldestTaskTime.Time, true
}

// Timestamp decodes the timestamp shapes the backend emits: RFC 3339,
// naive ISO-8601 (assumed UTC) and RFC 1123 (http.TimeFormat).
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	http.TimeFormat,
	time.RFC1123Z,
	time.RFC1123,
}

// ParseTimestamp parses raw using the accepted layouts.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if strings.TrimSpace(raw) == "" {
		t.Time = time.Time{}
		return nil
	}
	v, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}
	t.Time = v
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
