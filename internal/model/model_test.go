package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestStatusIconIsTotal(t *testing.T) {
	t.Parallel()
	tests := []struct {
		status Status
		icon   string
	}{
		{StatusIdle, "clock"},
		{StatusSucceeded, "check-circle-outline"},
		{StatusWaiting, "pause-circle-outline"},
		{StatusRunning, "play-circle-outline"},
		{StatusStopping, "stop-circle-outline"},
		{StatusFailed, "close-circle-outline"},
		{StatusFinished, "check-circle-outline"},
		{Status("exploded"), "help-circle-outline"},
		{Status(""), "help-circle-outline"},
	}
	for _, tt := range tests {
		if got := tt.status.Icon(); got != tt.icon {
			t.Fatalf("%q.Icon() = %q, want %q", tt.status, got, tt.icon)
		}
	}
	if got := Status("exploded").ColorClass(); got != "crmi-status crmi-status-unknown" {
		t.Fatalf("ColorClass = %q", got)
	}
	if got := StatusIdle.IconClass(); got != "mdi mdi-clock" {
		t.Fatalf("IconClass = %q", got)
	}
}

func TestPipelineDecodeUnknownStatus(t *testing.T) {
	t.Parallel()
	raw := `{"id":7,"name":"daily","status":"paused","run_on_schedule":true,
		"updated_at":"2024-03-01T10:00:00","schedules":[{"id":1,"cron":"0 9 * * *"}],"params":[]}`
	var p Pipeline
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Status != StatusUnknown {
		t.Fatalf("Status = %q, want unknown", p.Status)
	}
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if !p.LastUpdated().Equal(want) {
		t.Fatalf("UpdatedAt = %v, want %v", p.LastUpdated(), want)
	}
	if !p.BlocksManaging() || p.BlocksRunning() {
		t.Fatalf("unexpected predicates for scheduled pipeline")
	}
}

func TestPipelinePredicates(t *testing.T) {
	t.Parallel()
	running := Pipeline{Status: StatusRunning}
	if !running.IsActive() || !running.ShowsStopAction() || running.ShowsRunAction() {
		t.Fatal("running pipeline predicates wrong")
	}
	stopping := Pipeline{Status: StatusStopping}
	if !stopping.BlocksStopping() {
		t.Fatal("stopping pipeline should block stopping")
	}
	idle := Pipeline{Status: StatusIdle}
	if idle.BlocksManaging() || !idle.ShowsRunAction() {
		t.Fatal("idle pipeline predicates wrong")
	}
}

func TestTasksInfoTimestamps(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{name: "null", raw: `{"oldest_task_time":null,"running_tasks_count":2}`},
		{name: "rfc3339", raw: `{"oldest_task_time":"2024-03-01T10:00:00Z","running_tasks_count":2}`, ok: true},
		{name: "rfc1123", raw: `{"oldest_task_time":"Fri, 01 Mar 2024 10:00:00 GMT","running_tasks_count":2}`, ok: true},
		{name: "naive", raw: `{"oldest_task_time":"2024-03-01 10:00:00.123456","running_tasks_count":2}`, ok: true},
	}
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var info TasksInfo
			if err := json.Unmarshal([]byte(tt.raw), &info); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			got, ok := info.Oldest()
			if ok != tt.ok {
				t.Fatalf("Oldest ok = %v, want %v", ok, tt.ok)
			}
			if ok && got.Truncate(time.Second) != want {
				t.Fatalf("Oldest = %v, want %v", got, want)
			}
			if info.RunningTasksCount != 2 {
				t.Fatalf("RunningTasksCount = %d", info.RunningTasksCount)
			}
		})
	}
}

func TestCheckName(t *testing.T) {
	t.Parallel()
	for _, ok := range []string{"a", "_x", "Var_1"} {
		if err := CheckName(ok); err != nil {
			t.Fatalf("CheckName(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "1abc", "has-dash", "sp ace"} {
		if err := CheckName(bad); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("CheckName(%q) = %v, want ErrInvalidName", bad, err)
		}
	}
}
