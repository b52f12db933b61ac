package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"crmintctl/internal/model"
)

var fixedNow = time.Date(2024, 3, 4, 8, 30, 0, 0, time.UTC)

type fakeBackend struct {
	mu        sync.Mutex
	conf      model.Configuration
	pipelines []model.Pipeline
	savedVars []model.Param
	savedSets []model.Setting
	resets    int
	started   []int64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		conf: model.Configuration{
			SAEmail:   "sa@proj.iam.gserviceaccount.com",
			Settings:  []model.Setting{{Name: "client_id", Value: "abc"}, {Name: "developer_token", Value: ""}},
			Variables: []model.Param{{Name: "bucket", Type: "text", Value: "gs://raw"}, {Name: "days", Type: "number", Value: "7"}},
		},
		pipelines: []model.Pipeline{
			{ID: 1, Name: "daily", Status: model.StatusIdle, RunOnSchedule: true, Schedules: []model.Schedule{{ID: 10, Cron: "0 9 * * *"}}},
			{ID: 2, Name: "adhoc", Status: model.StatusRunning},
		},
	}
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/configuration":
		_ = json.NewEncoder(w).Encode(f.conf)
	case r.Method == http.MethodGet && r.URL.Path == "/api/tasks/info":
		_, _ = w.Write([]byte(`{"oldest_task_time":"2024-03-04T06:30:00","running_tasks_count":1234}`))
	case r.Method == http.MethodGet && r.URL.Path == "/api/pipelines":
		_ = json.NewEncoder(w).Encode(f.pipelines)
	case r.Method == http.MethodPut && r.URL.Path == "/api/global_variables":
		var body struct {
			Variables []model.Param `json:"variables"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.savedVars = body.Variables
	case r.Method == http.MethodPut && r.URL.Path == "/api/general_settings":
		var body struct {
			Settings []model.Setting `json:"settings"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.savedSets = body.Settings
	case r.Method == http.MethodPost && r.URL.Path == "/api/reset/statuses":
		f.resets++
	case r.Method == http.MethodPost && r.URL.Path == "/api/pipelines/1/start":
		f.started = append(f.started, 1)
		_, _ = w.Write([]byte(`{"id":1,"name":"daily","status":"running"}`))
	case r.Method == http.MethodPost && r.URL.Path == "/api/pipelines/404/start":
		http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusTeapot)
	}
}

// setup starts a fake backend and writes a config pointing at it.
func setup(t *testing.T) (*fakeBackend, string) {
	t.Helper()
	fb := newFakeBackend()
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := fmt.Sprintf(`{
  "backend": {"base_url": %q, "actor": "ops", "rate_per_sec": 100},
  "logging": {"level": "error"},
  "display": {"timezone": "UTC"},
  "storage": {"driver": "file", "path": %q}
}`, srv.URL, filepath.Join(dir, "crmintctl"))
	path := filepath.Join(dir, "crmintctl.json")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return fb, path
}

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	root := newRoot(&env{now: func() time.Time { return fixedNow }})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStatus(t *testing.T) {
	t.Parallel()
	_, cfg := setup(t)
	out, err := run(t, cfg, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"1,234", "2024-03-04 06:30:00 UTC", "2 hours ago"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPipelinesList(t *testing.T) {
	t.Parallel()
	_, cfg := setup(t)
	out, err := run(t, cfg, "pipelines", "list")
	if err != nil {
		t.Fatalf("pipelines list: %v", err)
	}
	for _, want := range []string{"daily", "◷ idle", "today at 9:00 AM", "adhoc", "▶ running"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPipelineStartIsAudited(t *testing.T) {
	t.Parallel()
	fb, cfg := setup(t)

	out, err := run(t, cfg, "pipelines", "start", "1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !strings.Contains(out, "running") {
		t.Fatalf("start output = %q", out)
	}
	if _, err := run(t, cfg, "pipelines", "start", "404"); err == nil {
		t.Fatal("start of missing pipeline succeeded")
	}
	if _, err := run(t, cfg, "pipelines", "start", "abc"); err == nil {
		t.Fatal("non-numeric id accepted")
	}

	fb.mu.Lock()
	started := len(fb.started)
	fb.mu.Unlock()
	if started != 1 {
		t.Fatalf("backend saw %d starts, want 1", started)
	}

	out, err = run(t, cfg, "audit", "--json")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	var entries []struct {
		Actor  string `json:"actor"`
		Action string `json:"action"`
		Target string `json:"target"`
		OK     bool   `json:"ok"`
	}
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode audit: %v\n%s", err, out)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %+v", entries)
	}
	// Newest first.
	if entries[0].Target != "404" || entries[0].OK || entries[1].Target != "1" || !entries[1].OK {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[1].Actor != "ops" || entries[1].Action != "pipeline.start" {
		t.Fatalf("entry = %+v", entries[1])
	}
}

func TestVarsAddAndRemove(t *testing.T) {
	t.Parallel()
	fb, cfg := setup(t)

	if _, err := run(t, cfg, "vars", "add", "1bad", "x"); err == nil {
		t.Fatal("invalid name accepted")
	}
	if _, err := run(t, cfg, "vars", "add", "region", "eu"); err != nil {
		t.Fatalf("vars add: %v", err)
	}
	fb.mu.Lock()
	saved := fb.savedVars
	fb.mu.Unlock()
	if len(saved) != 3 || saved[2].Name != "region" || saved[2].Type != model.DefaultParamType || saved[2].Value != "eu" {
		t.Fatalf("saved = %+v", saved)
	}

	if _, err := run(t, cfg, "vars", "remove", "bucket"); err != nil {
		t.Fatalf("vars remove: %v", err)
	}
	fb.mu.Lock()
	saved = fb.savedVars
	fb.mu.Unlock()
	if len(saved) != 1 || saved[0].Name != "days" {
		t.Fatalf("saved after remove = %+v", saved)
	}
}

func TestSettingsSet(t *testing.T) {
	t.Parallel()
	fb, cfg := setup(t)

	if _, err := run(t, cfg, "settings", "set", "nope", "1"); err == nil {
		t.Fatal("unknown setting accepted")
	}
	if _, err := run(t, cfg, "settings", "set", "developer_token", "tok"); err != nil {
		t.Fatalf("settings set: %v", err)
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if len(fb.savedSets) != 2 || fb.savedSets[1].Value != "tok" || fb.savedSets[0].Value != "abc" {
		t.Fatalf("saved = %+v", fb.savedSets)
	}
}

func TestResetNeedsConfirmation(t *testing.T) {
	t.Parallel()
	fb, cfg := setup(t)
	if _, err := run(t, cfg, "reset"); err == nil {
		t.Fatal("reset without --yes succeeded")
	}
	if _, err := run(t, cfg, "reset", "--yes"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if fb.resets != 1 {
		t.Fatalf("resets = %d", fb.resets)
	}
}

func TestCronCommands(t *testing.T) {
	t.Parallel()
	_, cfg := setup(t)

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant string
		wantErr bool
	}{
		{
			name: "next",
			args: []string{"cron", "next", "0 9 * * *", "-n", "2", "--tz", "UTC", "--from", "2024-03-04T08:30:00Z"},
			want: []string{"2024-03-04T09:00:00Z", "Today at 9:00 AM", "2024-03-05T09:00:00Z", "Tomorrow at 9:00 AM"},
		},
		{name: "check ok", args: []string{"cron", "check", "*/5 * * * *"}, want: []string{"valid"}},
		{name: "check four fields", args: []string{"cron", "check", "0 9 * *"}, wantErr: true},
		{name: "check six fields", args: []string{"cron", "check", "0 0 9 * * *"}, wantErr: true},
		{name: "match", args: []string{"cron", "match", "30 8 * * 1", "--at", "2024-03-04T08:30:00Z"}, want: []string{"match at"}, notWant: "no match"},
		{name: "match rejects ranges", args: []string{"cron", "match", "0 9-17 * * *"}, wantErr: true},
		{name: "due", args: []string{"cron", "due", "--at", "2024-03-04T09:00:00Z"}, want: []string{"daily"}},
		{name: "none due", args: []string{"cron", "due"}, want: []string{"no pipelines due"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := run(t, cfg, tt.args...)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, output:\n%s", out)
				}
				return
			}
			if err != nil {
				t.Fatalf("err = %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Fatalf("output missing %q:\n%s", w, out)
				}
			}
			if tt.notWant != "" && strings.Contains(out, tt.notWant) {
				t.Fatalf("output has %q:\n%s", tt.notWant, out)
			}
		})
	}
}

func TestBadgeCoversUnknown(t *testing.T) {
	t.Parallel()
	if got := badge(model.Status("exploded")); !strings.Contains(got, "? unknown") {
		t.Fatalf("badge = %q", got)
	}
	for _, s := range model.Statuses {
		if strings.Contains(badge(s), "?") {
			t.Fatalf("badge(%s) fell back to unknown glyph", s)
		}
	}
}
