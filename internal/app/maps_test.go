package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"crmintctl/internal/alerts"
	"crmintctl/internal/config"
	"crmintctl/internal/tasksinfo"
)

func TestMapPoller(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		cfg      config.Config
		interval time.Duration
		zone     string
		wantErr  bool
	}{
		{"defaults", config.Config{}, tasksinfo.DefaultInterval, "Local", false},
		{"explicit", config.Config{Poller: config.PollerConfig{Interval: "1m"}, Display: config.DisplayConfig{Timezone: " Asia/Jakarta "}}, time.Minute, "Asia/Jakarta", false},
		{"bad", config.Config{Poller: config.PollerConfig{Interval: "often"}}, 0, "", true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := mapPoller(&tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("mapPoller: %v", err)
			}
			if got.Interval != tt.interval || got.TimeZone != tt.zone {
				t.Fatalf("got %+v", got)
			}
		})
	}
}

func TestMapAlertsAndDebugDefaults(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	ac, err := mapAlerts(cfg)
	if err != nil {
		t.Fatalf("mapAlerts: %v", err)
	}
	if ac.StaleAfter != alerts.DefaultStaleAfter || ac.Cooldown != alerts.DefaultCooldown {
		t.Fatalf("alerts = %+v", ac)
	}
	dc, err := mapDebug(cfg)
	if err != nil {
		t.Fatalf("mapDebug: %v", err)
	}
	if dc.Enabled || dc.IdleTimeout != time.Minute {
		t.Fatalf("debug = %+v", dc)
	}
	if sc, err := mapStorage(cfg); err != nil || sc.Driver != "" {
		t.Fatalf("storage = %+v, %v", sc, err)
	}
}

func TestNewAppOneShot(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "crmintctl.yaml")
	body := "backend:\n  base_url: http://127.0.0.1:1\n  actor: ops\nlogging:\n  level: error\ndisplay:\n  timezone: UTC\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	a, err := NewApp(path)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	if a.Actor() != "ops" || a.TimeZone() != "UTC" || a.Location() != time.UTC {
		t.Fatalf("actor=%q zone=%q loc=%v", a.Actor(), a.TimeZone(), a.Location())
	}
	if got := a.Session().Configuration().SAEmail; got != "Unknown" {
		t.Fatalf("SAEmail before load = %q", got)
	}
	// Never started: Stop only releases resources.
	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "crmintctl.json")
	if err := os.WriteFile(path, []byte(`{"backend":{"base_url":"ftp://x"}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewApp(path); err == nil {
		t.Fatal("expected error")
	}
}
