package settings

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"crmintctl/internal/eventbus"
	"crmintctl/internal/model"
	"crmintctl/internal/storage"
	"crmintctl/pkg/logx"
)

type fakeBackend struct {
	mu        sync.Mutex
	cfg       model.Configuration
	loadErr   error
	saveErr   error
	resetErr  error
	resetGate chan struct{}

	savedSettings []model.Setting
	savedVars     []model.Param
	resets        int
}

func (f *fakeBackend) GetConfigData(context.Context) (model.Configuration, error) {
	if f.loadErr != nil {
		return model.DefaultConfiguration(), f.loadErr
	}
	return f.cfg, nil
}

func (f *fakeBackend) SaveSettings(_ context.Context, s []model.Setting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.savedSettings = s
	return f.saveErr
}

func (f *fakeBackend) SaveVariables(_ context.Context, v []model.Param) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.savedVars = v
	return f.saveErr
}

func (f *fakeBackend) ResetStatusesAndClearTasks(context.Context) error {
	if f.resetGate != nil {
		<-f.resetGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return f.resetErr
}

func sampleConfig() model.Configuration {
	return model.Configuration{
		SAEmail:  "sa@project.iam",
		Settings: []model.Setting{{Name: "client_id", Value: "abc"}},
		Variables: []model.Param{
			{Name: "dataset", Type: "text", Value: "prod"},
			{Name: "table", Type: "text", Value: "events"},
		},
	}
}

func TestLoadFailureKeepsDefaults(t *testing.T) {
	t.Parallel()
	s := New(&fakeBackend{loadErr: errors.New("unreachable")}, Options{Log: logx.Nop()})
	if err := s.Load(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
	cfg := s.Configuration()
	if cfg.SAEmail != "Unknown" || len(cfg.Settings) != 0 || s.Variables().Len() != 0 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestSaveVariablesAfterRemove(t *testing.T) {
	t.Parallel()
	be := &fakeBackend{cfg: sampleConfig()}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4, eventbus.VariablesSaved)
	defer unsub()

	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "audit")}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer st.Close()

	s := New(be, Options{Actor: "ops", Bus: bus, Audit: st})
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	vars := s.Variables()
	_ = vars.Update(1, func(p *model.Param) { p.Value = "clicks" })
	if err := vars.RemoveAt(0); err != nil {
		t.Fatalf("RemoveAt: %v", err)
	}
	i := vars.Add()
	_ = vars.Update(i, func(p *model.Param) { p.Name = "region"; p.Value = "eu" })

	if err := <-s.SaveVariables(context.Background()); err != nil {
		t.Fatalf("SaveVariables: %v", err)
	}
	want := []model.Param{
		{Name: "table", Type: "text", Value: "clicks"},
		{Name: "region", Type: "text", Value: "eu"},
	}
	be.mu.Lock()
	got := be.savedVars
	be.mu.Unlock()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("saved = %+v, want %+v", got, want)
	}

	select {
	case e := <-events:
		if e.Err != nil {
			t.Fatalf("event err = %v", e.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("no variables.saved event")
	}

	entries, err := st.RecentAudit(context.Background(), 10)
	if err != nil || len(entries) != 1 {
		t.Fatalf("audit = %+v, %v", entries, err)
	}
	if entries[0].Action != storage.ActionSaveVariables || !entries[0].OK || entries[0].Actor != "ops" {
		t.Fatalf("audit entry = %+v", entries[0])
	}
}

func TestSaveVariablesRejectsBadName(t *testing.T) {
	t.Parallel()
	be := &fakeBackend{cfg: sampleConfig()}
	s := New(be, Options{})
	_ = s.Load(context.Background())
	i := s.Variables().Add()
	_ = s.Variables().Update(i, func(p *model.Param) { p.Name = "has space" })
	if err := <-s.SaveVariables(context.Background()); !errors.Is(err, model.ErrInvalidName) {
		t.Fatalf("err = %v, want ErrInvalidName", err)
	}
	if be.savedVars != nil {
		t.Fatal("backend must not be called")
	}
}

func TestSaveSettingsError(t *testing.T) {
	t.Parallel()
	be := &fakeBackend{cfg: sampleConfig(), saveErr: errors.New("forbidden")}
	s := New(be, Options{})
	_ = s.Load(context.Background())
	_ = s.Settings().Update(0, func(st *model.Setting) { st.Value = "xyz" })
	if err := <-s.SaveSettings(context.Background()); err == nil || err.Error() != "forbidden" {
		t.Fatalf("err = %v", err)
	}
	if be.savedSettings[0].Value != "xyz" {
		t.Fatalf("saved = %+v", be.savedSettings)
	}
	if got := s.Configuration().Settings[0].Value; got != "abc" {
		t.Fatalf("Configuration after failed save = %q, want abc", got)
	}
}

func TestSaveUpdatesConfiguration(t *testing.T) {
	t.Parallel()
	be := &fakeBackend{cfg: sampleConfig()}
	s := New(be, Options{})
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	_ = s.Settings().Update(0, func(st *model.Setting) { st.Value = "xyz" })
	if err := <-s.SaveSettings(context.Background()); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	if err := s.Variables().RemoveAt(0); err != nil {
		t.Fatalf("RemoveAt: %v", err)
	}
	if err := <-s.SaveVariables(context.Background()); err != nil {
		t.Fatalf("SaveVariables: %v", err)
	}

	cfg := s.Configuration()
	if len(cfg.Settings) != 1 || cfg.Settings[0].Value != "xyz" {
		t.Fatalf("Settings = %+v", cfg.Settings)
	}
	if len(cfg.Variables) != 1 || cfg.Variables[0].Name != "table" {
		t.Fatalf("Variables = %+v", cfg.Variables)
	}
	if cfg.SAEmail != "sa@project.iam" {
		t.Fatalf("SAEmail = %q", cfg.SAEmail)
	}
}

func TestResetFlag(t *testing.T) {
	t.Parallel()
	gate := make(chan struct{})
	be := &fakeBackend{resetGate: gate, resetErr: errors.New("500")}
	s := New(be, Options{})

	done := make(chan error, 1)
	go func() { done <- s.ResetStatusesAndClearTasks(context.Background()) }()

	deadline := time.Now().Add(time.Second)
	for !s.IsResetting() {
		if time.Now().After(deadline) {
			t.Fatal("reset flag never set")
		}
		time.Sleep(time.Millisecond)
	}
	if err := s.ResetStatusesAndClearTasks(context.Background()); !errors.Is(err, ErrResetInProgress) {
		t.Fatalf("second reset = %v, want ErrResetInProgress", err)
	}

	close(gate)
	if err := <-done; err == nil {
		t.Fatal("expected backend error")
	}
	if s.IsResetting() {
		t.Fatal("flag must clear on failure")
	}
	if be.resets != 1 {
		t.Fatalf("resets = %d", be.resets)
	}
}
