// Package settings holds the editable settings screen state: the backend
// configuration, a settings editor and a global variables editor.
package settings

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"crmintctl/internal/editor"
	"crmintctl/internal/eventbus"
	"crmintctl/internal/model"
	"crmintctl/internal/storage"
	"crmintctl/pkg/logx"
)

// ErrResetInProgress is returned when a reset is requested while one runs.
var ErrResetInProgress = errors.New("reset already in progress")

// Backend is the subset of the backend API the session needs.
type Backend interface {
	GetConfigData(ctx context.Context) (model.Configuration, error)
	SaveSettings(ctx context.Context, settings []model.Setting) error
	SaveVariables(ctx context.Context, vars []model.Param) error
	ResetStatusesAndClearTasks(ctx context.Context) error
}

type Options struct {
	Actor string
	Bus   eventbus.Bus
	Audit storage.Store
	Log   logx.Logger
}

type Session struct {
	api   Backend
	actor string
	bus   eventbus.Bus
	audit storage.Store
	log   logx.Logger

	mu  sync.RWMutex
	cfg model.Configuration

	settings  *editor.List[model.Setting]
	variables *editor.List[model.Param]

	resetting atomic.Bool
}

func New(api Backend, opt Options) *Session {
	if opt.Log.IsZero() {
		opt.Log = logx.Nop()
	}
	if opt.Bus == nil {
		opt.Bus = eventbus.Nop{}
	}
	if opt.Audit == nil {
		opt.Audit, _ = storage.Open(storage.Config{}, opt.Log)
	}
	return &Session{
		api:      api,
		actor:    opt.Actor,
		bus:      opt.Bus,
		audit:    opt.Audit,
		log:      opt.Log.With(logx.String("comp", "settings")),
		cfg:      model.DefaultConfiguration(),
		settings: editor.New(editor.Options[model.Setting]{}),
		variables: editor.New(editor.Options[model.Param]{
			New:         model.NewVariable,
			ValidateNew: func(p model.Param) error { return model.CheckName(p.Name) },
		}),
	}
}

// Load fetches the configuration and replaces both editors. On failure the
// error is logged and returned, and the previous state (the defaults before
// the first successful load) is kept.
func (s *Session) Load(ctx context.Context) error {
	cfg, err := s.api.GetConfigData(ctx)
	if err != nil {
		s.log.Error("load configuration failed", logx.Err(err))
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.settings.Load(cfg.Settings)
	s.variables.Load(cfg.Variables)
	s.log.Debug("configuration loaded",
		logx.Int("settings", len(cfg.Settings)),
		logx.Int("variables", len(cfg.Variables)),
	)
	return nil
}

// Configuration returns the last loaded configuration with the lists last
// saved successfully.
func (s *Session) Configuration() model.Configuration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Session) Settings() *editor.List[model.Setting] { return s.settings }

func (s *Session) Variables() *editor.List[model.Param] { return s.variables }

// SaveSettings persists the settings editor asynchronously.
func (s *Session) SaveSettings(ctx context.Context) <-chan error {
	return s.settings.Save(ctx, func(ctx context.Context, recs []model.Setting) error {
		start := time.Now()
		err := s.api.SaveSettings(ctx, recs)
		if err == nil {
			s.mu.Lock()
			s.cfg.Settings = slices.Clone(recs)
			s.mu.Unlock()
		}
		s.finish(ctx, storage.ActionSaveSettings, eventbus.SettingsSaved, "", start, err)
		return err
	})
}

// SaveVariables persists the variables editor asynchronously.
func (s *Session) SaveVariables(ctx context.Context) <-chan error {
	return s.variables.Save(ctx, func(ctx context.Context, recs []model.Param) error {
		start := time.Now()
		err := s.api.SaveVariables(ctx, recs)
		if err == nil {
			s.mu.Lock()
			s.cfg.Variables = slices.Clone(recs)
			s.mu.Unlock()
		}
		s.finish(ctx, storage.ActionSaveVariables, eventbus.VariablesSaved, "", start, err)
		return err
	})
}

// IsResetting reports whether a status reset is running.
func (s *Session) IsResetting() bool { return s.resetting.Load() }

// ResetStatusesAndClearTasks asks the backend to reset every pipeline status
// and drop queued tasks. The in-progress flag is cleared on both outcomes.
func (s *Session) ResetStatusesAndClearTasks(ctx context.Context) error {
	if !s.resetting.CompareAndSwap(false, true) {
		return ErrResetInProgress
	}
	defer s.resetting.Store(false)

	start := time.Now()
	err := s.api.ResetStatusesAndClearTasks(ctx)
	s.finish(ctx, storage.ActionResetStatuses, eventbus.StatusesReset, "", start, err)
	return err
}

func (s *Session) finish(ctx context.Context, action, event, target string, start time.Time, err error) {
	took := time.Since(start)
	if err != nil {
		s.log.Error(action+" failed", logx.Err(err), logx.Duration("took", took))
	} else {
		s.log.Info(action+" ok", logx.Duration("took", took))
	}
	s.bus.Publish(eventbus.Event{Type: event, Err: err})
	storage.Record(context.WithoutCancel(ctx), s.audit, s.log, storage.AuditEntry{
		At:     start,
		Actor:  s.actor,
		Action: action,
		Target: target,
	}, took, err)
}
