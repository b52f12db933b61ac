package storage

import (
	"context"
	"errors"
	"time"

	"crmintctl/pkg/logx"
)

var ErrDisabled = errors.New("storage disabled")

type Config struct {
	Driver string
	// Path is the file prefix (file driver) or database file (sqlite).
	Path string
	// DSN is the postgres connection string.
	DSN         string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry records an operator action.
type AuditEntry struct {
	At     time.Time `json:"at"`
	Actor  string    `json:"actor,omitempty"`
	Action string    `json:"action"`
	Target string    `json:"target,omitempty"`
	OK     bool      `json:"ok"`
	Error  string    `json:"error,omitempty"`
	TookMS int64     `json:"took_ms"`
	Meta   string    `json:"meta,omitempty"`
}

// Audit actions.
const (
	ActionSaveSettings  = "settings.save"
	ActionSaveVariables = "variables.save"
	ActionResetStatuses = "statuses.reset"
	ActionStartPipeline = "pipeline.start"
	ActionStopPipeline  = "pipeline.stop"
)

type Store interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	// RecentAudit returns up to limit entries, newest first.
	RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error)
	Close() error
}

type disabled struct{}

func (disabled) AppendAudit(context.Context, AuditEntry) error { return ErrDisabled }

func (disabled) RecentAudit(context.Context, int) ([]AuditEntry, error) { return nil, ErrDisabled }

func (disabled) Close() error { return nil }

// Record writes an audit entry for an action's outcome. A disabled store is
// not an error; other append failures are logged and swallowed.
func Record(ctx context.Context, st Store, log logx.Logger, e AuditEntry, took time.Duration, err error) {
	if st == nil {
		return
	}
	e.OK = err == nil
	if err != nil {
		e.Error = err.Error()
	}
	e.TookMS = took.Milliseconds()
	if aerr := st.AppendAudit(ctx, e); aerr != nil && !errors.Is(aerr, ErrDisabled) {
		log.Warn("audit append failed", logx.Err(aerr), logx.String("action", e.Action))
	}
}
