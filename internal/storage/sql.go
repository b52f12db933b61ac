package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"crmintctl/pkg/logx"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// sqlStore is shared by the sqlite and postgres drivers. Timestamps are
// stored as unix milliseconds so both dialects scan the same way.
type sqlStore struct {
	db      *sql.DB
	log     logx.Logger
	dialect string
}

func (s *sqlStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations/" + s.dialect + ".sql")
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("%s migrate: %w", s.dialect, err)
	}
	return nil
}

// bind rewrites ? placeholders for postgres.
func (s *sqlStore) bind(q string) string {
	if s.dialect != "postgres" {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqlStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	e = normalize(e)
	_, err := s.db.ExecContext(ctx, s.bind(
		`INSERT INTO audit(at_ms, actor, action, target, ok, err, took_ms, meta)
		 VALUES(?,?,?,?,?,?,?,?)`),
		e.At.UnixMilli(), e.Actor, e.Action, e.Target, e.OK, nullStr(e.Error), e.TookMS, nullStr(e.Meta),
	)
	return err
}

func (s *sqlStore) RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, s.bind(
		`SELECT at_ms, actor, action, target, ok, err, took_ms, meta
		 FROM audit ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var (
			e       AuditEntry
			atMS    int64
			errText sql.NullString
			meta    sql.NullString
		)
		if err := rows.Scan(&atMS, &e.Actor, &e.Action, &e.Target, &e.OK, &errText, &e.TookMS, &meta); err != nil {
			return nil, err
		}
		e.At = time.UnixMilli(atMS).UTC()
		e.Error = errText.String
		e.Meta = meta.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func normalize(e AuditEntry) AuditEntry {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	e.At = e.At.UTC()
	return e
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
