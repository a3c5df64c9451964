// Package store persists companies, audit submissions, reports and user
// interactions through sqlx. SQLite is the default driver; Postgres is
// reachable through pgx's database/sql driver.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

const schema = `
CREATE TABLE IF NOT EXISTS companies (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	industry             TEXT NOT NULL DEFAULT '',
	employee_count_range TEXT NOT NULL DEFAULT '',
	annual_revenue_range TEXT NOT NULL DEFAULT '',
	website              TEXT NOT NULL DEFAULT '',
	created_at           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_companies_name ON companies(name);

CREATE TABLE IF NOT EXISTS audit_submissions (
	id                    TEXT PRIMARY KEY,
	company_id            TEXT NOT NULL REFERENCES companies(id),
	email                 TEXT NOT NULL,
	company_name          TEXT NOT NULL DEFAULT '',
	correlation_id        TEXT NOT NULL DEFAULT '',
	form_data             TEXT NOT NULL DEFAULT '{}',
	submission_status     TEXT NOT NULL DEFAULT 'in_progress',
	completion_percentage INTEGER NOT NULL DEFAULT 0,
	calculated_metrics    TEXT NOT NULL DEFAULT '{}',
	created_at            TEXT NOT NULL,
	completed_at          TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_submissions_correlation ON audit_submissions(correlation_id);
CREATE INDEX IF NOT EXISTS idx_submissions_email_company ON audit_submissions(email, company_name);
CREATE INDEX IF NOT EXISTS idx_submissions_company_created ON audit_submissions(company_name, created_at);

CREATE TABLE IF NOT EXISTS audit_reports (
	id            TEXT PRIMARY KEY,
	submission_id TEXT NOT NULL REFERENCES audit_submissions(id),
	report_type   TEXT NOT NULL DEFAULT 'comprehensive',
	report_data   TEXT NOT NULL DEFAULT '{}',
	pdf_url       TEXT NOT NULL DEFAULT '',
	pdf_filename  TEXT NOT NULL DEFAULT '',
	pdf_file_size BIGINT NOT NULL DEFAULT 0,
	pdf_stored_at TEXT NOT NULL DEFAULT '',
	generated_at  TEXT NOT NULL,
	sent_at       TEXT NOT NULL DEFAULT '',
	opened_at     TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_reports_submission ON audit_reports(submission_id);

CREATE TABLE IF NOT EXISTS user_interactions (
	id               TEXT PRIMARY KEY,
	submission_id    TEXT NOT NULL REFERENCES audit_submissions(id),
	interaction_type TEXT NOT NULL,
	step_name        TEXT NOT NULL DEFAULT '',
	time_spent       BIGINT NOT NULL DEFAULT 0,
	interaction_data TEXT NOT NULL DEFAULT '{}',
	created_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_interactions_submission ON user_interactions(submission_id)
`

type DB struct {
	db  *sqlx.DB
	now func() time.Time
}

type Option func(*DB)

func WithClock(now func() time.Time) Option {
	return func(d *DB) { d.now = now }
}

// Open connects with driver "sqlite" (dsn is a file path) or "pgx" (dsn is a
// Postgres URL) and applies the schema.
func Open(driver, dsn string, opts ...Option) (*DB, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch driver {
	case "sqlite":
		db, err = sqlx.Open("sqlite", dsn+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
		if err == nil {
			db.SetMaxOpenConns(1)
		}
	case "pgx":
		db, err = sqlx.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	d := &DB{db: db, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Ping() error {
	return d.db.Ping()
}

func (d *DB) q(query string) string {
	return d.db.Rebind(query)
}

// Times are stored as fixed-width UTC text so that string comparison orders
// them correctly on every driver.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func timeToString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func stringToTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func stringToTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t := stringToTime(s)
	return &t
}

func timePtrToString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return timeToString(*t)
}

func marshalJSON(v map[string]any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalJSON(s string) map[string]any {
	out := map[string]any{}
	if s == "" {
		return out
	}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
