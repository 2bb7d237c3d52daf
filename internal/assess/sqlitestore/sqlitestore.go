// Package sqlitestore provides a SQLite implementation of assess.Store for
// single-binary deployments.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/linnemanlabs/symcheck/internal/assess"
	"github.com/linnemanlabs/symcheck/internal/classify"
	"github.com/linnemanlabs/symcheck/internal/triage"
)

// fixed width so created_at sorts lexically
const timeFormat = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS assessments (
	id               TEXT PRIMARY KEY,
	source           TEXT NOT NULL,
	symptoms         TEXT NOT NULL,
	age              INTEGER,
	gender           TEXT,
	language         TEXT NOT NULL DEFAULT '',
	predictions      TEXT NOT NULL DEFAULT '[]',
	next_step        TEXT NOT NULL,
	matched_rule     TEXT NOT NULL,
	classifier_error TEXT NOT NULL DEFAULT '',
	created_at       TEXT NOT NULL,
	duration_s       REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_assessments_created_at ON assessments(created_at DESC);
`

const assessmentColumns = `id, source, symptoms, age, gender, language, predictions,
	next_step, matched_rule, classifier_error, created_at, duration_s`

// Store persists assessments in a SQLite database file.
type Store struct {
	db *sql.DB
}

// New opens or creates the database at path and applies the schema.
func New(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get retrieves an assessment by ID.
func (s *Store) Get(ctx context.Context, id string) (*assess.Assessment, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assessmentColumns+` FROM assessments WHERE id = ?`, id)
	a, err := scanAssessment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return a, true, nil
}

// Put inserts or replaces an assessment.
func (s *Store) Put(ctx context.Context, a *assess.Assessment) error {
	preds := a.Predictions
	if preds == nil {
		preds = []classify.Prediction{}
	}
	predsJSON, err := json.Marshal(preds)
	if err != nil {
		return fmt.Errorf("marshal predictions: %w", err)
	}

	var age sql.NullInt64
	if a.Age != nil {
		age = sql.NullInt64{Int64: int64(*a.Age), Valid: true}
	}
	var gender sql.NullString
	if a.Gender != nil {
		gender = sql.NullString{String: *a.Gender, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO assessments (`+assessmentColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			source           = excluded.source,
			symptoms         = excluded.symptoms,
			age              = excluded.age,
			gender           = excluded.gender,
			language         = excluded.language,
			predictions      = excluded.predictions,
			next_step        = excluded.next_step,
			matched_rule     = excluded.matched_rule,
			classifier_error = excluded.classifier_error,
			duration_s       = excluded.duration_s`,
		a.ID, string(a.Source), a.Symptoms, age, gender, a.Language, string(predsJSON),
		string(a.NextStep), a.MatchedRule, a.ClassifierError,
		a.CreatedAt.UTC().Format(timeFormat), a.Duration,
	)
	if err != nil {
		return fmt.Errorf("upsert assessment: %w", err)
	}
	return nil
}

// List returns up to limit assessments, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*assess.Assessment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+assessmentColumns+` FROM assessments ORDER BY created_at DESC, id DESC LIMIT ?`,
		assess.ClampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query assessments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*assess.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assessments: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row scanner) (*assess.Assessment, error) {
	var (
		a         assess.Assessment
		source    string
		nextStep  string
		predsJSON string
		createdAt string
		age       sql.NullInt64
		gender    sql.NullString
	)
	err := row.Scan(
		&a.ID, &source, &a.Symptoms, &age, &gender, &a.Language, &predsJSON,
		&nextStep, &a.MatchedRule, &a.ClassifierError, &createdAt, &a.Duration,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	a.Source = assess.Source(source)
	a.NextStep = triage.Level(nextStep)
	if age.Valid {
		v := int(age.Int64)
		a.Age = &v
	}
	if gender.Valid {
		g := gender.String
		a.Gender = &g
	}
	if a.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if err := json.Unmarshal([]byte(predsJSON), &a.Predictions); err != nil {
		return nil, fmt.Errorf("unmarshal predictions: %w", err)
	}
	return &a, nil
}
