// Package pgstore provides a PostgreSQL implementation of assess.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/linnemanlabs/symcheck/internal/assess"
	"github.com/linnemanlabs/symcheck/internal/classify"
	"github.com/linnemanlabs/symcheck/internal/triage"
)

const tracerName = "github.com/linnemanlabs/symcheck/internal/assess/pgstore"

//go:embed schema.sql
var schema string

// DB is the subset of *pgxpool.Pool used by the store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists assessments in PostgreSQL.
type Store struct {
	pool DB
}

// New applies the schema on the given pool and returns a ready Store.
// The caller owns the pool.
func New(ctx context.Context, pool DB) (*Store, error) {
	if pool == nil {
		return nil, errors.New("pgstore: pool is required")
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const assessmentColumns = `id, source, symptoms, age, gender, language, predictions,
	next_step, matched_rule, classifier_error, created_at, duration_s`

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Get retrieves an assessment by ID.
func (s *Store) Get(ctx context.Context, id string) (*assess.Assessment, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.Get", "SELECT")
	defer span.End()

	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE id = $1`
	a, err := scanAssessment(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fail(span, err)
	}
	return a, true, nil
}

// Put inserts or updates an assessment.
func (s *Store) Put(ctx context.Context, a *assess.Assessment) error {
	ctx, span := startSpan(ctx, "pgstore.Put", "UPSERT")
	defer span.End()

	predsJSON, err := json.Marshal(predictionsOrEmpty(a.Predictions))
	if err != nil {
		return fail(span, fmt.Errorf("marshal predictions: %w", err))
	}

	query := `INSERT INTO assessments (` + assessmentColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	ON CONFLICT (id) DO UPDATE SET
		source           = EXCLUDED.source,
		symptoms         = EXCLUDED.symptoms,
		age              = EXCLUDED.age,
		gender           = EXCLUDED.gender,
		language         = EXCLUDED.language,
		predictions      = EXCLUDED.predictions,
		next_step        = EXCLUDED.next_step,
		matched_rule     = EXCLUDED.matched_rule,
		classifier_error = EXCLUDED.classifier_error,
		duration_s       = EXCLUDED.duration_s`

	_, err = s.pool.Exec(ctx, query,
		a.ID, string(a.Source), a.Symptoms, a.Age, a.Gender, a.Language, predsJSON,
		string(a.NextStep), a.MatchedRule, a.ClassifierError, a.CreatedAt, a.Duration,
	)
	if err != nil {
		return fail(span, fmt.Errorf("upsert assessment: %w", err))
	}
	return nil
}

// List returns up to limit assessments, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*assess.Assessment, error) {
	ctx, span := startSpan(ctx, "pgstore.List", "SELECT")
	defer span.End()

	query := `SELECT ` + assessmentColumns + ` FROM assessments ORDER BY created_at DESC, id DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, query, assess.ClampLimit(limit))
	if err != nil {
		return nil, fail(span, fmt.Errorf("query assessments: %w", err))
	}
	defer rows.Close()

	var out []*assess.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fail(span, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate assessments: %w", err))
	}
	return out, nil
}

// scanAssessment scans a single row. pgx.ErrNoRows is returned unwrapped.
func scanAssessment(row pgx.Row) (*assess.Assessment, error) {
	var (
		a         assess.Assessment
		source    string
		nextStep  string
		predsJSON []byte
	)

	err := row.Scan(
		&a.ID, &source, &a.Symptoms, &a.Age, &a.Gender, &a.Language, &predsJSON,
		&nextStep, &a.MatchedRule, &a.ClassifierError, &a.CreatedAt, &a.Duration,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	a.Source = assess.Source(source)
	a.NextStep = triage.Level(nextStep)

	if err := json.Unmarshal(predsJSON, &a.Predictions); err != nil {
		return nil, fmt.Errorf("unmarshal predictions: %w", err)
	}
	return &a, nil
}

func predictionsOrEmpty(p []classify.Prediction) []classify.Prediction {
	if p == nil {
		return []classify.Prediction{}
	}
	return p
}
