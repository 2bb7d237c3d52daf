package postgres

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
)

// storePkgPrefix identifies frames inside our own store packages so the
// handler attribution skips past them.
const storePkgPrefix = "github.com/linnemanlabs/symcheck/internal/assess/pgstore."

type queryStartKey struct{}

// queryStart is stashed in the context between TraceQueryStart and TraceQueryEnd.
type queryStart struct {
	sql     string
	nargs   int
	at      time.Time
	caller  string
	handler string
}

// loggingTracer wraps another pgx.QueryTracer (otelpgx) and adds a structured
// log line, request stats, and the observer hook for every query.
type loggingTracer struct {
	inner pgx.QueryTracer
}

func wrapQueryTracer(inner pgx.QueryTracer) pgx.QueryTracer {
	return loggingTracer{inner: inner}
}

func (t loggingTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	qs := queryStart{
		sql:   data.SQL,
		nargs: len(data.Args),
		at:    time.Now(),
	}
	qs.caller, qs.handler = findDBCallerAndHandler()

	if t.inner != nil {
		ctx = t.inner.TraceQueryStart(ctx, conn, data)
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		if qs.caller != "" {
			span.SetAttributes(attribute.String("db.caller", qs.caller))
		}
		if qs.handler != "" {
			span.SetAttributes(attribute.String("db.handler", qs.handler))
		}
	}

	return context.WithValue(ctx, queryStartKey{}, qs)
}

func (t loggingTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	// inner first so the span closes with the right end time
	if t.inner != nil {
		t.inner.TraceQueryEnd(ctx, conn, data)
	}

	qs, _ := ctx.Value(queryStartKey{}).(queryStart)
	var dur time.Duration
	if !qs.at.IsZero() {
		dur = time.Since(qs.at)
	}

	if s, ok := ReqDBStatsFromContext(ctx); ok {
		s.AddQuery(dur, data.Err)
	}
	observe(ctx, dur, data.Err)

	fields := queryFields(qs, dur, data)
	L := log.FromContext(ctx)
	if data.Err != nil {
		L.Error(ctx, data.Err, "db query failed", fields...)
		return
	}
	L.Info(ctx, "db query", fields...)
}

func queryFields(qs queryStart, dur time.Duration, data pgx.TraceQueryEndData) []any {
	fields := []any{
		"db.statement", compactSQL(qs.sql),
		"db.arg_count", qs.nargs,
		"db.duration", dur.Seconds(),
	}

	if tag := strings.TrimSpace(data.CommandTag.String()); tag != "" {
		if op, _, _ := strings.Cut(tag, " "); op != "" {
			fields = append(fields, "db.operation.name", strings.ToUpper(op))
		}
		fields = append(fields, "pg.command_tag", tag, "db.rows", data.CommandTag.RowsAffected())
	}
	if qs.caller != "" {
		fields = append(fields, "db.caller", qs.caller)
	}
	if qs.handler != "" {
		fields = append(fields, "db.handler", qs.handler)
	}

	var pgErr *pgconn.PgError
	if errors.As(data.Err, &pgErr) {
		fields = append(fields,
			"db.error_code", pgErr.Code,
			"db.error_constraint", pgErr.ConstraintName,
		)
	}
	return fields
}

// compactSQL collapses whitespace so multi-line statements log on one line.
func compactSQL(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}

// findDBCallerAndHandler walks the stack to find the function issuing the
// query and the first meaningful frame above the store package.
func findDBCallerAndHandler() (caller, handler string) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	for {
		fr, more := frames.Next()
		fn := fr.Function
		if !isTracerNoise(fn) {
			switch {
			case caller == "":
				caller = shortenFuncName(fn)
			case !strings.HasPrefix(fn, storePkgPrefix):
				return caller, shortenFuncName(fn)
			}
		}
		if !more {
			return caller, handler
		}
	}
}

func isTracerNoise(fn string) bool {
	return fn == "" ||
		strings.HasPrefix(fn, "runtime.") ||
		strings.Contains(fn, "github.com/jackc/pgx/v5") ||
		strings.Contains(fn, "github.com/exaring/otelpgx") ||
		strings.Contains(fn, "loggingTracer.TraceQuery") ||
		strings.Contains(fn, "postgres.findDBCallerAndHandler")
}

// shortenFuncName trims the package path, keeping receiver and method.
func shortenFuncName(fn string) string {
	if i := strings.LastIndex(fn, "/"); i >= 0 && i+1 < len(fn) {
		fn = fn[i+1:]
	}
	if dot := strings.Index(fn, "."); dot >= 0 && dot+1 < len(fn) {
		fn = fn[dot+1:]
	}
	return fn
}
