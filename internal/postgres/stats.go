package postgres

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

type dbStatsKey struct{}

type httpMethodKey struct{}

// ReqDBStats accumulates query statistics for one HTTP request.
type ReqDBStats struct {
	mu            sync.Mutex
	QueryCount    int
	TotalDuration time.Duration
	ErrorCount    int
}

// AddQuery records a single query execution.
func (s *ReqDBStats) AddQuery(dur time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.QueryCount++
	s.TotalDuration += dur
	if err != nil {
		s.ErrorCount++
	}
}

// Snapshot returns the current counters under the lock.
func (s *ReqDBStats) Snapshot() (count int, total time.Duration, errs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.QueryCount, s.TotalDuration, s.ErrorCount
}

// NewReqDBStatsContext returns a context carrying an empty ReqDBStats.
func NewReqDBStatsContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, dbStatsKey{}, &ReqDBStats{})
}

// ReqDBStatsFromContext extracts the ReqDBStats, if present.
func ReqDBStatsFromContext(ctx context.Context) (*ReqDBStats, bool) {
	s, ok := ctx.Value(dbStatsKey{}).(*ReqDBStats)
	return s, ok
}

// WithHTTPMethod stores the HTTP method for query metric labels.
func WithHTTPMethod(ctx context.Context, method string) context.Context {
	if method == "" {
		return ctx
	}
	return context.WithValue(ctx, httpMethodKey{}, method)
}

func httpMethodFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(httpMethodKey{}).(string); ok {
		return v
	}
	return ""
}

// Middleware attaches per-request DB stats and the HTTP method to the request
// context, and logs a summary line when the request issued any queries.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithHTTPMethod(NewReqDBStatsContext(r.Context()), r.Method)
		next.ServeHTTP(w, r.WithContext(ctx))

		s, _ := ReqDBStatsFromContext(ctx)
		count, total, errs := s.Snapshot()
		if count == 0 {
			return
		}
		log.FromContext(ctx).Info(ctx, "request db summary",
			"db.queries", count,
			"db.errors", errs,
			"db.total_duration", total.Seconds(),
			"http.path", r.URL.Path,
		)
	})
}
