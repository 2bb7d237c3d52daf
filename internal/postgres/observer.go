package postgres

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
)

var queryObserver atomic.Pointer[observerHolder]

type observerHolder struct{ QueryObserver }

// QueryObserver receives the duration of every query. main wires it to a
// Prometheus histogram.
type QueryObserver interface {
	ObserveQuery(ctx context.Context, method, route, outcome string, dur time.Duration)
}

// QueryObserverFunc adapts a plain function to QueryObserver.
type QueryObserverFunc func(ctx context.Context, method, route, outcome string, dur time.Duration)

// ObserveQuery implements QueryObserver.
func (f QueryObserverFunc) ObserveQuery(ctx context.Context, method, route, outcome string, dur time.Duration) {
	f(ctx, method, route, outcome, dur)
}

// SetQueryObserver replaces the process-wide observer. Passing nil disables it.
func SetQueryObserver(o QueryObserver) {
	if o == nil {
		queryObserver.Store(nil)
		return
	}
	queryObserver.Store(&observerHolder{QueryObserver: o})
}

func currentObserver() QueryObserver {
	h := queryObserver.Load()
	if h == nil {
		return nil
	}
	return h.QueryObserver
}

// observe reports a finished query with method/route labels taken from the
// request context, falling back to placeholders for background work.
func observe(ctx context.Context, dur time.Duration, err error) {
	obs := currentObserver()
	if obs == nil || dur <= 0 {
		return
	}
	method := httpMethodFromContext(ctx)
	if method == "" {
		method = "UNKNOWN"
	}
	route := ""
	if rc := chi.RouteContext(ctx); rc != nil {
		route = rc.RoutePattern()
	}
	if route == "" {
		route = "unknown"
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	obs.ObserveQuery(ctx, method, route, outcome, dur)
}
