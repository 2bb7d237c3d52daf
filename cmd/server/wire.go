package main

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/symcheck/internal/assess"
	"github.com/linnemanlabs/symcheck/internal/assess/memstore"
	"github.com/linnemanlabs/symcheck/internal/assess/pgstore"
	"github.com/linnemanlabs/symcheck/internal/assess/sqlitestore"
	sc "github.com/linnemanlabs/symcheck/internal/cfg"
	"github.com/linnemanlabs/symcheck/internal/classify"
	"github.com/linnemanlabs/symcheck/internal/postgres"
	"github.com/linnemanlabs/symcheck/internal/transcribe"
	"github.com/linnemanlabs/symcheck/internal/triage"
)

// startupPingTimeout bounds each dependency health check during startup.
const startupPingTimeout = 5 * time.Second

func loadMapper(ctx context.Context, L log.Logger, path string) (*triage.Mapper, error) {
	if path == "" {
		L.Info(ctx, "using built-in triage rules", "rules", len(triage.DefaultRules()))
		return triage.Default(), nil
	}
	m, err := triage.LoadRules(path)
	if err != nil {
		return nil, err
	}
	L.Info(ctx, "loaded triage rules", "path", path, "rules", len(m.Rules()), "fallback", m.Fallback())
	return m, nil
}

func loadTreatments(ctx context.Context, L log.Logger, path string) (*classify.Treatments, error) {
	if path == "" {
		L.Info(ctx, "no treatments file configured, using generic advice")
		return nil, nil
	}
	t, err := classify.LoadTreatments(path)
	if err != nil {
		return nil, err
	}
	L.Info(ctx, "loaded treatments", "path", path, "conditions", t.Len())
	return t, nil
}

// newClassifier builds the inference client, checks it is reachable, and
// wraps it in the prediction cache.
func newClassifier(ctx context.Context, L log.Logger, c *sc.Config) (classify.Classifier, error) {
	client, err := classify.NewClient(c.ClassifierEndpoint, c.ClassifierTimeout)
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, startupPingTimeout)
	defer cancel()
	if err := client.Ping(pctx); err != nil {
		return nil, fmt.Errorf("classifier unreachable at %s: %w", c.ClassifierEndpoint, err)
	}
	cached, err := classify.NewCached(client, c.CacheSize)
	if err != nil {
		return nil, err
	}
	L.Info(ctx, "classifier ready", "endpoint", c.ClassifierEndpoint, "cache_size", c.CacheSize, "top_k", c.TopK)
	return cached, nil
}

// newTranscriber returns nil when voice input is not configured.
func newTranscriber(ctx context.Context, L log.Logger, c *sc.Config) (transcribe.Transcriber, error) {
	if c.TranscriberEndpoint == "" {
		L.Info(ctx, "voice analysis disabled (no transcriber-endpoint configured)")
		return nil, nil
	}
	client, err := transcribe.NewClient(c.TranscriberEndpoint, c.TranscriberTimeout)
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, startupPingTimeout)
	defer cancel()
	if err := client.Ping(pctx); err != nil {
		return nil, fmt.Errorf("transcriber unreachable at %s: %w", c.TranscriberEndpoint, err)
	}
	L.Info(ctx, "transcriber ready", "endpoint", c.TranscriberEndpoint, "languages", len(transcribe.LanguageCodes()))
	return client, nil
}

// openStore picks postgres, sqlite, or memory in that order. The returned
// close func is never nil.
func openStore(ctx context.Context, L log.Logger, c *sc.Config) (assess.Store, func(), error) {
	switch {
	case c.DatabaseURL != "":
		pool, err := postgres.NewPool(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres pool: %w", err)
		}
		st, err := pgstore.New(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("pgstore init: %w", err)
		}
		L.Info(ctx, "using postgres store")
		return st, pool.Close, nil
	case c.SQLitePath != "":
		st, err := sqlitestore.New(ctx, c.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlitestore init: %w", err)
		}
		L.Info(ctx, "using sqlite store", "path", c.SQLitePath)
		return st, func() {
			if err := st.Close(); err != nil {
				L.Error(context.Background(), err, "close sqlite store")
			}
		}, nil
	default:
		L.Info(ctx, "using in-memory store (no database-url or sqlite-path configured)")
		return memstore.New(), func() {}, nil
	}
}
