// Package assessapi exposes the assessment service over HTTP.
package assessapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/httpmw"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/symcheck/internal/assess"
	"github.com/linnemanlabs/symcheck/internal/triage"
)

// maxJSONBody limits JSON request bodies.
const maxJSONBody = 64 << 10

// DefaultMaxAudioBytes limits voice uploads when no limit is configured.
const DefaultMaxAudioBytes = 10 << 20

// AssessService defines the business operations assessapi needs.
type AssessService interface {
	Analyze(ctx context.Context, req *assess.Request) (*assess.Assessment, error)
	AnalyzeVoice(ctx context.Context, audio []byte, contentType, language string, age *int, gender *string) (*assess.Assessment, error)
	Triage(req *assess.Request) triage.Decision
	Rules() ([]triage.Rule, triage.Level)
	Get(ctx context.Context, id string) (*assess.Assessment, bool, error)
	List(ctx context.Context, limit int) ([]*assess.Assessment, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger        log.Logger
	svc           AssessService
	maxAudioBytes int64
}

// New creates a new API handler. A non-positive maxAudioBytes uses DefaultMaxAudioBytes.
func New(logger log.Logger, svc AssessService, maxAudioBytes int64) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("assessment service is required"))
	}
	if maxAudioBytes <= 0 {
		maxAudioBytes = DefaultMaxAudioBytes
	}
	return &API{
		logger:        logger,
		svc:           svc,
		maxAudioBytes: maxAudioBytes,
	}
}

// RegisterRoutes attaches API endpoints to the router. Middlewares wrap
// every /api/v1 route (for example bearer auth).
func (a *API) RegisterRoutes(r chi.Router, middlewares ...func(http.Handler) http.Handler) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewares...)

		r.Group(func(r chi.Router) {
			r.Use(httpmw.MaxBody(maxJSONBody))
			r.Post("/analyze", a.handleAnalyze)
			r.Post("/triage", a.handleTriage)
		})
		// audio bodies are limited in the handler
		r.Post("/analyze/voice", a.handleAnalyzeVoice)

		r.Get("/triage/rules", a.handleRules)
		r.Get("/assessments", a.handleListAssessments)
		r.Get("/assessments/{id}", a.handleGetAssessment)
		r.Get("/languages", a.handleLanguages)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON decodes the request body into v. On failure it writes 413 for
// bodies over the MaxBody limit, 400 otherwise, and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return false
	}
	writeError(w, http.StatusBadRequest, "invalid payload")
	return false
}
