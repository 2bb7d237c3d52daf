package assessapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/symcheck/internal/assess"
	"github.com/linnemanlabs/symcheck/internal/classify"
	"github.com/linnemanlabs/symcheck/internal/transcribe"
	"github.com/linnemanlabs/symcheck/internal/triage"
)

type analyzeResponse struct {
	ID              string                `json:"id"`
	Predictions     []classify.Prediction `json:"predictions"`
	NextStep        triage.Level          `json:"next_step"`
	MatchedRule     string                `json:"matched_rule"`
	ClassifierError string                `json:"classifier_error,omitempty"`
}

type voiceResponse struct {
	analyzeResponse
	Transcription string `json:"transcription"`
	Language      string `json:"language"`
}

func newAnalyzeResponse(a *assess.Assessment) analyzeResponse {
	return analyzeResponse{
		ID:              a.ID,
		Predictions:     a.Predictions,
		NextStep:        a.NextStep,
		MatchedRule:     a.MatchedRule,
		ClassifierError: a.ClassifierError,
	}
}

func (a *API) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req assess.Request
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := a.svc.Analyze(r.Context(), &req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	annotateSpan(r, res)
	writeJSON(w, http.StatusOK, newAnalyzeResponse(res))
}

func (a *API) handleAnalyzeVoice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var age *int
	if s := q.Get("age"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "age must be an integer")
			return
		}
		age = &v
	}
	var gender *string
	if s := q.Get("gender"); s != "" {
		gender = &s
	}

	audio, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxAudioBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "audio too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read audio")
		return
	}

	res, err := a.svc.AnalyzeVoice(r.Context(), audio, r.Header.Get("Content-Type"), q.Get("language"), age, gender)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	annotateSpan(r, res)
	writeJSON(w, http.StatusOK, voiceResponse{
		analyzeResponse: newAnalyzeResponse(res),
		Transcription:   res.Symptoms,
		Language:        res.Language,
	})
}

// writeServiceError maps service errors to HTTP status codes.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, assess.ErrInvalidAge),
		errors.Is(err, assess.ErrSymptomsTooLong),
		errors.Is(err, transcribe.ErrEmptyAudio),
		errors.Is(err, transcribe.ErrUnsupportedLanguage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, assess.ErrTranscriberUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, assess.ErrTranscriptionFailed):
		a.logger.Error(r.Context(), err, "transcription failed")
		writeError(w, http.StatusBadGateway, "transcription failed")
	default:
		a.logger.Error(r.Context(), err, "assessment failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func annotateSpan(r *http.Request, res *assess.Assessment) {
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("symcheck.assessment.id", res.ID),
		attribute.String("symcheck.next_step", string(res.NextStep)),
		attribute.String("symcheck.matched_rule", res.MatchedRule),
	)
}
