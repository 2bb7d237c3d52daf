package assessapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/symcheck/internal/assess"
	"github.com/linnemanlabs/symcheck/internal/transcribe"
)

type listResponse struct {
	Assessments []*assess.Assessment `json:"assessments"`
}

type languagesResponse struct {
	Languages map[string]string `json:"languages"`
	Default   string            `json:"default"`
}

func (a *API) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("symcheck.assessment.id", id))

	res, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get assessment", "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	span.SetAttributes(attribute.String("symcheck.next_step", string(res.NextStep)))
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	var limit int
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = v
	}

	list, err := a.svc.List(r.Context(), limit)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list assessments")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if list == nil {
		list = []*assess.Assessment{}
	}
	writeJSON(w, http.StatusOK, listResponse{Assessments: list})
}

func (a *API) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, languagesResponse{
		Languages: transcribe.SupportedLanguages(),
		Default:   transcribe.DefaultLanguage,
	})
}
