package assessapi

import (
	"errors"
	"net/http"

	"github.com/linnemanlabs/symcheck/internal/assess"
	"github.com/linnemanlabs/symcheck/internal/triage"
)

type triageRequest struct {
	Text   string  `json:"text"`
	Age    *int    `json:"age,omitempty"`
	Gender *string `json:"gender,omitempty"`
}

type rulesResponse struct {
	Default triage.Level  `json:"default"`
	Rules   []triage.Rule `json:"rules"`
}

func (a *API) handleTriage(w http.ResponseWriter, r *http.Request) {
	var tr triageRequest
	if !decodeJSON(w, r, &tr) {
		return
	}

	req := &assess.Request{Symptoms: tr.Text, Age: tr.Age, Gender: tr.Gender}
	if err := req.Validate(); err != nil {
		if errors.Is(err, assess.ErrInvalidAge) || errors.Is(err, assess.ErrSymptomsTooLong) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, a.svc.Triage(req))
}

func (a *API) handleRules(w http.ResponseWriter, _ *http.Request) {
	rules, fallback := a.svc.Rules()
	writeJSON(w, http.StatusOK, rulesResponse{Default: fallback, Rules: rules})
}
