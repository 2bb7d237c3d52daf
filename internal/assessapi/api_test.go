package assessapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/symcheck/internal/assess"
	"github.com/linnemanlabs/symcheck/internal/assess/memstore"
	"github.com/linnemanlabs/symcheck/internal/authmw"
	"github.com/linnemanlabs/symcheck/internal/classify"
	"github.com/linnemanlabs/symcheck/internal/transcribe"
	"github.com/linnemanlabs/symcheck/internal/triage"
)

type stubClassifier struct {
	err error
}

func (s *stubClassifier) Predict(_ context.Context, _ string, topK int) ([]classify.Prediction, error) {
	if s.err != nil {
		return nil, s.err
	}
	preds := []classify.Prediction{
		{Condition: "Influenza", Confidence: 0.7},
		{Condition: "Common Cold", Confidence: 0.2},
		{Condition: "Dengue", Confidence: 0.1},
	}
	if topK < len(preds) {
		preds = preds[:topK]
	}
	return preds, nil
}

type stubTranscriber struct {
	text string
	err  error
}

func (s *stubTranscriber) Transcribe(_ context.Context, audio []byte, _, language string) (*transcribe.Transcript, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(audio) == 0 {
		return nil, transcribe.ErrEmptyAudio
	}
	if _, err := transcribe.NormalizeLanguage(language); err != nil {
		return nil, err
	}
	return &transcribe.Transcript{Text: s.text, Language: "en", Translated: language != "" && language != "en"}, nil
}

func newTestService(t *testing.T, opts ...assess.Option) (*assess.Service, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	svc := assess.NewService(store, nil, &stubClassifier{}, log.Nop(), assess.Hooks{}, nil, opts...)
	return svc, store
}

func newTestRouter(t *testing.T, opts ...assess.Option) (chi.Router, *memstore.Store) {
	t.Helper()
	svc, store := newTestService(t, opts...)
	r := chi.NewRouter()
	New(nil, svc, 1024).RegisterRoutes(r)
	return r, store
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

//  New / constructor

func TestNew_NilLogger(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	api := New(nil, svc, 0)
	if api.logger == nil {
		t.Fatal("New(nil, svc) left logger nil; expected Nop logger")
	}
	if api.maxAudioBytes != DefaultMaxAudioBytes {
		t.Errorf("maxAudioBytes = %d, want default", api.maxAudioBytes)
	}
}

func TestNew_NilService_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("New(nil, nil) did not panic; expected panic for nil service")
		}
	}()
	New(nil, nil, 0)
}

// Routing

func TestRegisterRoutes_Methods(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"POST analyze", http.MethodPost, "/api/v1/analyze", `{"symptoms":"fever"}`, http.StatusOK},
		{"GET analyze not allowed", http.MethodGet, "/api/v1/analyze", "", http.StatusMethodNotAllowed},
		{"POST triage", http.MethodPost, "/api/v1/triage", `{"text":"fever"}`, http.StatusOK},
		{"GET rules", http.MethodGet, "/api/v1/triage/rules", "", http.StatusOK},
		{"POST rules not allowed", http.MethodPost, "/api/v1/triage/rules", "", http.StatusMethodNotAllowed},
		{"GET assessments", http.MethodGet, "/api/v1/assessments", "", http.StatusOK},
		{"GET missing assessment", http.MethodGet, "/api/v1/assessments/01H5K3ABCDEFGHJKMNPQRS", "", http.StatusNotFound},
		{"DELETE assessment not allowed", http.MethodDelete, "/api/v1/assessments/x", "", http.StatusMethodNotAllowed},
		{"GET languages", http.MethodGet, "/api/v1/languages", "", http.StatusOK},
		{"unknown path", http.MethodGet, "/api/v1/unknown", "", http.StatusNotFound},
		{"wrong version", http.MethodGet, "/api/v2/languages", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := do(r, tt.method, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("%s %s = %d, want %d (body %s)", tt.method, tt.path, rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

// Analyze

func TestHandleAnalyze_Success(t *testing.T) {
	t.Parallel()

	r, store := newTestRouter(t)
	rec := do(r, http.MethodPost, "/api/v1/analyze", `{"symptoms":"I have CHEST PAIN and fever","age":45,"gender":"female"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp struct {
		ID          string `json:"id"`
		NextStep    string `json:"next_step"`
		MatchedRule string `json:"matched_rule"`
		Predictions []struct {
			Disease    string  `json:"disease"`
			Confidence float64 `json:"confidence"`
			Treatment  string  `json:"treatment"`
		} `json:"predictions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.NextStep != "Emergency" || resp.MatchedRule != "red_flag" {
		t.Errorf("decision = %q/%q", resp.NextStep, resp.MatchedRule)
	}
	if len(resp.Predictions) != assess.DefaultTopK {
		t.Fatalf("predictions = %d, want %d", len(resp.Predictions), assess.DefaultTopK)
	}
	if resp.Predictions[0].Disease != "Influenza" || resp.Predictions[0].Treatment != classify.DefaultTreatment {
		t.Errorf("predictions[0] = %+v", resp.Predictions[0])
	}
	if _, ok, _ := store.Get(context.Background(), resp.ID); !ok {
		t.Errorf("assessment %q not stored", resp.ID)
	}
}

func TestHandleAnalyze_BadRequests(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", `{bad`},
		{"empty body", ``},
		{"negative age", `{"symptoms":"fever","age":-3}`},
		{"age too high", `{"symptoms":"fever","age":121}`},
		{"age wrong type", `{"symptoms":"fever","age":"old"}`},
		{"symptoms too long", `{"symptoms":"` + strings.Repeat("a", assess.MaxSymptomsBytes+1) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := do(r, http.MethodPost, "/api/v1/analyze", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			var e errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&e); err != nil || e.Error == "" {
				t.Errorf("expected JSON error body, got %q", rec.Body.String())
			}
		})
	}
}

func TestHandleAnalyze_BodyTooLarge(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	tests := []struct {
		path string
		body string
	}{
		{"/api/v1/analyze", `{"symptoms":"` + strings.Repeat("a", maxJSONBody) + `"}`},
		{"/api/v1/triage", `{"text":"` + strings.Repeat("a", maxJSONBody) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			rec := do(r, http.MethodPost, tt.path, tt.body)
			if rec.Code != http.StatusRequestEntityTooLarge {
				t.Fatalf("status = %d, want 413", rec.Code)
			}
			var e errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&e); err != nil || e.Error != "payload too large" {
				t.Errorf("body = %q", rec.Body.String())
			}
		})
	}
}

func TestHandleTriage_InvalidPayload(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	rec := do(r, http.MethodPost, "/api/v1/triage", `{"text":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleAnalyze_ClassifierDown(t *testing.T) {
	t.Parallel()

	svc := assess.NewService(memstore.New(), nil, &stubClassifier{err: errors.New("down")}, log.Nop(), assess.Hooks{}, nil)
	r := chi.NewRouter()
	New(nil, svc, 0).RegisterRoutes(r)

	rec := do(r, http.MethodPost, "/api/v1/analyze", `{"symptoms":"migraine"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp analyzeResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.NextStep != triage.LevelSelfCare {
		t.Errorf("NextStep = %q", resp.NextStep)
	}
	if len(resp.Predictions) != 1 || resp.Predictions[0].Condition != "Unable to analyze" {
		t.Errorf("Predictions = %+v", resp.Predictions)
	}
	if resp.ClassifierError == "" {
		t.Error("expected classifier_error")
	}
}

// Voice

func TestHandleAnalyzeVoice(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t, assess.WithTranscriber(&stubTranscriber{text: "loose motions since morning"}))

	tests := []struct {
		name       string
		query      string
		body       []byte
		wantStatus int
	}{
		{"ok default language", "", []byte("audio"), http.StatusOK},
		{"ok hindi with demographics", "?language=hi&age=70&gender=male", []byte("audio"), http.StatusOK},
		{"bad age", "?age=abc", []byte("audio"), http.StatusBadRequest},
		{"age out of range", "?age=500", []byte("audio"), http.StatusBadRequest},
		{"unsupported language", "?language=xx", []byte("audio"), http.StatusBadRequest},
		{"empty audio", "", nil, http.StatusBadRequest},
		{"too large", "", bytes.Repeat([]byte{1}, 2048), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze/voice"+tt.query, bytes.NewReader(tt.body))
			req.Header.Set("Content-Type", "audio/wav")
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp voiceResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Transcription != "loose motions since morning" {
				t.Errorf("Transcription = %q", resp.Transcription)
			}
			if resp.MatchedRule != "gastrointestinal" || resp.Language != "en" {
				t.Errorf("rule/language = %q/%q", resp.MatchedRule, resp.Language)
			}
		})
	}
}

func TestHandleAnalyzeVoice_Unavailable(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze/voice", strings.NewReader("audio"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHandleAnalyzeVoice_TranscriberFailure(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t, assess.WithTranscriber(&stubTranscriber{err: errors.New("transcriber returned 500")}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze/voice", strings.NewReader("audio"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

// Triage

func TestHandleTriage(t *testing.T) {
	t.Parallel()

	r, store := newTestRouter(t)

	tests := []struct {
		body     string
		wantStep string
		wantRule string
	}{
		{`{"text":"Sore throat and fever"}`, "Consult a General Physician", "respiratory_febrile"},
		{`{"text":"mild headache"}`, "Self-care", "self_care"},
		{`{"text":"Stroke symptoms"}`, "Emergency", "red_flag"},
		{`{"text":""}`, "Consult a General Physician", "default"},
		{`{"text":"fever","age":80}`, "Consult a General Physician", "elderly_fever"},
	}
	for _, tt := range tests {
		rec := do(r, http.MethodPost, "/api/v1/triage", tt.body)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tt.body, rec.Code)
		}
		var d triage.Decision
		if err := json.NewDecoder(rec.Body).Decode(&d); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if string(d.Level) != tt.wantStep || d.Rule != tt.wantRule {
			t.Errorf("%s: got %q/%q, want %q/%q", tt.body, d.Level, d.Rule, tt.wantStep, tt.wantRule)
		}
	}
	if store.Len() != 0 {
		t.Errorf("triage stored %d assessments, want 0", store.Len())
	}

	if rec := do(r, http.MethodPost, "/api/v1/triage", `{"text":"x","age":-1}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid age status = %d, want 400", rec.Code)
	}
}

func TestHandleRules(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	rec := do(r, http.MethodGet, "/api/v1/triage/rules", "")
	var resp struct {
		Default string `json:"default"`
		Rules   []struct {
			Name  string     `json:"name"`
			Level string     `json:"level"`
			Match [][]string `json:"match"`
		} `json:"rules"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Default != string(triage.LevelConsultGP) {
		t.Errorf("Default = %q", resp.Default)
	}
	if len(resp.Rules) != len(triage.DefaultRules()) || resp.Rules[0].Name != "red_flag" {
		t.Errorf("Rules = %+v", resp.Rules)
	}
}

// Assessments

func TestHandleAssessments_GetAndList(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	var ids []string
	for _, s := range []string{"fever", "diarrhea", "chest pain"} {
		rec := do(r, http.MethodPost, "/api/v1/analyze", `{"symptoms":"`+s+`"}`)
		var resp analyzeResponse
		_ = json.NewDecoder(rec.Body).Decode(&resp)
		ids = append(ids, resp.ID)
	}

	rec := do(r, http.MethodGet, "/api/v1/assessments/"+ids[1], "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got assess.Assessment
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Symptoms != "diarrhea" || got.MatchedRule != "gastrointestinal" || got.Source != assess.SourceText {
		t.Errorf("assessment = %+v", got)
	}

	rec = do(r, http.MethodGet, "/api/v1/assessments?limit=2", "")
	var list listResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Assessments) != 2 {
		t.Errorf("list len = %d, want 2", len(list.Assessments))
	}

	if rec := do(r, http.MethodGet, "/api/v1/assessments?limit=abc", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestHandleListAssessments_EmptyIsArray(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	rec := do(r, http.MethodGet, "/api/v1/assessments", "")
	if !strings.Contains(rec.Body.String(), `"assessments":[]`) {
		t.Errorf("body = %s, want empty array", rec.Body.String())
	}
}

func TestHandleLanguages(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	rec := do(r, http.MethodGet, "/api/v1/languages", "")
	var resp languagesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Default != "en" || resp.Languages["hi"] != "Hindi" || len(resp.Languages) != 11 {
		t.Errorf("languages = %+v", resp)
	}
}

func TestRegisterRoutes_WithAuth(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	r := chi.NewRouter()
	New(nil, svc, 0).RegisterRoutes(r, authmw.BearerToken("s3cret"))

	if rec := do(r, http.MethodGet, "/api/v1/languages", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/languages", http.NoBody)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("with token status = %d, want 200", rec.Code)
	}
}

// Fuzz

func FuzzAnalyze(f *testing.F) {
	svc := assess.NewService(memstore.New(), nil, &stubClassifier{}, log.Nop(), assess.Hooks{}, nil)
	r := chi.NewRouter()
	New(nil, svc, 0).RegisterRoutes(r)

	seeds := []struct {
		body        []byte
		contentType string
	}{
		{nil, ""},
		{[]byte(""), "application/json"},
		{[]byte("{}"), "application/json"},
		{[]byte(`{"symptoms":"chest pain","age":40,"gender":"male"}`), "application/json"},
		{[]byte(`{"symptoms":"fever","age":-1}`), "application/json"},
		{[]byte(`{"symptoms":null,"age":null}`), "application/json"},
		{[]byte("{invalid json"), "application/json"},
		{[]byte("\x00\x01\x02\xff\xfe"), "application/octet-stream"},
		{[]byte(strings.Repeat("a", 10000)), "text/plain"},
	}
	for _, s := range seeds {
		f.Add(s.body, s.contentType)
	}

	f.Fuzz(func(t *testing.T, body []byte, contentType string) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", bytes.NewReader(body))
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		rec := httptest.NewRecorder()

		// Must not panic
		r.ServeHTTP(rec, req)

		switch rec.Code {
		case http.StatusOK, http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		default:
			t.Errorf("POST /api/v1/analyze with body len=%d content-type=%q = %d, want 200, 400 or 413",
				len(body), contentType, rec.Code)
		}
	})
}
