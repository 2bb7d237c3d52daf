package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/symcheck/internal/assess"
	"github.com/linnemanlabs/symcheck/internal/classify"
	"github.com/linnemanlabs/symcheck/internal/triage"
)

func TestSend_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	age := 67
	n := New(srv.URL, log.Nop())
	a := &assess.Assessment{
		ID:          "01JN123",
		Source:      assess.SourceVoice,
		Symptoms:    "sudden chest pain and sweating",
		Age:         &age,
		Language:    "hi",
		NextStep:    triage.LevelEmergency,
		MatchedRule: "red_flag",
		Predictions: []classify.Prediction{
			{Condition: "Heart attack", Confidence: 0.81},
			{Condition: "GERD", Confidence: 0.09},
		},
		CreatedAt: time.Date(2026, 2, 26, 14, 23, 0, 0, time.UTC),
	}

	if err := n.Send(context.Background(), a); err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks, ok := got["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in payload")
	}

	// header, divider, fields, divider, symptoms, predictions, divider, context = 8 blocks
	if len(blocks) != 8 {
		t.Errorf("blocks count = %d, want 8", len(blocks))
	}

	header := blocks[0].(map[string]any)
	headerText := header["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headerText, "red_flag") {
		t.Errorf("header text = %q, want to contain rule name", headerText)
	}
	if !strings.Contains(headerText, "\U0001f534") {
		t.Errorf("header should contain red circle for emergency")
	}

	preds := blocks[5].(map[string]any)["text"].(map[string]any)["text"].(string)
	if !strings.Contains(preds, "1. Heart attack (81%)") {
		t.Errorf("predictions text = %q", preds)
	}

	ctxText := blocks[7].(map[string]any)["elements"].([]any)[0].(map[string]any)["text"].(string)
	if !strings.Contains(ctxText, "01JN123") || !strings.Contains(ctxText, "2026-02-26 14:23 UTC") {
		t.Errorf("context text = %q", ctxText)
	}
}

func TestSend_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	n := New("", nil)
	if err := n.Send(context.Background(), &assess.Assessment{}); err != nil {
		t.Fatalf("Send with empty URL should be no-op, got: %v", err)
	}
}

func TestSymptomsBlock_Truncates(t *testing.T) {
	t.Parallel()

	block := symptomsBlock(&assess.Assessment{Symptoms: strings.Repeat("x", 4000)})
	text := block["text"].(map[string]any)["text"].(string)

	if len(text) > maxSymptomsLen+len("*Symptoms*\n\n") {
		t.Errorf("symptoms text length = %d, expected <= %d", len(text), maxSymptomsLen+len("*Symptoms*\n\n"))
	}
	if !strings.HasSuffix(text, "...") {
		t.Error("expected truncated symptoms to end with ...")
	}
}

func TestPredictionsBlock(t *testing.T) {
	t.Parallel()

	many := make([]classify.Prediction, 8)
	for i := range many {
		many[i] = classify.Prediction{Condition: "c", Confidence: 0.1}
	}

	tests := []struct {
		name string
		a    *assess.Assessment
		want string
		deny string
	}{
		{"classifier error", &assess.Assessment{ClassifierError: "down", Predictions: []classify.Prediction{assess.FallbackPrediction}}, "Classifier unavailable", "Unable to analyze"},
		{"none", &assess.Assessment{}, "None", ""},
		{"capped", &assess.Assessment{Predictions: many}, "5. c", "6. c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			text := predictionsBlock(tt.a)["text"].(map[string]any)["text"].(string)
			if !strings.Contains(text, tt.want) {
				t.Errorf("text = %q, want to contain %q", text, tt.want)
			}
			if tt.deny != "" && strings.Contains(text, tt.deny) {
				t.Errorf("text = %q, must not contain %q", text, tt.deny)
			}
		})
	}
}

func TestLevelEmoji(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level triage.Level
		want  string
	}{
		{triage.LevelEmergency, "\U0001f534"},
		{triage.LevelConsultGP, "\U0001f7e1"},
		{triage.LevelSelfCare, "\U0001f7e2"},
		{"", "\U0001f7e2"},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			t.Parallel()
			if got := levelEmoji(tt.level); got != tt.want {
				t.Errorf("levelEmoji(%q) = %q, want %q", tt.level, got, tt.want)
			}
		})
	}
}

func TestFieldsBlock_Demographics(t *testing.T) {
	t.Parallel()

	gender := "female"
	age := 3
	fields := fieldsBlock(&assess.Assessment{Age: &age, Gender: &gender})["fields"].([]map[string]any)
	var joined []string
	for _, f := range fields {
		joined = append(joined, f["text"].(string))
	}
	all := strings.Join(joined, "|")
	if !strings.Contains(all, "*Age:* 3") || !strings.Contains(all, "*Gender:* female") {
		t.Errorf("fields = %q", all)
	}
	if strings.Contains(all, "Language") {
		t.Errorf("language field present for text assessment: %q", all)
	}

	fields = fieldsBlock(&assess.Assessment{})["fields"].([]map[string]any)
	if got := fields[3]["text"].(string); got != "*Age:* unknown" {
		t.Errorf("age field = %q", got)
	}
}

func FuzzSlackBuild(f *testing.F) {
	f.Add("chest pain", "red_flag", "Heart attack", 0.9)
	f.Add("", "", "", 0.0)
	f.Add("<@U123> mention", "default", "*bold* _italic_ ~strike~", 1.0)
	f.Add("symptom\x00\x01\x02", "rule\nline", "cond\ttab", -1.0)
	f.Add(strings.Repeat("A", 5000), "elderly_fever", strings.Repeat("x", 10000), 0.5)

	f.Fuzz(func(t *testing.T, symptoms, rule, condition string, confidence float64) {
		a := &assess.Assessment{
			ID:          "fuzz-id",
			Source:      assess.SourceText,
			Symptoms:    symptoms,
			NextStep:    triage.LevelEmergency,
			MatchedRule: rule,
			Predictions: []classify.Prediction{{Condition: condition, Confidence: confidence}},
			CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}

		// Must not panic
		msg := buildMessage(a)

		// Must produce valid JSON
		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("buildMessage produced non-marshalable output: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("buildMessage JSON does not round-trip: %v", err)
		}
		blocks, ok := decoded["blocks"].([]any)
		if !ok {
			t.Fatal("expected blocks array")
		}
		if len(blocks) != 8 {
			t.Fatalf("blocks count = %d, want 8", len(blocks))
		}
	})
}

func TestSend_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	n := New(srv.URL, log.Nop())
	err := n.Send(context.Background(), &assess.Assessment{ID: "01JN789", NextStep: triage.LevelEmergency})
	if err == nil {
		t.Fatal("expected error on non-OK status")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %q, want to contain status code 500", err.Error())
	}
}
