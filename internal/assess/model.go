// Package assess runs symptom assessments: every request is mapped to a
// next-step level, classified into candidate conditions, and persisted.
package assess

import (
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/symcheck/internal/classify"
	"github.com/linnemanlabs/symcheck/internal/triage"
)

// MaxSymptomsBytes caps the size of a free-text symptom description.
const MaxSymptomsBytes = 10000

var (
	// ErrInvalidAge is returned when age is outside 0..triage.MaxAge.
	ErrInvalidAge = errors.New("age must be between 0 and 120")

	// ErrSymptomsTooLong is returned when symptoms exceed MaxSymptomsBytes.
	ErrSymptomsTooLong = errors.New("symptoms too long")

	// ErrTranscriberUnavailable is returned by AnalyzeVoice when no transcriber is configured.
	ErrTranscriberUnavailable = errors.New("voice transcription not configured")

	// ErrTranscriptionFailed wraps errors returned by the transcriber.
	ErrTranscriptionFailed = errors.New("transcription failed")
)

// Source records how the symptoms reached the service.
type Source string

const (
	// SourceText means symptoms were submitted as text
	SourceText Source = "text"

	// SourceVoice means symptoms were transcribed from audio
	SourceVoice Source = "voice"
)

// FallbackPrediction stands in for the classifier output when the classifier fails.
var FallbackPrediction = classify.Prediction{
	Condition:  "Unable to analyze",
	Confidence: 0,
	Treatment:  "Please consult a healthcare provider",
}

// Request is a single assessment request.
type Request struct {
	Symptoms string  `json:"symptoms"`
	Age      *int    `json:"age,omitempty"`
	Gender   *string `json:"gender,omitempty"`
}

// Validate checks request bounds. Empty symptoms are allowed.
func (r *Request) Validate() error {
	if r.Age != nil && (*r.Age < 0 || *r.Age > triage.MaxAge) {
		return fmt.Errorf("%w: got %d", ErrInvalidAge, *r.Age)
	}
	if len(r.Symptoms) > MaxSymptomsBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrSymptomsTooLong, len(r.Symptoms), MaxSymptomsBytes)
	}
	return nil
}

// Assessment is the stored outcome of one request.
type Assessment struct {
	ID              string                `json:"id"`
	Source          Source                `json:"source"`
	Symptoms        string                `json:"symptoms"`
	Age             *int                  `json:"age,omitempty"`
	Gender          *string               `json:"gender,omitempty"`
	Language        string                `json:"language,omitempty"`
	Predictions     []classify.Prediction `json:"predictions"`
	NextStep        triage.Level          `json:"next_step"`
	MatchedRule     string                `json:"matched_rule"`
	ClassifierError string                `json:"classifier_error,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	Duration        float64               `json:"duration_seconds"`
}

// Clone returns a deep copy.
func (a *Assessment) Clone() *Assessment {
	cp := *a
	if a.Age != nil {
		age := *a.Age
		cp.Age = &age
	}
	if a.Gender != nil {
		g := *a.Gender
		cp.Gender = &g
	}
	if a.Predictions != nil {
		cp.Predictions = append([]classify.Prediction(nil), a.Predictions...)
	}
	return &cp
}
