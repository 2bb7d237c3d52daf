// Package transcribe turns recorded symptom descriptions into text by calling
// an external speech-to-text server. Transcripts are returned as-is; callers
// pass them unchanged to the triage mapper.
package transcribe

import (
	"context"
	"errors"
	"sort"
)

// DefaultLanguage is assumed when the caller does not name one.
const DefaultLanguage = "en"

var (
	// ErrEmptyAudio is returned when no audio bytes were supplied.
	ErrEmptyAudio = errors.New("audio is empty")

	// ErrUnsupportedLanguage is returned for language codes outside SupportedLanguages.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// Transcript is the text recognized from an audio clip.
type Transcript struct {
	Text       string `json:"transcription"`
	Language   string `json:"language"`
	Model      string `json:"model,omitempty"`
	Translated bool   `json:"translated"`
}

// Transcriber converts audio into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, contentType, language string) (*Transcript, error)
}

var supportedLanguages = map[string]string{
	"en": "English",
	"hi": "Hindi",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"ru": "Russian",
	"ja": "Japanese",
	"ko": "Korean",
	"zh": "Chinese",
}

// SupportedLanguages returns language code -> display name.
func SupportedLanguages() map[string]string {
	out := make(map[string]string, len(supportedLanguages))
	for k, v := range supportedLanguages {
		out[k] = v
	}
	return out
}

// LanguageCodes returns the supported codes sorted.
func LanguageCodes() []string {
	codes := make([]string, 0, len(supportedLanguages))
	for k := range supportedLanguages {
		codes = append(codes, k)
	}
	sort.Strings(codes)
	return codes
}

// NormalizeLanguage applies the default and checks support.
func NormalizeLanguage(lang string) (string, error) {
	if lang == "" {
		return DefaultLanguage, nil
	}
	if _, ok := supportedLanguages[lang]; !ok {
		return "", ErrUnsupportedLanguage
	}
	return lang, nil
}
