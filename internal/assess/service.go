package assess

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/symcheck/internal/classify"
	"github.com/linnemanlabs/symcheck/internal/transcribe"
	"github.com/linnemanlabs/symcheck/internal/triage"
)

const (
	tracerName = "github.com/linnemanlabs/symcheck/internal/assess"

	// DefaultTopK is the number of candidate conditions returned per assessment.
	DefaultTopK = 3
)

// Option configures optional Service collaborators.
type Option func(*Service)

// WithTopK sets how many predictions to request from the classifier.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithTreatments sets the disease -> treatment lookup used to annotate predictions.
func WithTreatments(t *classify.Treatments) Option {
	return func(s *Service) { s.treatments = t }
}

// WithTranscriber enables voice assessments.
func WithTranscriber(t transcribe.Transcriber) Option {
	return func(s *Service) { s.transcriber = t }
}

// Service is the business boundary for assessments.
type Service struct {
	store       Store
	mapper      *triage.Mapper
	classifier  classify.Classifier
	treatments  *classify.Treatments
	transcriber transcribe.Transcriber
	notifier    Notifier
	hooks       Hooks
	logger      log.Logger
	topK        int
}

// NewService creates an assessment service. A nil mapper uses the built-in
// rule table; notifier may be nil. Panics if store is nil.
func NewService(store Store, mapper *triage.Mapper, classifier classify.Classifier, logger log.Logger, hooks Hooks, notifier Notifier, opts ...Option) *Service {
	if store == nil {
		panic(xerrors.New("assessment store is required"))
	}
	if mapper == nil {
		mapper = triage.Default()
	}
	if logger == nil {
		logger = log.Nop()
	}
	s := &Service{
		store:      store,
		mapper:     mapper,
		classifier: classifier,
		notifier:   notifier,
		hooks:      hooks,
		logger:     logger,
		topK:       DefaultTopK,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Triage maps a request to a next step without classifying or storing it.
func (s *Service) Triage(req *Request) triage.Decision {
	return s.mapper.Decide(triage.Input{Text: req.Symptoms, Age: req.Age, Gender: req.Gender})
}

// Rules returns the active rule table and its fallback level.
func (s *Service) Rules() ([]triage.Rule, triage.Level) {
	return s.mapper.Rules(), s.mapper.Fallback()
}

// VoiceEnabled reports whether AnalyzeVoice can succeed.
func (s *Service) VoiceEnabled() bool {
	return s.transcriber != nil
}

// Analyze assesses a text request and persists the result.
func (s *Service) Analyze(ctx context.Context, req *Request) (*Assessment, error) {
	return s.analyze(ctx, req, SourceText, "")
}

// AnalyzeVoice transcribes audio and assesses the transcript. The transcript
// is used verbatim as the symptom text.
func (s *Service) AnalyzeVoice(ctx context.Context, audio []byte, contentType, language string, age *int, gender *string) (*Assessment, error) {
	if s.transcriber == nil {
		return nil, ErrTranscriberUnavailable
	}
	if age != nil && (*age < 0 || *age > triage.MaxAge) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAge, *age)
	}

	start := time.Now()
	tr, err := s.transcriber.Transcribe(ctx, audio, contentType, language)
	if s.hooks.OnTranscribe != nil {
		s.hooks.OnTranscribe(time.Since(start).Seconds(), err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
	}

	return s.analyze(ctx, &Request{Symptoms: tr.Text, Age: age, Gender: gender}, SourceVoice, tr.Language)
}

func (s *Service) analyze(ctx context.Context, req *Request, source Source, language string) (*Assessment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "assess.analyze", trace.WithAttributes(
		attribute.String("assessment.source", string(source)),
	))
	defer span.End()

	start := time.Now()
	dec := s.Triage(req)

	a := &Assessment{
		ID:          ulid.Make().String(),
		Source:      source,
		Symptoms:    req.Symptoms,
		Age:         req.Age,
		Gender:      req.Gender,
		Language:    language,
		NextStep:    dec.Level,
		MatchedRule: dec.Rule,
		CreatedAt:   start.UTC(),
	}
	L := s.logger.With("assessment_id", a.ID, "source", source)

	preds, err := s.classify(ctx, req.Symptoms)
	if err != nil {
		L.Warn(ctx, "classifier failed, using fallback prediction", "error", err.Error())
		span.AddEvent("classifier.fallback")
		a.Predictions = []classify.Prediction{FallbackPrediction}
		a.ClassifierError = err.Error()
	} else {
		a.Predictions = s.treatments.Annotate(preds)
	}
	a.Duration = time.Since(start).Seconds()

	span.SetAttributes(
		attribute.String("assessment.id", a.ID),
		attribute.String("assessment.next_step", string(a.NextStep)),
		attribute.String("assessment.rule", a.MatchedRule),
	)

	if err := s.store.Put(ctx, a); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("store assessment: %w", err)
	}

	if s.hooks.OnAssessment != nil {
		s.hooks.OnAssessment(a)
	}

	if a.NextStep == triage.LevelEmergency && s.notifier != nil {
		go s.notify(context.WithoutCancel(ctx), a.Clone())
	}

	L.Info(ctx, "assessment complete",
		"next_step", a.NextStep,
		"rule", a.MatchedRule,
		"predictions", len(a.Predictions),
		"duration", a.Duration,
	)
	return a, nil
}

func (s *Service) classify(ctx context.Context, text string) ([]classify.Prediction, error) {
	if s.classifier == nil {
		return nil, fmt.Errorf("no classifier configured")
	}
	start := time.Now()
	preds, err := s.classifier.Predict(ctx, text, s.topK)
	if s.hooks.OnClassify != nil {
		s.hooks.OnClassify(time.Since(start).Seconds(), err)
	}
	return preds, err
}

func (s *Service) notify(ctx context.Context, a *Assessment) {
	err := s.notifier.Send(ctx, a)
	if s.hooks.OnNotify != nil {
		s.hooks.OnNotify(err)
	}
	if err != nil {
		s.logger.Error(ctx, err, "emergency notification failed", "assessment_id", a.ID)
	}
}

// Get retrieves an assessment by ID.
func (s *Service) Get(ctx context.Context, id string) (*Assessment, bool, error) {
	return s.store.Get(ctx, id)
}

// List returns recent assessments, newest first. The limit is clamped to 1..MaxListLimit.
func (s *Service) List(ctx context.Context, limit int) ([]*Assessment, error) {
	return s.store.List(ctx, ClampLimit(limit))
}
