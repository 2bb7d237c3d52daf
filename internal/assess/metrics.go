package assess

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Hooks are optional callbacks the Service invokes at instrumentation points.
// Nil fields are skipped.
type Hooks struct {
	OnAssessment func(a *Assessment)
	OnClassify   func(duration float64, err error)
	OnTranscribe func(duration float64, err error)
	OnNotify     func(err error)
}

// Metrics holds Prometheus metrics for the assessment subsystem.
type Metrics struct {
	AssessmentsTotal   *prometheus.CounterVec
	AssessmentDuration *prometheus.HistogramVec
	ClassifierDuration *prometheus.HistogramVec
	TranscribeDuration *prometheus.HistogramVec
	NotificationsTotal *prometheus.CounterVec
}

// NewMetrics registers and returns assessment metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AssessmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symcheck_assessments_total",
			Help: "Total assessments by next step, matched rule and source.",
		}, []string{"next_step", "rule", "source"}),
		AssessmentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "symcheck_assessment_duration_seconds",
			Help:    "End-to-end duration of assessments in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~20s
		}, []string{"source"}),
		ClassifierDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "symcheck_classifier_duration_seconds",
			Help:    "Duration of condition classifier calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~20s
		}, []string{"outcome"}),
		TranscribeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "symcheck_transcribe_duration_seconds",
			Help:    "Duration of speech-to-text calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s .. ~51s
		}, []string{"outcome"}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symcheck_notifications_total",
			Help: "Emergency notifications by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.AssessmentsTotal,
		m.AssessmentDuration,
		m.ClassifierDuration,
		m.TranscribeDuration,
		m.NotificationsTotal,
	)

	return m
}

// Hooks returns Hooks that update the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnAssessment: func(a *Assessment) {
			m.AssessmentsTotal.WithLabelValues(string(a.NextStep), a.MatchedRule, string(a.Source)).Inc()
			m.AssessmentDuration.WithLabelValues(string(a.Source)).Observe(a.Duration)
		},
		OnClassify: func(duration float64, err error) {
			m.ClassifierDuration.WithLabelValues(outcome(err)).Observe(duration)
		},
		OnTranscribe: func(duration float64, err error) {
			m.TranscribeDuration.WithLabelValues(outcome(err)).Observe(duration)
		},
		OnNotify: func(err error) {
			m.NotificationsTotal.WithLabelValues(outcome(err)).Inc()
		},
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
