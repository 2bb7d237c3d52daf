// Package slack posts emergency assessment alerts to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/symcheck/internal/assess"
	"github.com/linnemanlabs/symcheck/internal/triage"
)

const (
	maxSymptomsLen = 1500
	maxPredictions = 5
	httpTimeout    = 10 * time.Second
)

// Notifier sends assessments to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// Send posts an assessment to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, a *assess.Assessment) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(a))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "slack notification sent", "assessment_id", a.ID, "next_step", a.NextStep)
	return nil
}

func buildMessage(a *assess.Assessment) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(a),
			{"type": "divider"},
			fieldsBlock(a),
			{"type": "divider"},
			symptomsBlock(a),
			predictionsBlock(a),
			{"type": "divider"},
			contextBlock(a),
		},
	}
}

func headerBlock(a *assess.Assessment) map[string]any {
	text := fmt.Sprintf("%s %s: %s", levelEmoji(a.NextStep), a.NextStep, a.MatchedRule)
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(a *assess.Assessment) map[string]any {
	age := "unknown"
	if a.Age != nil {
		age = fmt.Sprintf("%d", *a.Age)
	}
	gender := "unknown"
	if a.Gender != nil && *a.Gender != "" {
		gender = *a.Gender
	}

	fields := []map[string]any{
		{"type": "mrkdwn", "text": fmt.Sprintf("*Next step:* %s", a.NextStep)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Rule:* %s", a.MatchedRule)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Source:* %s", a.Source)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Age:* %s", age)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Gender:* %s", gender)},
	}
	if a.Language != "" {
		fields = append(fields, map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Language:* %s", a.Language)})
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func symptomsBlock(a *assess.Assessment) map[string]any {
	text := truncate(a.Symptoms, maxSymptomsLen)
	if strings.TrimSpace(text) == "" {
		text = "_No symptoms provided._"
	}
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Symptoms*\n\n%s", text),
		},
	}
}

func predictionsBlock(a *assess.Assessment) map[string]any {
	var b strings.Builder
	b.WriteString("*Candidate conditions*\n")
	switch {
	case a.ClassifierError != "":
		b.WriteString("\n_Classifier unavailable._")
	case len(a.Predictions) == 0:
		b.WriteString("\n_None._")
	default:
		for i, p := range a.Predictions {
			if i == maxPredictions {
				break
			}
			fmt.Fprintf(&b, "\n%d. %s (%.0f%%)", i+1, p.Condition, p.Confidence*100)
		}
	}
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": b.String(),
		},
	}
}

func contextBlock(a *assess.Assessment) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("symcheck • assessment %s • %s", a.ID, a.CreatedAt.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}
	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func levelEmoji(level triage.Level) string {
	switch level {
	case triage.LevelEmergency:
		return "\U0001f534" // red circle
	case triage.LevelConsultGP:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
