package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrBody     = 512
	maxRespBody    = 1 << 20
)

// Client calls an inference server over HTTP.
//
//	POST {endpoint}/predict  {"text": "...", "top_k": 3}
//	-> {"predictions": [{"label": "...", "score": 0.91}, ...]}
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a classifier client. A zero timeout uses the default.
func NewClient(endpoint string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid classifier endpoint %q", endpoint)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

type predictRequest struct {
	Text string `json:"text"`
	TopK int    `json:"top_k"`
}

type predictResponse struct {
	Predictions []struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	} `json:"predictions"`
}

// Predict returns up to topK predictions, highest confidence first.
func (c *Client) Predict(ctx context.Context, text string, topK int) ([]Prediction, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", topK)
	}

	body, err := json.Marshal(predictRequest{Text: text, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req) //nolint:gosec // endpoint is from trusted config
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxRespBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned %d: %s", resp.StatusCode, truncate(string(respBody), maxErrBody))
	}

	var out predictResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	preds := make([]Prediction, 0, len(out.Predictions))
	for _, p := range out.Predictions {
		if p.Label == "" {
			continue
		}
		preds = append(preds, Prediction{Condition: p.Label, Confidence: p.Score})
	}
	sort.SliceStable(preds, func(i, j int) bool { return preds[i].Confidence > preds[j].Confidence })
	if len(preds) > topK {
		preds = preds[:topK]
	}
	return preds, nil
}

// Ping checks that the inference server is up and has a model loaded.
func (c *Client) Ping(ctx context.Context) error {
	return ping(ctx, c.httpClient, c.endpoint+"/health")
}

func ping(ctx context.Context, hc *http.Client, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := hc.Do(req) //nolint:gosec // endpoint is from trusted config
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return fmt.Errorf("health check returned %d: %s", resp.StatusCode, string(b))
	}

	// inference servers report {"status": "...", "model_loaded": bool}
	var h struct {
		Status      string `json:"status"`
		ModelLoaded *bool  `json:"model_loaded"`
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
	if json.Unmarshal(b, &h) == nil {
		if h.ModelLoaded != nil && !*h.ModelLoaded {
			return errors.New("health check: model not loaded")
		}
		if h.Status == "unhealthy" {
			return errors.New("health check: server reports unhealthy")
		}
	}
	return nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
