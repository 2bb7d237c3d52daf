package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultTimeout = 60 * time.Second
	maxErrBody     = 512
	maxRespBody    = 1 << 20
)

// Client calls a speech-to-text server.
//
//	POST {endpoint}/transcribe?language=hi   (body: raw audio)
//	-> {"transcription": "...", "language": "en", "model": "whisper-base", "translated": true}
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a transcription client. A zero timeout uses the default.
func NewClient(endpoint string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid transcriber endpoint %q", endpoint)
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

// Transcribe sends audio to the server and returns its transcript.
func (c *Client) Transcribe(ctx context.Context, audio []byte, contentType, language string) (*Transcript, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	lang, err := NormalizeLanguage(language)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, language)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	target := c.endpoint + "/transcribe?" + url.Values{"language": {lang}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req) //nolint:gosec // endpoint is from trusted config
	if err != nil {
		return nil, fmt.Errorf("transcriber request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRespBody+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(body) > maxRespBody {
		return nil, fmt.Errorf("transcriber response exceeds %d bytes", maxRespBody)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		if len(msg) > maxErrBody {
			msg = msg[:maxErrBody-3] + "..."
		}
		return nil, fmt.Errorf("transcriber returned %d: %s", resp.StatusCode, msg)
	}

	var out Transcript
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	// the transcript is kept verbatim, the mapper does its own case folding
	if out.Language == "" {
		out.Language = lang
	}
	return &out, nil
}

// Ping checks the transcription server health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req) //nolint:gosec // endpoint is from trusted config
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var h struct {
		Status string `json:"status"`
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d: %s", resp.StatusCode, string(b))
	}
	// "degraded" means the server fell back to mock transcription
	if json.Unmarshal(b, &h) == nil && (h.Status == "degraded" || h.Status == "unhealthy") {
		return fmt.Errorf("transcriber reports %s", h.Status)
	}
	return nil
}
