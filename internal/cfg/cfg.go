package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"time"
)

// MaxTopK bounds how many candidate conditions a single assessment may request.
const MaxTopK = 20

// Config holds the symcheck server settings. It satisfies the go-core
// cfg.Registerable and cfg.Validatable interfaces.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int

	ClassifierEndpoint string
	ClassifierTimeout  time.Duration
	TopK               int
	CacheSize          int
	TreatmentsPath     string

	TranscriberEndpoint string
	TranscriberTimeout  time.Duration
	MaxAudioBytes       int64

	RulesPath string

	DatabaseURL string
	SQLitePath  string

	SlackWebhookURL string
	APIToken        string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.ClassifierEndpoint, "classifier-endpoint", "", "base URL of the condition classifier inference server")
	fs.DurationVar(&c.ClassifierTimeout, "classifier-timeout", 10*time.Second, "per-request classifier timeout")
	fs.IntVar(&c.TopK, "top-k", 3, "candidate conditions returned per assessment (1..20)")
	fs.IntVar(&c.CacheSize, "classifier-cache-size", 1024, "LRU size for classifier predictions (0 = disabled)")
	fs.StringVar(&c.TreatmentsPath, "treatments-path", "", "CSV file mapping conditions to treatments (empty = generic advice)")
	fs.StringVar(&c.TranscriberEndpoint, "transcriber-endpoint", "", "base URL of the speech-to-text server (empty = voice disabled)")
	fs.DurationVar(&c.TranscriberTimeout, "transcriber-timeout", 60*time.Second, "per-request transcriber timeout")
	fs.Int64Var(&c.MaxAudioBytes, "max-audio-bytes", 10<<20, "maximum accepted voice upload size in bytes")
	fs.StringVar(&c.RulesPath, "rules-path", "", "YAML triage rule file (empty = built-in rules)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL")
	fs.StringVar(&c.SQLitePath, "sqlite-path", "", "SQLite database file (exclusive with database-url; both empty = in-memory store)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for emergency notifications")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on API requests (empty = open)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.ClassifierEndpoint == "" {
		errs = append(errs, errors.New("CLASSIFIER_ENDPOINT is required"))
	} else if !validHTTPURL(c.ClassifierEndpoint) {
		errs = append(errs, fmt.Errorf("invalid CLASSIFIER_ENDPOINT %q (must be http or https URL)", c.ClassifierEndpoint))
	}
	if c.ClassifierTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid CLASSIFIER_TIMEOUT %s (must be positive)", c.ClassifierTimeout))
	}
	if c.TopK < 1 || c.TopK > MaxTopK {
		errs = append(errs, fmt.Errorf("invalid TOP_K %d (must be 1..%d)", c.TopK, MaxTopK))
	}
	if c.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("invalid CLASSIFIER_CACHE_SIZE %d (must be >= 0)", c.CacheSize))
	}

	if c.TranscriberEndpoint != "" && !validHTTPURL(c.TranscriberEndpoint) {
		errs = append(errs, fmt.Errorf("invalid TRANSCRIBER_ENDPOINT %q (must be http or https URL)", c.TranscriberEndpoint))
	}
	if c.TranscriberTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid TRANSCRIBER_TIMEOUT %s (must be positive)", c.TranscriberTimeout))
	}
	if c.MaxAudioBytes <= 0 {
		errs = append(errs, fmt.Errorf("invalid MAX_AUDIO_BYTES %d (must be positive)", c.MaxAudioBytes))
	}

	if c.DatabaseURL != "" && c.SQLitePath != "" {
		errs = append(errs, errors.New("DATABASE_URL and SQLITE_PATH are mutually exclusive"))
	}

	if c.SlackWebhookURL != "" && !validHTTPURL(c.SlackWebhookURL) {
		errs = append(errs, errors.New("invalid SLACK_WEBHOOK_URL (must be http or https URL)"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func validHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
