package gemini

import (
	"log/slog"
	"net/http"
	"os"
	"time"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-1.5-flash"
)

// Config for the Gemini structuring client.
type Config struct {
	// APIKey for Google AI Studio. If empty, falls back to env GEMINI_API_KEY.
	APIKey string
	// BaseURL of the Generative Language API (default v1beta endpoint).
	BaseURL string
	// Model, e.g. "gemini-1.5-flash".
	Model string
	// Temperature for generation (0..2).
	Temperature float32
	// MaxOutputTokens caps the model answer length.
	MaxOutputTokens int
	// Timeout for one API call (default 120s; large estimates structure slowly).
	Timeout time.Duration
}

// Client talks to the Gemini generateContent endpoint.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient builds a Gemini client, applying defaults for unset fields.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 8192
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}
