package openai

import (
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/joseph-ayodele/cardscan/constants"
	"github.com/joseph-ayodele/cardscan/internal/common"
	"github.com/joseph-ayodele/cardscan/internal/llm"
)

// Config for an OpenAI-compatible chat/completions endpoint.
type Config struct {
	APIKey      string
	BaseURL     string        // default https://api.dedaluslabs.ai/v1
	Model       string        // default anthropic/claude-opus-4-5
	Temperature float32       // 0 keeps extraction deterministic
	MaxTokens   int           // default 2000
	Timeout     time.Duration // per request
}

const (
	DefaultBaseURL = "https://api.dedaluslabs.ai/v1"
	DefaultModel   = "anthropic/claude-opus-4-5"
)

type Client struct {
	cfg    Config
	http   *resty.Client
	parser *llm.ResponseParser
	log    *slog.Logger
}

// NewClient validates credentials up front: a missing key is a configuration error,
// never a per-call failure.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "extraction service API key is not configured", common.ErrInvalidInput)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = constants.DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultExtractTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetAuthToken(strings.TrimSpace(cfg.APIKey))

	return &Client{
		cfg:    cfg,
		http:   rc,
		parser: llm.NewResponseParser(logger),
		log:    logger,
	}, nil
}
