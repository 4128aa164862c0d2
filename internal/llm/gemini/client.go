package gemini

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/joseph-ayodele/cardscan/constants"
	"github.com/joseph-ayodele/cardscan/internal/common"
	"github.com/joseph-ayodele/cardscan/internal/entity"
	"github.com/joseph-ayodele/cardscan/internal/llm"
)

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string

	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

const DefaultModel = "gemini-2.5-flash"

type Client struct {
	client *genai.Client
	cfg    Config
	parser *llm.ResponseParser
	log    *slog.Logger
}

var _ llm.Extractor = (*Client)(nil)

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "GEMINI_API_KEY is required", common.ErrInvalidInput)
	}
	if strings.TrimSpace(cfg.Model) == "" {
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

	cc := &genai.ClientConfig{
		APIKey:     strings.TrimSpace(cfg.APIKey),
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "failed to create gemini client", err)
	}
	return &Client{
		client: client,
		cfg:    cfg,
		parser: llm.NewResponseParser(logger),
		log:    logger,
	}, nil
}

// Extract sends the image inline with the system instruction and parses the reply text.
func (c *Client) Extract(ctx context.Context, image []byte, mimeType string) ([]entity.Candidate, error) {
	rid := uuid.New().String()
	start := time.Now()
	log := common.LoggerWith(ctx, c.log).With("req_id", rid)
	log.Info("llm.extract.start", "model", c.cfg.Model, "mime_type", mimeType, "image_bytes", len(image))

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(llm.UserPrompt),
			genai.NewPartFromBytes(image, mimeType),
		}, genai.RoleUser),
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(llm.SystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(c.cfg.Temperature),
		MaxOutputTokens:   int32(c.cfg.MaxTokens),
		CandidateCount:    1,
	})
	if err != nil {
		log.Error("llm.extract.http_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, classifyErr(err)
	}

	content := ""
	if resp != nil {
		content = strings.TrimSpace(resp.Text())
	}
	if content == "" {
		log.Error("llm.extract.empty", "elapsed_ms", time.Since(start).Milliseconds())
		return nil, llm.ErrEmptyResponse
	}

	out := llm.CandidatesFromReply(c.parser, content)
	log.Info("llm.extract.ok", "candidates", len(out), "elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

func classifyErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &llm.UpstreamError{Status: apiErr.Code, Body: apiErr.Message, Err: err}
	}
	return &llm.UpstreamError{Err: err}
}
