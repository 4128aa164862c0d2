package openai

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/cardscan/internal/common"
	"github.com/joseph-ayodele/cardscan/internal/entity"
	"github.com/joseph-ayodele/cardscan/internal/llm"
)

var _ llm.Extractor = (*Client)(nil)

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Extract sends one image to chat/completions and returns the parsed, normalized candidates.
// There is exactly one network attempt.
func (c *Client) Extract(ctx context.Context, image []byte, mimeType string) ([]entity.Candidate, error) {
	rid := uuid.New().String()
	start := time.Now()
	log := common.LoggerWith(ctx, c.log).With("req_id", rid)

	log.Info("llm.extract.start",
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"mime_type", mimeType,
		"image_bytes", len(image),
	)

	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []message{
			{Role: "system", Content: llm.SystemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: llm.UserPrompt},
				{Type: "image_url", ImageURL: &imageURL{URL: llm.DataURL(image, mimeType)}},
			}},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/chat/completions")
	if err != nil {
		log.Error("llm.extract.http_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, &llm.UpstreamError{Err: err}
	}
	if !resp.IsSuccess() {
		log.Error("llm.extract.http_status",
			"status", resp.StatusCode(),
			"bytes", len(resp.Body()),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, &llm.UpstreamError{Status: resp.StatusCode(), Body: string(resp.Body())}
	}

	content := messageText(resp.Body())
	if content == "" {
		log.Error("llm.extract.empty", "bytes", len(resp.Body()), "elapsed_ms", time.Since(start).Milliseconds())
		return nil, llm.ErrEmptyResponse
	}

	out := llm.CandidatesFromReply(c.parser, content)
	log.Info("llm.extract.ok",
		"candidates", len(out),
		"content_bytes", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// messageText pulls the first choice's text. Content may be a plain string or a list of typed parts.
func messageText(raw []byte) string {
	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil || len(cc.Choices) == 0 {
		return ""
	}
	content := cc.Choices[0].Message.Content
	if len(content) == 0 {
		return ""
	}

	// Whitespace-only content counts as empty and surfaces as ErrEmptyResponse.
	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var parts []contentPart
	if err := json.Unmarshal(content, &parts); err == nil {
		var b strings.Builder
		for _, p := range parts {
			if p.Type == "text" || p.Type == "" {
				b.WriteString(p.Text)
			}
		}
		return strings.TrimSpace(b.String())
	}
	return ""
}
