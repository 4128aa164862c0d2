package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cardscan/constants"
	"github.com/joseph-ayodele/cardscan/internal/common"
	"github.com/joseph-ayodele/cardscan/internal/llm"
)

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	return string(b)
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL, Timeout: 2 * time.Second}, nil)
	require.NoError(t, err)
	return c
}

func TestNewClient_MissingKeyIsConfigError(t *testing.T) {
	t.Parallel()

	c, err := NewClient(Config{}, nil)
	assert.Nil(t, c)
	require.Error(t, err)
	assert.True(t, common.IsConfigError(err))
}

func TestExtract_SendsImageAndFixedParameters(t *testing.T) {
	t.Parallel()

	var got chatRequest
	var auth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")

		var raw struct {
			Model       string            `json:"model"`
			MaxTokens   int               `json:"max_tokens"`
			Temperature float32           `json:"temperature"`
			Messages    []json.RawMessage `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		got.Model, got.MaxTokens, got.Temperature = raw.Model, raw.MaxTokens, raw.Temperature

		var user struct {
			Content []contentPart `json:"content"`
		}
		require.Len(t, raw.Messages, 2)
		require.NoError(t, json.Unmarshal(raw.Messages[1], &user))
		require.Len(t, user.Content, 2)
		assert.Equal(t, llm.UserPrompt, user.Content[0].Text)
		require.NotNil(t, user.Content[1].ImageURL)
		assert.Equal(t, "data:image/png;base64,aW1n", user.Content[1].ImageURL.URL)

		_, _ = w.Write([]byte(completion(`[{"full_name":"John","email":" John@Example.COM ","phone":"555.123.4567"}]`)))
	})

	out, err := c.Extract(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", auth)
	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, constants.DefaultMaxTokens, got.MaxTokens)
	assert.Zero(t, got.Temperature)

	require.Len(t, out, 1)
	assert.Equal(t, "John", *out[0].FullName)
	assert.Equal(t, "john@example.com", *out[0].Email)
	assert.Equal(t, "+15551234567", *out[0].Phone)
}

func TestExtract_NonSuccessIsUpstreamFailure(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	})

	_, err := c.Extract(context.Background(), []byte("img"), "image/jpeg")
	var ue *llm.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusTooManyRequests, ue.Status)
	assert.Contains(t, ue.Body, "slow down")
	assert.True(t, llm.IsUpstreamFailure(err))
}

func TestExtract_MissingContentIsEmptyResponse(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`{"choices":[]}`, completion("   "), `not json`} {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(body))
		})
		_, err := c.Extract(context.Background(), []byte("img"), "image/jpeg")
		assert.ErrorIs(t, err, llm.ErrEmptyResponse, "body %q", body)
	}
}

func TestExtract_UnparseableReplyBecomesDiagnostic(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(completion("This is not JSON")))
	})

	out, err := c.Extract(context.Background(), []byte("img"), "image/jpeg")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, constants.DiagnosticNotesPrefix+"This is not JSON", *out[0].Notes)
}

func TestExtract_ContentParts(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":[{"type":"text","text":"{\"full_name\":\"Ada\"}"}]}}]}`))
	})

	out, err := c.Extract(context.Background(), []byte("img"), "image/jpeg")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Ada", *out[0].FullName)
}

func TestExtract_SingleAttemptAndTimeout(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	require.NoError(t, err)

	_, err = c.Extract(context.Background(), []byte("img"), "image/jpeg")
	var ue *llm.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Zero(t, ue.Status)
	assert.EqualValues(t, 1, calls.Load())
}
