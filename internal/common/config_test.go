package common

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cardscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  dsn: file:from-yaml.db
llm:
  provider: gemini
  model: gemini-2.5-pro
  timeout: 10s
pipeline:
  rate_limit_rps: 2
  poc_name: Grace
log_level: debug
`), 0o644))

	t.Chdir(dir)
	for _, k := range []string{"DB_URL", "LLM_PROVIDER", "LLM_API_KEY", "EXTRACT_RATE_LIMIT_RPS", "POC_NAME", "LOG_LEVEL", "LLM_TIMEOUT"} {
		t.Setenv(k, "")
	}
	t.Setenv("CARDSCAN_CONFIG", path)
	t.Setenv("LLM_MODEL", "gemini-2.5-flash")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("DB_STORE_TIMEOUT", "3s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "file:from-yaml.db", cfg.Database.DSN)
	assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, "g-key", cfg.LLM.APIKey)
	assert.Equal(t, 10*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 3*time.Second, cfg.Database.StoreTimeout)
	assert.Equal(t, 2.0, cfg.Pipeline.RateLimitRPS)
	assert.Equal(t, "Grace", cfg.Pipeline.POCName)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unterminated"), 0o644))
	t.Chdir(t.TempDir())
	t.Setenv("CARDSCAN_CONFIG", path)

	_, err := LoadConfig()
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Database: DatabaseConfig{DSN: "file:x.db"},
			LLM:      LLMConfig{Provider: ProviderOpenAI, APIKey: "k"},
		}
	}
	require.NoError(t, base().Validate())

	cases := map[string]func(*Config){
		"missing key":      func(c *Config) { c.LLM.APIKey = "" },
		"unknown provider": func(c *Config) { c.LLM.Provider = "bedrock" },
		"missing dsn":      func(c *Config) { c.Database.DSN = "" },
		"negative rate":    func(c *Config) { c.Pipeline.RateLimitRPS = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, IsConfigError(err))
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestToStatus(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{fmt.Errorf("get: %w", ErrNotFound), codes.NotFound},
		{fmt.Errorf("update: %w", ErrInvalidInput), codes.InvalidArgument},
		{ErrConfirmationRequired, codes.FailedPrecondition},
		{errors.New("boom"), codes.Internal},
		{InvalidArgumentError("bad"), codes.InvalidArgument},
	}
	for _, c := range cases {
		assert.Equal(t, c.code, status.Code(ToStatus(c.err)), c.err.Error())
	}
	assert.NoError(t, ToStatus(nil))
}

func TestValidator(t *testing.T) {
	v := NewValidator().
		Field("name", "  ", Required).
		Field("field", "nope", OneOf("email", "phone")).
		Field("value", "abcdef", MaxLength(3)).
		Field("id", "not-a-uuid", UUID)
	require.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 4)
	assert.ErrorIs(t, v.Error(), ErrInvalidInput)

	assert.NoError(t, NewValidator().Field("field", "email", OneOf("email")).Error())
}
