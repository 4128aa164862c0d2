package common

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/cardscan/constants"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
	LogLevel string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
	StoreTimeout    time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr    string
	MetricsAddr string
}

// LLMConfig holds extraction-service configuration
type LLMConfig struct {
	Provider    string
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// PipelineConfig holds dispatcher configuration
type PipelineConfig struct {
	RateLimitRPS float64
	POCName      string
}

// fileConfig mirrors the optional YAML file named by CARDSCAN_CONFIG.
// Every key is a default that the environment may override.
type fileConfig struct {
	Database struct {
		DSN      string `yaml:"dsn"`
		MaxConns int32  `yaml:"max_conns"`
		MinConns int32  `yaml:"min_conns"`
	} `yaml:"database"`
	Server struct {
		GRPCAddr    string `yaml:"grpc_addr"`
		MetricsAddr string `yaml:"metrics_addr"`
	} `yaml:"server"`
	LLM struct {
		Provider  string `yaml:"provider"`
		BaseURL   string `yaml:"base_url"`
		Model     string `yaml:"model"`
		MaxTokens int    `yaml:"max_tokens"`
		Timeout   string `yaml:"timeout"`
	} `yaml:"llm"`
	Pipeline struct {
		RateLimitRPS float64 `yaml:"rate_limit_rps"`
		POCName      string  `yaml:"poc_name"`
	} `yaml:"pipeline"`
	LogLevel string `yaml:"log_level"`
}

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	defaultDSN = "file:cardscan.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
)

// LoadConfig loads configuration from .env files, the optional YAML file and environment variables,
// in increasing order of precedence.
func LoadConfig() (*Config, error) {
	// godotenv never overrides variables that are already set.
	for _, f := range []string{".env.local", ".env"} {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return nil, NewAppError("CONFIG_ERROR", "failed to load "+f, err)
			}
		}
	}

	var fc fileConfig
	if path := os.Getenv("CARDSCAN_CONFIG"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError("CONFIG_ERROR", "failed to read config file", err)
		}
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "failed to parse config file", err)
		}
	}
	return fromSources(fc), nil
}

func fromSources(fc fileConfig) *Config {
	provider := strings.ToLower(getEnv("LLM_PROVIDER", or(fc.LLM.Provider, ProviderOpenAI)))
	return &Config{
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", or(fc.Database.DSN, defaultDSN)),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", orInt32(fc.Database.MaxConns, 10)),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", orInt32(fc.Database.MinConns, 1)),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StoreTimeout:    getEnvAsDuration("DB_STORE_TIMEOUT", constants.DefaultStoreTimeout),
		},
		Server: ServerConfig{
			GRPCAddr:    getEnv("GRPC_ADDR", or(fc.Server.GRPCAddr, ":8080")),
			MetricsAddr: getEnv("METRICS_ADDR", or(fc.Server.MetricsAddr, ":9090")),
		},
		LLM: LLMConfig{
			Provider:    provider,
			BaseURL:     getEnv("LLM_BASE_URL", fc.LLM.BaseURL),
			Model:       getEnv("LLM_MODEL", fc.LLM.Model),
			APIKey:      apiKeyFor(provider),
			Temperature: getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			MaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", orInt(fc.LLM.MaxTokens, constants.DefaultMaxTokens)),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", parseDurationOr(fc.LLM.Timeout, constants.DefaultExtractTimeout)),
		},
		Pipeline: PipelineConfig{
			RateLimitRPS: getEnvAsFloat64("EXTRACT_RATE_LIMIT_RPS", fc.Pipeline.RateLimitRPS),
			POCName:      getEnv("POC_NAME", fc.Pipeline.POCName),
		},
		LogLevel: getEnv("LOG_LEVEL", or(fc.LogLevel, "info")),
	}
}

// apiKeyFor resolves the credential, preferring LLM_API_KEY over provider-specific names.
func apiKeyFor(provider string) string {
	if v := getEnv("LLM_API_KEY", ""); v != "" {
		return v
	}
	if provider == ProviderGemini {
		return getEnv("GEMINI_API_KEY", "")
	}
	return getEnv("DAEDALUS_API_KEY", getEnv("OPENAI_API_KEY", ""))
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func parseDurationOr(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}

func or(v, def string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orInt32(v, def int32) int32 {
	if v > 0 {
		return v
	}
	return def
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.LLM.Provider != ProviderOpenAI && c.LLM.Provider != ProviderGemini {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown LLM_PROVIDER %q", c.LLM.Provider), ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "LLM_API_KEY is required", ErrInvalidInput)
	}
	if c.Pipeline.RateLimitRPS < 0 {
		return NewAppError("CONFIG_ERROR", "EXTRACT_RATE_LIMIT_RPS must be >= 0", ErrInvalidInput)
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
