// Package config provides configuration for the docs agent service.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	Environment string `envconfig:"APP_ENV" default:"development"`
	HTTPPort    int    `envconfig:"HTTP_PORT" default:"8000"`
	// RPCAddr enables the internal JSON-RPC listener, e.g. ":8091".
	RPCAddr     string `envconfig:"RPC_ADDR"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Agents
	AgentsFile string `envconfig:"AGENTS_FILE"`

	Store  StoreConfig
	Runner RunnerConfig
	LLM    LLMConfig
	Tools  ToolsConfig
	WS     WSConfig

	// Timeouts
	AgentTimeout time.Duration `envconfig:"AGENT_TIMEOUT" default:"300s"`
	ToolTimeout  time.Duration `envconfig:"TOOL_TIMEOUT" default:"60s"`

	// Turn admission
	SerializeTurns     bool  `envconfig:"SERIALIZE_TURNS" default:"true"`
	MaxConcurrentTurns int64 `envconfig:"MAX_CONCURRENT_TURNS" default:"64"`

	// Turn events
	NATSURL string `envconfig:"NATS_URL"`

	// Telemetry
	ServiceName  string `envconfig:"OTEL_SERVICE_NAME" default:"docsagent"`
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// StoreConfig selects and configures the conversation state backend.
type StoreConfig struct {
	Backend       string        `envconfig:"STORE_BACKEND" default:"sqlite"`
	SQLiteDSN     string        `envconfig:"SQLITE_DSN" default:"file:conversation_state.db?mode=rwc&_busy_timeout=5000&_journal_mode=WAL"`
	PostgresURL   string        `envconfig:"DATABASE_URL"`
	RedisURL      string        `envconfig:"REDIS_URL"`
	RedisTTL      time.Duration `envconfig:"REDIS_STATE_TTL" default:"0s"`
	CacheEnabled  bool          `envconfig:"STATE_CACHE_ENABLED" default:"false"`
	CacheMaxBytes int64         `envconfig:"STATE_CACHE_MAX_BYTES" default:"67108864"`
}

// RunnerConfig selects the agent runner.
type RunnerConfig struct {
	Mode     string `envconfig:"RUNNER_MODE" default:"local"`
	Endpoint string `envconfig:"RUNNER_ENDPOINT"`
	MaxSteps int    `envconfig:"RUNNER_MAX_STEPS" default:"10"`
}

// LLMConfig holds model provider credentials.
type LLMConfig struct {
	Mode            string `envconfig:"LLM_MODE"`
	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `envconfig:"OPENAI_BASE_URL"`
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	GeminiAPIKey    string `envconfig:"GEMINI_API_KEY"`
}

// ToolsConfig configures the built-in tools.
type ToolsConfig struct {
	WandbotBaseURL   string `envconfig:"WANDBOT_BASE_URL"`
	DisableZendesk   bool   `envconfig:"DISABLE_ZENDESK" default:"false"`
	UseZendesk       bool   `envconfig:"USE_ZENDESK" default:"false"`
	ZendeskSubdomain string `envconfig:"ZENDESK_SUBDOMAIN"`
	ZendeskEmail     string `envconfig:"ZENDESK_EMAIL"`
	ZendeskAPIToken  string `envconfig:"ZENDESK_API_TOKEN"`
}

// WSConfig configures the websocket endpoint.
type WSConfig struct {
	ReadTimeout    time.Duration `envconfig:"WS_READ_TIMEOUT" default:"60s"`
	WriteTimeout   time.Duration `envconfig:"WS_WRITE_TIMEOUT" default:"10s"`
	PingInterval   time.Duration `envconfig:"WS_PING_INTERVAL" default:"30s"`
	MaxMessageSize int64         `envconfig:"WS_MAX_MESSAGE_SIZE" default:"65536"`
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite", "memory":
	case "postgres":
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case "redis":
		if c.Store.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}

	switch c.Runner.Mode {
	case "local":
	case "remote":
		if c.Runner.Endpoint == "" {
			return fmt.Errorf("RUNNER_ENDPOINT is required for the remote runner")
		}
	default:
		return fmt.Errorf("unknown RUNNER_MODE %q", c.Runner.Mode)
	}

	if c.Runner.MaxSteps <= 0 {
		return fmt.Errorf("RUNNER_MAX_STEPS must be positive")
	}
	if c.MaxConcurrentTurns <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_TURNS must be positive")
	}
	return nil
}

// Production reports whether the service runs in production mode.
func (c *Config) Production() bool {
	return c.Environment == "production"
}
