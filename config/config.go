package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is loaded from DAYPLAN_* environment variables, with a .env file
// in the working directory taking part if present.
type Config struct {
	LLMProvider     string `envconfig:"LLM_PROVIDER" default:"anthropic"` // anthropic, openai, ollama
	AnthropicKey    string `envconfig:"ANTHROPIC_API_KEY"`                // X-Api-Key header
	AnthropicToken  string `envconfig:"ANTHROPIC_AUTH_TOKEN"`             // OAuth token, Bearer auth
	OpenAIKey       string `envconfig:"OPENAI_API_KEY"`
	LLMModel        string `envconfig:"LLM_MODEL"`
	OllamaBaseURL   string `envconfig:"OLLAMA_BASE_URL" default:"http://localhost:11434/v1"`
	MaxOutputTokens int64  `envconfig:"MAX_OUTPUT_TOKENS" default:"4096"`

	DatabasePath string `envconfig:"DATABASE_PATH" default:"./dayplan.db"`
	LogStoreDSN  string `envconfig:"LOG_STORE_DSN"` // postgres DSN; empty keeps logs in sqlite

	LoggingEnabled   bool   `envconfig:"LOGGING_ENABLED" default:"true"`
	DBLoggingEnabled bool   `envconfig:"DB_LOGGING_ENABLED" default:"false"`
	VerboseLogging   bool   `envconfig:"VERBOSE_LOGGING" default:"false"`
	LogLevel         string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty        bool   `envconfig:"LOG_PRETTY" default:"false"`

	DefaultLocale   string `envconfig:"DEFAULT_LOCALE" default:"es"`
	DefaultTimezone string `envconfig:"DEFAULT_TIMEZONE" default:"UTC"`

	MaxToolRounds    int           `envconfig:"MAX_TOOL_ROUNDS" default:"5"`
	TurnTimeout      time.Duration `envconfig:"TURN_TIMEOUT" default:"90s"`
	MaxContextTokens int           `envconfig:"MAX_CONTEXT_TOKENS" default:"100000"`
	IncludeExamples  bool          `envconfig:"INCLUDE_EXAMPLES" default:"true"`

	// Cents per million tokens.
	InputPriceCents  float64 `envconfig:"INPUT_PRICE_CENTS" default:"300"`
	OutputPriceCents float64 `envconfig:"OUTPUT_PRICE_CENTS" default:"1500"`

	HTTPAddr     string `envconfig:"HTTP_ADDR" default:":8080"`
	DiscordToken string `envconfig:"DISCORD_BOT_TOKEN"`
}

const envPrefix = "DAYPLAN"

func Load() (*Config, error) {
	_ = godotenv.Load() // ignore error if no .env

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.LLMProvider {
	case "anthropic", "openai", "ollama":
	default:
		return fmt.Errorf("unknown LLM provider: %s", c.LLMProvider)
	}
	if c.MaxToolRounds < 1 {
		return fmt.Errorf("MAX_TOOL_ROUNDS must be at least 1, got %d", c.MaxToolRounds)
	}
	if c.TurnTimeout <= 0 {
		return fmt.Errorf("TURN_TIMEOUT must be positive, got %s", c.TurnTimeout)
	}
	if c.MaxContextTokens < 1000 {
		return fmt.Errorf("MAX_CONTEXT_TOKENS must be at least 1000, got %d", c.MaxContextTokens)
	}
	return nil
}

// APIKey returns the key for the configured provider.
func (c *Config) APIKey() string {
	if c.LLMProvider == "openai" {
		return c.OpenAIKey
	}
	return c.AnthropicKey
}
