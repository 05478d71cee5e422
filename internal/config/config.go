package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const (
	BackendOpenAI = "openai"
	BackendRelay  = "relay"
)

// Config holds application configuration. Required fields halt startup
// when absent.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	Debug      bool   `env:"DEBUG"`

	// Identity provider (GoTrue-style HTTP API)
	IdentityBaseURL string `env:"IDENTITY_BASE_URL,required"`
	IdentityAPIKey  string `env:"IDENTITY_API_KEY,required"`

	// Persistence
	DBPath string `env:"DB_PATH,required"`

	// Session tokens issued to the presentation layer
	JWTSecret string `env:"JWT_SECRET,required"`

	// Conversational backend
	Backend         string `env:"CHAT_BACKEND" envDefault:"openai"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	OpenAIModel     string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	RelayWebhookURL string `env:"RELAY_WEBHOOK_URL"`

	// Speech-to-text (optional; voice input disabled when unset)
	GoogleCredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	// A missing .env is fine; the environment may carry everything.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	switch cfg.Backend {
	case BackendOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return Config{}, fmt.Errorf("CHAT_BACKEND=openai requires OPENAI_API_KEY")
		}
	case BackendRelay:
		if cfg.RelayWebhookURL == "" {
			return Config{}, fmt.Errorf("CHAT_BACKEND=relay requires RELAY_WEBHOOK_URL")
		}
	default:
		return Config{}, fmt.Errorf("unknown chat backend: %s", cfg.Backend)
	}

	return cfg, nil
}
