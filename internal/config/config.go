package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	NarratorOllama = "ollama"
	NarratorGemini = "gemini"
)

// Config holds all environmentally dependent settings for the MovieSage API.
type Config struct {
	DatabasePath string `env:"MOVIE_DATABASE_PATH" envDefault:"data/movies.db"`
	LogLevel     string `env:"MOVIE_LOG_LEVEL" envDefault:"info"`
	HTTPAddr     string `env:"MOVIE_HTTP_ADDR" envDefault:":8080"`

	OllamaModel   string `env:"MOVIE_OLLAMA_MODEL" envDefault:"llama3.2"`
	OllamaBaseURL string `env:"MOVIE_OLLAMA_BASE_URL" envDefault:"http://localhost:11434"`
	PullModel     bool   `env:"MOVIE_PULL_MODEL" envDefault:"false"`

	NarratorBackend string `env:"MOVIE_NARRATOR_BACKEND" envDefault:"ollama"`
	GeminiAPIKey    string `env:"MOVIE_GEMINI_API_KEY"`
	GeminiModel     string `env:"MOVIE_GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	LLMTimeoutSec   int    `env:"MOVIE_LLM_TIMEOUT_SEC" envDefault:"30"`

	AgentMaxIterations int `env:"MOVIE_AGENT_MAX_ITERATIONS" envDefault:"3"`
	AgentTimeoutSec    int `env:"MOVIE_AGENT_TIMEOUT_SEC" envDefault:"10"`

	TopRatedMinVotes int `env:"MOVIE_TOP_RATED_MIN_VOTES" envDefault:"100"`
}

// Validate ensures that all required configuration is present and valid.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("MOVIE_DATABASE_PATH is required")
	}
	if c.OllamaBaseURL == "" {
		return fmt.Errorf("MOVIE_OLLAMA_BASE_URL is required")
	}
	if c.OllamaModel == "" {
		return fmt.Errorf("MOVIE_OLLAMA_MODEL is required")
	}

	switch strings.ToLower(c.NarratorBackend) {
	case NarratorOllama:
	case NarratorGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("MOVIE_GEMINI_API_KEY is required when MOVIE_NARRATOR_BACKEND is gemini")
		}
	default:
		return fmt.Errorf("MOVIE_NARRATOR_BACKEND must be %q or %q, got %q", NarratorOllama, NarratorGemini, c.NarratorBackend)
	}

	if c.LLMTimeoutSec < 1 {
		return fmt.Errorf("MOVIE_LLM_TIMEOUT_SEC must be at least 1")
	}
	if c.AgentMaxIterations < 1 {
		return fmt.Errorf("MOVIE_AGENT_MAX_ITERATIONS must be at least 1")
	}
	if c.AgentTimeoutSec < 1 {
		return fmt.Errorf("MOVIE_AGENT_TIMEOUT_SEC must be at least 1")
	}
	if c.TopRatedMinVotes < 0 {
		return fmt.Errorf("MOVIE_TOP_RATED_MIN_VOTES cannot be negative")
	}
	return nil
}

func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSec) * time.Second
}

func (c *Config) AgentTimeout() time.Duration {
	return time.Duration(c.AgentTimeoutSec) * time.Second
}

// Load reads an optional .env file, then the environment, and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.NarratorBackend = strings.ToLower(cfg.NarratorBackend)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
