// Package config loads runtime configuration from flags, LINGOFLOW_*
// environment variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/abhisek/lingoflow/internal/llm"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "lingoflow"

// Config is the resolved application configuration.
type Config struct {
	DBPath     string
	Addr       string
	LogLevel   string
	LogFile    string
	ClipartDir string

	// ScenarioCount is the size of a generated scenario batch.
	ScenarioCount int
	// ReplenishQueue bounds pending replacement jobs; extra jobs are dropped.
	ReplenishQueue int
	// ReplenishInterval is the minimum gap between replacement generations.
	ReplenishInterval time.Duration

	LLM llm.Config
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()

	d := llm.DefaultConfig()
	v.SetDefault("db", "")
	v.SetDefault("addr", "127.0.0.1:8080")
	v.SetDefault("log-level", "info")
	v.SetDefault("log-file", "")
	v.SetDefault("clipart-dir", "")
	v.SetDefault("scenario-count", 5)
	v.SetDefault("replenish-queue", 8)
	v.SetDefault("replenish-interval", 2*time.Second)

	v.SetDefault("llm.provider", d.Provider)
	v.SetDefault("llm.timeout", d.Timeout)
	v.SetDefault("llm.max-attempts", d.Retry.MaxAttempts)
	v.SetDefault("llm.ollama.base-url", d.Ollama.BaseURL)
	v.SetDefault("llm.ollama.model", d.Ollama.Model)
	v.SetDefault("llm.anthropic.api-key", "")
	v.SetDefault("llm.anthropic.model", d.Anthropic.Model)
	v.SetDefault("llm.openai.api-key", "")
	v.SetDefault("llm.openai.model", d.OpenAI.Model)
	v.SetDefault("llm.openai.base-url", "")
	v.SetDefault("llm.gemini.api-key", "")
	v.SetDefault("llm.gemini.model", d.Gemini.Model)
	v.SetDefault("llm.gemini.base-url", "")
	v.SetDefault("llm.openrouter.api-key", "")
	v.SetDefault("llm.openrouter.model", d.OpenRouter.Model)
	v.SetDefault("llm.openrouter.base-url", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// LoadDotEnv loads variables from the given files (".env" when none are
// named) without overriding ones already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load resolves a Config from v. The provider "auto" picks the first cloud
// provider with a well-known API key set and falls back to Ollama.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		DBPath:            v.GetString("db"),
		Addr:              v.GetString("addr"),
		LogLevel:          v.GetString("log-level"),
		LogFile:           v.GetString("log-file"),
		ClipartDir:        v.GetString("clipart-dir"),
		ScenarioCount:     v.GetInt("scenario-count"),
		ReplenishQueue:    v.GetInt("replenish-queue"),
		ReplenishInterval: v.GetDuration("replenish-interval"),
	}
	if cfg.ScenarioCount <= 0 {
		return Config{}, fmt.Errorf("scenario-count must be positive, got %d", cfg.ScenarioCount)
	}
	if cfg.ReplenishQueue <= 0 {
		return Config{}, fmt.Errorf("replenish-queue must be positive, got %d", cfg.ReplenishQueue)
	}

	l := llm.DefaultConfig()
	if p := v.GetString("llm.provider"); p == "auto" {
		l, _ = llm.DiscoverConfig()
	} else {
		l.Provider = p
	}
	l.Timeout = v.GetDuration("llm.timeout")
	l.Retry.MaxAttempts = v.GetInt("llm.max-attempts")

	l.Ollama.BaseURL = v.GetString("llm.ollama.base-url")
	l.Ollama.Model = v.GetString("llm.ollama.model")
	l.Ollama.Timeout = l.Timeout

	l.Anthropic.APIKey = firstNonEmpty(v.GetString("llm.anthropic.api-key"), l.Anthropic.APIKey)
	l.Anthropic.Model = v.GetString("llm.anthropic.model")
	l.OpenAI.APIKey = firstNonEmpty(v.GetString("llm.openai.api-key"), l.OpenAI.APIKey)
	l.OpenAI.Model = v.GetString("llm.openai.model")
	l.OpenAI.BaseURL = v.GetString("llm.openai.base-url")
	l.Gemini.APIKey = firstNonEmpty(v.GetString("llm.gemini.api-key"), l.Gemini.APIKey)
	l.Gemini.Model = v.GetString("llm.gemini.model")
	l.Gemini.BaseURL = v.GetString("llm.gemini.base-url")
	l.OpenRouter.APIKey = firstNonEmpty(v.GetString("llm.openrouter.api-key"), l.OpenRouter.APIKey)
	l.OpenRouter.Model = v.GetString("llm.openrouter.model")
	l.OpenRouter.BaseURL = v.GetString("llm.openrouter.base-url")

	if err := l.Validate(); err != nil {
		return Config{}, err
	}
	cfg.LLM = l
	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, s := range vals {
		if s != "" {
			return s
		}
	}
	return ""
}
