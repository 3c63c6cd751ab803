package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/abhisek/lingoflow/internal/store"
)

// NewProvider creates a Provider from configuration, wrapped with retry,
// logging and metrics middleware.
func NewProvider(ctx context.Context, cfg Config, eventRepo store.EventRepo, log *zap.Logger) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var base Provider
	var err error

	switch cfg.Provider {
	case "ollama":
		oc := cfg.Ollama
		if oc.Timeout == 0 {
			oc.Timeout = cfg.Timeout
		}
		base, err = NewOllamaProvider(oc)
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case "mock":
		base = NewMockProvider()
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	// caller → retry → logging → metrics → base
	measured := WithMetrics(base)
	logged := WithLogging(measured, cfg.Provider, eventRepo, log)
	return WithRetry(logged, cfg.Retry), nil
}
