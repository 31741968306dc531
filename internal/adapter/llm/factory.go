package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xiaot623/docsagent/internal/config"
	"github.com/xiaot623/docsagent/internal/logx"
)

const (
	// ModeMock selects the mock model for every provider.
	ModeMock = "MOCK"

	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Factory hands out one ChatModel per provider, creating clients on first
// use.
type Factory struct {
	cfg  config.LLMConfig
	mock bool

	mu     sync.Mutex
	models map[string]ChatModel
}

// NewFactory creates a factory. With LLM_MODE=MOCK every provider resolves
// to the mock model.
func NewFactory(cfg config.LLMConfig) *Factory {
	mock := strings.EqualFold(cfg.Mode, ModeMock)
	if mock {
		logx.Info().Msg("LLM_MODE=MOCK detected, using mock chat model")
	}
	return &Factory{cfg: cfg, mock: mock, models: make(map[string]ChatModel)}
}

// Register installs model for provider, replacing any client the factory
// would build.
func (f *Factory) Register(provider string, model ChatModel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.models[provider] = model
}

// Model returns the chat model for provider.
func (f *Factory) Model(ctx context.Context, provider string) (ChatModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if m, ok := f.models[provider]; ok {
		return m, nil
	}

	var (
		m   ChatModel
		err error
	)
	switch {
	case f.mock:
		m = NewMockModel()
	case provider == ProviderOpenAI:
		if f.cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not configured")
		}
		m = NewOpenAIModel(f.cfg.OpenAIAPIKey, f.cfg.OpenAIBaseURL)
	case provider == ProviderAnthropic:
		if f.cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is not configured")
		}
		m = NewAnthropicModel(f.cfg.AnthropicAPIKey)
	case provider == ProviderGemini:
		if f.cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is not configured")
		}
		m, err = NewGeminiModel(ctx, f.cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown model provider %q", provider)
	}

	f.models[provider] = m
	return m, nil
}
