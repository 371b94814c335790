package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenthands/storyforge/internal/config"
	"github.com/agenthands/storyforge/internal/errs"
)

const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ErrNoProvider is the remediation message returned when no credential is set.
const ErrNoProvider = "No AI provider configured. Set GEMINI_API_KEY or OPENAI_API_KEY"

// Selection is the provider decided once at startup.
type Selection struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

// Select decides the provider from cfg. An explicit provider wins; otherwise
// the first configured credential in the order gemini, openai, anthropic.
func Select(cfg config.LLMConfig) (Selection, error) {
	gemini := Selection{Provider: ProviderGemini, APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel}
	openai := Selection{Provider: ProviderOpenAI, APIKey: cfg.OpenAIAPIKey, Model: cfg.OpenAIModel, BaseURL: cfg.OpenAIBaseURL}
	anthropic := Selection{Provider: ProviderAnthropic, APIKey: cfg.AnthropicAPIKey, Model: cfg.AnthropicModel}

	switch strings.ToLower(cfg.Provider) {
	case ProviderGemini:
		return requireKey(gemini)
	case ProviderOpenAI:
		// OpenAI-compatible servers such as Ollama accept any key.
		if openai.APIKey == "" && openai.BaseURL != "" {
			openai.APIKey = "ollama"
		}
		return requireKey(openai)
	case ProviderAnthropic:
		return requireKey(anthropic)
	case "":
	default:
		return Selection{}, errs.Config(fmt.Sprintf("unsupported llm provider: %s", cfg.Provider), nil)
	}

	for _, s := range []Selection{gemini, openai, anthropic} {
		if s.APIKey != "" {
			return s, nil
		}
	}
	return Selection{}, errs.Config(ErrNoProvider, nil)
}

func requireKey(s Selection) (Selection, error) {
	if s.APIKey == "" {
		return Selection{}, errs.Config(ErrNoProvider, nil)
	}
	return s, nil
}

// New builds the Provider for sel and wraps it in a Client.
func New(ctx context.Context, sel Selection, requestsPerMinute int) (*Client, error) {
	var p Provider
	switch sel.Provider {
	case ProviderOpenAI:
		p = NewOpenAIClient(sel.APIKey, sel.Model, sel.BaseURL)
	case ProviderGemini:
		g, err := NewGeminiClient(ctx, sel.APIKey, sel.Model)
		if err != nil {
			return nil, errs.Config("failed to initialise Gemini client", err)
		}
		p = g
	case ProviderAnthropic:
		p = NewClaudeClient(sel.APIKey, sel.Model, sel.BaseURL)
	default:
		return nil, errs.Config(fmt.Sprintf("unsupported llm provider: %s", sel.Provider), nil)
	}
	return NewClient(p, requestsPerMinute), nil
}
