package llm

import (
	"context"
	"fmt"

	"chat-proxy/internal/config"
)

// Params are the fixed generation settings applied to every call.
type Params struct {
	MaxTokens   int
	Temperature float32
}

// Factory creates LLM clients with consistent logic
type Factory struct {
	OpenaiBaseURL      string
	OpenaiModel        string
	OpenRouterReferrer string
	OpenRouterTitle    string
	GeminiModel        string
	Params             Params
}

func NewFactory(cfg *config.Config) *Factory {
	return &Factory{
		OpenaiBaseURL:      cfg.OpenAIBaseURL,
		OpenaiModel:        cfg.OpenAIModel,
		OpenRouterReferrer: cfg.OpenRouterReferrer,
		OpenRouterTitle:    cfg.OpenRouterTitle,
		GeminiModel:        cfg.GeminiModel,
		Params: Params{
			MaxTokens:   cfg.MaxOutputTokens,
			Temperature: cfg.Temperature,
		},
	}
}

// CreateClient builds a client for variant bound to credential. system is
// used by Gemini as its system instruction; GPT carries it in the payload.
func (f *Factory) CreateClient(ctx context.Context, variant Variant, credential, system string) (Client, error) {
	switch variant {
	case VariantGPT:
		return NewOpenAI(credential, f.OpenaiBaseURL, f.OpenaiModel, f.OpenRouterReferrer, f.OpenRouterTitle, f.Params), nil
	case VariantGemini:
		return NewGemini(ctx, credential, f.GeminiModel, system, f.Params)
	default:
		return nil, fmt.Errorf("unknown llm variant: %s", variant)
	}
}
