package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient sends one flattened transcript per call. The system
// instruction is fixed when the client is built.
type GeminiClient struct {
	models contentGenerator
	model  string
	config *genai.GenerateContentConfig
}

func NewGemini(ctx context.Context, apiKey, model, system string, params Params) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init gemini client: %w", err)
	}
	return newGemini(client.Models, model, system, params), nil
}

func newGemini(models contentGenerator, model, system string, params Params) *GeminiClient {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(params.Temperature),
		MaxOutputTokens: int32(params.MaxTokens),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	return &GeminiClient{models: models, model: model, config: cfg}
}

func (c *GeminiClient) Variant() Variant { return VariantGemini }

func (c *GeminiClient) Generate(ctx context.Context, p Payload) (Response, error) {
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(p.Transcript), c.config)
	if err != nil {
		return Response{}, generationErr(VariantGemini, err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Response{}, generationErr(VariantGemini, errors.New("empty response"))
	}

	out := Response{Content: strings.TrimSpace(resp.Text()), Model: c.model}
	if u := resp.UsageMetadata; u != nil {
		out.PromptTokens = int(u.PromptTokenCount)
		out.CompletionTokens = int(u.CandidatesTokenCount)
		out.TotalTokens = int(u.TotalTokenCount)
	}
	return out, nil
}
