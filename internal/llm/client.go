package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Variant names one of the two supported generation styles. It is also the
// model selector accepted from callers.
type Variant string

const (
	// VariantGemini takes one flattened transcript per call.
	VariantGemini Variant = "gemini"
	// VariantGPT takes a structured system+history message list.
	VariantGPT Variant = "gpt"
)

// ParseVariant accepts a model selector case-insensitively.
func ParseVariant(model string) (Variant, bool) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(model))); v {
	case VariantGemini, VariantGPT:
		return v, true
	default:
		return "", false
	}
}

type Message struct {
	Role    string
	Content string
}

// Payload is what a session hands to its client. Gemini clients read
// Transcript, GPT clients read Messages.
type Payload struct {
	System     string
	Transcript string
	Messages   []Message
}

type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Client is a text-generation backend bound to one credential. Generate
// returns trimmed text and never retries; failures are *GenerationError.
type Client interface {
	Variant() Variant
	Generate(ctx context.Context, p Payload) (Response, error)
}

var ErrGeneration = errors.New("llm: generation failed")

type GenerationError struct {
	Backend Variant
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Backend, e.Err)
}

func (e *GenerationError) Unwrap() []error { return []error{ErrGeneration, e.Err} }

func generationErr(v Variant, err error) error {
	return &GenerationError{Backend: v, Err: err}
}
