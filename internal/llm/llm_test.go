package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

type fakeCompleter struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

type fakeModels struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	return f.resp, f.err
}

func TestParseVariant(t *testing.T) {
	cases := map[string]Variant{"gemini": VariantGemini, "GPT": VariantGPT, " Gemini ": VariantGemini}
	for in, want := range cases {
		got, ok := ParseVariant(in)
		if !ok || got != want {
			t.Fatalf("ParseVariant(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParseVariant("dalle"); ok {
		t.Fatalf("dalle must not parse")
	}
}

func TestOpenAIGenerate_MapsRolesAndParams(t *testing.T) {
	fc := &fakeCompleter{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "  hello there \n"}}},
		Usage:   openai.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
	}}
	c := &OpenAIClient{client: fc, model: "gpt-4o-mini", maxTokens: 150, temperature: 0.7}

	resp, err := c.Generate(context.Background(), Payload{Messages: []Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hey"},
		{Role: "user", Content: "bye"},
	}})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Content != "hello there" {
		t.Fatalf("reply not trimmed: %q", resp.Content)
	}
	if resp.TotalTokens != 5 || resp.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected meta: %+v", resp)
	}
	if fc.req.MaxTokens != 150 || fc.req.Temperature != 0.7 {
		t.Fatalf("generation params not applied: %+v", fc.req)
	}
	wantRoles := []string{openai.ChatMessageRoleSystem, openai.ChatMessageRoleUser, openai.ChatMessageRoleAssistant, openai.ChatMessageRoleUser}
	for i, m := range fc.req.Messages {
		if m.Role != wantRoles[i] {
			t.Fatalf("message %d role = %q, want %q", i, m.Role, wantRoles[i])
		}
	}
}

func TestOpenAIGenerate_Errors(t *testing.T) {
	cause := errors.New("quota exceeded")
	c := &OpenAIClient{client: &fakeCompleter{err: cause}, model: "m"}
	_, err := c.Generate(context.Background(), Payload{})
	var gerr *GenerationError
	if !errors.As(err, &gerr) || gerr.Backend != VariantGPT {
		t.Fatalf("want GenerationError, got %v", err)
	}
	if !errors.Is(err, ErrGeneration) || !errors.Is(err, cause) {
		t.Fatalf("error chain broken: %v", err)
	}

	c = &OpenAIClient{client: &fakeCompleter{}, model: "m"}
	if _, err := c.Generate(context.Background(), Payload{}); !errors.Is(err, ErrGeneration) {
		t.Fatalf("empty choices must be a generation error, got %v", err)
	}
}

func TestGeminiGenerate(t *testing.T) {
	fm := &fakeModels{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: "\n  Sure!  "}}}}},
	}}
	c := newGemini(fm, "gemini-2.0-flash", "be nice", Params{MaxTokens: 150, Temperature: 0.7})

	resp, err := c.Generate(context.Background(), Payload{Transcript: "sys\nUser: hi\nAssistant:"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Content != "Sure!" {
		t.Fatalf("reply not trimmed: %q", resp.Content)
	}
	if fm.model != "gemini-2.0-flash" || len(fm.contents) != 1 {
		t.Fatalf("unexpected request: model=%s contents=%d", fm.model, len(fm.contents))
	}
	if got := fm.contents[0].Parts[0].Text; got != "sys\nUser: hi\nAssistant:" {
		t.Fatalf("transcript not sent verbatim: %q", got)
	}
	if fm.config.SystemInstruction == nil || fm.config.SystemInstruction.Parts[0].Text != "be nice" {
		t.Fatalf("system instruction missing")
	}
	if fm.config.MaxOutputTokens != 150 || *fm.config.Temperature != 0.7 {
		t.Fatalf("generation params not applied")
	}
}

func TestGeminiGenerate_Errors(t *testing.T) {
	c := newGemini(&fakeModels{err: errors.New("boom")}, "m", "", Params{})
	if _, err := c.Generate(context.Background(), Payload{}); !errors.Is(err, ErrGeneration) {
		t.Fatalf("want generation error, got %v", err)
	}
	c = newGemini(&fakeModels{resp: &genai.GenerateContentResponse{}}, "m", "", Params{})
	if _, err := c.Generate(context.Background(), Payload{}); !errors.Is(err, ErrGeneration) {
		t.Fatalf("empty candidates must be a generation error, got %v", err)
	}
}

func TestHeaderTransportAddsHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	h := http.Header{}
	h.Set("X-Title", "chat-proxy")
	client := &http.Client{Transport: headerTransport{rt: http.DefaultTransport, headers: h}}
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if got.Get("X-Title") != "chat-proxy" {
		t.Fatalf("header not injected: %v", got)
	}
	if req.Header.Get("X-Title") != "" {
		t.Fatalf("original request mutated")
	}
}

func TestFactoryCreateClient(t *testing.T) {
	f := &Factory{OpenaiModel: "gpt-4o-mini", GeminiModel: "gemini-2.0-flash", Params: Params{MaxTokens: 10}}
	c, err := f.CreateClient(context.Background(), VariantGPT, "sk-test", "sys")
	if err != nil || c.Variant() != VariantGPT {
		t.Fatalf("gpt client: %v %v", c, err)
	}
	c, err = f.CreateClient(context.Background(), VariantGemini, "key", "sys")
	if err != nil || c.Variant() != VariantGemini {
		t.Fatalf("gemini client: %v %v", c, err)
	}
	if _, err := f.CreateClient(context.Background(), Variant("dalle"), "k", ""); err == nil {
		t.Fatalf("unknown variant must fail")
	}
}
