package llm

import (
	"context"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiAPI talks to the public Gemini API with an API key.
type GeminiAPI struct {
	client *genai.Client
	model  string
}

func NewGeminiAPI(ctx context.Context, apiKey, model string) (*GeminiAPI, error) {
	if apiKey == "" {
		return nil, &ProviderError{Provider: "gemini", Code: ErrCodeAPIKey, Message: "GEMINI_API_KEY is required"}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &ProviderError{Provider: "gemini", Code: ErrCodeAPIKey, Message: "failed to create gemini client", Err: err}
	}
	return newGeminiAPIWithClient(client, model), nil
}

func newGeminiAPIWithClient(client *genai.Client, model string) *GeminiAPI {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiAPI{client: client, model: model}
}

func (g *GeminiAPI) Name() string { return "gemini" }

func (g *GeminiAPI) Close() error { return nil }

func (g *GeminiAPI) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	prompt := req.Prompt
	if req.JSON {
		prompt += "\n\nRespond with a single JSON document and nothing else."
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return nil, classify("gemini", "generate content failed", err)
	}
	if result == nil {
		return nil, &ProviderError{Provider: "gemini", Code: ErrCodeEmpty, Message: "no response generated"}
	}

	text, err := result.Text()
	if err != nil {
		return nil, &ProviderError{Provider: "gemini", Code: ErrCodeInvalidInput, Message: "failed to extract response text", Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &ProviderError{Provider: "gemini", Code: ErrCodeEmpty, Message: "empty response generated"}
	}

	return &Response{Text: text, Model: g.model, Latency: time.Since(start)}, nil
}
