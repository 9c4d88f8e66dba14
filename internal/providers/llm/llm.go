package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Request is one prompt sent to a model.
type Request struct {
	Prompt string
	// JSON asks the model to answer with a JSON document only.
	JSON bool
}

type Response struct {
	Text    string
	Model   string
	Latency time.Duration
}

type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Name() string
	Close() error
}

const (
	ErrCodeAPIKey       = "invalid_api_key"
	ErrCodeRateLimit    = "rate_limit_exceeded"
	ErrCodeServiceDown  = "service_unavailable"
	ErrCodeInvalidInput = "invalid_input"
	ErrCodeEmpty        = "empty_response"
	ErrCodeTimeout      = "timeout"
)

// ProviderError is the only error shape providers return.
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider + " error: " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Provider + " error: " + e.Message
}

func (e *ProviderError) Unwrap() error { return e.Err }

// classify maps a transport error onto a ProviderError code.
func classify(provider, msg string, err error) *ProviderError {
	code := ErrCodeServiceDown
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = ErrCodeTimeout
	case isRateLimitError(err):
		code = ErrCodeRateLimit
	case isAuthError(err):
		code = ErrCodeAPIKey
	}
	return &ProviderError{Provider: provider, Code: code, Message: msg, Err: err}
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "429") ||
		strings.Contains(s, "RESOURCE_EXHAUSTED") ||
		strings.Contains(strings.ToLower(s), "quota")
}

func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "401") || strings.Contains(s, "403") ||
		strings.Contains(s, "API_KEY_INVALID") || strings.Contains(s, "PERMISSION_DENIED")
}

type Config struct {
	Provider string // vertex|gemini

	APIKey string
	Model  string

	ProjectID       string
	Location        string
	CredentialsFile string
}

// New builds the provider named by cfg.Provider.
func New(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "vertex":
		return NewVertexGemini(ctx, cfg.ProjectID, cfg.Location, cfg.Model, cfg.CredentialsFile)
	case "gemini", "":
		return NewGeminiAPI(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
