package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func newStubGemini(t *testing.T, handler http.HandlerFunc) *GeminiAPI {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     "test",
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: server.Client(),
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    server.URL,
			APIVersion: "v1beta",
		},
	})
	require.NoError(t, err)
	return newGeminiAPIWithClient(client, "test-model")
}

func textResponse(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	})
}

func TestGeminiAPIGenerate(t *testing.T) {
	var body string
	g := newStubGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/test-model:generateContent", r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		textResponse(w, `{"score": 8, "feedback": "ok"}`)
	})

	resp, err := g.Generate(context.Background(), Request{Prompt: "grade this", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"score": 8, "feedback": "ok"}`, resp.Text)
	assert.Equal(t, "test-model", resp.Model)
	assert.True(t, strings.Contains(body, "grade this"))
	assert.True(t, strings.Contains(body, "single JSON document"))
}

func TestGeminiAPIRateLimit(t *testing.T) {
	g := newStubGemini(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "429 rate limit", http.StatusTooManyRequests)
	})

	_, err := g.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ErrCodeRateLimit, pe.Code)
	assert.Equal(t, "gemini", pe.Provider)
}

func TestGeminiAPIEmptyResponse(t *testing.T) {
	g := newStubGemini(t, func(w http.ResponseWriter, r *http.Request) {
		textResponse(w, "   ")
	})

	_, err := g.Generate(context.Background(), Request{Prompt: "p"})
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ErrCodeEmpty, pe.Code)
}

func TestNewGeminiAPIRequiresKey(t *testing.T) {
	_, err := NewGeminiAPI(context.Background(), "", "")
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ErrCodeAPIKey, pe.Code)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrCodeTimeout, classify("x", "m", context.DeadlineExceeded).Code)
	assert.Equal(t, ErrCodeRateLimit, classify("x", "m", errors.New("RESOURCE_EXHAUSTED: quota")).Code)
	assert.Equal(t, ErrCodeAPIKey, classify("x", "m", errors.New("Error 403, PERMISSION_DENIED")).Code)
	assert.Equal(t, ErrCodeServiceDown, classify("x", "m", errors.New("connection reset")).Code)
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "openai"})
	assert.Error(t, err)
}
