package llm

import (
	"context"
	"strings"
	"time"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type VertexGemini struct {
	client    *vertexgenai.Client
	model     *vertexgenai.GenerativeModel
	jsonModel *vertexgenai.GenerativeModel
	modelName string
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName, credentialsFile string) (*VertexGemini, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	c, err := vertexgenai.NewClient(ctx, projectID, location, opts...)
	if err != nil {
		return nil, &ProviderError{Provider: "vertex", Code: ErrCodeAPIKey, Message: "failed to create vertex client", Err: err}
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	m := c.GenerativeModel(modelName)
	m.SetTemperature(0.7)

	jm := c.GenerativeModel(modelName)
	jm.SetTemperature(0.4)
	jm.ResponseMIMEType = "application/json"

	return &VertexGemini{client: c, model: m, jsonModel: jm, modelName: modelName}, nil
}

func (v *VertexGemini) Name() string { return "vertex" }

func (v *VertexGemini) Close() error { return v.client.Close() }

// Generate streams the answer and joins the chunks; a stream that yields
// nothing is an error.
func (v *VertexGemini) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	m := v.model
	if req.JSON {
		m = v.jsonModel
	}

	var full strings.Builder
	it := m.GenerateContentStream(ctx, vertexgenai.Text(req.Prompt))
	for {
		resp, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classify("vertex", "generate content failed", err)
		}

		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if t, ok := part.(vertexgenai.Text); ok && string(t) != "" {
					full.WriteString(string(t))
				}
			}
		}
	}

	if strings.TrimSpace(full.String()) == "" {
		return nil, &ProviderError{Provider: "vertex", Code: ErrCodeEmpty, Message: "empty response generated"}
	}
	return &Response{Text: full.String(), Model: v.modelName, Latency: time.Since(start)}, nil
}
