package stt

import (
	"context"
	"strings"
	"time"
)

// Transcription is the best recognition result for one audio clip.
type Transcription struct {
	Text       string
	Confidence float64
	// Duration is the end offset of the last recognized result.
	Duration time.Duration
}

type Provider interface {
	Transcribe(ctx context.Context, audio []byte, contentType, language string) (*Transcription, error)
	Close() error
}

// NormalizeLanguage maps profile languages onto BCP-47 recognition codes.
func NormalizeLanguage(v string) string {
	v = strings.TrimSpace(v)
	switch v {
	case "id", "id-ID":
		return "id-ID"
	case "", "en", "en-US":
		return "en-US"
	default:
		return v
	}
}
