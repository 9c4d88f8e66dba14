package stt

import (
	"context"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
)

type GoogleSpeech struct {
	c *speech.Client
}

func NewGoogleSpeech(ctx context.Context, credentialsFile string) (*GoogleSpeech, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GoogleSpeech{c: c}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

// recognitionConfig picks the encoding from the upload's content type.
// WAV and FLAC carry their own headers, so rate and encoding are left for
// the service to detect.
func recognitionConfig(contentType, language string) *speechpb.RecognitionConfig {
	cfg := &speechpb.RecognitionConfig{
		LanguageCode:               NormalizeLanguage(language),
		EnableAutomaticPunctuation: true,
	}
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "webm"):
		cfg.Encoding = speechpb.RecognitionConfig_WEBM_OPUS
		cfg.SampleRateHertz = 48000
	case strings.Contains(ct, "ogg"):
		cfg.Encoding = speechpb.RecognitionConfig_OGG_OPUS
		cfg.SampleRateHertz = 48000
	case strings.Contains(ct, "flac"), strings.Contains(ct, "wav"):
		cfg.Encoding = speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	default:
		cfg.Encoding = speechpb.RecognitionConfig_LINEAR16
		cfg.SampleRateHertz = 16000
	}
	return cfg
}

func (g *GoogleSpeech) Transcribe(ctx context.Context, audio []byte, contentType, language string) (*Transcription, error) {
	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: recognitionConfig(contentType, language),
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return nil, err
	}

	// results are consecutive segments; keep the best alternative of each
	var parts []string
	var confSum float64
	var end time.Duration
	for _, r := range resp.Results {
		var best *speechpb.SpeechRecognitionAlternative
		for _, alt := range r.Alternatives {
			if alt.Transcript != "" && (best == nil || alt.Confidence > best.Confidence) {
				best = alt
			}
		}
		if best != nil {
			parts = append(parts, strings.TrimSpace(best.Transcript))
			confSum += float64(best.Confidence)
		}
		if r.ResultEndTime != nil {
			if d := r.ResultEndTime.AsDuration(); d > end {
				end = d
			}
		}
	}

	out := &Transcription{Text: strings.Join(parts, " "), Duration: end}
	if len(parts) > 0 {
		out.Confidence = confSum / float64(len(parts))
	}
	return out, nil
}
