package stt

import (
	"testing"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, "en-US", NormalizeLanguage(""))
	assert.Equal(t, "en-US", NormalizeLanguage("en"))
	assert.Equal(t, "id-ID", NormalizeLanguage(" id "))
	assert.Equal(t, "ja-JP", NormalizeLanguage("ja-JP"))
}

func TestRecognitionConfig(t *testing.T) {
	cfg := recognitionConfig("audio/webm;codecs=opus", "id")
	assert.Equal(t, speechpb.RecognitionConfig_WEBM_OPUS, cfg.Encoding)
	assert.Equal(t, int32(48000), cfg.SampleRateHertz)
	assert.Equal(t, "id-ID", cfg.LanguageCode)

	cfg = recognitionConfig("audio/wav", "en")
	assert.Equal(t, speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, cfg.Encoding)
	assert.Zero(t, cfg.SampleRateHertz)

	cfg = recognitionConfig("", "")
	assert.Equal(t, speechpb.RecognitionConfig_LINEAR16, cfg.Encoding)
}
