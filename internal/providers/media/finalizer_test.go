package media

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/yoointerview/internal/providers/stt"
	"github.com/yoockh/yoointerview/internal/storage"
)

type fakeSTT struct {
	transcribe func(audio []byte, contentType, language string) (*stt.Transcription, error)
}

func (f fakeSTT) Transcribe(_ context.Context, audio []byte, contentType, language string) (*stt.Transcription, error) {
	return f.transcribe(audio, contentType, language)
}
func (fakeSTT) Close() error { return nil }

type fakeObjects struct {
	objects map[string]*storage.Object
	reads   []string
}

func (f *fakeObjects) Read(_ context.Context, bucket, object string, _ int64) (*storage.Object, error) {
	f.reads = append(f.reads, bucket+"/"+object)
	o, ok := f.objects[bucket+"/"+object]
	if !ok {
		return nil, errors.New("object not found")
	}
	return o, nil
}

func TestFinalizeFromObjectStorage(t *testing.T) {
	objects := &fakeObjects{objects: map[string]*storage.Object{
		"media/answers/s1/1.webm": {Data: []byte("RIFF...."), ContentType: "audio/webm"},
	}}
	f := &STTFinalizer{
		Objects: objects,
		Bucket:  "media",
		STT: fakeSTT{transcribe: func(audio []byte, ct, lang string) (*stt.Transcription, error) {
			assert.Equal(t, "RIFF....", string(audio))
			assert.Equal(t, "audio/webm", ct)
			assert.Equal(t, "id", lang)
			return &stt.Transcription{Text: "saya suka Go", Duration: 41600 * time.Millisecond}, nil
		}},
	}

	res, err := f.Finalize(context.Background(), "s1", "gs://media/answers/s1/1.webm", "id")
	require.NoError(t, err)
	assert.Equal(t, "saya suka Go", res.Transcript)
	assert.Equal(t, 42, res.DurationSeconds)
}

func TestFinalizeNoSpeech(t *testing.T) {
	f := &STTFinalizer{
		Objects: &fakeObjects{objects: map[string]*storage.Object{
			"media/answers/s1/1.wav": {Data: []byte("wav"), ContentType: "audio/wav"},
		}},
		Bucket: "media",
		STT: fakeSTT{transcribe: func([]byte, string, string) (*stt.Transcription, error) {
			return &stt.Transcription{}, nil
		}},
	}

	res, err := f.Finalize(context.Background(), "s1", "https://storage.googleapis.com/media/answers/s1/1.wav", "en")
	require.NoError(t, err)
	assert.Equal(t, NoSpeech, res.Transcript)
}

func TestFinalizeReadsOnlyTheSessionsAnswers(t *testing.T) {
	objects := &fakeObjects{objects: map[string]*storage.Object{
		"media/answers/s2/1.wav":   {Data: []byte("other candidate")},
		"private/answers/s1/1.wav": {Data: []byte("other bucket")},
	}}
	f := &STTFinalizer{
		Objects: objects,
		Bucket:  "media",
		STT: fakeSTT{transcribe: func([]byte, string, string) (*stt.Transcription, error) {
			t.Fatal("foreign media must not reach the speech provider")
			return nil, nil
		}},
	}

	for _, raw := range []string{
		"http://169.254.169.254/computeMetadata/v1/instance/service-accounts/default/token",
		"https://cdn.example.com/a.webm",
		"gs://private/answers/s1/1.wav",
		"gs://media/answers/s2/1.wav",
	} {
		_, err := f.Finalize(context.Background(), "s1", raw, "en")
		assert.Error(t, err, raw)
	}
	assert.Empty(t, objects.reads)
}

func TestFinalizeErrors(t *testing.T) {
	f := &STTFinalizer{Bucket: "media", STT: fakeSTT{}}
	_, err := f.Finalize(context.Background(), "s1", "gs://media/answers/s1/x.webm", "en")
	assert.ErrorContains(t, err, "object storage not configured")

	f = &STTFinalizer{Objects: &fakeObjects{}, STT: fakeSTT{}}
	_, err = f.Finalize(context.Background(), "s1", "gs://media/answers/s1/x.webm", "en")
	assert.ErrorContains(t, err, "media bucket not configured")

	_, err = (&STTFinalizer{}).Finalize(context.Background(), "s1", "gs://media/answers/s1/x.webm", "en")
	assert.Error(t, err)
}
