package media

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoointerview/internal/providers/stt"
	"github.com/yoockh/yoointerview/internal/storage"
)

const defaultMaxBytes = 10 << 20

// NoSpeech is stored as the transcript of media in which nothing was
// recognized, so the round is not sent for finalization again.
const NoSpeech = "[no speech detected]"

type Result struct {
	Transcript      string
	DurationSeconds int
}

// Finalizer turns a session's answer media into a transcript. Only media
// stored under the session's answer prefix is read.
type Finalizer interface {
	Finalize(ctx context.Context, sessionID, audioURL, language string) (*Result, error)
}

// STTFinalizer reads answer media from object storage and transcribes it.
type STTFinalizer struct {
	Objects  storage.Reader
	Bucket   string
	STT      stt.Provider
	MaxBytes int64
	Timeout  time.Duration
	Logger   *logrus.Logger
}

func (f *STTFinalizer) Finalize(ctx context.Context, sessionID, audioURL, language string) (*Result, error) {
	if f.STT == nil {
		return nil, errors.New("speech provider not configured")
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	obj, err := f.fetch(ctx, sessionID, audioURL)
	if err != nil {
		return nil, fmt.Errorf("fetch media: %w", err)
	}
	if len(obj.Data) == 0 {
		return nil, errors.New("fetch media: empty body")
	}

	tr, err := f.STT.Transcribe(ctx, obj.Data, obj.ContentType, language)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	out := &Result{Transcript: tr.Text, DurationSeconds: int(math.Round(tr.Duration.Seconds()))}
	if out.Transcript == "" {
		out.Transcript = NoSpeech
	}
	if f.Logger != nil {
		f.Logger.WithFields(logrus.Fields{
			"session_id": sessionID,
			"audio_url":  audioURL,
			"bytes":      len(obj.Data),
			"confidence": tr.Confidence,
			"duration_s": out.DurationSeconds,
		}).Debug("media finalized")
	}
	return out, nil
}

func (f *STTFinalizer) maxBytes() int64 {
	if f.MaxBytes > 0 {
		return f.MaxBytes
	}
	return defaultMaxBytes
}

func (f *STTFinalizer) fetch(ctx context.Context, sessionID, audioURL string) (*storage.Object, error) {
	object, err := storage.AnswerObject(audioURL, f.Bucket, sessionID)
	if err != nil {
		return nil, err
	}
	if f.Objects == nil {
		return nil, errors.New("object storage not configured")
	}
	return f.Objects.Read(ctx, f.Bucket, object, f.maxBytes())
}
