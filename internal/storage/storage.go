package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
)

type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedURL string, err error)
	Bucket() string
}

// Object is downloaded media plus its declared content type.
type Object struct {
	Data        []byte
	ContentType string
}

type Reader interface {
	Read(ctx context.Context, bucket, objectName string, maxBytes int64) (*Object, error)
}

var (
	ErrNotObjectURL  = errors.New("not a cloud storage url")
	ErrForeignObject = errors.New("object is outside the session's answer prefix")
)

// AnswerPrefix is where every recorded answer of a session is stored.
func AnswerPrefix(sessionID string) string { return "answers/" + sessionID + "/" }

// AnswerObject returns the object name of a session's answer media when raw
// points into bucket under AnswerPrefix(sessionID).
func AnswerObject(raw, bucket, sessionID string) (string, error) {
	if bucket == "" {
		return "", errors.New("media bucket not configured")
	}
	if sessionID == "" || strings.Contains(sessionID, "/") {
		return "", ErrForeignObject
	}
	b, object, err := ParseObjectURL(raw)
	if err != nil {
		return "", err
	}
	prefix := AnswerPrefix(sessionID)
	if b != bucket || !strings.HasPrefix(object, prefix) || len(object) == len(prefix) {
		return "", ErrForeignObject
	}
	for _, part := range strings.Split(object, "/") {
		if part == ".." || part == "." {
			return "", ErrForeignObject
		}
	}
	return object, nil
}

// ParseObjectURL splits gs://bucket/object and
// https://storage.googleapis.com/bucket/object into bucket and object name.
func ParseObjectURL(raw string) (bucket, object string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	var path string
	switch {
	case u.Scheme == "gs":
		bucket = u.Host
		path = strings.TrimPrefix(u.Path, "/")
	case (u.Scheme == "https" || u.Scheme == "http") && u.Host == "storage.googleapis.com":
		p := strings.TrimPrefix(u.Path, "/")
		i := strings.IndexByte(p, '/')
		if i <= 0 {
			return "", "", ErrNotObjectURL
		}
		bucket, path = p[:i], p[i+1:]
	default:
		return "", "", ErrNotObjectURL
	}
	if bucket == "" || path == "" {
		return "", "", ErrNotObjectURL
	}
	return bucket, path, nil
}
