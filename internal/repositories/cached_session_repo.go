package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoointerview/internal/cache"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/utils"
)

// CachedSessionRepo is a read-through cache in front of a durable store.
// Writes go to the store first; a failed or conflicting write drops the
// cached copy so the next read goes back to the store.
type CachedSessionRepo struct {
	inner SessionRepository
	cache cache.Cache
	ttl   time.Duration
	log   *logrus.Logger
}

func NewCachedSessionRepo(inner SessionRepository, c cache.Cache, ttl time.Duration, log *logrus.Logger) *CachedSessionRepo {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedSessionRepo{inner: inner, cache: c, ttl: ttl, log: log}
}

func sessionKey(id string) string { return "session:" + id }

func (r *CachedSessionRepo) Get(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	var s models.InterviewSession
	hit, err := r.cache.GetJSON(ctx, sessionKey(sessionID), &s)
	if err != nil {
		r.warn(err, sessionID, "session cache read failed")
	}
	if hit {
		return &s, nil
	}

	out, err := r.inner.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := r.cache.SetJSON(ctx, sessionKey(sessionID), out, r.ttl); err != nil {
		r.warn(err, sessionID, "session cache write failed")
	}
	return out, nil
}

func (r *CachedSessionRepo) Put(ctx context.Context, s *models.InterviewSession) error {
	if err := r.inner.Put(ctx, s); err != nil {
		if errors.Is(err, utils.ErrConflict) {
			_ = r.cache.Del(ctx, sessionKey(s.SessionID))
		}
		return err
	}
	if err := r.cache.SetJSON(ctx, sessionKey(s.SessionID), s, r.ttl); err != nil {
		r.warn(err, s.SessionID, "session cache write failed")
		_ = r.cache.Del(ctx, sessionKey(s.SessionID))
	}
	return nil
}

func (r *CachedSessionRepo) Delete(ctx context.Context, sessionID string) error {
	if err := r.cache.Del(ctx, sessionKey(sessionID)); err != nil {
		r.warn(err, sessionID, "session cache delete failed")
	}
	return r.inner.Delete(ctx, sessionID)
}

func (r *CachedSessionRepo) ListAwaitingAnalysis(ctx context.Context, limit int) ([]*models.InterviewSession, error) {
	return r.inner.ListAwaitingAnalysis(ctx, limit)
}

func (r *CachedSessionRepo) ListUpdatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.InterviewSession, error) {
	return r.inner.ListUpdatedBefore(ctx, cutoff, limit)
}

func (r *CachedSessionRepo) warn(err error, sessionID, msg string) {
	if r.log != nil {
		r.log.WithError(err).WithField("session_id", sessionID).Warn(msg)
	}
}
