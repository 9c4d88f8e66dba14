package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/repositories"
	"github.com/yoockh/yoointerview/internal/utils"
)

type sessionRepo struct {
	mu   sync.RWMutex
	byID map[string]*models.InterviewSession
}

// NewSessionRepo returns a process-local store. Values are deep-copied on
// the way in and out.
func NewSessionRepo() repositories.SessionRepository {
	return &sessionRepo{byID: make(map[string]*models.InterviewSession)}
}

func (r *sessionRepo) Get(_ context.Context, sessionID string) (*models.InterviewSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byID[sessionID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return s.Clone(), nil
}

func (r *sessionRepo) Put(_ context.Context, s *models.InterviewSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[s.SessionID]
	switch {
	case !ok && s.Version != 0:
		return utils.ErrNotFound
	case ok && cur.Version != s.Version:
		return utils.ErrConflict
	}
	s.Version++
	r.byID[s.SessionID] = s.Clone()
	return nil
}

func (r *sessionRepo) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[sessionID]; !ok {
		return utils.ErrNotFound
	}
	delete(r.byID, sessionID)
	return nil
}

func (r *sessionRepo) ListAwaitingAnalysis(_ context.Context, limit int) ([]*models.InterviewSession, error) {
	return r.list(limit, func(s *models.InterviewSession) bool {
		return s.Phase == models.PhaseCompleted && !s.AnalysisEnqueued
	}), nil
}

func (r *sessionRepo) ListUpdatedBefore(_ context.Context, cutoff time.Time, limit int) ([]*models.InterviewSession, error) {
	return r.list(limit, func(s *models.InterviewSession) bool { return s.UpdatedAt.Before(cutoff) }), nil
}

// list returns matches oldest first.
func (r *sessionRepo) list(limit int, match func(*models.InterviewSession) bool) []*models.InterviewSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.InterviewSession, 0)
	for _, s := range r.byID {
		if match(s) {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
