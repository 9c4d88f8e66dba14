package repositories

import (
	"context"
	"time"

	"github.com/yoockh/yoointerview/internal/models"
)

// SessionRepository stores interview sessions. Put is a compare-and-swap on
// Version: a new session must carry Version 0, an update must carry the
// version it was read at. On success the stored and the passed session both
// carry the next version; a mismatch returns utils.ErrConflict.
type SessionRepository interface {
	Get(ctx context.Context, sessionID string) (*models.InterviewSession, error)
	Put(ctx context.Context, s *models.InterviewSession) error
	Delete(ctx context.Context, sessionID string) error
	// ListAwaitingAnalysis returns completed sessions without a recorded
	// analysis task, oldest first.
	ListAwaitingAnalysis(ctx context.Context, limit int) ([]*models.InterviewSession, error)
	ListUpdatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.InterviewSession, error)
}

// TaskRepository stores analysis tasks with the same version contract as
// SessionRepository.Put.
type TaskRepository interface {
	Create(ctx context.Context, t *models.AnalysisTask) error
	Get(ctx context.Context, taskID string) (*models.AnalysisTask, error)
	Put(ctx context.Context, t *models.AnalysisTask) error
	Delete(ctx context.Context, taskID string) error
	// ListByStatus orders by created_at descending and returns the total
	// matching the filter before paging.
	ListByStatus(ctx context.Context, f models.TaskFilter) ([]*models.AnalysisTask, int64, error)
	LatestBySession(ctx context.Context, sessionID string) (*models.AnalysisTask, error)
	CountByStatus(ctx context.Context) (map[models.TaskStatus]int64, error)
}

type ReportRepository interface {
	Upsert(ctx context.Context, r *models.AnalysisReport) error
	GetBySession(ctx context.Context, sessionID string) (*models.AnalysisReport, error)
}
