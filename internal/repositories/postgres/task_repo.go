package postgres

import (
	"context"
	"errors"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/repositories"
	"github.com/yoockh/yoointerview/internal/utils"
	"gorm.io/gorm"
)

type taskRepo struct {
	db *gorm.DB
}

func NewTaskRepo(db *gorm.DB) repositories.TaskRepository {
	return &taskRepo{db: db}
}

func (r *taskRepo) Create(ctx context.Context, t *models.AnalysisTask) error {
	t.Version = 1
	err := r.db.WithContext(ctx).Create(t).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return utils.ErrConflict
	}
	return err
}

func (r *taskRepo) Get(ctx context.Context, taskID string) (*models.AnalysisTask, error) {
	var t models.AnalysisTask
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Take(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Put writes every mutable column guarded by the version the caller read.
func (r *taskRepo) Put(ctx context.Context, t *models.AnalysisTask) error {
	next := t.Version + 1
	res := r.db.WithContext(ctx).
		Model(&models.AnalysisTask{}).
		Where("task_id = ? AND version = ?", t.TaskID, t.Version).
		Updates(map[string]any{
			"status":        t.Status,
			"priority":      t.Priority,
			"retry_count":   t.RetryCount,
			"max_retries":   t.MaxRetries,
			"error_message": t.ErrorMessage,
			"run_after":     t.RunAfter,
			"lease_until":   t.LeaseUntil,
			"worker_id":     t.WorkerID,
			"started_at":    t.StartedAt,
			"completed_at":  t.CompletedAt,
			"updated_at":    t.UpdatedAt,
			"version":       next,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, t.TaskID); err != nil {
			return err
		}
		return utils.ErrConflict
	}
	t.Version = next
	return nil
}

func (r *taskRepo) Delete(ctx context.Context, taskID string) error {
	res := r.db.WithContext(ctx).Where("task_id = ?", taskID).Delete(&models.AnalysisTask{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func taskFilter(f models.TaskFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.Status != "" {
			db = db.Where("status = ?", f.Status)
		}
		if f.SessionID != "" {
			db = db.Where("session_id = ?", f.SessionID)
		}
		return db
	}
}

func (r *taskRepo) ListByStatus(ctx context.Context, f models.TaskFilter) ([]*models.AnalysisTask, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.AnalysisTask{}).
		Scopes(taskFilter(f)).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	q := r.db.WithContext(ctx).
		Scopes(taskFilter(f)).
		Order("created_at DESC").Order("task_id DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var out []*models.AnalysisTask
	if err := q.Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *taskRepo) LatestBySession(ctx context.Context, sessionID string) (*models.AnalysisTask, error) {
	var t models.AnalysisTask
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").Order("task_id DESC").
		Take(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *taskRepo) CountByStatus(ctx context.Context) (map[models.TaskStatus]int64, error) {
	var rows []struct {
		Status models.TaskStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.AnalysisTask{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := map[models.TaskStatus]int64{
		models.TaskQueued: 0, models.TaskRunning: 0, models.TaskCompleted: 0, models.TaskFailed: 0,
	}
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}
