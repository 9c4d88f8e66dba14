package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/repositories"
	"github.com/yoockh/yoointerview/internal/utils"
)

type taskRepo struct {
	mu   sync.RWMutex
	byID map[string]models.AnalysisTask
}

func NewTaskRepo() repositories.TaskRepository {
	return &taskRepo{byID: make(map[string]models.AnalysisTask)}
}

func cloneTask(t models.AnalysisTask) *models.AnalysisTask {
	if t.LeaseUntil != nil {
		v := *t.LeaseUntil
		t.LeaseUntil = &v
	}
	if t.StartedAt != nil {
		v := *t.StartedAt
		t.StartedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		t.CompletedAt = &v
	}
	return &t
}

func (r *taskRepo) Create(_ context.Context, t *models.AnalysisTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[t.TaskID]; ok {
		return utils.ErrConflict
	}
	t.Version = 1
	r.byID[t.TaskID] = *cloneTask(*t)
	return nil
}

func (r *taskRepo) Get(_ context.Context, taskID string) (*models.AnalysisTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byID[taskID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return cloneTask(t), nil
}

func (r *taskRepo) Put(_ context.Context, t *models.AnalysisTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[t.TaskID]
	if !ok {
		return utils.ErrNotFound
	}
	if cur.Version != t.Version {
		return utils.ErrConflict
	}
	t.Version++
	r.byID[t.TaskID] = *cloneTask(*t)
	return nil
}

func (r *taskRepo) Delete(_ context.Context, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[taskID]; !ok {
		return utils.ErrNotFound
	}
	delete(r.byID, taskID)
	return nil
}

func (r *taskRepo) sorted(match func(models.AnalysisTask) bool) []*models.AnalysisTask {
	out := make([]*models.AnalysisTask, 0)
	for _, t := range r.byID {
		if match(t) {
			out = append(out, cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].TaskID > out[j].TaskID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *taskRepo) ListByStatus(_ context.Context, f models.TaskFilter) ([]*models.AnalysisTask, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.sorted(func(t models.AnalysisTask) bool {
		return (f.Status == "" || t.Status == f.Status) && (f.SessionID == "" || t.SessionID == f.SessionID)
	})
	total := int64(len(all))

	if f.Offset > 0 {
		if f.Offset >= len(all) {
			return []*models.AnalysisTask{}, total, nil
		}
		all = all[f.Offset:]
	}
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (r *taskRepo) LatestBySession(_ context.Context, sessionID string) (*models.AnalysisTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.sorted(func(t models.AnalysisTask) bool { return t.SessionID == sessionID })
	if len(all) == 0 {
		return nil, utils.ErrNotFound
	}
	return all[0], nil
}

func (r *taskRepo) CountByStatus(_ context.Context) (map[models.TaskStatus]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := map[models.TaskStatus]int64{
		models.TaskQueued: 0, models.TaskRunning: 0, models.TaskCompleted: 0, models.TaskFailed: 0,
	}
	for _, t := range r.byID {
		out[t.Status]++
	}
	return out, nil
}
