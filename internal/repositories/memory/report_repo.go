package memory

import (
	"context"
	"sync"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/repositories"
	"github.com/yoockh/yoointerview/internal/utils"
	"gorm.io/datatypes"
)

type reportRepo struct {
	mu        sync.RWMutex
	bySession map[string]models.AnalysisReport
}

func NewReportRepo() repositories.ReportRepository {
	return &reportRepo{bySession: make(map[string]models.AnalysisReport)}
}

func cloneReport(r models.AnalysisReport) *models.AnalysisReport {
	r.Strengths = append(r.Strengths[:0:0], r.Strengths...)
	r.Improvements = append(r.Improvements[:0:0], r.Improvements...)
	comps := make(map[string]float64, len(r.Competencies()))
	for k, v := range r.Competencies() {
		comps[k] = v
	}
	r.CompetencyScores = datatypes.NewJSONType(comps)
	return &r
}

func (r *reportRepo) Upsert(_ context.Context, rep *models.AnalysisReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySession[rep.SessionID] = *cloneReport(*rep)
	return nil
}

func (r *reportRepo) GetBySession(_ context.Context, sessionID string) (*models.AnalysisReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rep, ok := r.bySession[sessionID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return cloneReport(rep), nil
}
