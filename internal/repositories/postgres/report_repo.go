package postgres

import (
	"context"
	"errors"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/repositories"
	"github.com/yoockh/yoointerview/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type reportRepo struct {
	db *gorm.DB
}

func NewReportRepo(db *gorm.DB) repositories.ReportRepository {
	return &reportRepo{db: db}
}

// Upsert replaces the session's report; there is never more than one.
func (r *reportRepo) Upsert(ctx context.Context, rep *models.AnalysisReport) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"task_id", "overall_score", "competency_scores", "strengths", "improvements", "job_match", "tips", "generated_at"}),
		}).
		Create(rep).Error
}

func (r *reportRepo) GetBySession(ctx context.Context, sessionID string) (*models.AnalysisReport, error) {
	var rep models.AnalysisReport
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Take(&rep).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rep, nil
}
