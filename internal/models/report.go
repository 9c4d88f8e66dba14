package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

type JobMatch struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Ratio       float64 `json:"ratio"`
}

// AnalysisReport is the scored outcome of one completed session. There is at
// most one row per session; regeneration overwrites it.
type AnalysisReport struct {
	SessionID        string                                 `gorm:"column:session_id;type:text;primaryKey" json:"session_id"`
	TaskID           string                                 `gorm:"column:task_id;type:text" json:"task_id"`
	OverallScore     float64                                `gorm:"column:overall_score" json:"overall_score"`
	CompetencyScores datatypes.JSONType[map[string]float64] `gorm:"column:competency_scores;type:jsonb" json:"competency_scores"`
	Strengths        pq.StringArray                         `gorm:"column:strengths;type:text[]" json:"strengths"`
	Improvements     pq.StringArray                         `gorm:"column:improvements;type:text[]" json:"improvements"`
	JobMatch         datatypes.JSONType[JobMatch]           `gorm:"column:job_match;type:jsonb" json:"job_match"`
	Tips             string                                 `gorm:"column:tips;type:text" json:"tips"`
	GeneratedAt      time.Time                              `gorm:"column:generated_at;type:timestamptz" json:"generated_at"`
}

func (AnalysisReport) TableName() string { return "analysis_reports" }

// Competencies returns the decoded competency map.
func (r *AnalysisReport) Competencies() map[string]float64 { return r.CompetencyScores.Data() }

func (r *AnalysisReport) Match() JobMatch { return r.JobMatch.Data() }
