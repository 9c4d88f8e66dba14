package postgres

import (
	"github.com/yoockh/yoointerview/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the analysis tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.AnalysisTask{}, &models.AnalysisReport{})
}
