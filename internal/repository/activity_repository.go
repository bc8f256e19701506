package repository

import (
	"github.com/yukikurage/kpi-management-api/internal/database"
	"github.com/yukikurage/kpi-management-api/internal/models"
	"github.com/yukikurage/kpi-management-api/internal/utils"
	"gorm.io/gorm"
)

// GormActivityRepository is a GORM implementation of ActivityRepository
type GormActivityRepository struct {
	db *gorm.DB
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &GormActivityRepository{db: db}
}

func (r *GormActivityRepository) Create(entry *models.ActivityLog) error {
	return r.db.Create(entry).Error
}

// ListForUser returns entries where the user is the actor or the target, newest first
func (r *GormActivityRepository) ListForUser(userID uint64, params utils.PaginationParams) ([]models.ActivityLog, int64, error) {
	var entries []models.ActivityLog
	query := r.db.Model(&models.ActivityLog{}).
		Where("actor_id = ? OR target_user_id = ?", userID, userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query.Order("created_at DESC").Order("id DESC").Scopes(database.Paginate(params))
	if err := listQuery.Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
