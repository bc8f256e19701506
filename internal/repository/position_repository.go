package repository

import (
	"github.com/yukikurage/kpi-management-api/internal/models"
	"gorm.io/gorm"
)

// GormPositionRepository is a GORM implementation of PositionRepository
type GormPositionRepository struct {
	db *gorm.DB
}

// NewPositionRepository creates a new PositionRepository
func NewPositionRepository(db *gorm.DB) PositionRepository {
	return &GormPositionRepository{db: db}
}

func (r *GormPositionRepository) Create(position *models.Position) error {
	return r.db.Create(position).Error
}

func (r *GormPositionRepository) FindByID(id uint64) (*models.Position, error) {
	var position models.Position
	if err := r.db.First(&position, id).Error; err != nil {
		return nil, err
	}
	return &position, nil
}

func (r *GormPositionRepository) List() ([]models.Position, error) {
	var positions []models.Position
	if err := r.db.Order("name ASC").Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}
