package repository

import (
	"github.com/yukikurage/kpi-management-api/internal/models"
	"gorm.io/gorm"
)

// GormDepartmentRepository is a GORM implementation of DepartmentRepository
type GormDepartmentRepository struct {
	db *gorm.DB
}

// NewDepartmentRepository creates a new DepartmentRepository
func NewDepartmentRepository(db *gorm.DB) DepartmentRepository {
	return &GormDepartmentRepository{db: db}
}

// Create creates a department and links its top-management members
func (r *GormDepartmentRepository) Create(dept *models.Department, topManagementIDs []uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("TopManagement").Create(dept).Error; err != nil {
			return err
		}
		return replaceTopManagement(tx, dept, topManagementIDs)
	})
}

// FindByID finds a department by ID with its top-management members
func (r *GormDepartmentRepository) FindByID(id uint64) (*models.Department, error) {
	var dept models.Department
	if err := r.db.Preload("TopManagement").First(&dept, id).Error; err != nil {
		return nil, err
	}
	return &dept, nil
}

// List returns all departments with their top-management members
func (r *GormDepartmentRepository) List() ([]models.Department, error) {
	var depts []models.Department
	if err := r.db.Preload("TopManagement").Order("id ASC").Find(&depts).Error; err != nil {
		return nil, err
	}
	return depts, nil
}

// Update saves a department and optionally replaces its top-management set
func (r *GormDepartmentRepository) Update(dept *models.Department, topManagementIDs []uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("TopManagement").Save(dept).Error; err != nil {
			return err
		}
		if topManagementIDs == nil {
			return nil
		}
		return replaceTopManagement(tx, dept, topManagementIDs)
	})
}

// Delete soft deletes a department and unlinks its overseers
func (r *GormDepartmentRepository) Delete(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM "+topManagementTable+" WHERE department_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Department{}, id).Error
	})
}

// CountMembers counts users assigned to the department
func (r *GormDepartmentRepository) CountMembers(id uint64) (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Where("department_id = ?", id).Count(&count).Error
	return count, err
}

// topManagementTable is the join table behind Department.TopManagement.
const topManagementTable = "department_top_management"

// replaceTopManagement rewrites the join rows directly so the linked users
// themselves are never upserted.
func replaceTopManagement(tx *gorm.DB, dept *models.Department, userIDs []uint64) error {
	if err := tx.Exec("DELETE FROM "+topManagementTable+" WHERE department_id = ?", dept.ID).Error; err != nil {
		return err
	}
	if len(userIDs) == 0 {
		return nil
	}

	rows := make([]map[string]interface{}, 0, len(userIDs))
	seen := make(map[uint64]bool, len(userIDs))
	for _, id := range userIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		rows = append(rows, map[string]interface{}{"department_id": dept.ID, "user_id": id})
	}
	return tx.Table(topManagementTable).Create(&rows).Error
}
