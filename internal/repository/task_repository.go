package repository

import (
	"github.com/yukikurage/kpi-management-api/internal/database"
	"github.com/yukikurage/kpi-management-api/internal/models"
	"gorm.io/gorm"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Create creates a new task
func (r *GormTaskRepository) Create(task *models.Task) error {
	return r.db.Omit("Assignee", "CreatedBy").Create(task).Error
}

// FindByID finds a task by ID with optional preloading
func (r *GormTaskRepository) FindByID(id uint64, preload ...string) (*models.Task, error) {
	var task models.Task
	query := r.db

	// Apply preloading if specified
	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&task, id).Error; err != nil {
		return nil, err
	}

	return &task, nil
}

// List retrieves tasks with filtering and pagination
func (r *GormTaskRepository) List(filter TaskFilter) ([]models.Task, int64, error) {
	var tasks []models.Task

	query := r.db.Model(&models.Task{})

	// Apply filters
	if filter.VisibleTo != nil {
		query = query.Where("tasks.created_by_id = ? OR tasks.assignee_id = ?", *filter.VisibleTo, *filter.VisibleTo)
	}
	if len(filter.AssigneeIDs) > 0 {
		query = query.Where("tasks.assignee_id IN ?", filter.AssigneeIDs)
	}
	if filter.Status != nil {
		query = query.Where("tasks.status = ?", *filter.Status)
	}
	if filter.CreatorID != nil {
		query = query.Where("tasks.created_by_id = ?", *filter.CreatorID)
	}
	if filter.AssigneeID != nil {
		query = query.Where("tasks.assignee_id = ?", *filter.AssigneeID)
	}
	query = query.Scopes(database.DueBetween(filter.DueDateFrom, filter.DueDateTo))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query
	if filter.SortByDueDate {
		listQuery = listQuery.Order("CASE WHEN tasks.due_date IS NULL THEN 1 ELSE 0 END, tasks.due_date ASC")
	} else {
		listQuery = listQuery.Order("tasks.created_at DESC").Order("tasks.id DESC")
	}

	listQuery = listQuery.Scopes(database.Page(filter.Page, filter.PageSize))

	if err := listQuery.Preload("Assignee").Preload("CreatedBy").Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// Update updates a task
func (r *GormTaskRepository) Update(task *models.Task) error {
	return r.db.Omit("Assignee", "CreatedBy").Save(task).Error
}

// Approve flips approved only while it is still false, so two concurrent
// approvals cannot both succeed.
func (r *GormTaskRepository) Approve(id uint64) (bool, error) {
	result := r.db.Model(&models.Task{}).
		Where("id = ? AND approved = ?", id, false).
		Updates(map[string]interface{}{
			"approved": true,
			"status":   models.TaskStatusTodo,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Delete permanently removes a task together with its KPI evaluations and
// their history
func (r *GormTaskRepository) Delete(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		evalIDs := tx.Model(&models.KPIEvaluation{}).Select("id").Where("task_id = ?", id)
		if err := tx.Where("kind = ? AND evaluation_id IN (?)", models.EvaluationKindKPI, evalIDs).
			Delete(&models.EvaluationHistory{}).Error; err != nil {
			return err
		}

		if err := tx.Where("task_id = ?", id).Delete(&models.KPIEvaluation{}).Error; err != nil {
			return err
		}

		return tx.Delete(&models.Task{}, id).Error
	})
}
