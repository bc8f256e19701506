package dto

import (
	"time"

	"github.com/yukikurage/kpi-management-api/internal/models"
	"github.com/yukikurage/kpi-management-api/internal/utils"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID           uint64              `json:"id"`
	Username     string              `json:"username"`
	FullName     string              `json:"full_name,omitempty"`
	Email        string              `json:"email,omitempty"`
	Role         models.Role         `json:"role"`
	DepartmentID *uint64             `json:"department_id"`
	FactoryType  *models.FactoryType `json:"factory_type"`
	PositionID   *uint64             `json:"position_id"`
	IsActive     bool                `json:"is_active"`
}

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID          uint64              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      models.TaskStatus   `json:"status"`
	Priority    models.TaskPriority `json:"priority"`
	Approved    bool                `json:"approved"`
	AssigneeID  uint64              `json:"assignee_id"`
	CreatedByID uint64              `json:"created_by_id"`
	StartDate   *time.Time          `json:"start_date"`
	DueDate     *time.Time          `json:"due_date"`
	CompletedAt *time.Time          `json:"completed_at"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Assignee    *UserDTO            `json:"assignee,omitempty"`
	CreatedBy   *UserDTO            `json:"created_by,omitempty"`
}

// TaskListItemDTO represents a task in list responses (minimal data)
type TaskListItemDTO struct {
	ID         uint64              `json:"id"`
	Title      string              `json:"title"`
	Status     models.TaskStatus   `json:"status"`
	Priority   models.TaskPriority `json:"priority"`
	Approved   bool                `json:"approved"`
	AssigneeID uint64              `json:"assignee_id"`
	DueDate    *time.Time          `json:"due_date"`
	Assignee   *UserDTO            `json:"assignee,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// TaskCreatedResponse reports the new task and the decision row that admitted it.
type TaskCreatedResponse struct {
	Task     TaskDTO `json:"task"`
	Rule     string  `json:"rule"`
	Approved bool    `json:"approved"`
}

// ApprovalRequest carries an approval token in a request body
type ApprovalRequest struct {
	Token string `json:"token" form:"token"`
}

// ApprovalResponse reports an approval link. Applied is false for a preview.
type ApprovalResponse struct {
	Action  string   `json:"action"`
	TaskID  uint64   `json:"task_id"`
	Applied bool     `json:"applied"`
	Deleted bool     `json:"deleted"`
	Task    *TaskDTO `json:"task,omitempty"`
}

// TaskListResponse represents a paginated list of tasks
type TaskListResponse struct {
	Tasks      []TaskListItemDTO `json:"tasks"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalCount int64             `json:"total_count"`
	TotalPages int               `json:"total_pages"`
}

// Conversion functions

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:           user.ID,
		Username:     user.Username,
		FullName:     user.FullName,
		Email:        user.Email,
		Role:         user.Role,
		DepartmentID: user.DepartmentID,
		FactoryType:  user.FactoryType,
		PositionID:   user.PositionID,
		IsActive:     user.IsActive,
	}
}

// ToUserDTOPtr converts an optional user; nil stays nil.
func ToUserDTOPtr(user *models.User) *UserDTO {
	if user == nil {
		return nil
	}
	dto := ToUserDTO(*user)
	return &dto
}

// ToUserDTOs converts a slice of users
func ToUserDTOs(users []*models.User) []UserDTO {
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = ToUserDTO(*u)
	}
	return dtos
}

// ToTaskDTO converts a Task model to TaskDTO
func ToTaskDTO(task models.Task) TaskDTO {
	dto := TaskDTO{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		Approved:    task.Approved,
		AssigneeID:  task.AssigneeID,
		CreatedByID: task.CreatedByID,
		StartDate:   task.StartDate,
		DueDate:     task.DueDate,
		CompletedAt: task.CompletedAt,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}

	// Include relations if preloaded
	if task.Assignee.ID != 0 {
		assignee := ToUserDTO(task.Assignee)
		dto.Assignee = &assignee
	}
	if task.CreatedBy.ID != 0 {
		creator := ToUserDTO(task.CreatedBy)
		dto.CreatedBy = &creator
	}

	return dto
}

// ToTaskListItemDTO converts a Task model to TaskListItemDTO
func ToTaskListItemDTO(task models.Task) TaskListItemDTO {
	dto := TaskListItemDTO{
		ID:         task.ID,
		Title:      task.Title,
		Status:     task.Status,
		Priority:   task.Priority,
		Approved:   task.Approved,
		AssigneeID: task.AssigneeID,
		DueDate:    task.DueDate,
		CreatedAt:  task.CreatedAt,
	}

	// Include assignee if preloaded
	if task.Assignee.ID != 0 {
		assignee := ToUserDTO(task.Assignee)
		dto.Assignee = &assignee
	}

	return dto
}

// ToTaskListResponse converts a slice of tasks to TaskListResponse
func ToTaskListResponse(tasks []models.Task, page, pageSize int, totalCount int64) TaskListResponse {
	items := make([]TaskListItemDTO, len(tasks))
	for i, task := range tasks {
		items[i] = ToTaskListItemDTO(task)
	}

	return TaskListResponse{
		Tasks:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: totalCount,
		TotalPages: utils.TotalPages(totalCount, pageSize),
	}
}
