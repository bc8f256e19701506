package repository

import (
	"time"

	"github.com/yukikurage/kpi-management-api/internal/models"
	"github.com/yukikurage/kpi-management-api/internal/utils"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(user *models.User) error

	// FindByID finds a user by ID
	FindByID(id uint64) (*models.User, error)

	// FindByUsername finds a user by username
	FindByUsername(username string) (*models.User, error)

	// List retrieves users with filtering and pagination
	List(filter UserFilter) ([]models.User, int64, error)

	// ListAll returns every user, active or not, ordered by ID
	ListAll() ([]models.User, error)

	// Update saves all user fields
	Update(user *models.User) error
}

// UserFilter holds filtering options for listing users
type UserFilter struct {
	Role         *models.Role
	DepartmentID *uint64
	FactoryType  *models.FactoryType
	ActiveOnly   bool
	Page         int
	PageSize     int
}

// DepartmentRepository defines the interface for department data access
type DepartmentRepository interface {
	// Create creates a department and links its top-management members
	Create(dept *models.Department, topManagementIDs []uint64) error

	// FindByID finds a department by ID with its top-management members
	FindByID(id uint64) (*models.Department, error)

	// List returns all departments with their top-management members
	List() ([]models.Department, error)

	// Update saves a department. A non-nil topManagementIDs replaces the
	// top-management set.
	Update(dept *models.Department, topManagementIDs []uint64) error

	// Delete soft deletes a department
	Delete(id uint64) error

	// CountMembers counts users assigned to the department
	CountMembers(id uint64) (int64, error)
}

// PositionRepository defines the interface for position data access
type PositionRepository interface {
	Create(position *models.Position) error
	FindByID(id uint64) (*models.Position, error)
	List() ([]models.Position, error)
}

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create creates a new task
	Create(task *models.Task) error

	// FindByID finds a task by ID with optional preloading
	FindByID(id uint64, preload ...string) (*models.Task, error)

	// List retrieves tasks with filtering and pagination
	List(filter TaskFilter) ([]models.Task, int64, error)

	// Update updates a task
	Update(task *models.Task) error

	// Approve marks an unapproved task approved and moves it to TODO.
	// It reports false when the task was already approved.
	Approve(id uint64) (bool, error)

	// Delete permanently removes a task and its KPI evaluations
	Delete(id uint64) error
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	// VisibleTo limits results to tasks the user created or is assigned to.
	VisibleTo     *uint64
	AssigneeIDs   []uint64
	Status        *models.TaskStatus
	CreatorID     *uint64
	AssigneeID    *uint64
	DueDateFrom   *time.Time
	DueDateTo     *time.Time
	SortByDueDate bool
	Page          int
	PageSize      int
}

// EvaluationRepository defines the interface for evaluation data access.
// Create and UpdateScore run in a single transaction together with the
// history row they produce.
type EvaluationRepository interface {
	// CreateKPI inserts eval after check accepted the evaluations already
	// stored for the task.
	CreateKPI(eval *models.KPIEvaluation, check func(existing []models.KPIEvaluation) error) error

	// CreateUser inserts eval after check accepted the evaluations already
	// stored for the evaluatee and period.
	CreateUser(eval *models.UserEvaluation, check func(existing []models.UserEvaluation) error) error

	FindKPIByID(id uint64) (*models.KPIEvaluation, error)
	FindUserByID(id uint64) (*models.UserEvaluation, error)

	// ListKPIByTask returns the evaluations of one task
	ListKPIByTask(taskID uint64) ([]models.KPIEvaluation, error)

	// ListUserByPeriod returns the evaluations of one evaluatee-month
	ListUserByPeriod(evaluateeID uint64, periodStart time.Time) ([]models.UserEvaluation, error)

	// ListUserInRange returns evaluations of type t with period_start in [from, to]
	ListUserInRange(evaluateeID uint64, t models.EvaluationType, from, to time.Time) ([]models.UserEvaluation, error)

	// UpdateScore applies change when the record still has expectedVersion.
	// It reports false when another writer got there first.
	UpdateScore(kind models.EvaluationKind, id uint64, expectedVersion uint, change ScoreChange) (bool, error)

	// ListHistory returns the score changes of one record, oldest first
	ListHistory(kind models.EvaluationKind, id uint64) ([]models.EvaluationHistory, error)
}

// ScoreChange describes one accepted score edit.
type ScoreChange struct {
	EditorID      uint64
	PreviousScore float64
	NewScore      float64
	Comment       *string
}

// ActivityRepository defines the interface for activity log access
type ActivityRepository interface {
	Create(entry *models.ActivityLog) error

	// ListForUser returns entries where the user is the actor or the target
	ListForUser(userID uint64, params utils.PaginationParams) ([]models.ActivityLog, int64, error)
}
