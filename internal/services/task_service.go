package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	apierrors "github.com/yukikurage/kpi-management-api/internal/errors"
	"github.com/yukikurage/kpi-management-api/internal/hierarchy"
	"github.com/yukikurage/kpi-management-api/internal/models"
	"github.com/yukikurage/kpi-management-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound          = apierrors.NotFoundError("task.not_found", "task not found")
	ErrTitleRequired         = apierrors.Validation("task.title_required", "title is required")
	ErrInvalidTaskStatus     = apierrors.Validation("task.invalid_status", "unknown task status")
	ErrInvalidPriority       = apierrors.Validation("task.invalid_priority", "unknown task priority")
	ErrDatesOutOfOrder       = apierrors.Validation("task.dates_out_of_order", "start date must not be after due date")
	ErrUnknownAssignee       = apierrors.Validation("task.unknown_assignee", "assignee does not exist")
	ErrInactiveAssignee      = apierrors.Validation("task.inactive_assignee", "assignee is deactivated")
	ErrTaskAwaitingApproval  = apierrors.Validation("task.awaiting_approval", "task status cannot change before it is approved")
	ErrPendingStatusReserved = apierrors.Validation("task.pending_status_reserved", "PENDING is set only by the assignment workflow")
	ErrTaskAccessDenied      = apierrors.Authorization("task.access_denied", "you do not have access to this task")
	ErrNotTaskCreator        = apierrors.Authorization("task.creator_only", "only the task creator or an admin can delete a task")
	ErrAlreadyApproved       = apierrors.ConflictError("approval.already_approved", "task has already been approved")
)

// TaskService handles task business logic
type TaskService struct {
	taskRepo   repository.TaskRepository
	hierarchy  *HierarchyService
	tokens     *ApprovalTokenService
	dispatcher *Dispatcher
	activity   *ActivityService
	log        *zap.Logger
	now        func() time.Time
}

// NewTaskService creates a new TaskService
func NewTaskService(
	taskRepo repository.TaskRepository,
	hierarchy *HierarchyService,
	tokens *ApprovalTokenService,
	dispatcher *Dispatcher,
	activity *ActivityService,
	log *zap.Logger,
) *TaskService {
	return &TaskService{
		taskRepo:   taskRepo,
		hierarchy:  hierarchy,
		tokens:     tokens,
		dispatcher: dispatcher,
		activity:   activity,
		log:        log,
		now:        time.Now,
	}
}

// TaskScope selects which tasks a listing covers.
type TaskScope string

const (
	ScopeMine         TaskScope = "mine"
	ScopeAssigned     TaskScope = "assigned"
	ScopeCreated      TaskScope = "created"
	ScopeSubordinates TaskScope = "subordinates"
)

// ListTasksInput represents filters for listing tasks
type ListTasksInput struct {
	UserID        uint64
	Scope         TaskScope
	DueToday      bool
	Status        *models.TaskStatus
	SortByDueDate bool
	Page          int
	PageSize      int
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	Title       string
	Description string
	Priority    models.TaskPriority
	AssigneeID  uint64
	CreatorID   uint64
	StartDate   *time.Time
	DueDate     *time.Time
}

// UpdateTaskInput represents input for updating a task
type UpdateTaskInput struct {
	Title        *string
	Description  *string
	Priority     *models.TaskPriority
	Status       *models.TaskStatus
	StartDate    *time.Time
	DueDate      *time.Time
	ClearDueDate bool
}

// ListTasks returns tasks visible to a user based on the provided filters
func (s *TaskService) ListTasks(input ListTasksInput) ([]models.Task, int64, error) {
	filter := repository.TaskFilter{
		Status:        input.Status,
		Page:          input.Page,
		PageSize:      input.PageSize,
		SortByDueDate: input.SortByDueDate,
	}

	switch input.Scope {
	case ScopeAssigned:
		filter.AssigneeID = &input.UserID
	case ScopeCreated:
		filter.CreatorID = &input.UserID
	case ScopeSubordinates:
		subs, err := s.hierarchy.AllSubordinates(input.UserID)
		if err != nil {
			return nil, 0, err
		}
		if len(subs) == 0 {
			return []models.Task{}, 0, nil
		}
		for _, u := range subs {
			filter.AssigneeIDs = append(filter.AssigneeIDs, u.ID)
		}
	default:
		filter.VisibleTo = &input.UserID
	}

	if input.DueToday {
		now := s.now()
		startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		endOfDay := startOfDay.Add(24 * time.Hour)
		filter.DueDateFrom = &startOfDay
		filter.DueDateTo = &endOfDay
	}

	tasks, total, err := s.taskRepo.List(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tasks, total, nil
}

// GetTask returns a task the viewer may see
func (s *TaskService) GetTask(taskID, viewerID uint64) (*models.Task, error) {
	task, err := s.findTask(taskID, "Assignee", "CreatedBy")
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizeTaskAccess(task, viewerID); err != nil {
		return nil, err
	}
	return task, nil
}

// CreateTask runs the assignment decision table and stores the task with
// the initial approval state it decided. Notifications go out afterwards and
// never fail the request.
func (s *TaskService) CreateTask(input CreateTaskInput) (*models.Task, *AssignmentDecision, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, nil, ErrTitleRequired
	}
	if input.Priority == "" {
		input.Priority = models.TaskPriorityMedium
	}
	if !input.Priority.Valid() {
		return nil, nil, ErrInvalidPriority
	}
	if input.StartDate != nil && input.DueDate != nil && input.StartDate.After(*input.DueDate) {
		return nil, nil, ErrDatesOutOfOrder
	}

	r, err := s.hierarchy.Resolver()
	if err != nil {
		return nil, nil, err
	}
	creator, err := lookupUser(r, input.CreatorID)
	if err != nil {
		return nil, nil, err
	}
	assignee, ok := r.Snapshot().User(input.AssigneeID)
	if !ok {
		return nil, nil, ErrUnknownAssignee
	}
	if !assignee.IsActive {
		return nil, nil, ErrInactiveAssignee
	}

	decision, err := AuthorizeAssignment(r, creator, assignee)
	if err != nil {
		var de *apierrors.Error
		if errors.As(err, &de) {
			recordAssignmentRejected(de.Rule)
		}
		return nil, nil, err
	}

	task := &models.Task{
		Title:       title,
		Description: input.Description,
		Status:      decision.Status,
		Priority:    input.Priority,
		AssigneeID:  assignee.ID,
		CreatedByID: creator.ID,
		StartDate:   input.StartDate,
		DueDate:     input.DueDate,
		Approved:    decision.Approved,
	}
	if err := s.taskRepo.Create(task); err != nil {
		return nil, nil, fmt.Errorf("failed to create task: %w", err)
	}
	recordTaskCreated(decision.Rule, decision.Approved)

	s.activity.Log(ActivityEntry{
		ActorID:      idPtr(creator.ID),
		Action:       models.ActivityTaskCreated,
		TargetUserID: idPtr(assignee.ID),
		TargetTaskID: idPtr(task.ID),
		Details: map[string]interface{}{
			"rule":     decision.Rule,
			"approved": decision.Approved,
			"title":    task.Title,
		},
	})

	for _, effect := range decision.Effects {
		s.notifyTask(task, creator, effect)
	}

	created, err := s.taskRepo.FindByID(task.ID, "Assignee", "CreatedBy")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reload task: %w", err)
	}
	return created, decision, nil
}

// UpdateTask updates an existing task. Status changes are refused while the
// task awaits approval, and completed_at is stamped only once.
func (s *TaskService) UpdateTask(taskID, actorID uint64, input UpdateTaskInput) (*models.Task, error) {
	task, err := s.findTask(taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizeTaskAccess(task, actorID); err != nil {
		return nil, err
	}

	previousStatus := task.Status

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, ErrTitleRequired
		}
		task.Title = title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			return nil, ErrInvalidPriority
		}
		task.Priority = *input.Priority
	}
	if input.StartDate != nil {
		task.StartDate = input.StartDate
	}
	if input.ClearDueDate {
		task.DueDate = nil
	} else if input.DueDate != nil {
		task.DueDate = input.DueDate
	}
	if task.StartDate != nil && task.DueDate != nil && task.StartDate.After(*task.DueDate) {
		return nil, ErrDatesOutOfOrder
	}
	if input.Status != nil && *input.Status != task.Status {
		switch {
		case !input.Status.Valid():
			return nil, ErrInvalidTaskStatus
		case *input.Status == models.TaskStatusPending:
			return nil, ErrPendingStatusReserved
		case !task.Approved:
			return nil, ErrTaskAwaitingApproval
		}
		task.SetStatus(*input.Status, s.now())
	}

	if err := s.taskRepo.Update(task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	action := models.ActivityTaskUpdated
	details := map[string]interface{}{}
	if task.Status != previousStatus {
		action = models.ActivityTaskStatusChanged
		details["from"] = previousStatus
		details["to"] = task.Status
	}
	s.activity.Log(ActivityEntry{
		ActorID:      idPtr(actorID),
		Action:       action,
		TargetUserID: idPtr(task.AssigneeID),
		TargetTaskID: idPtr(task.ID),
		Details:      details,
	})

	return s.taskRepo.FindByID(task.ID, "Assignee", "CreatedBy")
}

// DeleteTask permanently removes a task if the actor created it or is an admin
func (s *TaskService) DeleteTask(taskID, actorID uint64) error {
	task, err := s.findTask(taskID)
	if err != nil {
		return err
	}

	r, err := s.hierarchy.Resolver()
	if err != nil {
		return err
	}
	actor, err := lookupUser(r, actorID)
	if err != nil {
		return err
	}
	if task.CreatedByID != actorID && actor.Role != models.RoleAdmin {
		return ErrNotTaskCreator
	}

	if err := s.taskRepo.Delete(taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.activity.Log(ActivityEntry{
		ActorID:      idPtr(actorID),
		Action:       models.ActivityTaskDeleted,
		TargetUserID: idPtr(task.AssigneeID),
		Details:      map[string]interface{}{"task_id": task.ID, "title": task.Title},
	})
	return nil
}

// ApprovalResult reports what an approval token did.
type ApprovalResult struct {
	Action  ApprovalAction
	Task    *models.Task
	Deleted bool
}

// PreviewApproval verifies token and reports what ResolveApproval would do
// without changing the task.
func (s *TaskService) PreviewApproval(token string) (*ApprovalResult, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	task, err := s.findTask(claims.TaskID, "Assignee", "CreatedBy")
	if err != nil {
		return nil, err
	}
	if claims.Action.Approves() && task.Approved {
		return nil, ErrAlreadyApproved
	}
	return &ApprovalResult{Action: claims.Action, Task: task}, nil
}

// ResolveApproval applies a verified approval token. approve and accept set
// approved=true and status TODO; approving twice is a conflict and sends
// nothing. reject and reject_assignment remove the task.
func (s *TaskService) ResolveApproval(token string) (*ApprovalResult, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		recordApprovalAction("unknown", "invalid_token")
		return nil, err
	}

	task, err := s.findTask(claims.TaskID)
	if err != nil {
		recordApprovalAction(claims.Action, "task_missing")
		return nil, err
	}

	if !claims.Action.Approves() {
		if err := s.taskRepo.Delete(task.ID); err != nil {
			return nil, fmt.Errorf("failed to delete rejected task: %w", err)
		}
		recordApprovalAction(claims.Action, "deleted")
		s.activity.Log(ActivityEntry{
			Action:       models.ActivityTaskRejected,
			TargetUserID: idPtr(task.AssigneeID),
			Details: map[string]interface{}{
				"task_id": task.ID,
				"title":   task.Title,
				"action":  string(claims.Action),
			},
		})
		return &ApprovalResult{Action: claims.Action, Task: task, Deleted: true}, nil
	}

	approved, err := s.taskRepo.Approve(task.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to approve task: %w", err)
	}
	if !approved {
		recordApprovalAction(claims.Action, "already_approved")
		return nil, ErrAlreadyApproved
	}
	recordApprovalAction(claims.Action, "approved")

	updated, err := s.taskRepo.FindByID(task.ID, "Assignee", "CreatedBy")
	if err != nil {
		return nil, fmt.Errorf("failed to reload task: %w", err)
	}

	s.activity.Log(ActivityEntry{
		Action:       models.ActivityTaskApproved,
		TargetUserID: idPtr(updated.AssigneeID),
		TargetTaskID: idPtr(updated.ID),
		Details:      map[string]interface{}{"action": string(claims.Action)},
	})

	// The other party learns that the task is now actionable.
	recipient := &updated.Assignee
	if claims.Action == ActionAccept {
		recipient = &updated.CreatedBy
	}
	s.dispatcher.Send(Notification{
		RecipientID: recipient.ID,
		Recipient:   recipient.Username,
		Email:       recipient.Email,
		Template:    TemplateTaskApproved,
		Context: map[string]interface{}{
			"task_id": updated.ID,
			"title":   updated.Title,
			"action":  string(claims.Action),
		},
	})

	return &ApprovalResult{Action: claims.Action, Task: updated}, nil
}

// authorizeTaskAccess allows the creator, the assignee, anyone in the
// assignee's superior chain, and admins.
func (s *TaskService) authorizeTaskAccess(task *models.Task, userID uint64) (*hierarchy.Resolver, error) {
	r, err := s.hierarchy.Resolver()
	if err != nil {
		return nil, err
	}
	if task.CreatedByID == userID || task.AssigneeID == userID {
		return r, nil
	}
	viewer, err := lookupUser(r, userID)
	if err != nil {
		return nil, err
	}
	if viewer.Role == models.RoleAdmin {
		return r, nil
	}
	if assignee, ok := r.Snapshot().User(task.AssigneeID); ok && r.IsSuperiorOf(viewer, assignee) {
		return r, nil
	}
	return nil, ErrTaskAccessDenied
}

// CanAccessTask is the read-only form of the access rule used by middleware.
func (s *TaskService) CanAccessTask(task *models.Task, userID uint64) error {
	_, err := s.authorizeTaskAccess(task, userID)
	return err
}

func (s *TaskService) findTask(id uint64, preload ...string) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(id, preload...)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

// notifyTask turns a side effect into a notification with signed links.
func (s *TaskService) notifyTask(task *models.Task, creator *models.User, effect SideEffect) {
	links := make(map[string]string, len(effect.Actions))
	for _, action := range effect.Actions {
		link, err := s.tokens.Link(task.ID, action)
		if err != nil {
			s.log.Warn("failed to sign approval link",
				zap.Uint64("task_id", task.ID),
				zap.String("action", string(action)),
				zap.Error(err),
			)
			continue
		}
		links[string(action)] = link
	}

	s.dispatcher.Send(Notification{
		RecipientID: effect.Recipient.ID,
		Recipient:   effect.Recipient.Username,
		Email:       effect.Recipient.Email,
		Template:    effect.Template,
		Context: map[string]interface{}{
			"task_id":     task.ID,
			"title":       task.Title,
			"description": task.Description,
			"due_date":    task.DueDate,
			"creator":     creator.Username,
			"links":       links,
		},
	})
}
