package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/kpi-management-api/internal/dto"
	apierrors "github.com/yukikurage/kpi-management-api/internal/errors"
	"github.com/yukikurage/kpi-management-api/internal/middleware"
	"github.com/yukikurage/kpi-management-api/internal/models"
	"github.com/yukikurage/kpi-management-api/internal/services"
	"github.com/yukikurage/kpi-management-api/internal/utils"
)

type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// ListTasks returns tasks visible to the current user
// Supports scope, status, due_today and sort=due_date filters
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	input := services.ListTasksInput{
		UserID:        userID,
		Scope:         services.TaskScope(c.DefaultQuery("scope", string(services.ScopeMine))),
		SortByDueDate: c.Query("sort") == "due_date",
	}

	switch input.Scope {
	case services.ScopeMine, services.ScopeAssigned, services.ScopeCreated, services.ScopeSubordinates:
	default:
		apierrors.BadRequest(c, "Invalid scope")
		return
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.TaskStatus(statusStr)
		if !status.Valid() {
			apierrors.BadRequest(c, "Invalid status")
			return
		}
		input.Status = &status
	}

	if dueToday := c.Query("due_today"); dueToday != "" {
		v, err := strconv.ParseBool(dueToday)
		if err != nil {
			apierrors.BadRequest(c, "Invalid due_today")
			return
		}
		input.DueToday = v
	}

	params := utils.GetPaginationParams(c)
	input.Page = params.Page
	input.PageSize = params.Limit

	tasks, total, err := h.taskService.ListTasks(input)
	if err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskListResponse(tasks, params.Page, params.Limit, total))
}

// GetTask returns a specific task by ID
// Task is already loaded with relations by RequireTaskAccess middleware
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// CreateTask creates a task for an assignee; the decision table sets its
// initial status and approval state
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	type CreateTaskRequest struct {
		Title       string              `json:"title" binding:"required"`
		Description string              `json:"description"`
		Priority    models.TaskPriority `json:"priority"`
		AssigneeID  uint64              `json:"assignee_id" binding:"required"`
		StartDate   *time.Time          `json:"start_date"`
		DueDate     *time.Time          `json:"due_date"`
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, decision, err := h.taskService.CreateTask(services.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		AssigneeID:  req.AssigneeID,
		CreatorID:   userID,
		StartDate:   req.StartDate,
		DueDate:     req.DueDate,
	})
	if err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.TaskCreatedResponse{
		Task:     dto.ToTaskDTO(*task),
		Rule:     decision.Rule,
		Approved: decision.Approved,
	})
}

// UpdateTask updates an existing task
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	// Parse raw JSON to detect which fields were sent
	var rawReq map[string]any
	if err := c.ShouldBindJSON(&rawReq); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	var input services.UpdateTaskInput
	if title, ok := rawReq["title"].(string); ok {
		input.Title = &title
	}
	if description, ok := rawReq["description"].(string); ok {
		input.Description = &description
	}
	if priority, ok := rawReq["priority"].(string); ok {
		p := models.TaskPriority(priority)
		input.Priority = &p
	}
	if status, ok := rawReq["status"].(string); ok {
		s := models.TaskStatus(status)
		input.Status = &s
	}
	if v, ok := rawReq["start_date"]; ok && v != nil {
		startDate, err := parseTime(v)
		if err != nil {
			apierrors.BadRequest(c, "Invalid start_date")
			return
		}
		input.StartDate = startDate
	}
	if v, ok := rawReq["due_date"]; ok {
		// due_date was provided (might be null)
		if v == nil {
			input.ClearDueDate = true
		} else {
			dueDate, err := parseTime(v)
			if err != nil {
				apierrors.BadRequest(c, "Invalid due_date")
				return
			}
			input.DueDate = dueDate
		}
	}

	updated, err := h.taskService.UpdateTask(task.ID, userID, input)
	if err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*updated))
}

// DeleteTask deletes a task
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	if err := h.taskService.DeleteTask(task.ID, userID); err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task deleted successfully",
	})
}

// PreviewApproval shows what a signed approval link will do. Opening the
// link changes nothing; the client confirms with ResolveApproval.
func (h *TaskHandler) PreviewApproval(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		apierrors.BadRequest(c, "token is required")
		return
	}

	result, err := h.taskService.PreviewApproval(token)
	if err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, approvalResponse(result, false))
}

// ResolveApproval applies a signed approval link. It is public: the token is
// the credential. The token comes from the query or the body.
func (h *TaskHandler) ResolveApproval(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		var req dto.ApprovalRequest
		if err := c.ShouldBind(&req); err == nil {
			token = req.Token
		}
	}
	if token == "" {
		apierrors.BadRequest(c, "token is required")
		return
	}

	result, err := h.taskService.ResolveApproval(token)
	if err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, approvalResponse(result, true))
}

func approvalResponse(result *services.ApprovalResult, applied bool) dto.ApprovalResponse {
	resp := dto.ApprovalResponse{
		Action:  string(result.Action),
		TaskID:  result.Task.ID,
		Applied: applied,
		Deleted: result.Deleted,
	}
	if !result.Deleted {
		taskDTO := dto.ToTaskDTO(*result.Task)
		resp.Task = &taskDTO
	}
	return resp
}

var errNotATimestamp = errors.New("expected an RFC3339 timestamp")

func parseTime(v any) (*time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return nil, errNotATimestamp
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
