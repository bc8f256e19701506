package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/kpi-management-api/internal/dto"
	apierrors "github.com/yukikurage/kpi-management-api/internal/errors"
	"github.com/yukikurage/kpi-management-api/internal/middleware"
	"github.com/yukikurage/kpi-management-api/internal/models"
	"github.com/yukikurage/kpi-management-api/internal/services"
)

// periodLayout is the month format accepted for user evaluation periods.
const periodLayout = "2006-01"

type EvaluationHandler struct {
	evaluationService *services.EvaluationService
}

func NewEvaluationHandler(evaluationService *services.EvaluationService) *EvaluationHandler {
	return &EvaluationHandler{
		evaluationService: evaluationService,
	}
}

// SubmitEvaluationRequest holds the fields shared by both submission endpoints
type SubmitEvaluationRequest struct {
	Type       models.EvaluationType `json:"evaluation_type" binding:"required"`
	Score      *float64              `json:"score" binding:"required"`
	Comment    string                `json:"comment"`
	Attachment string                `json:"attachment"`
}

func (r SubmitEvaluationRequest) input(evaluatorID uint64) services.SubmitEvaluationInput {
	return services.SubmitEvaluationInput{
		EvaluatorID: evaluatorID,
		Type:        r.Type,
		Score:       *r.Score,
		Comment:     r.Comment,
		Attachment:  r.Attachment,
	}
}

// SubmitKPIEvaluation scores the assignee of a task
func (h *EvaluationHandler) SubmitKPIEvaluation(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	var req struct {
		SubmitEvaluationRequest
		TaskID uint64 `json:"task_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	eval, err := h.evaluationService.SubmitKPI(services.SubmitKPIInput{
		SubmitEvaluationInput: req.input(userID),
		TaskID:                req.TaskID,
	})
	if err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToKPIEvaluationDTO(*eval))
}

// SubmitUserEvaluation scores a user for one month
func (h *EvaluationHandler) SubmitUserEvaluation(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	var req struct {
		SubmitEvaluationRequest
		EvaluateeID uint64 `json:"evaluatee_id" binding:"required"`
		Period      string `json:"period" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	period, err := parsePeriod(req.Period)
	if err != nil {
		apierrors.BadRequest(c, "period must look like 2006-01")
		return
	}

	eval, err := h.evaluationService.SubmitUser(services.SubmitUserInput{
		SubmitEvaluationInput: req.input(userID),
		EvaluateeID:           req.EvaluateeID,
		Period:                period,
	})
	if err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToUserEvaluationDTO(*eval))
}

// GetKPIStatus returns the stage view of a task's evaluations
func (h *EvaluationHandler) GetKPIStatus(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	taskID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid task ID")
		return
	}

	status, err := h.evaluationService.KPIStatus(taskID, userID)
	if err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToEvaluationStatusDTO(status, models.EvaluationKindKPI))
}

// GetUserStatus returns the stage view of a user's evaluations for a month.
// period defaults to the current month.
func (h *EvaluationHandler) GetUserStatus(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	evaluateeID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid user ID")
		return
	}

	period := time.Now()
	if p := c.Query("period"); p != "" {
		period, err = parsePeriod(p)
		if err != nil {
			apierrors.BadRequest(c, "period must look like 2006-01")
			return
		}
	}

	status, err := h.evaluationService.UserStatus(evaluateeID, period, userID)
	if err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToEvaluationStatusDTO(status, models.EvaluationKindUser))
}

// UpdateScore changes the score of a stored evaluation
func (h *EvaluationHandler) UpdateScore(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	kind, id, ok := evaluationRef(c)
	if !ok {
		return
	}

	type UpdateScoreRequest struct {
		Score   *float64 `json:"score" binding:"required"`
		Comment *string  `json:"comment"`
	}

	var req UpdateScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	updated, err := h.evaluationService.UpdateScore(services.UpdateScoreInput{
		Kind:     kind,
		ID:       id,
		EditorID: userID,
		Score:    *req.Score,
		Comment:  req.Comment,
	})
	if err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToEvaluationBaseDTO(*updated, kind))
}

// GetHistory returns every score change of an evaluation, oldest first
func (h *EvaluationHandler) GetHistory(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	kind, id, ok := evaluationRef(c)
	if !ok {
		return
	}

	history, err := h.evaluationService.History(kind, id, userID)
	if err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"history": dto.ToEvaluationHistoryDTOs(history),
	})
}

// evaluationRef reads :kind and :id, answering 400 itself when they are bad.
func evaluationRef(c *gin.Context) (models.EvaluationKind, uint64, bool) {
	kind := models.EvaluationKind(c.Param("kind"))
	if kind != models.EvaluationKindKPI && kind != models.EvaluationKindUser {
		apierrors.BadRequest(c, "kind must be kpi or user")
		return "", 0, false
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid evaluation ID")
		return "", 0, false
	}
	return kind, id, true
}

// parsePeriod accepts 2006-01 or a full RFC3339 timestamp.
func parsePeriod(s string) (time.Time, error) {
	if t, err := time.Parse(periodLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
