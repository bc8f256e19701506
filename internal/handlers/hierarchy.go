package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/kpi-management-api/internal/dto"
	apierrors "github.com/yukikurage/kpi-management-api/internal/errors"
	"github.com/yukikurage/kpi-management-api/internal/middleware"
	"github.com/yukikurage/kpi-management-api/internal/services"
	"github.com/yukikurage/kpi-management-api/internal/utils"
)

// HierarchyHandler serves the read-only views about one user: reporting
// lines, score summaries and the activity feed.
type HierarchyHandler struct {
	hierarchyService   *services.HierarchyService
	aggregationService *services.AggregationService
	activityService    *services.ActivityService
}

func NewHierarchyHandler(
	hierarchyService *services.HierarchyService,
	aggregationService *services.AggregationService,
	activityService *services.ActivityService,
) *HierarchyHandler {
	return &HierarchyHandler{
		hierarchyService:   hierarchyService,
		aggregationService: aggregationService,
		activityService:    activityService,
	}
}

// GetHierarchy returns superiors, subordinates and evaluators of a user
func (h *HierarchyHandler) GetHierarchy(c *gin.Context) {
	viewerID, targetID, ok := viewerAndTarget(c)
	if !ok {
		return
	}

	view, err := h.hierarchyService.View(targetID, viewerID)
	if err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToHierarchyDTO(view))
}

// GetSubordinates returns direct reports, or everyone below with all=true
func (h *HierarchyHandler) GetSubordinates(c *gin.Context) {
	viewerID, targetID, ok := viewerAndTarget(c)
	if !ok {
		return
	}

	transitive, _ := strconv.ParseBool(c.DefaultQuery("all", "false"))
	users, err := h.hierarchyService.Subordinates(targetID, viewerID, transitive)
	if err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subordinates": dto.ToUserDTOs(users),
	})
}

// GetEvaluationSummary returns the top-management score averages of a user
// over the standard month windows ending at as_of (default: now)
func (h *HierarchyHandler) GetEvaluationSummary(c *gin.Context) {
	viewerID, targetID, ok := viewerAndTarget(c)
	if !ok {
		return
	}

	asOf := time.Now()
	if v := c.Query("as_of"); v != "" {
		parsed, err := parsePeriod(v)
		if err != nil {
			apierrors.BadRequest(c, "as_of must look like 2006-01")
			return
		}
		asOf = parsed
	}

	summary, err := h.aggregationService.Summary(targetID, viewerID, asOf)
	if err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToAggregationSummaryDTO(summary))
}

// ListActivity returns the caller's activity feed, newest first
func (h *HierarchyHandler) ListActivity(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	params := utils.GetPaginationParams(c)
	entries, total, err := h.activityService.ListForUser(userID, params)
	if err != nil {
		apierrors.InternalError(c, "Failed to fetch activity")
		return
	}

	c.JSON(http.StatusOK, dto.ActivityListResponse{
		Entries: entries,
		Pagination: utils.NewPaginationResponse(params, total),
	})
}

// viewerAndTarget reads the session user and :id, answering itself on failure.
func viewerAndTarget(c *gin.Context) (uint64, uint64, bool) {
	viewerID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return 0, 0, false
	}
	targetID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid user ID")
		return 0, 0, false
	}
	return viewerID, targetID, true
}
