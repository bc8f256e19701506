package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/kpi-management-api/internal/dto"
	apierrors "github.com/yukikurage/kpi-management-api/internal/errors"
	"github.com/yukikurage/kpi-management-api/internal/middleware"
	"github.com/yukikurage/kpi-management-api/internal/models"
	"github.com/yukikurage/kpi-management-api/internal/repository"
	"github.com/yukikurage/kpi-management-api/internal/services"
	"github.com/yukikurage/kpi-management-api/internal/utils"
)

// OrganizationHandler serves departments, positions and user administration.
// Mutating routes are mounted behind RequireRole(admin).
type OrganizationHandler struct {
	orgService *services.OrgService
}

func NewOrganizationHandler(orgService *services.OrgService) *OrganizationHandler {
	return &OrganizationHandler{
		orgService: orgService,
	}
}

type departmentRequest struct {
	Name             string   `json:"name"`
	ManagerID        *uint64  `json:"manager_id"`
	DepartmentLeadID *uint64  `json:"department_lead_id"`
	TopManagementIDs []uint64 `json:"top_management_ids"`
}

func (r departmentRequest) input() services.DepartmentInput {
	return services.DepartmentInput{
		Name:             r.Name,
		ManagerID:        r.ManagerID,
		DepartmentLeadID: r.DepartmentLeadID,
		TopManagementIDs: r.TopManagementIDs,
	}
}

// ListDepartments returns every department
func (h *OrganizationHandler) ListDepartments(c *gin.Context) {
	depts, err := h.orgService.ListDepartments()
	if err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"departments": dto.ToDepartmentDTOs(depts),
	})
}

// GetDepartment returns one department
func (h *OrganizationHandler) GetDepartment(c *gin.Context) {
	id, ok := pathID(c, "Invalid department ID")
	if !ok {
		return
	}

	dept, err := h.orgService.GetDepartment(id)
	if err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToDepartmentDTO(*dept))
}

// CreateDepartment creates a department with its designated roles
func (h *OrganizationHandler) CreateDepartment(c *gin.Context) {
	actorID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	var req departmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	dept, err := h.orgService.CreateDepartment(actorID, req.input())
	if err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToDepartmentDTO(*dept))
}

// UpdateDepartment replaces a department's designations
func (h *OrganizationHandler) UpdateDepartment(c *gin.Context) {
	actorID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}
	id, ok := pathID(c, "Invalid department ID")
	if !ok {
		return
	}

	var req departmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	dept, err := h.orgService.UpdateDepartment(actorID, id, req.input())
	if err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToDepartmentDTO(*dept))
}

// DeleteDepartment removes an empty department
func (h *OrganizationHandler) DeleteDepartment(c *gin.Context) {
	actorID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}
	id, ok := pathID(c, "Invalid department ID")
	if !ok {
		return
	}

	if err := h.orgService.DeleteDepartment(actorID, id); err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Department deleted successfully",
	})
}

// ListPositions returns every position
func (h *OrganizationHandler) ListPositions(c *gin.Context) {
	positions, err := h.orgService.ListPositions()
	if err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"positions": dto.ToPositionDTOs(positions),
	})
}

// CreatePosition creates a position
func (h *OrganizationHandler) CreatePosition(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	position, err := h.orgService.CreatePosition(req.Name)
	if err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.PositionDTO{ID: position.ID, Name: position.Name})
}

// ListUsers returns users filtered by role, department_id, factory_type and active
func (h *OrganizationHandler) ListUsers(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	filter := repository.UserFilter{
		Page:     params.Page,
		PageSize: params.Limit,
	}

	if v := c.Query("role"); v != "" {
		role := models.Role(v)
		if !role.Valid() {
			apierrors.BadRequest(c, "Invalid role")
			return
		}
		filter.Role = &role
	}
	if v := c.Query("department_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid department_id")
			return
		}
		filter.DepartmentID = &id
	}
	if v := c.Query("factory_type"); v != "" {
		ft := models.FactoryType(v)
		if !ft.Valid() {
			apierrors.BadRequest(c, "Invalid factory_type")
			return
		}
		filter.FactoryType = &ft
	}
	filter.ActiveOnly = c.Query("active") == "true"

	users, total, err := h.orgService.ListUsers(filter)
	if err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserListResponse(users, params.Page, params.Limit, total))
}

// GetUser returns one user
func (h *OrganizationHandler) GetUser(c *gin.Context) {
	id, ok := pathID(c, "Invalid user ID")
	if !ok {
		return
	}

	user, err := h.orgService.GetUser(id)
	if err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}

// ProvisionUser creates an account
func (h *OrganizationHandler) ProvisionUser(c *gin.Context) {
	actorID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	type ProvisionUserRequest struct {
		Username     string              `json:"username" binding:"required,min=3,max=50"`
		Password     string              `json:"password" binding:"required"`
		Email        string              `json:"email"`
		FullName     string              `json:"full_name"`
		Role         models.Role         `json:"role"`
		DepartmentID *uint64             `json:"department_id"`
		FactoryType  *models.FactoryType `json:"factory_type"`
		PositionID   *uint64             `json:"position_id"`
	}

	var req ProvisionUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	user, err := h.orgService.ProvisionUser(actorID, services.ProvisionUserInput{
		Username:     req.Username,
		Password:     req.Password,
		Email:        req.Email,
		FullName:     req.FullName,
		Role:         req.Role,
		DepartmentID: req.DepartmentID,
		FactoryType:  req.FactoryType,
		PositionID:   req.PositionID,
	})
	if err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToUserDTO(*user))
}

// UpdateUser changes role and placement. clear_* flags remove an assignment.
func (h *OrganizationHandler) UpdateUser(c *gin.Context) {
	actorID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}
	id, ok := pathID(c, "Invalid user ID")
	if !ok {
		return
	}

	type UpdateUserRequest struct {
		Email            *string             `json:"email"`
		FullName         *string             `json:"full_name"`
		Role             *models.Role        `json:"role"`
		DepartmentID     *uint64             `json:"department_id"`
		ClearDepartment  bool                `json:"clear_department"`
		FactoryType      *models.FactoryType `json:"factory_type"`
		ClearFactoryType bool                `json:"clear_factory_type"`
		PositionID       *uint64             `json:"position_id"`
		ClearPosition    bool                `json:"clear_position"`
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	user, err := h.orgService.UpdateUser(actorID, id, services.UpdateUserInput{
		Email:            req.Email,
		FullName:         req.FullName,
		Role:             req.Role,
		DepartmentID:     req.DepartmentID,
		ClearDepartment:  req.ClearDepartment,
		FactoryType:      req.FactoryType,
		ClearFactoryType: req.ClearFactoryType,
		PositionID:       req.PositionID,
		ClearPosition:    req.ClearPosition,
	})
	if err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}

// DeactivateUser disables an account
func (h *OrganizationHandler) DeactivateUser(c *gin.Context) {
	actorID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}
	id, ok := pathID(c, "Invalid user ID")
	if !ok {
		return
	}

	user, err := h.orgService.DeactivateUser(actorID, id)
	if err != nil {
		apierrors.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}

func pathID(c *gin.Context, message string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, message)
		return 0, false
	}
	return id, true
}
