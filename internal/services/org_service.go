package services

import (
	"errors"
	"fmt"
	"strings"

	apierrors "github.com/yukikurage/kpi-management-api/internal/errors"
	"github.com/yukikurage/kpi-management-api/internal/models"
	"github.com/yukikurage/kpi-management-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrDepartmentNotFound    = apierrors.NotFoundError("department.not_found", "department not found")
	ErrPositionNotFound      = apierrors.NotFoundError("position.not_found", "position not found")
	ErrNameRequired          = apierrors.Validation("org.name_required", "name is required")
	ErrDepartmentNameTaken   = apierrors.ConflictError("department.name_taken", "a department with this name already exists")
	ErrPositionNameTaken     = apierrors.ConflictError("position.name_taken", "a position with this name already exists")
	ErrDepartmentHasMembers  = apierrors.ConflictError("department.has_members", "department still has members")
	ErrUsernameRequired      = apierrors.Validation("user.username_required", "username is required")
	ErrUsernameTaken         = apierrors.ConflictError("user.username_taken", "username already exists")
	ErrInvalidRole           = apierrors.Validation("user.invalid_role", "unknown role")
	ErrInvalidFactoryType    = apierrors.Validation("user.invalid_factory_type", "unknown factory type")
	ErrBothAxes              = apierrors.Validation("user.axis_exclusive", "a user has either a department or a factory type, not both")
	ErrRoleNotOnOfficeTrack  = apierrors.Validation("user.role_not_on_office_track", "this role requires a factory type")
	ErrRoleNotOnFactoryTrack = apierrors.Validation("user.role_not_on_factory_track", "this role is not used on the factory track")
	ErrStillDesignated       = apierrors.Validation("user.still_designated", "user is still a department's manager or lead")
	ErrSelfDeactivation      = apierrors.Validation("user.self_deactivation", "you cannot deactivate yourself")
)

// OrgService administers departments, positions and user accounts.
type OrgService struct {
	userRepo     repository.UserRepository
	deptRepo     repository.DepartmentRepository
	positionRepo repository.PositionRepository
	activity     *ActivityService
	log          *zap.Logger
}

// NewOrgService creates a new OrgService
func NewOrgService(
	userRepo repository.UserRepository,
	deptRepo repository.DepartmentRepository,
	positionRepo repository.PositionRepository,
	activity *ActivityService,
	log *zap.Logger,
) *OrgService {
	return &OrgService{
		userRepo:     userRepo,
		deptRepo:     deptRepo,
		positionRepo: positionRepo,
		activity:     activity,
		log:          log,
	}
}

// DepartmentInput describes a department to create or update. A nil
// TopManagementIDs on update keeps the current set.
type DepartmentInput struct {
	Name             string
	ManagerID        *uint64
	DepartmentLeadID *uint64
	TopManagementIDs []uint64
}

// ListDepartments returns every department with its overseers
func (s *OrgService) ListDepartments() ([]models.Department, error) {
	depts, err := s.deptRepo.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	return depts, nil
}

// GetDepartment returns one department
func (s *OrgService) GetDepartment(id uint64) (*models.Department, error) {
	dept, err := s.deptRepo.FindByID(id)
	if err != nil {
		return nil, notFoundOr(err, ErrDepartmentNotFound)
	}
	return dept, nil
}

// CreateDepartment creates a department after checking that the designated
// manager, lead and overseers hold matching roles.
func (s *OrgService) CreateDepartment(actorID uint64, input DepartmentInput) (*models.Department, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	dept := &models.Department{
		Name:             name,
		ManagerID:        input.ManagerID,
		DepartmentLeadID: input.DepartmentLeadID,
	}
	if err := s.checkDepartmentRoles(dept, input.TopManagementIDs); err != nil {
		return nil, err
	}

	if err := s.deptRepo.Create(dept, input.TopManagementIDs); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDepartmentNameTaken
		}
		return nil, fmt.Errorf("failed to create department: %w", err)
	}

	s.logDepartment(actorID, dept, "created")
	return s.GetDepartment(dept.ID)
}

// UpdateDepartment replaces the department's name and designations.
func (s *OrgService) UpdateDepartment(actorID, id uint64, input DepartmentInput) (*models.Department, error) {
	dept, err := s.GetDepartment(id)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(input.Name); name != "" {
		dept.Name = name
	}
	dept.ManagerID = input.ManagerID
	dept.DepartmentLeadID = input.DepartmentLeadID
	if err := s.checkDepartmentRoles(dept, input.TopManagementIDs); err != nil {
		return nil, err
	}

	dept.TopManagement = nil
	if err := s.deptRepo.Update(dept, input.TopManagementIDs); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDepartmentNameTaken
		}
		return nil, fmt.Errorf("failed to update department: %w", err)
	}

	s.logDepartment(actorID, dept, "updated")
	return s.GetDepartment(dept.ID)
}

// DeleteDepartment soft deletes an empty department
func (s *OrgService) DeleteDepartment(actorID, id uint64) error {
	dept, err := s.GetDepartment(id)
	if err != nil {
		return err
	}
	members, err := s.deptRepo.CountMembers(id)
	if err != nil {
		return fmt.Errorf("failed to count members: %w", err)
	}
	if members > 0 {
		return ErrDepartmentHasMembers
	}

	if err := s.deptRepo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete department: %w", err)
	}
	s.logDepartment(actorID, dept, "deleted")
	return nil
}

// checkDepartmentRoles enforces that designated users hold the matching
// role, stay on the office track and designate at most one department.
func (s *OrgService) checkDepartmentRoles(dept *models.Department, topManagementIDs []uint64) error {
	users, err := s.userRepo.ListAll()
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}
	byID := make(map[uint64]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	depts, err := s.deptRepo.List()
	if err != nil {
		return fmt.Errorf("failed to load departments: %w", err)
	}

	designate := func(id *uint64, role models.Role, field string, taken func(d *models.Department) bool) error {
		if id == nil {
			return nil
		}
		u, ok := byID[*id]
		if !ok {
			return apierrors.Validation("department."+field+"_unknown", field+" does not exist")
		}
		if u.Role != role || u.OnFactoryTrack() {
			return apierrors.Validation("department."+field+"_role_mismatch", field+" must hold the "+string(role)+" role")
		}
		if u.DepartmentID != nil && (dept.ID == 0 || *u.DepartmentID != dept.ID) {
			return apierrors.Validation("department."+field+"_other_department", field+" belongs to another department")
		}
		for i := range depts {
			if depts[i].ID != dept.ID && taken(&depts[i]) {
				return apierrors.Validation("department."+field+"_already_designated", field+" is already designated elsewhere")
			}
		}
		return nil
	}

	if err := designate(dept.ManagerID, models.RoleManager, "manager", func(d *models.Department) bool {
		return d.HasManager(*dept.ManagerID)
	}); err != nil {
		return err
	}
	if err := designate(dept.DepartmentLeadID, models.RoleDepartmentLead, "department_lead", func(d *models.Department) bool {
		return d.HasLead(*dept.DepartmentLeadID)
	}); err != nil {
		return err
	}

	for _, id := range topManagementIDs {
		u, ok := byID[id]
		if !ok || !u.Role.IsTopManagement() {
			return apierrors.Validation("department.top_management_role_mismatch",
				fmt.Sprintf("user %d is not a top management member", id))
		}
	}
	return nil
}

func (s *OrgService) logDepartment(actorID uint64, dept *models.Department, change string) {
	s.activity.Log(ActivityEntry{
		ActorID: idPtr(actorID),
		Action:  models.ActivityDepartmentChanged,
		Details: map[string]interface{}{
			"department_id": dept.ID,
			"name":          dept.Name,
			"change":        change,
		},
	})
}

// ListPositions returns all positions ordered by name
func (s *OrgService) ListPositions() ([]models.Position, error) {
	positions, err := s.positionRepo.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	return positions, nil
}

// CreatePosition creates a named position
func (s *OrgService) CreatePosition(name string) (*models.Position, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	position := &models.Position{Name: name}
	if err := s.positionRepo.Create(position); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrPositionNameTaken
		}
		return nil, fmt.Errorf("failed to create position: %w", err)
	}
	return position, nil
}

// ProvisionUserInput holds a new account.
type ProvisionUserInput struct {
	Username     string
	Password     string
	Email        string
	FullName     string
	Role         models.Role
	DepartmentID *uint64
	FactoryType  *models.FactoryType
	PositionID   *uint64
}

// UpdateUserInput holds administrative changes to an account.
type UpdateUserInput struct {
	Email            *string
	FullName         *string
	Role             *models.Role
	DepartmentID     *uint64
	ClearDepartment  bool
	FactoryType      *models.FactoryType
	ClearFactoryType bool
	PositionID       *uint64
	ClearPosition    bool
}

// ListUsers returns users matching filter
func (s *OrgService) ListUsers(filter repository.UserFilter) ([]models.User, int64, error) {
	users, total, err := s.userRepo.List(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// GetUser returns one user
func (s *OrgService) GetUser(id uint64) (*models.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		return nil, notFoundOr(err, apierrors.NotFoundError("user.not_found", "user not found"))
	}
	return user, nil
}

// ProvisionUser creates an active account with a bcrypt password.
func (s *OrgService) ProvisionUser(actorID uint64, input ProvisionUserInput) (*models.User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if input.Role == "" {
		input.Role = models.RoleEmployee
	}

	user := &models.User{
		Username:     username,
		Email:        strings.TrimSpace(input.Email),
		FullName:     strings.TrimSpace(input.FullName),
		Role:         input.Role,
		DepartmentID: input.DepartmentID,
		FactoryType:  input.FactoryType,
		PositionID:   input.PositionID,
		IsActive:     true,
	}
	if err := s.checkPlacement(user); err != nil {
		return nil, err
	}

	if _, err := s.userRepo.FindByUsername(username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		if errors.Is(err, ErrPasswordTooShort) {
			return nil, apierrors.Validation("user.password_too_short", "password too short")
		}
		return nil, err
	}
	user.PasswordHash = hash

	if err := s.userRepo.Create(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.activity.Log(ActivityEntry{
		ActorID:      idPtr(actorID),
		Action:       models.ActivityUserProvisioned,
		TargetUserID: idPtr(user.ID),
		Details:      map[string]interface{}{"role": string(user.Role)},
	})
	return user, nil
}

// UpdateUser changes role and placement. A user still designated as a
// department's manager or lead cannot leave that role or department.
func (s *OrgService) UpdateUser(actorID, userID uint64, input UpdateUserInput) (*models.User, error) {
	user, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}
	before := *user

	if input.Email != nil {
		user.Email = strings.TrimSpace(*input.Email)
	}
	if input.FullName != nil {
		user.FullName = strings.TrimSpace(*input.FullName)
	}
	if input.Role != nil {
		user.Role = *input.Role
	}
	if input.ClearDepartment {
		user.DepartmentID = nil
	} else if input.DepartmentID != nil {
		user.DepartmentID = input.DepartmentID
	}
	if input.ClearFactoryType {
		user.FactoryType = nil
	} else if input.FactoryType != nil {
		user.FactoryType = input.FactoryType
	}
	if input.ClearPosition {
		user.PositionID = nil
	} else if input.PositionID != nil {
		user.PositionID = input.PositionID
	}

	if err := s.checkPlacement(user); err != nil {
		return nil, err
	}
	if err := s.checkDesignations(&before, user); err != nil {
		return nil, err
	}

	user.Department = nil
	user.Position = nil
	if err := s.userRepo.Update(user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.activity.Log(ActivityEntry{
		ActorID:      idPtr(actorID),
		Action:       models.ActivityUserUpdated,
		TargetUserID: idPtr(user.ID),
		Details: map[string]interface{}{
			"previous_role": string(before.Role),
			"role":          string(user.Role),
		},
	})
	return user, nil
}

// DeactivateUser disables an account. Users are never hard-deleted.
func (s *OrgService) DeactivateUser(actorID, userID uint64) (*models.User, error) {
	if actorID == userID {
		return nil, ErrSelfDeactivation
	}
	user, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return user, nil
	}

	user.IsActive = false
	if err := s.userRepo.Update(user); err != nil {
		return nil, fmt.Errorf("failed to deactivate user: %w", err)
	}

	s.activity.Log(ActivityEntry{
		ActorID:      idPtr(actorID),
		Action:       models.ActivityUserDeactivated,
		TargetUserID: idPtr(user.ID),
	})
	return user, nil
}

// checkPlacement enforces the single-axis rule and the roles allowed on each
// axis, and that referenced departments and positions exist.
func (s *OrgService) checkPlacement(u *models.User) error {
	if !u.Role.Valid() {
		return ErrInvalidRole
	}
	if u.DepartmentID != nil && u.FactoryType != nil {
		return ErrBothAxes
	}
	if u.FactoryType != nil {
		if !u.FactoryType.Valid() {
			return ErrInvalidFactoryType
		}
		if !u.Role.AllowedOnFactoryTrack() {
			return ErrRoleNotOnFactoryTrack
		}
	} else if !u.Role.AllowedOnOfficeTrack() {
		return ErrRoleNotOnOfficeTrack
	}

	if u.DepartmentID != nil {
		if _, err := s.deptRepo.FindByID(*u.DepartmentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierrors.Validation("user.unknown_department", "department does not exist")
			}
			return fmt.Errorf("failed to find department: %w", err)
		}
	}
	if u.PositionID != nil {
		if _, err := s.positionRepo.FindByID(*u.PositionID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierrors.Validation("user.unknown_position", "position does not exist")
			}
			return fmt.Errorf("failed to find position: %w", err)
		}
	}
	return nil
}

// checkDesignations keeps department designations consistent with roles.
func (s *OrgService) checkDesignations(before, after *models.User) error {
	if before.Role == after.Role && equalIDs(before.DepartmentID, after.DepartmentID) {
		return nil
	}
	depts, err := s.deptRepo.List()
	if err != nil {
		return fmt.Errorf("failed to load departments: %w", err)
	}
	for i := range depts {
		d := &depts[i]
		if d.HasManager(after.ID) || d.HasLead(after.ID) {
			return ErrStillDesignated
		}
		if d.OverseenBy(after.ID) && !after.Role.IsTopManagement() {
			return ErrStillDesignated
		}
	}
	return nil
}

func equalIDs(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
