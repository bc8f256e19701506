package services

import (
	"fmt"

	apierrors "github.com/yukikurage/kpi-management-api/internal/errors"
	"github.com/yukikurage/kpi-management-api/internal/hierarchy"
	"github.com/yukikurage/kpi-management-api/internal/models"
	"github.com/yukikurage/kpi-management-api/internal/repository"
)

// HierarchyService builds resolvers from the current org data.
type HierarchyService struct {
	userRepo repository.UserRepository
	deptRepo repository.DepartmentRepository
}

// NewHierarchyService creates a new HierarchyService
func NewHierarchyService(userRepo repository.UserRepository, deptRepo repository.DepartmentRepository) *HierarchyService {
	return &HierarchyService{
		userRepo: userRepo,
		deptRepo: deptRepo,
	}
}

// Resolver loads a fresh snapshot of users and departments.
func (s *HierarchyService) Resolver() (*hierarchy.Resolver, error) {
	users, err := s.userRepo.ListAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	depts, err := s.deptRepo.List()
	if err != nil {
		return nil, fmt.Errorf("failed to load departments: %w", err)
	}
	return hierarchy.NewResolver(hierarchy.NewSnapshot(users, depts)), nil
}

// HierarchyView is everything the hierarchy endpoints report for one user.
type HierarchyView struct {
	User             *models.User
	DirectSuperior   *models.User
	SuperiorChain    []*models.User
	Subordinates     []*models.User
	KPIEvaluator     *models.User
	KPISuperiorChain []*models.User
	EvaluationConfig hierarchy.EvaluationConfig
	ManagedDept      *models.Department
	LedDept          *models.Department
}

// ErrHierarchyAccessDenied is returned when a viewer asks about someone
// outside their own reporting lines.
var ErrHierarchyAccessDenied = apierrors.Authorization("hierarchy.access_denied", "you cannot view this user's reporting lines")

// View resolves the reporting lines of userID as seen by viewerID.
func (s *HierarchyService) View(userID, viewerID uint64) (*HierarchyView, error) {
	r, u, err := s.visibleUser(userID, viewerID)
	if err != nil {
		return nil, err
	}

	return &HierarchyView{
		User:             u,
		DirectSuperior:   r.DirectSuperior(u),
		SuperiorChain:    r.SuperiorChain(u),
		Subordinates:     r.Subordinates(u),
		KPIEvaluator:     r.KPIEvaluator(u),
		KPISuperiorChain: r.KPISuperiorChain(u),
		EvaluationConfig: r.EvaluationConfig(u),
		ManagedDept:      r.ManagedDepartment(u),
		LedDept:          r.LedDepartment(u),
	}, nil
}

// Subordinates lists the users below userID: direct reports only, or the
// full closure when transitive is set.
func (s *HierarchyService) Subordinates(userID, viewerID uint64, transitive bool) ([]*models.User, error) {
	r, u, err := s.visibleUser(userID, viewerID)
	if err != nil {
		return nil, err
	}
	if transitive {
		return r.AllSubordinates(u), nil
	}
	return r.Subordinates(u), nil
}

// AllSubordinates returns every user below userID.
func (s *HierarchyService) AllSubordinates(userID uint64) ([]*models.User, error) {
	r, err := s.Resolver()
	if err != nil {
		return nil, err
	}
	u, err := lookupUser(r, userID)
	if err != nil {
		return nil, err
	}
	return r.AllSubordinates(u), nil
}

func (s *HierarchyService) visibleUser(userID, viewerID uint64) (*hierarchy.Resolver, *models.User, error) {
	r, err := s.Resolver()
	if err != nil {
		return nil, nil, err
	}
	u, err := lookupUser(r, userID)
	if err != nil {
		return nil, nil, err
	}
	viewer, err := lookupUser(r, viewerID)
	if err != nil {
		return nil, nil, err
	}
	if !CanViewUser(r, viewer, u) {
		return nil, nil, ErrHierarchyAccessDenied
	}
	return r, u, nil
}

// CanViewUser reports whether viewer may see hierarchy data about target:
// themselves, anyone below them, or anything for admins.
func CanViewUser(r *hierarchy.Resolver, viewer, target *models.User) bool {
	if viewer.ID == target.ID || viewer.Role == models.RoleAdmin {
		return true
	}
	if r.IsSuperiorOf(viewer, target) {
		return true
	}
	for _, s := range r.KPISuperiorChain(target) {
		if s.ID == viewer.ID {
			return true
		}
	}
	if tm := r.TopManagementEvaluator(target); tm != nil && tm.ID == viewer.ID {
		return true
	}
	return false
}

func lookupUser(r *hierarchy.Resolver, id uint64) (*models.User, error) {
	u, ok := r.Snapshot().User(id)
	if !ok {
		return nil, apierrors.NotFoundError("user.not_found", "user not found")
	}
	return u, nil
}
