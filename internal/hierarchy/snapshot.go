package hierarchy

import (
	"sort"

	"github.com/yukikurage/kpi-management-api/internal/models"
)

// Snapshot is a read-only view of users and departments. Resolution never
// touches the database, so a Snapshot can be shared by concurrent readers.
type Snapshot struct {
	users       map[uint64]*models.User
	ordered     []*models.User
	departments map[uint64]*models.Department
	overseers   map[uint64][]uint64
	managerOf   map[uint64][]uint64
	leadOf      map[uint64][]uint64
	overseenBy  map[uint64][]uint64
}

// NewSnapshot indexes users and departments. Departments are expected to
// carry their TopManagement association.
func NewSnapshot(users []models.User, departments []models.Department) *Snapshot {
	s := &Snapshot{
		users:       make(map[uint64]*models.User, len(users)),
		ordered:     make([]*models.User, 0, len(users)),
		departments: make(map[uint64]*models.Department, len(departments)),
		overseers:   make(map[uint64][]uint64),
		managerOf:   make(map[uint64][]uint64),
		leadOf:      make(map[uint64][]uint64),
		overseenBy:  make(map[uint64][]uint64),
	}

	for i := range users {
		u := users[i]
		s.users[u.ID] = &u
		s.ordered = append(s.ordered, &u)
	}
	sort.Slice(s.ordered, func(i, j int) bool { return s.ordered[i].ID < s.ordered[j].ID })

	for i := range departments {
		d := departments[i]
		s.departments[d.ID] = &d
		if d.ManagerID != nil {
			s.managerOf[*d.ManagerID] = append(s.managerOf[*d.ManagerID], d.ID)
		}
		if d.DepartmentLeadID != nil {
			s.leadOf[*d.DepartmentLeadID] = append(s.leadOf[*d.DepartmentLeadID], d.ID)
		}
		ids := make([]uint64, 0, len(d.TopManagement))
		for _, tm := range d.TopManagement {
			ids = append(ids, tm.ID)
			s.overseenBy[tm.ID] = append(s.overseenBy[tm.ID], d.ID)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		s.overseers[d.ID] = ids
	}
	for _, m := range []map[uint64][]uint64{s.managerOf, s.leadOf, s.overseenBy} {
		for k := range m {
			ids := m[k]
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		}
	}
	return s
}

// User returns the user with the given ID.
func (s *Snapshot) User(id uint64) (*models.User, bool) {
	u, ok := s.users[id]
	return u, ok
}

// Department returns the department with the given ID.
func (s *Snapshot) Department(id uint64) (*models.Department, bool) {
	d, ok := s.departments[id]
	return d, ok
}

// Users returns every user ordered by ID.
func (s *Snapshot) Users() []*models.User {
	return s.ordered
}

// canonical swaps u for the snapshot's copy so callers may pass stale structs.
func (s *Snapshot) canonical(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	if c, ok := s.users[u.ID]; ok {
		return c
	}
	return u
}

func (s *Snapshot) activeUser(id *uint64) *models.User {
	if id == nil {
		return nil
	}
	u, ok := s.users[*id]
	if !ok || !u.IsActive {
		return nil
	}
	return u
}

// departmentOverseers returns the active top-management members of a
// department ordered by ID.
func (s *Snapshot) departmentOverseers(departmentID uint64) []*models.User {
	var out []*models.User
	for _, id := range s.overseers[departmentID] {
		id := id
		if u := s.activeUser(&id); u != nil && u.Role.IsTopManagement() {
			out = append(out, u)
		}
	}
	return out
}

// globalTopManagement is the office-track pool of active top-management users.
func (s *Snapshot) globalTopManagement() []*models.User {
	var out []*models.User
	for _, u := range s.ordered {
		if u.IsActive && u.Role.IsTopManagement() && u.FactoryType == nil {
			out = append(out, u)
		}
	}
	return out
}

func firstOther(candidates []*models.User, self uint64) *models.User {
	for _, c := range candidates {
		if c.ID != self {
			return c
		}
	}
	return nil
}
