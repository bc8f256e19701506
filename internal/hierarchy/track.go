package hierarchy

import (
	"github.com/yukikurage/kpi-management-api/internal/models"
)

// track describes one hierarchy axis. Both axes share the same traversal;
// they differ only in their tier table and in how group members, tier
// holders and overseers are found.
type track struct {
	name string
	// tiers lists in-group roles from the bottom up.
	tiers []models.Role
	// escalateFrom is the lowest tier that escalates to top management when
	// no higher in-group holder exists.
	escalateFrom int
	// fallbackToGlobal lets users without a group report to the global pool.
	fallbackToGlobal bool

	group     func(s *Snapshot, u *models.User) (groupRef, bool)
	holders   func(s *Snapshot, g groupRef, tier models.Role) []*models.User
	members   func(s *Snapshot, g groupRef) []*models.User
	overseers func(s *Snapshot, g groupRef) []*models.User
	// headed lists the groups u heads and the tier u holds in each.
	headed func(s *Snapshot, u *models.User) []headedGroup
}

type groupRef struct {
	departmentID uint64
	factoryType  models.FactoryType
}

type headedGroup struct {
	group groupRef
	tier  int
}

// tierOf returns the highest tier whose rank does not exceed role's rank.
func (t *track) tierOf(role models.Role) int {
	return tierIndex(t.tiers, role)
}

func tierIndex(tiers []models.Role, role models.Role) int {
	idx := 0
	for i, tier := range tiers {
		if tier.Rank() <= role.Rank() {
			idx = i
		}
	}
	return idx
}

var (
	officeTiers  = []models.Role{models.RoleEmployee, models.RoleManager, models.RoleDepartmentLead}
	factoryTiers = []models.Role{models.RoleEmployee, models.RoleDepartmentLead, models.RoleDeputyDirector}
)

var officeTrack = &track{
	name:             "office",
	tiers:            officeTiers,
	escalateFrom:     2,
	fallbackToGlobal: true,
	group: func(s *Snapshot, u *models.User) (groupRef, bool) {
		if u.DepartmentID == nil {
			return groupRef{}, false
		}
		if _, ok := s.departments[*u.DepartmentID]; !ok {
			return groupRef{}, false
		}
		return groupRef{departmentID: *u.DepartmentID}, true
	},
	holders: func(s *Snapshot, g groupRef, tier models.Role) []*models.User {
		d := s.departments[g.departmentID]
		var holder *models.User
		switch tier {
		case models.RoleManager:
			holder = s.activeUser(d.ManagerID)
		case models.RoleDepartmentLead:
			holder = s.activeUser(d.DepartmentLeadID)
		}
		if holder == nil {
			return nil
		}
		return []*models.User{holder}
	},
	members: func(s *Snapshot, g groupRef) []*models.User {
		var out []*models.User
		for _, u := range s.ordered {
			if u.InDepartment(g.departmentID) {
				out = append(out, u)
			}
		}
		return out
	},
	overseers: func(s *Snapshot, g groupRef) []*models.User {
		return s.departmentOverseers(g.departmentID)
	},
	headed: func(s *Snapshot, u *models.User) []headedGroup {
		var out []headedGroup
		for _, id := range s.managerOf[u.ID] {
			out = append(out, headedGroup{group: groupRef{departmentID: id}, tier: 1})
		}
		for _, id := range s.leadOf[u.ID] {
			out = append(out, headedGroup{group: groupRef{departmentID: id}, tier: 2})
		}
		return out
	},
}

var factoryTrack = &track{
	name:         "factory",
	tiers:        factoryTiers,
	escalateFrom: 1,
	group: func(s *Snapshot, u *models.User) (groupRef, bool) {
		if u.FactoryType == nil {
			return groupRef{}, false
		}
		return groupRef{factoryType: *u.FactoryType}, true
	},
	holders: func(s *Snapshot, g groupRef, tier models.Role) []*models.User {
		var out []*models.User
		for _, u := range s.ordered {
			if u.IsActive && u.Role == tier && u.SameFactoryType(g.factoryType) {
				out = append(out, u)
			}
		}
		return out
	},
	members: func(s *Snapshot, g groupRef) []*models.User {
		var out []*models.User
		for _, u := range s.ordered {
			if u.SameFactoryType(g.factoryType) {
				out = append(out, u)
			}
		}
		return out
	},
	overseers: func(s *Snapshot, g groupRef) []*models.User {
		var out []*models.User
		for _, u := range s.ordered {
			if u.IsActive && u.Role.IsTopManagement() && u.SameFactoryType(g.factoryType) {
				out = append(out, u)
			}
		}
		return out
	},
	headed: func(s *Snapshot, u *models.User) []headedGroup {
		if u.FactoryType == nil || u.Role.IsTopManagement() || u.Role == models.RoleAdmin {
			return nil
		}
		t := tierIndex(factoryTiers, u.Role)
		if t == 0 {
			return nil
		}
		return []headedGroup{{group: groupRef{factoryType: *u.FactoryType}, tier: t}}
	},
}

func trackOf(u *models.User) *track {
	if u.OnFactoryTrack() {
		return factoryTrack
	}
	return officeTrack
}
