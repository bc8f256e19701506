package hierarchy

import (
	"sort"

	"github.com/yukikurage/kpi-management-api/internal/constants"
	"github.com/yukikurage/kpi-management-api/internal/models"
)

// Resolver answers reporting-line questions over a Snapshot.
type Resolver struct {
	snap *Snapshot
}

func NewResolver(snap *Snapshot) *Resolver {
	return &Resolver{snap: snap}
}

// Snapshot returns the data the resolver works on.
func (r *Resolver) Snapshot() *Snapshot {
	return r.snap
}

// DirectSuperior returns the user u reports to for task assignment, or nil.
// Top management, ceo and admin report to nobody.
func (r *Resolver) DirectSuperior(u *models.User) *models.User {
	u = r.snap.canonical(u)
	if u == nil || u.Role == models.RoleAdmin || u.Role.IsTopManagement() {
		return nil
	}

	t := trackOf(u)
	g, ok := t.group(r.snap, u)
	if !ok {
		if t.fallbackToGlobal {
			return firstOther(r.snap.globalTopManagement(), u.ID)
		}
		return nil
	}

	tier := t.tierOf(u.Role)
	for next := tier + 1; next < len(t.tiers); next++ {
		if h := firstOther(t.holders(r.snap, g, t.tiers[next]), u.ID); h != nil {
			return h
		}
	}
	if tier < t.escalateFrom {
		return nil
	}
	return r.escalate(t, g, u)
}

// escalate picks the group's own overseer first, then the global pool.
func (r *Resolver) escalate(t *track, g groupRef, u *models.User) *models.User {
	if h := firstOther(t.overseers(r.snap, g), u.ID); h != nil {
		return h
	}
	return firstOther(r.snap.globalTopManagement(), u.ID)
}

// SuperiorChain follows DirectSuperior upwards. It stops at the first
// repeated user or after constants.MaxSuperiorHops hops and returns what it
// collected so far.
func (r *Resolver) SuperiorChain(u *models.User) []*models.User {
	return r.chain(u, r.DirectSuperior, constants.MaxSuperiorHops)
}

func (r *Resolver) chain(u *models.User, next func(*models.User) *models.User, maxHops int) []*models.User {
	u = r.snap.canonical(u)
	if u == nil {
		return nil
	}
	visited := map[uint64]bool{u.ID: true}
	var out []*models.User
	for cur := u; len(out) < maxHops; {
		sup := next(cur)
		if sup == nil || visited[sup.ID] {
			break
		}
		visited[sup.ID] = true
		out = append(out, sup)
		cur = sup
	}
	return out
}

// IsSuperiorOf reports whether candidate appears anywhere in u's superior chain.
func (r *Resolver) IsSuperiorOf(candidate, u *models.User) bool {
	if candidate == nil {
		return false
	}
	for _, s := range r.SuperiorChain(u) {
		if s.ID == candidate.ID {
			return true
		}
	}
	return false
}

// Subordinates returns the active users directly below u, ordered by ID.
func (r *Resolver) Subordinates(u *models.User) []*models.User {
	u = r.snap.canonical(u)
	if u == nil {
		return nil
	}

	seen := make(map[uint64]bool)
	var out []*models.User
	add := func(c *models.User) {
		if c.ID == u.ID || !c.IsActive || seen[c.ID] {
			return
		}
		seen[c.ID] = true
		out = append(out, c)
	}

	switch {
	case u.Role == models.RoleAdmin:
		for _, c := range r.snap.ordered {
			add(c)
		}
	case u.Role.IsTopManagement():
		outranked := func(c *models.User) bool {
			return c.Role != models.RoleAdmin && !c.Role.IsTopManagement()
		}
		for _, deptID := range r.snap.overseenBy[u.ID] {
			for _, c := range officeTrack.members(r.snap, groupRef{departmentID: deptID}) {
				if outranked(c) {
					add(c)
				}
			}
		}
		if u.FactoryType != nil {
			for _, c := range factoryTrack.members(r.snap, groupRef{factoryType: *u.FactoryType}) {
				if outranked(c) {
					add(c)
				}
			}
		}
		// Users escalated to u because their own group has no overseer.
		for _, c := range r.snap.ordered {
			if !outranked(c) {
				continue
			}
			if sup := r.DirectSuperior(c); sup != nil && sup.ID == u.ID {
				add(c)
			}
		}
	default:
		for _, t := range []*track{officeTrack, factoryTrack} {
			for _, h := range t.headed(r.snap, u) {
				for _, c := range t.members(r.snap, h.group) {
					if c.Role != models.RoleAdmin && t.tierOf(c.Role) < h.tier {
						add(c)
					}
				}
			}
		}
	}

	sortByID(out)
	return out
}

// AllSubordinates returns the transitive closure of Subordinates using a
// worklist, so cyclic data terminates.
func (r *Resolver) AllSubordinates(u *models.User) []*models.User {
	u = r.snap.canonical(u)
	if u == nil {
		return nil
	}

	visited := map[uint64]bool{u.ID: true}
	queue := []*models.User{u}
	var out []*models.User
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, s := range r.Subordinates(cur) {
			if visited[s.ID] {
				continue
			}
			visited[s.ID] = true
			out = append(out, s)
			queue = append(queue, s)
		}
	}

	sortByID(out)
	return out
}

// ManagedDepartment is the department u manages, if u is a manager.
func (r *Resolver) ManagedDepartment(u *models.User) *models.Department {
	u = r.snap.canonical(u)
	if u == nil || u.Role != models.RoleManager {
		return nil
	}
	return r.firstDepartment(r.snap.managerOf[u.ID])
}

// LedDepartment is the department u leads, if u is a department lead.
func (r *Resolver) LedDepartment(u *models.User) *models.Department {
	u = r.snap.canonical(u)
	if u == nil || u.Role != models.RoleDepartmentLead {
		return nil
	}
	return r.firstDepartment(r.snap.leadOf[u.ID])
}

// OverseenDepartments lists the departments whose top-management set holds u.
func (r *Resolver) OverseenDepartments(u *models.User) []*models.Department {
	if u == nil {
		return nil
	}
	var out []*models.Department
	for _, id := range r.snap.overseenBy[u.ID] {
		if d, ok := r.snap.departments[id]; ok {
			out = append(out, d)
		}
	}
	return out
}

func (r *Resolver) firstDepartment(ids []uint64) *models.Department {
	for _, id := range ids {
		if d, ok := r.snap.departments[id]; ok {
			return d
		}
	}
	return nil
}

func sortByID(users []*models.User) {
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
}
