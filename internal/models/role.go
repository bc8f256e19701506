package models

// Role is a user's position in the organizational hierarchy.
type Role string

const (
	RoleEmployee       Role = "employee"
	RoleManager        Role = "manager"
	RoleDepartmentLead Role = "department_lead"
	RoleDeputyDirector Role = "deputy_director"
	RoleTopManagement  Role = "top_management"
	RoleCEO            Role = "ceo"
	RoleAdmin          Role = "admin"
)

// roleRanks is the single total order used for every rank comparison.
var roleRanks = map[Role]int{
	RoleEmployee:       1,
	RoleManager:        2,
	RoleDepartmentLead: 3,
	RoleDeputyDirector: 4,
	RoleTopManagement:  5,
	RoleCEO:            6,
	RoleAdmin:          7,
}

// Rank returns the role's position in the hierarchy ranking, or 0 for unknown roles.
func (r Role) Rank() int {
	return roleRanks[r]
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// Outranks reports whether r is strictly above other.
func (r Role) Outranks(other Role) bool {
	return r.Rank() > other.Rank()
}

// IsTopManagement is true for top_management and for ceo, which is treated as
// a superset of top_management with stricter evaluation editing rules.
func (r Role) IsTopManagement() bool {
	return r == RoleTopManagement || r == RoleCEO
}

// AllowedOnOfficeTrack reports whether r may be held by a department-based user.
func (r Role) AllowedOnOfficeTrack() bool {
	return r.Valid() && r != RoleDeputyDirector
}

// AllowedOnFactoryTrack reports whether r may be held by a factory-type user.
func (r Role) AllowedOnFactoryTrack() bool {
	return r.Valid() && r != RoleManager
}

// FactoryType is the alternate hierarchy axis for factory staff.
type FactoryType string

const (
	FactoryTypeBidon FactoryType = "bidon"
	FactoryTypeDolum FactoryType = "dolum"
)

// Valid reports whether f is a known factory type.
func (f FactoryType) Valid() bool {
	return f == FactoryTypeBidon || f == FactoryTypeDolum
}
