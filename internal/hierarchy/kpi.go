package hierarchy

import (
	"github.com/yukikurage/kpi-management-api/internal/constants"
	"github.com/yukikurage/kpi-management-api/internal/models"
)

// EvaluationConfig describes who scores a user.
type EvaluationConfig struct {
	Evaluator              *models.User
	TopManagementEvaluator *models.User
	// IsDualEvaluation is set when a top-management evaluator exists and is
	// not the same person as Evaluator.
	IsDualEvaluation bool
}

// KPIEvaluator returns the user who scores u. Office employees and managers
// go to the department manager first and the department lead second; every
// other user is scored by their DirectSuperior.
func (r *Resolver) KPIEvaluator(u *models.User) *models.User {
	u = r.snap.canonical(u)
	if u == nil {
		return nil
	}

	if !u.OnFactoryTrack() && (u.Role == models.RoleEmployee || u.Role == models.RoleManager) {
		if g, ok := officeTrack.group(r.snap, u); ok {
			d := r.snap.departments[g.departmentID]
			for _, id := range []*uint64{d.ManagerID, d.DepartmentLeadID} {
				if h := r.snap.activeUser(id); h != nil && h.ID != u.ID {
					return h
				}
			}
			return nil
		}
	}
	return r.DirectSuperior(u)
}

// KPISuperiorChain follows KPIEvaluator upwards for at most
// constants.MaxKPISuperiorHops hops.
func (r *Resolver) KPISuperiorChain(u *models.User) []*models.User {
	return r.chain(u, r.KPIEvaluator, constants.MaxKPISuperiorHops)
}

// TopManagementEvaluator is the first active overseer of u's department or
// factory type.
func (r *Resolver) TopManagementEvaluator(u *models.User) *models.User {
	u = r.snap.canonical(u)
	if u == nil || u.Role == models.RoleAdmin || u.Role.IsTopManagement() {
		return nil
	}
	t := trackOf(u)
	g, ok := t.group(r.snap, u)
	if !ok {
		return nil
	}
	return firstOther(t.overseers(r.snap, g), u.ID)
}

func (r *Resolver) EvaluationConfig(u *models.User) EvaluationConfig {
	cfg := EvaluationConfig{
		Evaluator:              r.KPIEvaluator(u),
		TopManagementEvaluator: r.TopManagementEvaluator(u),
	}
	cfg.IsDualEvaluation = cfg.TopManagementEvaluator != nil &&
		(cfg.Evaluator == nil || cfg.Evaluator.ID != cfg.TopManagementEvaluator.ID)
	return cfg
}
