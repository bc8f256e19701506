package services

import (
	apierrors "github.com/yukikurage/kpi-management-api/internal/errors"
	"github.com/yukikurage/kpi-management-api/internal/hierarchy"
	"github.com/yukikurage/kpi-management-api/internal/models"
)

// Assignment rules, in evaluation order. The matching rule is reported on
// both accepted and rejected assignments.
const (
	RuleSelfAssignment       = "task.self_assignment"
	RuleEmployeeAssignment   = "task.employee_requires_designated_creator"
	RuleManagerAssignment    = "task.manager_requires_department_lead"
	RuleLeadAssignment       = "task.department_lead_requires_top_management"
	RuleTopMgmtAssignment    = "task.top_management_requires_department_lead"
	RuleAdminAssignment      = "task.admin_not_assignable"
	RuleDefaultAssignment    = "task.default"
	RuleAssigneeNoDepartment = "task.assignee_without_department"
	RuleNoDesignatedCreator  = "task.department_without_designated_creator"
)

// SideEffect is a notification the caller must send once the task exists.
type SideEffect struct {
	Template  NotificationTemplate
	Recipient *models.User
	// Actions become signed links in the notification.
	Actions []ApprovalAction
}

// AssignmentDecision is the initial state of an authorized task.
type AssignmentDecision struct {
	Rule     string
	Approved bool
	Status   models.TaskStatus
	Effects  []SideEffect
}

// AuthorizeAssignment applies the assignment decision table. The first
// matching row wins.
func AuthorizeAssignment(r *hierarchy.Resolver, creator, assignee *models.User) (*AssignmentDecision, error) {
	if creator == nil || assignee == nil {
		return nil, apierrors.Validation("task.missing_party", "creator and assignee are required")
	}

	// 1. self-assignment
	if creator.ID == assignee.ID {
		superior := r.DirectSuperior(creator)
		if superior == nil {
			return decide(RuleSelfAssignment, true), nil
		}
		return decide(RuleSelfAssignment, false, SideEffect{
			Template:  TemplateApprovalRequest,
			Recipient: superior,
			Actions:   []ApprovalAction{ActionApprove, ActionReject},
		}), nil
	}

	switch {
	// 2. employee: only the department's designated creator
	case assignee.Role == models.RoleEmployee:
		if err := checkDesignatedCreator(r, creator, assignee); err != nil {
			return nil, err
		}
		return decide(RuleEmployeeAssignment, false, assignmentNotice(TemplateNewAssignment, assignee)), nil

	// 3. manager: only a department lead
	case assignee.Role == models.RoleManager:
		if creator.Role != models.RoleDepartmentLead {
			return nil, apierrors.Authorization(RuleManagerAssignment, "only a department lead can assign tasks to a manager")
		}
		return decide(RuleManagerAssignment, false, assignmentNotice(TemplateAcceptanceRequest, assignee)), nil

	// 4. department lead: only top management
	case assignee.Role == models.RoleDepartmentLead:
		if !creator.Role.IsTopManagement() {
			return nil, apierrors.Authorization(RuleLeadAssignment, "only top management can assign tasks to a department lead")
		}
		return decide(RuleLeadAssignment, false, assignmentNotice(TemplateAcceptanceRequest, assignee)), nil

	// 5. top management: only a department lead
	case assignee.Role.IsTopManagement():
		if creator.Role != models.RoleDepartmentLead {
			return nil, apierrors.Authorization(RuleTopMgmtAssignment, "only a department lead can assign tasks to top management")
		}
		return decide(RuleTopMgmtAssignment, false, assignmentNotice(TemplateNewAssignment, assignee)), nil

	// 6. admin: never
	case assignee.Role == models.RoleAdmin:
		return nil, apierrors.Authorization(RuleAdminAssignment, "tasks cannot be assigned to an admin")
	}

	// 7. anything else
	return decide(RuleDefaultAssignment, false, assignmentNotice(TemplateNewAssignment, assignee)), nil
}

// checkDesignatedCreator accepts the department's manager or lead. Factory
// employees have no department; their designated creators are the active
// department leads of the same factory type.
func checkDesignatedCreator(r *hierarchy.Resolver, creator, assignee *models.User) error {
	if assignee.OnFactoryTrack() {
		if creator.Role == models.RoleDepartmentLead && creator.IsActive && creator.SameFactoryType(*assignee.FactoryType) {
			return nil
		}
		return apierrors.Authorization(RuleEmployeeAssignment, "only a department lead of the same factory can assign tasks to this employee")
	}

	if assignee.DepartmentID == nil {
		return apierrors.Validation(RuleAssigneeNoDepartment, "assignee does not belong to a department")
	}
	dept, ok := r.Snapshot().Department(*assignee.DepartmentID)
	if !ok {
		return apierrors.Validation(RuleAssigneeNoDepartment, "assignee's department does not exist")
	}
	if dept.ManagerID == nil && dept.DepartmentLeadID == nil {
		return apierrors.Validation(RuleNoDesignatedCreator, "assignee's department has no manager or department lead")
	}
	if dept.HasManager(creator.ID) || dept.HasLead(creator.ID) {
		return nil
	}
	return apierrors.Authorization(RuleEmployeeAssignment, "only the department's manager or lead can assign tasks to this employee")
}

func assignmentNotice(template NotificationTemplate, assignee *models.User) SideEffect {
	return SideEffect{
		Template:  template,
		Recipient: assignee,
		Actions:   []ApprovalAction{ActionAccept, ActionRejectAssignment},
	}
}

func decide(rule string, approved bool, effects ...SideEffect) *AssignmentDecision {
	status := models.TaskStatusPending
	if approved {
		status = models.TaskStatusTodo
	}
	return &AssignmentDecision{
		Rule:     rule,
		Approved: approved,
		Status:   status,
		Effects:  effects,
	}
}
