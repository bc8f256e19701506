package models

import "time"

type ActivityType string

const (
	ActivityTaskCreated         ActivityType = "task_created"
	ActivityTaskUpdated         ActivityType = "task_updated"
	ActivityTaskStatusChanged   ActivityType = "task_status_changed"
	ActivityTaskDeleted         ActivityType = "task_deleted"
	ActivityTaskApproved        ActivityType = "task_approved"
	ActivityTaskRejected        ActivityType = "task_rejected"
	ActivityEvaluationSubmitted ActivityType = "evaluation_submitted"
	ActivityEvaluationUpdated   ActivityType = "evaluation_updated"
	ActivityUserProvisioned     ActivityType = "user_provisioned"
	ActivityUserUpdated         ActivityType = "user_updated"
	ActivityUserDeactivated     ActivityType = "user_deactivated"
	ActivityDepartmentChanged   ActivityType = "department_changed"
)

type ActivityLog struct {
	ID           uint64         `gorm:"primarykey" json:"id"`
	ActorID      *uint64        `gorm:"index" json:"actor_id"`
	ActionType   ActivityType   `gorm:"type:varchar(50);not null;index" json:"action_type"`
	TargetUserID *uint64        `gorm:"index" json:"target_user_id"`
	TargetTaskID *uint64        `json:"target_task_id"`
	Details      map[string]any `gorm:"serializer:json;type:text" json:"details"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
}
