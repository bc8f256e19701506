package models

import (
	"time"
)

type EvaluationType string

const (
	EvaluationTypeSelf          EvaluationType = "SELF"
	EvaluationTypeSuperior      EvaluationType = "SUPERIOR"
	EvaluationTypeTopManagement EvaluationType = "TOP_MANAGEMENT"
)

// Valid reports whether t is a known evaluation type.
func (t EvaluationType) Valid() bool {
	switch t {
	case EvaluationTypeSelf, EvaluationTypeSuperior, EvaluationTypeTopManagement:
		return true
	}
	return false
}

// EvaluationKind tells the two evaluation record tables apart in shared
// tables such as evaluation_histories.
type EvaluationKind string

const (
	EvaluationKindKPI  EvaluationKind = "kpi"
	EvaluationKindUser EvaluationKind = "user"
)

// EvaluationBase holds the columns shared by task-scoped and period-scoped
// evaluations. Version is bumped on every score change.
type EvaluationBase struct {
	ID            uint64         `gorm:"primarykey" json:"id"`
	EvaluatorID   uint64         `gorm:"not null;index" json:"evaluator_id"`
	EvaluateeID   uint64         `gorm:"not null;index" json:"evaluatee_id"`
	Type          EvaluationType `gorm:"column:evaluation_type;type:varchar(20);not null" json:"evaluation_type"`
	Score         float64        `gorm:"not null" json:"score"`
	PreviousScore *float64       `json:"previous_score"`
	UpdatedByID   *uint64        `json:"updated_by_id"`
	Comment       string         `gorm:"type:text" json:"comment"`
	Attachment    string         `gorm:"type:varchar(512)" json:"attachment"`
	Version       uint           `gorm:"not null;default:1" json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`

	Evaluator User `gorm:"foreignKey:EvaluatorID" json:"-"`
	Evaluatee User `gorm:"foreignKey:EvaluateeID" json:"-"`
}

// KPIEvaluation scores the assignee's work on one task. The unique index on
// (task_id, evaluation_type) is created by database.AddIndexes.
type KPIEvaluation struct {
	EvaluationBase
	TaskID uint64 `gorm:"not null;index" json:"task_id"`
}

// UserEvaluation scores a user for a calendar month. PeriodStart is the first
// day of that month in UTC; (evaluatee_id, period_start, evaluation_type) is
// unique.
type UserEvaluation struct {
	EvaluationBase
	PeriodStart time.Time `gorm:"not null;index" json:"period_start"`
}

// EvaluationHistory is one immutable score change. Rows are only ever inserted.
type EvaluationHistory struct {
	ID            uint64         `gorm:"primarykey" json:"id"`
	Kind          EvaluationKind `gorm:"type:varchar(10);not null;index:idx_evaluation_histories_record,priority:1" json:"kind"`
	EvaluationID  uint64         `gorm:"not null;index:idx_evaluation_histories_record,priority:2" json:"evaluation_id"`
	EditorID      uint64         `gorm:"not null" json:"editor_id"`
	PreviousScore *float64       `json:"previous_score"`
	NewScore      float64        `gorm:"not null" json:"new_score"`
	CreatedAt     time.Time      `json:"created_at"`
}
