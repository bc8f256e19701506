package dto

import (
	"time"

	"github.com/yukikurage/kpi-management-api/internal/evaluation"
	"github.com/yukikurage/kpi-management-api/internal/models"
	"github.com/yukikurage/kpi-management-api/internal/services"
)

// EvaluationDTO represents one stored evaluation
type EvaluationDTO struct {
	ID            uint64                `json:"id"`
	Kind          models.EvaluationKind `json:"kind"`
	Type          models.EvaluationType `json:"evaluation_type"`
	EvaluatorID   uint64                `json:"evaluator_id"`
	EvaluateeID   uint64                `json:"evaluatee_id"`
	TaskID        *uint64               `json:"task_id,omitempty"`
	PeriodStart   *time.Time            `json:"period_start,omitempty"`
	Score         float64               `json:"score"`
	PreviousScore *float64              `json:"previous_score"`
	UpdatedByID   *uint64               `json:"updated_by_id"`
	Comment       string                `json:"comment"`
	Attachment    string                `json:"attachment,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// EvaluationStatusDTO is the per-stage view of one subject
type EvaluationStatusDTO struct {
	Evaluatee              UserDTO          `json:"evaluatee"`
	Evaluator              *UserDTO         `json:"evaluator"`
	TopManagementEvaluator *UserDTO         `json:"top_management_evaluator"`
	IsDualEvaluation       bool             `json:"is_dual_evaluation"`
	Stage                  evaluation.Stage `json:"stage"`
	SelfScore              *float64         `json:"self_score"`
	SuperiorScore          *float64         `json:"superior_score"`
	TopManagementScore     *float64         `json:"top_management_score"`
	FinalScore             *float64         `json:"final_score"`
	Self                   *EvaluationDTO   `json:"self,omitempty"`
	Superior               *EvaluationDTO   `json:"superior,omitempty"`
	TopManagement          *EvaluationDTO   `json:"top_management,omitempty"`
}

// EvaluationHistoryDTO is one score change
type EvaluationHistoryDTO struct {
	ID            uint64    `json:"id"`
	EditorID      uint64    `json:"editor_id"`
	PreviousScore *float64  `json:"previous_score"`
	NewScore      float64   `json:"new_score"`
	CreatedAt     time.Time `json:"created_at"`
}

func toEvaluationDTO(base models.EvaluationBase, kind models.EvaluationKind) EvaluationDTO {
	return EvaluationDTO{
		ID:            base.ID,
		Kind:          kind,
		Type:          base.Type,
		EvaluatorID:   base.EvaluatorID,
		EvaluateeID:   base.EvaluateeID,
		Score:         base.Score,
		PreviousScore: base.PreviousScore,
		UpdatedByID:   base.UpdatedByID,
		Comment:       base.Comment,
		Attachment:    base.Attachment,
		CreatedAt:     base.CreatedAt,
		UpdatedAt:     base.UpdatedAt,
	}
}

// ToKPIEvaluationDTO converts a task-scoped evaluation
func ToKPIEvaluationDTO(e models.KPIEvaluation) EvaluationDTO {
	dto := toEvaluationDTO(e.EvaluationBase, models.EvaluationKindKPI)
	taskID := e.TaskID
	dto.TaskID = &taskID
	return dto
}

// ToUserEvaluationDTO converts a period-scoped evaluation
func ToUserEvaluationDTO(e models.UserEvaluation) EvaluationDTO {
	dto := toEvaluationDTO(e.EvaluationBase, models.EvaluationKindUser)
	period := e.PeriodStart
	dto.PeriodStart = &period
	return dto
}

// ToEvaluationBaseDTO converts a record whose kind is known only to the caller
func ToEvaluationBaseDTO(base models.EvaluationBase, kind models.EvaluationKind) EvaluationDTO {
	return toEvaluationDTO(base, kind)
}

// ToEvaluationStatusDTO flattens a status into stage scores
func ToEvaluationStatusDTO(status *services.EvaluationStatus, kind models.EvaluationKind) EvaluationStatusDTO {
	dto := EvaluationStatusDTO{
		Evaluatee:              ToUserDTO(*status.Evaluatee),
		Evaluator:              ToUserDTOPtr(status.Config.Evaluator),
		TopManagementEvaluator: ToUserDTOPtr(status.Config.TopManagementEvaluator),
		IsDualEvaluation:       status.Config.IsDualEvaluation,
		Stage:                  status.Stage,
		FinalScore:             status.FinalScore,
	}
	dto.Self, dto.SelfScore = stageDTO(status.Self, kind)
	dto.Superior, dto.SuperiorScore = stageDTO(status.Superior, kind)
	dto.TopManagement, dto.TopManagementScore = stageDTO(status.TopManagement, kind)
	return dto
}

func stageDTO(base *models.EvaluationBase, kind models.EvaluationKind) (*EvaluationDTO, *float64) {
	if base == nil {
		return nil, nil
	}
	dto := toEvaluationDTO(*base, kind)
	score := base.Score
	return &dto, &score
}

func ToEvaluationHistoryDTOs(history []models.EvaluationHistory) []EvaluationHistoryDTO {
	dtos := make([]EvaluationHistoryDTO, len(history))
	for i, h := range history {
		dtos[i] = EvaluationHistoryDTO{
			ID:            h.ID,
			EditorID:      h.EditorID,
			PreviousScore: h.PreviousScore,
			NewScore:      h.NewScore,
			CreatedAt:     h.CreatedAt,
		}
	}
	return dtos
}
