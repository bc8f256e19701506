package dto

import (
	"time"

	"github.com/yukikurage/kpi-management-api/internal/models"
	"github.com/yukikurage/kpi-management-api/internal/services"
	"github.com/yukikurage/kpi-management-api/internal/utils"
)

// HierarchyDTO reports the reporting lines of one user
type HierarchyDTO struct {
	User                   UserDTO   `json:"user"`
	DirectSuperior         *UserDTO  `json:"direct_superior"`
	SuperiorChain          []UserDTO `json:"superior_chain"`
	Subordinates           []UserDTO `json:"subordinates"`
	KPIEvaluator           *UserDTO  `json:"kpi_evaluator"`
	KPISuperiorChain       []UserDTO `json:"kpi_superior_chain"`
	TopManagementEvaluator *UserDTO  `json:"top_management_evaluator"`
	IsDualEvaluation       bool      `json:"is_dual_evaluation"`
	ManagedDepartmentID    *uint64   `json:"managed_department_id"`
	LedDepartmentID        *uint64   `json:"led_department_id"`
}

func ToHierarchyDTO(view *services.HierarchyView) HierarchyDTO {
	dto := HierarchyDTO{
		User:                   ToUserDTO(*view.User),
		DirectSuperior:         ToUserDTOPtr(view.DirectSuperior),
		SuperiorChain:          ToUserDTOs(view.SuperiorChain),
		Subordinates:           ToUserDTOs(view.Subordinates),
		KPIEvaluator:           ToUserDTOPtr(view.KPIEvaluator),
		KPISuperiorChain:       ToUserDTOs(view.KPISuperiorChain),
		TopManagementEvaluator: ToUserDTOPtr(view.EvaluationConfig.TopManagementEvaluator),
		IsDualEvaluation:       view.EvaluationConfig.IsDualEvaluation,
	}
	if view.ManagedDept != nil {
		dto.ManagedDepartmentID = &view.ManagedDept.ID
	}
	if view.LedDept != nil {
		dto.LedDepartmentID = &view.LedDept.ID
	}
	return dto
}

// AggregationWindowDTO is the average of one month window
type AggregationWindowDTO struct {
	Months  int      `json:"months"`
	Average *float64 `json:"average"`
	Samples int      `json:"samples"`
}

// AggregationSummaryDTO holds every standard window for one evaluatee
type AggregationSummaryDTO struct {
	Evaluatee UserDTO                `json:"evaluatee"`
	AsOf      time.Time              `json:"as_of"`
	Windows   []AggregationWindowDTO `json:"windows"`
}

func ToAggregationSummaryDTO(summary *services.AggregationSummary) AggregationSummaryDTO {
	windows := make([]AggregationWindowDTO, len(summary.Windows))
	for i, w := range summary.Windows {
		windows[i] = AggregationWindowDTO{Months: w.Months, Average: w.Average, Samples: w.Samples}
	}
	return AggregationSummaryDTO{
		Evaluatee: ToUserDTO(*summary.Evaluatee),
		AsOf:      summary.AsOf,
		Windows:   windows,
	}
}

// ActivityListResponse is one page of the activity feed
type ActivityListResponse struct {
	Entries    []models.ActivityLog     `json:"entries"`
	Pagination utils.PaginationResponse `json:"pagination"`
}
