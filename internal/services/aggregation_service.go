package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yukikurage/kpi-management-api/internal/constants"
	apierrors "github.com/yukikurage/kpi-management-api/internal/errors"
	"github.com/yukikurage/kpi-management-api/internal/models"
	"github.com/yukikurage/kpi-management-api/internal/repository"
)

var ErrInvalidWindow = apierrors.Validation("aggregation.invalid_window", "window must be at least one month")

// AggregationService averages monthly top-management scores.
type AggregationService struct {
	evalRepo  repository.EvaluationRepository
	hierarchy *HierarchyService
}

// NewAggregationService creates a new AggregationService
func NewAggregationService(evalRepo repository.EvaluationRepository, hierarchy *HierarchyService) *AggregationService {
	return &AggregationService{evalRepo: evalRepo, hierarchy: hierarchy}
}

// WindowAverage is the average over the last Months months.
type WindowAverage struct {
	Months  int
	Average *float64
	Samples int
}

// AggregationSummary holds the standard windows for one evaluatee.
type AggregationSummary struct {
	Evaluatee *models.User
	AsOf      time.Time
	Windows   []WindowAverage
}

// AverageScores returns the mean rounded to two decimals, or nil when there
// is nothing to average.
func AverageScores(scores []float64) *float64 {
	if len(scores) == 0 {
		return nil
	}
	sum := decimal.Zero
	for _, s := range scores {
		sum = sum.Add(decimal.NewFromFloat(s))
	}
	avg, _ := sum.Div(decimal.NewFromInt(int64(len(scores)))).Round(2).Float64()
	return &avg
}

// windowStart is the first month of a window ending at the month of asOf.
func windowStart(asOf time.Time, months int) time.Time {
	return MonthStart(asOf).AddDate(0, -(months - 1), 0)
}

// AverageTopManagementScore averages the TOP_MANAGEMENT scores of the
// evaluatee over the months window ending with the month of asOf.
func (s *AggregationService) AverageTopManagementScore(evaluateeID uint64, asOf time.Time, months int) (*float64, error) {
	if months < 1 {
		return nil, ErrInvalidWindow
	}
	evals, err := s.evalRepo.ListUserInRange(evaluateeID, models.EvaluationTypeTopManagement, windowStart(asOf, months), MonthStart(asOf))
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}

	scores := make([]float64, 0, len(evals))
	for _, e := range evals {
		scores = append(scores, e.Score)
	}
	return AverageScores(scores), nil
}

// Summary computes every standard window for an evaluatee the viewer may see.
func (s *AggregationService) Summary(evaluateeID, viewerID uint64, asOf time.Time) (*AggregationSummary, error) {
	r, err := s.hierarchy.Resolver()
	if err != nil {
		return nil, err
	}
	viewer, err := lookupUser(r, viewerID)
	if err != nil {
		return nil, err
	}
	evaluatee, err := lookupUser(r, evaluateeID)
	if err != nil {
		return nil, err
	}
	if !CanViewUser(r, viewer, evaluatee) {
		return nil, ErrEvaluationAccessDenied
	}

	widest := 0
	for _, w := range constants.StandardAggregationWindows {
		if w > widest {
			widest = w
		}
	}
	evals, err := s.evalRepo.ListUserInRange(evaluatee.ID, models.EvaluationTypeTopManagement, windowStart(asOf, widest), MonthStart(asOf))
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}

	summary := &AggregationSummary{Evaluatee: evaluatee, AsOf: MonthStart(asOf)}
	for _, w := range constants.StandardAggregationWindows {
		from := windowStart(asOf, w)
		var scores []float64
		for _, e := range evals {
			if !e.PeriodStart.Before(from) {
				scores = append(scores, e.Score)
			}
		}
		summary.Windows = append(summary.Windows, WindowAverage{
			Months:  w,
			Average: AverageScores(scores),
			Samples: len(scores),
		})
	}
	return summary, nil
}
