package repository

import (
	"fmt"
	"time"

	"github.com/yukikurage/kpi-management-api/internal/models"
	"gorm.io/gorm"
)

// GormEvaluationRepository is a GORM implementation of EvaluationRepository
type GormEvaluationRepository struct {
	db *gorm.DB
}

// NewEvaluationRepository creates a new EvaluationRepository
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &GormEvaluationRepository{db: db}
}

// CreateKPI reads the task's evaluations, runs check and inserts eval plus
// its first history row in one transaction. The unique index on
// (task_id, evaluation_type) rejects a concurrent duplicate that slips past
// check.
func (r *GormEvaluationRepository) CreateKPI(eval *models.KPIEvaluation, check func(existing []models.KPIEvaluation) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing []models.KPIEvaluation
		if err := tx.Where("task_id = ?", eval.TaskID).Order("id ASC").Find(&existing).Error; err != nil {
			return err
		}
		if err := check(existing); err != nil {
			return err
		}
		if err := tx.Omit("Evaluator", "Evaluatee").Create(eval).Error; err != nil {
			return err
		}
		return tx.Create(initialHistory(models.EvaluationKindKPI, &eval.EvaluationBase)).Error
	})
}

// CreateUser is CreateKPI for period-scoped evaluations.
func (r *GormEvaluationRepository) CreateUser(eval *models.UserEvaluation, check func(existing []models.UserEvaluation) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing []models.UserEvaluation
		if err := tx.Where("evaluatee_id = ? AND period_start = ?", eval.EvaluateeID, eval.PeriodStart).
			Order("id ASC").Find(&existing).Error; err != nil {
			return err
		}
		if err := check(existing); err != nil {
			return err
		}
		if err := tx.Omit("Evaluator", "Evaluatee").Create(eval).Error; err != nil {
			return err
		}
		return tx.Create(initialHistory(models.EvaluationKindUser, &eval.EvaluationBase)).Error
	})
}

func initialHistory(kind models.EvaluationKind, base *models.EvaluationBase) *models.EvaluationHistory {
	return &models.EvaluationHistory{
		Kind:         kind,
		EvaluationID: base.ID,
		EditorID:     base.EvaluatorID,
		NewScore:     base.Score,
	}
}

func (r *GormEvaluationRepository) FindKPIByID(id uint64) (*models.KPIEvaluation, error) {
	var eval models.KPIEvaluation
	if err := r.db.First(&eval, id).Error; err != nil {
		return nil, err
	}
	return &eval, nil
}

func (r *GormEvaluationRepository) FindUserByID(id uint64) (*models.UserEvaluation, error) {
	var eval models.UserEvaluation
	if err := r.db.First(&eval, id).Error; err != nil {
		return nil, err
	}
	return &eval, nil
}

// ListKPIByTask returns the evaluations of one task
func (r *GormEvaluationRepository) ListKPIByTask(taskID uint64) ([]models.KPIEvaluation, error) {
	var evals []models.KPIEvaluation
	if err := r.db.Where("task_id = ?", taskID).Order("id ASC").Find(&evals).Error; err != nil {
		return nil, err
	}
	return evals, nil
}

// ListUserByPeriod returns the evaluations of one evaluatee-month
func (r *GormEvaluationRepository) ListUserByPeriod(evaluateeID uint64, periodStart time.Time) ([]models.UserEvaluation, error) {
	var evals []models.UserEvaluation
	if err := r.db.Where("evaluatee_id = ? AND period_start = ?", evaluateeID, periodStart).
		Order("id ASC").Find(&evals).Error; err != nil {
		return nil, err
	}
	return evals, nil
}

// ListUserInRange returns evaluations of type t with period_start in [from, to]
func (r *GormEvaluationRepository) ListUserInRange(evaluateeID uint64, t models.EvaluationType, from, to time.Time) ([]models.UserEvaluation, error) {
	var evals []models.UserEvaluation
	if err := r.db.Where("evaluatee_id = ? AND evaluation_type = ?", evaluateeID, t).
		Where("period_start >= ? AND period_start <= ?", from, to).
		Order("period_start ASC").Find(&evals).Error; err != nil {
		return nil, err
	}
	return evals, nil
}

// UpdateScore is a compare-and-swap on the version column. The history row
// is inserted in the same transaction, so every accepted change leaves
// exactly one entry.
func (r *GormEvaluationRepository) UpdateScore(kind models.EvaluationKind, id uint64, expectedVersion uint, change ScoreChange) (bool, error) {
	var model interface{}
	switch kind {
	case models.EvaluationKindKPI:
		model = &models.KPIEvaluation{}
	case models.EvaluationKindUser:
		model = &models.UserEvaluation{}
	default:
		return false, fmt.Errorf("unknown evaluation kind %q", kind)
	}

	updated := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		values := map[string]interface{}{
			"score":          change.NewScore,
			"previous_score": change.PreviousScore,
			"updated_by_id":  change.EditorID,
			"version":        gorm.Expr("version + 1"),
		}
		if change.Comment != nil {
			values["comment"] = *change.Comment
		}

		result := tx.Model(model).Where("id = ? AND version = ?", id, expectedVersion).Updates(values)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		previous := change.PreviousScore
		entry := &models.EvaluationHistory{
			Kind:          kind,
			EvaluationID:  id,
			EditorID:      change.EditorID,
			PreviousScore: &previous,
			NewScore:      change.NewScore,
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		updated = true
		return nil
	})
	return updated, err
}

// ListHistory returns the score changes of one record, oldest first
func (r *GormEvaluationRepository) ListHistory(kind models.EvaluationKind, id uint64) ([]models.EvaluationHistory, error) {
	var entries []models.EvaluationHistory
	if err := r.db.Where("kind = ? AND evaluation_id = ?", kind, id).
		Order("id ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
