// Package evaluation holds the stage rules shared by task-scoped and
// period-scoped evaluations. It performs no I/O.
package evaluation

import (
	"github.com/yukikurage/kpi-management-api/internal/constants"
	apierrors "github.com/yukikurage/kpi-management-api/internal/errors"
	"github.com/yukikurage/kpi-management-api/internal/hierarchy"
	"github.com/yukikurage/kpi-management-api/internal/models"
)

// Rule names reported with rejected submissions and edits.
const (
	RuleScoreRange           = "score.out_of_range"
	RuleUnknownType          = "evaluation.unknown_type"
	RuleDuplicate            = "evaluation.duplicate"
	RuleSelfByEvaluatee      = "self.evaluator_must_be_evaluatee"
	RuleSuperiorRank         = "superior.evaluator_must_outrank_evaluatee"
	RuleSuperiorRequiresSelf = "superior.requires_self"
	RuleTMRequiresDual       = "top_management.requires_dual_evaluation"
	RuleTMEvaluator          = "top_management.evaluator_mismatch"
	RuleTMForbiddenForCEO    = "top_management.ceo_forbidden"
	RuleTMRequiresSuperior   = "top_management.requires_superior"
	RuleEditorNotPermitted   = "edit.not_permitted"
)

// Stage is how far a subject has progressed.
type Stage string

const (
	StageNone                   Stage = "NO_EVALUATION"
	StageSelfSubmitted          Stage = "SELF_SUBMITTED"
	StageSuperiorSubmitted      Stage = "SUPERIOR_SUBMITTED"
	StageTopManagementSubmitted Stage = "TOP_MANAGEMENT_SUBMITTED"
)

// Record is the part of a stored evaluation the rules look at.
type Record struct {
	ID          uint64
	Type        models.EvaluationType
	EvaluatorID uint64
	EvaluateeID uint64
	Score       float64
}

// FromBase converts a stored evaluation into a Record.
func FromBase(b models.EvaluationBase) Record {
	return Record{
		ID:          b.ID,
		Type:        b.Type,
		EvaluatorID: b.EvaluatorID,
		EvaluateeID: b.EvaluateeID,
		Score:       b.Score,
	}
}

// Subject is one task, or one user-month, together with the evaluations
// already stored for it.
type Subject struct {
	Evaluatee *models.User
	Config    hierarchy.EvaluationConfig
	Records   []Record
}

// Find returns the record of the given type, or nil.
func (s Subject) Find(t models.EvaluationType) *Record {
	for i := range s.Records {
		if s.Records[i].Type == t {
			return &s.Records[i]
		}
	}
	return nil
}

func (s Subject) Stage() Stage {
	switch {
	case s.Find(models.EvaluationTypeTopManagement) != nil:
		return StageTopManagementSubmitted
	case s.Find(models.EvaluationTypeSuperior) != nil:
		return StageSuperiorSubmitted
	case s.Find(models.EvaluationTypeSelf) != nil:
		return StageSelfSubmitted
	}
	return StageNone
}

// FinalScore is the top-management score for dual subjects and the superior
// score otherwise. It is nil until the deciding record exists.
func (s Subject) FinalScore() *float64 {
	deciding := models.EvaluationTypeSuperior
	if s.Config.IsDualEvaluation {
		deciding = models.EvaluationTypeTopManagement
	}
	rec := s.Find(deciding)
	if rec == nil {
		return nil
	}
	score := rec.Score
	return &score
}

// ValidateScore rejects scores outside the accepted range.
func ValidateScore(score float64) error {
	if score < constants.MinEvaluationScore || score > constants.MaxEvaluationScore {
		return apierrors.Validation(RuleScoreRange, "score must be between 0 and 100")
	}
	return nil
}

// CanSubmit decides whether evaluator may create an evaluation of type t
// for the subject. Authorization is checked before ordering, and ordering
// before uniqueness. Admins skip the ordering checks.
func CanSubmit(evaluator *models.User, s Subject, t models.EvaluationType) error {
	if evaluator == nil || s.Evaluatee == nil {
		return apierrors.Validation("evaluation.missing_party", "evaluator and evaluatee are required")
	}
	isAdmin := evaluator.Role == models.RoleAdmin

	switch t {
	case models.EvaluationTypeSelf:
		if evaluator.ID != s.Evaluatee.ID {
			return apierrors.Authorization(RuleSelfByEvaluatee, "only the evaluatee can submit a self evaluation")
		}

	case models.EvaluationTypeSuperior:
		if !isAdmin && !evaluator.Role.Outranks(s.Evaluatee.Role) {
			return apierrors.Authorization(RuleSuperiorRank, "evaluator must rank above the evaluatee")
		}
		if !isAdmin && s.Find(models.EvaluationTypeSelf) == nil {
			return apierrors.Ordering(RuleSuperiorRequiresSelf, "the self evaluation must be submitted first")
		}

	case models.EvaluationTypeTopManagement:
		if err := checkTopManagementEvaluator(evaluator, s, 0); err != nil {
			return err
		}
		if !isAdmin && s.Find(models.EvaluationTypeSuperior) == nil {
			return apierrors.Ordering(RuleTMRequiresSuperior, "the superior evaluation must be submitted first")
		}

	default:
		return apierrors.Validation(RuleUnknownType, "unknown evaluation type")
	}

	if s.Find(t) != nil {
		return apierrors.ConflictError(RuleDuplicate, "an evaluation of this type already exists")
	}
	return nil
}

// CanEdit decides whether editor may change the score of rec. It mirrors
// CanSubmit's authorization rules without the ordering checks.
func CanEdit(editor *models.User, s Subject, rec Record) error {
	if editor == nil || s.Evaluatee == nil {
		return apierrors.Validation("evaluation.missing_party", "editor and evaluatee are required")
	}
	if rec.Type == models.EvaluationTypeTopManagement && editor.Role == models.RoleCEO {
		return apierrors.Authorization(RuleTMForbiddenForCEO, "ceo cannot edit top management evaluations")
	}
	if editor.Role == models.RoleAdmin {
		return nil
	}

	switch rec.Type {
	case models.EvaluationTypeSelf:
		if editor.ID != s.Evaluatee.ID {
			return apierrors.Authorization(RuleEditorNotPermitted, "only the evaluatee can edit a self evaluation")
		}
	case models.EvaluationTypeSuperior:
		if !editor.Role.Outranks(s.Evaluatee.Role) {
			return apierrors.Authorization(RuleEditorNotPermitted, "editor must rank above the evaluatee")
		}
	case models.EvaluationTypeTopManagement:
		return checkTopManagementEvaluator(editor, s, rec.EvaluatorID)
	default:
		return apierrors.Validation(RuleUnknownType, "unknown evaluation type")
	}
	return nil
}

// checkTopManagementEvaluator applies the top-management stage rules.
// author is the original submitter when editing an existing record.
func checkTopManagementEvaluator(u *models.User, s Subject, author uint64) error {
	if u.Role == models.RoleCEO {
		return apierrors.Authorization(RuleTMForbiddenForCEO, "ceo cannot submit top management evaluations")
	}
	if !s.Config.IsDualEvaluation {
		return apierrors.Authorization(RuleTMRequiresDual, "this subject has no top management evaluation stage")
	}
	if u.Role == models.RoleAdmin {
		return nil
	}
	tm := s.Config.TopManagementEvaluator
	if tm != nil && tm.ID == u.ID {
		return nil
	}
	if author != 0 && author == u.ID && u.Role.IsTopManagement() {
		return nil
	}
	return apierrors.Authorization(RuleTMEvaluator, "only the assigned top management evaluator can score this stage")
}
