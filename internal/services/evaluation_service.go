package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yukikurage/kpi-management-api/internal/constants"
	apierrors "github.com/yukikurage/kpi-management-api/internal/errors"
	"github.com/yukikurage/kpi-management-api/internal/evaluation"
	"github.com/yukikurage/kpi-management-api/internal/hierarchy"
	"github.com/yukikurage/kpi-management-api/internal/models"
	"github.com/yukikurage/kpi-management-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrEvaluationNotFound     = apierrors.NotFoundError("evaluation.not_found", "evaluation not found")
	ErrUnknownEvaluatee       = apierrors.Validation("evaluation.unknown_evaluatee", "evaluatee does not exist")
	ErrUnknownEvaluationKind  = apierrors.Validation("evaluation.unknown_kind", "unknown evaluation kind")
	ErrEvaluationAccessDenied = apierrors.Authorization("evaluation.access_denied", "you cannot view these evaluations")
	ErrConcurrentScoreUpdate  = apierrors.ConflictError("evaluation.concurrent_update", "the evaluation changed while saving, please retry")
)

// EvaluationService runs the evaluation workflow for tasks and months.
type EvaluationService struct {
	evalRepo   repository.EvaluationRepository
	taskRepo   repository.TaskRepository
	hierarchy  *HierarchyService
	dispatcher *Dispatcher
	activity   *ActivityService
	log        *zap.Logger
}

// NewEvaluationService creates a new EvaluationService
func NewEvaluationService(
	evalRepo repository.EvaluationRepository,
	taskRepo repository.TaskRepository,
	hierarchy *HierarchyService,
	dispatcher *Dispatcher,
	activity *ActivityService,
	log *zap.Logger,
) *EvaluationService {
	return &EvaluationService{
		evalRepo:   evalRepo,
		taskRepo:   taskRepo,
		hierarchy:  hierarchy,
		dispatcher: dispatcher,
		activity:   activity,
		log:        log,
	}
}

// SubmitEvaluationInput holds the fields shared by both evaluation kinds.
type SubmitEvaluationInput struct {
	EvaluatorID uint64
	Type        models.EvaluationType
	Score       float64
	Comment     string
	Attachment  string
}

// SubmitKPIInput submits an evaluation of a task's assignee.
type SubmitKPIInput struct {
	SubmitEvaluationInput
	TaskID uint64
}

// SubmitUserInput submits an evaluation of a user for the month holding Period.
type SubmitUserInput struct {
	SubmitEvaluationInput
	EvaluateeID uint64
	Period      time.Time
}

// UpdateScoreInput changes the score of one stored evaluation.
type UpdateScoreInput struct {
	Kind     models.EvaluationKind
	ID       uint64
	EditorID uint64
	Score    float64
	Comment  *string
}

// EvaluationStatus is the per-stage view of one subject.
type EvaluationStatus struct {
	Evaluatee     *models.User
	Config        hierarchy.EvaluationConfig
	Self          *models.EvaluationBase
	Superior      *models.EvaluationBase
	TopManagement *models.EvaluationBase
	Stage         evaluation.Stage
	FinalScore    *float64
}

// MonthStart normalizes t to the first instant of its month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// SubmitKPI records an evaluation of the task's assignee. The stage checks
// and the insert share one transaction.
func (s *EvaluationService) SubmitKPI(input SubmitKPIInput) (*models.KPIEvaluation, error) {
	if err := validateSubmission(input.SubmitEvaluationInput); err != nil {
		return nil, err
	}
	task, err := s.findTask(input.TaskID)
	if err != nil {
		return nil, err
	}

	r, err := s.hierarchy.Resolver()
	if err != nil {
		return nil, err
	}
	evaluator, err := lookupUser(r, input.EvaluatorID)
	if err != nil {
		return nil, err
	}
	evaluatee, ok := r.Snapshot().User(task.AssigneeID)
	if !ok {
		return nil, ErrUnknownEvaluatee
	}
	cfg := r.EvaluationConfig(evaluatee)

	eval := &models.KPIEvaluation{
		EvaluationBase: newEvaluationBase(input.SubmitEvaluationInput, evaluatee.ID),
		TaskID:         task.ID,
	}
	err = s.evalRepo.CreateKPI(eval, func(existing []models.KPIEvaluation) error {
		return evaluation.CanSubmit(evaluator, evaluation.Subject{
			Evaluatee: evaluatee,
			Config:    cfg,
			Records:   kpiRecords(existing),
		}, input.Type)
	})
	if err != nil {
		return nil, s.submissionFailed(input.Type, err)
	}
	recordEvaluationSubmission(string(input.Type), "ok")

	subject := map[string]interface{}{"task_id": task.ID, "title": task.Title}
	s.afterSubmit(evaluator, evaluatee, cfg, input.Type, eval.ID, models.EvaluationKindKPI, subject)
	return eval, nil
}

// SubmitUser records a monthly evaluation.
func (s *EvaluationService) SubmitUser(input SubmitUserInput) (*models.UserEvaluation, error) {
	if err := validateSubmission(input.SubmitEvaluationInput); err != nil {
		return nil, err
	}
	if input.Period.IsZero() {
		return nil, apierrors.Validation("evaluation.period_required", "period is required")
	}

	r, err := s.hierarchy.Resolver()
	if err != nil {
		return nil, err
	}
	evaluator, err := lookupUser(r, input.EvaluatorID)
	if err != nil {
		return nil, err
	}
	evaluatee, ok := r.Snapshot().User(input.EvaluateeID)
	if !ok {
		return nil, ErrUnknownEvaluatee
	}
	cfg := r.EvaluationConfig(evaluatee)
	period := MonthStart(input.Period)

	eval := &models.UserEvaluation{
		EvaluationBase: newEvaluationBase(input.SubmitEvaluationInput, evaluatee.ID),
		PeriodStart:    period,
	}
	err = s.evalRepo.CreateUser(eval, func(existing []models.UserEvaluation) error {
		return evaluation.CanSubmit(evaluator, evaluation.Subject{
			Evaluatee: evaluatee,
			Config:    cfg,
			Records:   userRecords(existing),
		}, input.Type)
	})
	if err != nil {
		return nil, s.submissionFailed(input.Type, err)
	}
	recordEvaluationSubmission(string(input.Type), "ok")

	subject := map[string]interface{}{"period": period.Format("2006-01")}
	s.afterSubmit(evaluator, evaluatee, cfg, input.Type, eval.ID, models.EvaluationKindUser, subject)
	return eval, nil
}

// KPIStatus reports the evaluation stages of one task.
func (s *EvaluationService) KPIStatus(taskID, viewerID uint64) (*EvaluationStatus, error) {
	task, err := s.findTask(taskID)
	if err != nil {
		return nil, err
	}
	r, evaluatee, err := s.viewableEvaluatee(task.AssigneeID, viewerID)
	if err != nil {
		return nil, err
	}
	evals, err := s.evalRepo.ListKPIByTask(task.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}

	bases := make([]models.EvaluationBase, 0, len(evals))
	for _, e := range evals {
		bases = append(bases, e.EvaluationBase)
	}
	return buildStatus(evaluatee, r.EvaluationConfig(evaluatee), bases), nil
}

// UserStatus reports the evaluation stages of one evaluatee-month.
func (s *EvaluationService) UserStatus(evaluateeID uint64, period time.Time, viewerID uint64) (*EvaluationStatus, error) {
	r, evaluatee, err := s.viewableEvaluatee(evaluateeID, viewerID)
	if err != nil {
		return nil, err
	}
	evals, err := s.evalRepo.ListUserByPeriod(evaluatee.ID, MonthStart(period))
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}

	bases := make([]models.EvaluationBase, 0, len(evals))
	for _, e := range evals {
		bases = append(bases, e.EvaluationBase)
	}
	return buildStatus(evaluatee, r.EvaluationConfig(evaluatee), bases), nil
}

// UpdateScore overwrites the score of a record and appends a history entry.
// When another editor wins the version race the edit is re-validated and
// retried a bounded number of times.
func (s *EvaluationService) UpdateScore(input UpdateScoreInput) (*models.EvaluationBase, error) {
	if err := evaluation.ValidateScore(input.Score); err != nil {
		return nil, err
	}

	r, err := s.hierarchy.Resolver()
	if err != nil {
		return nil, err
	}
	editor, err := lookupUser(r, input.EditorID)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= constants.MaxScoreUpdateAttempts; attempt++ {
		base, subject, err := s.loadForEdit(r, input.Kind, input.ID)
		if err != nil {
			return nil, err
		}
		if err := evaluation.CanEdit(editor, subject, evaluation.FromBase(*base)); err != nil {
			return nil, err
		}

		updated, err := s.evalRepo.UpdateScore(input.Kind, input.ID, base.Version, repository.ScoreChange{
			EditorID:      editor.ID,
			PreviousScore: base.Score,
			NewScore:      input.Score,
			Comment:       input.Comment,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to update score: %w", err)
		}
		if updated {
			s.activity.Log(ActivityEntry{
				ActorID:      idPtr(editor.ID),
				Action:       models.ActivityEvaluationUpdated,
				TargetUserID: idPtr(base.EvaluateeID),
				Details: map[string]interface{}{
					"kind":           string(input.Kind),
					"evaluation_id":  input.ID,
					"previous_score": base.Score,
					"new_score":      input.Score,
				},
			})
			fresh, _, err := s.loadForEdit(r, input.Kind, input.ID)
			if err != nil {
				return nil, err
			}
			return fresh, nil
		}

		evaluationUpdateRetries.Inc()
		s.log.Debug("score update lost version race",
			zap.String("kind", string(input.Kind)),
			zap.Uint64("evaluation_id", input.ID),
			zap.Int("attempt", attempt),
		)
	}
	return nil, ErrConcurrentScoreUpdate
}

// History returns the score changes of one record, oldest first.
func (s *EvaluationService) History(kind models.EvaluationKind, id, viewerID uint64) ([]models.EvaluationHistory, error) {
	r, err := s.hierarchy.Resolver()
	if err != nil {
		return nil, err
	}
	base, _, err := s.loadForEdit(r, kind, id)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.viewableEvaluateeWith(r, base.EvaluateeID, viewerID); err != nil {
		return nil, err
	}

	entries, err := s.evalRepo.ListHistory(kind, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return entries, nil
}

// loadForEdit returns a record together with its subject's other records.
func (s *EvaluationService) loadForEdit(r *hierarchy.Resolver, kind models.EvaluationKind, id uint64) (*models.EvaluationBase, evaluation.Subject, error) {
	var (
		base    models.EvaluationBase
		records []evaluation.Record
	)

	switch kind {
	case models.EvaluationKindKPI:
		eval, err := s.evalRepo.FindKPIByID(id)
		if err != nil {
			return nil, evaluation.Subject{}, notFoundOr(err, ErrEvaluationNotFound)
		}
		siblings, err := s.evalRepo.ListKPIByTask(eval.TaskID)
		if err != nil {
			return nil, evaluation.Subject{}, fmt.Errorf("failed to list evaluations: %w", err)
		}
		base, records = eval.EvaluationBase, kpiRecords(siblings)
	case models.EvaluationKindUser:
		eval, err := s.evalRepo.FindUserByID(id)
		if err != nil {
			return nil, evaluation.Subject{}, notFoundOr(err, ErrEvaluationNotFound)
		}
		siblings, err := s.evalRepo.ListUserByPeriod(eval.EvaluateeID, eval.PeriodStart)
		if err != nil {
			return nil, evaluation.Subject{}, fmt.Errorf("failed to list evaluations: %w", err)
		}
		base, records = eval.EvaluationBase, userRecords(siblings)
	default:
		return nil, evaluation.Subject{}, ErrUnknownEvaluationKind
	}

	evaluatee, ok := r.Snapshot().User(base.EvaluateeID)
	if !ok {
		return nil, evaluation.Subject{}, ErrUnknownEvaluatee
	}
	return &base, evaluation.Subject{
		Evaluatee: evaluatee,
		Config:    r.EvaluationConfig(evaluatee),
		Records:   records,
	}, nil
}

func (s *EvaluationService) viewableEvaluatee(evaluateeID, viewerID uint64) (*hierarchy.Resolver, *models.User, error) {
	r, err := s.hierarchy.Resolver()
	if err != nil {
		return nil, nil, err
	}
	return s.viewableEvaluateeWith(r, evaluateeID, viewerID)
}

func (s *EvaluationService) viewableEvaluateeWith(r *hierarchy.Resolver, evaluateeID, viewerID uint64) (*hierarchy.Resolver, *models.User, error) {
	viewer, err := lookupUser(r, viewerID)
	if err != nil {
		return nil, nil, err
	}
	evaluatee, ok := r.Snapshot().User(evaluateeID)
	if !ok {
		return nil, nil, ErrUnknownEvaluatee
	}
	if !CanViewUser(r, viewer, evaluatee) {
		return nil, nil, ErrEvaluationAccessDenied
	}
	return r, evaluatee, nil
}

// afterSubmit logs the submission and asks the next stage's evaluator to act.
func (s *EvaluationService) afterSubmit(
	evaluator, evaluatee *models.User,
	cfg hierarchy.EvaluationConfig,
	evalType models.EvaluationType,
	evalID uint64,
	kind models.EvaluationKind,
	subject map[string]interface{},
) {
	s.activity.Log(ActivityEntry{
		ActorID:      idPtr(evaluator.ID),
		Action:       models.ActivityEvaluationSubmitted,
		TargetUserID: idPtr(evaluatee.ID),
		Details: map[string]interface{}{
			"kind":          string(kind),
			"evaluation_id": evalID,
			"type":          string(evalType),
		},
	})

	var next *models.User
	var nextStage models.EvaluationType
	switch {
	case evalType == models.EvaluationTypeSelf && cfg.Evaluator != nil:
		next, nextStage = cfg.Evaluator, models.EvaluationTypeSuperior
	case evalType == models.EvaluationTypeSuperior && cfg.IsDualEvaluation:
		next, nextStage = cfg.TopManagementEvaluator, models.EvaluationTypeTopManagement
	}
	if next == nil {
		return
	}

	ctx := map[string]interface{}{
		"evaluatee":  evaluatee.Username,
		"kind":       string(kind),
		"next_stage": string(nextStage),
	}
	for k, v := range subject {
		ctx[k] = v
	}
	s.dispatcher.Send(Notification{
		RecipientID: next.ID,
		Recipient:   next.Username,
		Email:       next.Email,
		Template:    TemplateEvaluationRequest,
		Context:     ctx,
	})
}

// submissionFailed turns a unique-index violation into the same conflict the
// stage check reports, and counts the outcome.
func (s *EvaluationService) submissionFailed(evalType models.EvaluationType, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		err = apierrors.ConflictError(evaluation.RuleDuplicate, "an evaluation of this type already exists")
	}
	if kind, ok := apierrors.KindOf(err); ok {
		recordEvaluationSubmission(string(evalType), strings.ToLower(string(kind)))
		return err
	}
	recordEvaluationSubmission(string(evalType), "error")
	return fmt.Errorf("failed to save evaluation: %w", err)
}

func (s *EvaluationService) findTask(id uint64) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(id)
	if err != nil {
		return nil, notFoundOr(err, ErrTaskNotFound)
	}
	return task, nil
}

func validateSubmission(input SubmitEvaluationInput) error {
	if !input.Type.Valid() {
		return apierrors.Validation(evaluation.RuleUnknownType, "unknown evaluation type")
	}
	return evaluation.ValidateScore(input.Score)
}

func newEvaluationBase(input SubmitEvaluationInput, evaluateeID uint64) models.EvaluationBase {
	return models.EvaluationBase{
		EvaluatorID: input.EvaluatorID,
		EvaluateeID: evaluateeID,
		Type:        input.Type,
		Score:       input.Score,
		Comment:     input.Comment,
		Attachment:  input.Attachment,
		Version:     1,
	}
}

func kpiRecords(evals []models.KPIEvaluation) []evaluation.Record {
	out := make([]evaluation.Record, 0, len(evals))
	for _, e := range evals {
		out = append(out, evaluation.FromBase(e.EvaluationBase))
	}
	return out
}

func userRecords(evals []models.UserEvaluation) []evaluation.Record {
	out := make([]evaluation.Record, 0, len(evals))
	for _, e := range evals {
		out = append(out, evaluation.FromBase(e.EvaluationBase))
	}
	return out
}

func buildStatus(evaluatee *models.User, cfg hierarchy.EvaluationConfig, bases []models.EvaluationBase) *EvaluationStatus {
	status := &EvaluationStatus{Evaluatee: evaluatee, Config: cfg}
	records := make([]evaluation.Record, 0, len(bases))
	for i := range bases {
		b := &bases[i]
		records = append(records, evaluation.FromBase(*b))
		switch b.Type {
		case models.EvaluationTypeSelf:
			status.Self = b
		case models.EvaluationTypeSuperior:
			status.Superior = b
		case models.EvaluationTypeTopManagement:
			status.TopManagement = b
		}
	}
	subject := evaluation.Subject{Evaluatee: evaluatee, Config: cfg, Records: records}
	status.Stage = subject.Stage()
	status.FinalScore = subject.FinalScore()
	return status
}

// notFoundOr maps gorm.ErrRecordNotFound to notFound and wraps anything else.
func notFoundOr(err error, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return fmt.Errorf("database error: %w", err)
}
