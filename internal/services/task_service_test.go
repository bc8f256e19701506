package services

import (
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	apierrors "github.com/yukikurage/kpi-management-api/internal/errors"
	"github.com/yukikurage/kpi-management-api/internal/models"
)

// TaskServiceTestSuite runs the task workflow against sqlite
type TaskServiceTestSuite struct {
	suite.Suite
	env *testEnv
	org *testOrg
}

func (suite *TaskServiceTestSuite) SetupTest() {
	suite.env = newTestEnv(suite.T())
	suite.org = suite.env.seedOrg(suite.T())
}

func (suite *TaskServiceTestSuite) createTask(creator, assignee *models.User) (*models.Task, *AssignmentDecision) {
	task, decision, err := suite.env.tasks.CreateTask(CreateTaskInput{
		Title:      "Prepare quarterly numbers",
		AssigneeID: assignee.ID,
		CreatorID:  creator.ID,
	})
	suite.Require().NoError(err)
	return task, decision
}

func (suite *TaskServiceTestSuite) tokenFor(task *models.Task, action ApprovalAction) string {
	token, err := suite.env.tokens.Issue(task.ID, action)
	suite.Require().NoError(err)
	return token
}

func (suite *TaskServiceTestSuite) TestCreateTask_SelfAssignmentWithoutSuperior() {
	task, decision := suite.createTask(suite.org.admin, suite.org.admin)
	suite.env.dispatcher.Wait()

	assert.Equal(suite.T(), RuleSelfAssignment, decision.Rule)
	assert.True(suite.T(), task.Approved)
	assert.Equal(suite.T(), models.TaskStatusTodo, task.Status)
	assert.Empty(suite.T(), suite.env.notifier.Sent())
}

func (suite *TaskServiceTestSuite) TestCreateTask_SelfAssignmentAsksSuperior() {
	task, _ := suite.createTask(suite.org.employee, suite.org.employee)
	suite.env.dispatcher.Wait()

	assert.False(suite.T(), task.Approved)
	assert.Equal(suite.T(), models.TaskStatusPending, task.Status)

	sent := suite.env.notifier.ByTemplate(TemplateApprovalRequest)
	suite.Require().Len(sent, 1)
	assert.Equal(suite.T(), suite.org.manager.ID, sent[0].RecipientID)

	links, ok := sent[0].Context["links"].(map[string]string)
	suite.Require().True(ok)
	assert.True(suite.T(), strings.HasPrefix(links[string(ActionApprove)], "https://kpi.test/api/tasks/approval?token="))
	assert.Contains(suite.T(), links, string(ActionReject))
}

func (suite *TaskServiceTestSuite) TestCreateTask_DesignatedCreator() {
	task, decision := suite.createTask(suite.org.manager, suite.org.employee)
	suite.env.dispatcher.Wait()

	assert.Equal(suite.T(), RuleEmployeeAssignment, decision.Rule)
	assert.False(suite.T(), task.Approved)
	assert.Equal(suite.T(), suite.org.employee.ID, task.Assignee.ID)
	assert.Equal(suite.T(), suite.org.manager.ID, task.CreatedBy.ID)

	sent := suite.env.notifier.ByTemplate(TemplateNewAssignment)
	suite.Require().Len(sent, 1)
	assert.Equal(suite.T(), suite.org.employee.ID, sent[0].RecipientID)
}

func (suite *TaskServiceTestSuite) TestCreateTask_WrongCreator() {
	_, _, err := suite.env.tasks.CreateTask(CreateTaskInput{
		Title:      "Not yours to assign",
		AssigneeID: suite.org.employee.ID,
		CreatorID:  suite.org.peer.ID,
	})

	assert.True(suite.T(), stderrors.Is(err, apierrors.ErrAuthorization))

	var count int64
	suite.env.db.Model(&models.Task{}).Count(&count)
	assert.Equal(suite.T(), int64(0), count)
}

func (suite *TaskServiceTestSuite) TestCreateTask_Validation() {
	_, _, err := suite.env.tasks.CreateTask(CreateTaskInput{
		Title:      "   ",
		AssigneeID: suite.org.employee.ID,
		CreatorID:  suite.org.manager.ID,
	})
	assert.ErrorIs(suite.T(), err, ErrTitleRequired)

	_, _, err = suite.env.tasks.CreateTask(CreateTaskInput{
		Title:      "Ghost",
		AssigneeID: 9999,
		CreatorID:  suite.org.manager.ID,
	})
	assert.ErrorIs(suite.T(), err, ErrUnknownAssignee)

	start := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	due := start.Add(-24 * time.Hour)
	_, _, err = suite.env.tasks.CreateTask(CreateTaskInput{
		Title:      "Backwards",
		AssigneeID: suite.org.employee.ID,
		CreatorID:  suite.org.manager.ID,
		StartDate:  &start,
		DueDate:    &due,
	})
	assert.ErrorIs(suite.T(), err, ErrDatesOutOfOrder)
}

func (suite *TaskServiceTestSuite) TestResolveApproval_AcceptIsNotRepeatable() {
	task, _ := suite.createTask(suite.org.manager, suite.org.employee)
	token := suite.tokenFor(task, ActionAccept)

	result, err := suite.env.tasks.ResolveApproval(token)
	suite.Require().NoError(err)
	assert.False(suite.T(), result.Deleted)
	assert.True(suite.T(), result.Task.Approved)
	assert.Equal(suite.T(), models.TaskStatusTodo, result.Task.Status)

	// The assignee starts work before the link is clicked again.
	inProgress := models.TaskStatusInProgress
	_, err = suite.env.tasks.UpdateTask(task.ID, suite.org.employee.ID, UpdateTaskInput{Status: &inProgress})
	suite.Require().NoError(err)
	suite.env.dispatcher.Wait()
	sentBefore := len(suite.env.notifier.Sent())

	_, err = suite.env.tasks.ResolveApproval(token)
	assert.ErrorIs(suite.T(), err, ErrAlreadyApproved)
	assert.True(suite.T(), stderrors.Is(err, apierrors.ErrConflict))

	suite.env.dispatcher.Wait()
	assert.Len(suite.T(), suite.env.notifier.Sent(), sentBefore)

	reloaded, err := suite.env.tasks.GetTask(task.ID, suite.org.employee.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), models.TaskStatusInProgress, reloaded.Status)
}

func (suite *TaskServiceTestSuite) TestResolveApproval_NotifiesCreatorOnAccept() {
	task, _ := suite.createTask(suite.org.manager, suite.org.employee)

	_, err := suite.env.tasks.ResolveApproval(suite.tokenFor(task, ActionAccept))
	suite.Require().NoError(err)
	suite.env.dispatcher.Wait()

	sent := suite.env.notifier.ByTemplate(TemplateTaskApproved)
	suite.Require().Len(sent, 1)
	assert.Equal(suite.T(), suite.org.manager.ID, sent[0].RecipientID)
}

func (suite *TaskServiceTestSuite) TestResolveApproval_RejectDeletesTask() {
	task, _ := suite.createTask(suite.org.manager, suite.org.employee)

	result, err := suite.env.tasks.ResolveApproval(suite.tokenFor(task, ActionRejectAssignment))
	suite.Require().NoError(err)
	assert.True(suite.T(), result.Deleted)

	var count int64
	suite.env.db.Model(&models.Task{}).Where("id = ?", task.ID).Count(&count)
	assert.Equal(suite.T(), int64(0), count)

	// A stale approve link now points at nothing.
	_, err = suite.env.tasks.ResolveApproval(suite.tokenFor(task, ActionAccept))
	assert.True(suite.T(), stderrors.Is(err, apierrors.ErrNotFound))
}

func (suite *TaskServiceTestSuite) TestPreviewApproval_ChangesNothing() {
	task, _ := suite.createTask(suite.org.manager, suite.org.employee)
	token := suite.tokenFor(task, ActionAccept)
	suite.env.dispatcher.Wait()
	sentBefore := len(suite.env.notifier.Sent())

	preview, err := suite.env.tasks.PreviewApproval(token)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), ActionAccept, preview.Action)
	assert.False(suite.T(), preview.Task.Approved)
	assert.Equal(suite.T(), suite.org.manager.ID, preview.Task.CreatedBy.ID)

	_, err = suite.env.tasks.PreviewApproval(token)
	suite.Require().NoError(err)

	var stored models.Task
	suite.Require().NoError(suite.env.db.First(&stored, task.ID).Error)
	assert.False(suite.T(), stored.Approved)
	suite.env.dispatcher.Wait()
	assert.Len(suite.T(), suite.env.notifier.Sent(), sentBefore)

	_, err = suite.env.tasks.ResolveApproval(token)
	suite.Require().NoError(err)
	_, err = suite.env.tasks.PreviewApproval(token)
	assert.ErrorIs(suite.T(), err, ErrAlreadyApproved)

	_, err = suite.env.tasks.PreviewApproval("garbage")
	assert.True(suite.T(), stderrors.Is(err, apierrors.ErrValidation))
}

func (suite *TaskServiceTestSuite) TestResolveApproval_InvalidToken() {
	_, err := suite.env.tasks.ResolveApproval("garbage")
	assert.True(suite.T(), stderrors.Is(err, apierrors.ErrValidation))
}

func (suite *TaskServiceTestSuite) TestUpdateTask_StatusBlockedUntilApproved() {
	task, _ := suite.createTask(suite.org.manager, suite.org.employee)

	done := models.TaskStatusDone
	_, err := suite.env.tasks.UpdateTask(task.ID, suite.org.employee.ID, UpdateTaskInput{Status: &done})
	assert.ErrorIs(suite.T(), err, ErrTaskAwaitingApproval)

	pending := models.TaskStatusPending
	approved := suite.env.createApprovedTask(suite.T(), suite.org.manager, suite.org.employee)
	_, err = suite.env.tasks.UpdateTask(approved.ID, suite.org.employee.ID, UpdateTaskInput{Status: &pending})
	assert.ErrorIs(suite.T(), err, ErrPendingStatusReserved)
}

func (suite *TaskServiceTestSuite) TestUpdateTask_CompletedAtSetOnce() {
	task := suite.env.createApprovedTask(suite.T(), suite.org.manager, suite.org.employee)
	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	suite.env.tasks.now = func() time.Time { return first }

	done := models.TaskStatusDone
	updated, err := suite.env.tasks.UpdateTask(task.ID, suite.org.employee.ID, UpdateTaskInput{Status: &done})
	suite.Require().NoError(err)
	suite.Require().NotNil(updated.CompletedAt)
	assert.True(suite.T(), first.Equal(*updated.CompletedAt))

	suite.env.tasks.now = func() time.Time { return first.Add(48 * time.Hour) }
	inProgress := models.TaskStatusInProgress
	_, err = suite.env.tasks.UpdateTask(task.ID, suite.org.employee.ID, UpdateTaskInput{Status: &inProgress})
	suite.Require().NoError(err)
	updated, err = suite.env.tasks.UpdateTask(task.ID, suite.org.employee.ID, UpdateTaskInput{Status: &done})
	suite.Require().NoError(err)

	suite.Require().NotNil(updated.CompletedAt)
	assert.True(suite.T(), first.Equal(*updated.CompletedAt))
}

func (suite *TaskServiceTestSuite) TestTaskAccess() {
	task := suite.env.createApprovedTask(suite.T(), suite.org.manager, suite.org.employee)

	for _, viewer := range []*models.User{suite.org.employee, suite.org.manager, suite.org.lead, suite.org.tm, suite.org.admin} {
		assert.NoError(suite.T(), suite.env.tasks.CanAccessTask(task, viewer.ID), viewer.Username)
	}
	for _, viewer := range []*models.User{suite.org.peer, suite.org.opsManager} {
		assert.ErrorIs(suite.T(), suite.env.tasks.CanAccessTask(task, viewer.ID), ErrTaskAccessDenied, viewer.Username)
	}
}

func (suite *TaskServiceTestSuite) TestDeleteTask_CreatorOrAdmin() {
	task := suite.env.createApprovedTask(suite.T(), suite.org.manager, suite.org.employee)

	err := suite.env.tasks.DeleteTask(task.ID, suite.org.employee.ID)
	assert.ErrorIs(suite.T(), err, ErrNotTaskCreator)

	suite.Require().NoError(suite.env.tasks.DeleteTask(task.ID, suite.org.admin.ID))
	_, err = suite.env.tasks.GetTask(task.ID, suite.org.admin.ID)
	assert.ErrorIs(suite.T(), err, ErrTaskNotFound)
}

func (suite *TaskServiceTestSuite) TestListTasks_Scopes() {
	suite.env.createApprovedTask(suite.T(), suite.org.manager, suite.org.employee)
	suite.env.createApprovedTask(suite.T(), suite.org.lead, suite.org.manager)
	suite.env.createApprovedTask(suite.T(), suite.org.opsManager, suite.org.opsEmployee)

	assigned, total, err := suite.env.tasks.ListTasks(ListTasksInput{UserID: suite.org.employee.ID, Scope: ScopeAssigned})
	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(1), total)
	assert.Len(suite.T(), assigned, 1)

	mine, total, err := suite.env.tasks.ListTasks(ListTasksInput{UserID: suite.org.manager.ID, Scope: ScopeMine})
	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(2), total)
	assert.Len(suite.T(), mine, 2)

	below, total, err := suite.env.tasks.ListTasks(ListTasksInput{UserID: suite.org.lead.ID, Scope: ScopeSubordinates})
	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(2), total)
	for _, task := range below {
		assert.NotEqual(suite.T(), suite.org.opsEmployee.ID, task.AssigneeID)
	}
}

func (suite *TaskServiceTestSuite) TestActivityRecorded() {
	suite.createTask(suite.org.manager, suite.org.employee)

	entries, total, err := suite.env.activity.ListForUser(suite.org.employee.ID, defaultPage())
	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(1), total)
	suite.Require().Len(entries, 1)
	assert.Equal(suite.T(), models.ActivityTaskCreated, entries[0].ActionType)
	assert.Equal(suite.T(), RuleEmployeeAssignment, entries[0].Details["rule"])
}

func TestTaskServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TaskServiceTestSuite))
}
