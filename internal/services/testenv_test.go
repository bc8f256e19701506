package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yukikurage/kpi-management-api/internal/database"
	"github.com/yukikurage/kpi-management-api/internal/models"
	"github.com/yukikurage/kpi-management-api/internal/repository"
	"github.com/yukikurage/kpi-management-api/internal/utils"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// recordingNotifier keeps every notification it is handed.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (n *recordingNotifier) Notify(_ context.Context, msg Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.sent))
	copy(out, n.sent)
	return out
}

func (n *recordingNotifier) ByTemplate(template NotificationTemplate) []Notification {
	var out []Notification
	for _, msg := range n.Sent() {
		if msg.Template == template {
			out = append(out, msg)
		}
	}
	return out
}

// testOrg is the organization every service suite starts from.
//
//	Sales: manager, lead, overseen by tm; employees employee and peer
//	Ops:   opsManager only, no overseers; employee opsEmployee
//	admin, tm and ceo have no department
type testOrg struct {
	sales, ops  *models.Department
	admin       *models.User
	tm          *models.User
	ceo         *models.User
	lead        *models.User
	manager     *models.User
	employee    *models.User
	peer        *models.User
	opsManager  *models.User
	opsEmployee *models.User
}

// testEnv wires every service against one in-memory database.
type testEnv struct {
	db          *gorm.DB
	log         *zap.Logger
	notifier    *recordingNotifier
	dispatcher  *Dispatcher
	tokens      *ApprovalTokenService
	hierarchy   *HierarchyService
	activity    *ActivityService
	tasks       *TaskService
	evaluations *EvaluationService
	aggregation *AggregationService
	org         *OrgService
	auth        *AuthService
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig(logger.Silent))
	require.NoError(t, err)

	// One connection keeps every query on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db, zap.NewNop()))
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := openTestDB(t)
	log := zap.NewNop()

	userRepo := repository.NewUserRepository(db)
	deptRepo := repository.NewDepartmentRepository(db)
	positionRepo := repository.NewPositionRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	evalRepo := repository.NewEvaluationRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	env := &testEnv{
		db:       db,
		log:      log,
		notifier: &recordingNotifier{},
		tokens:   NewApprovalTokenService("test-secret", time.Hour, "https://kpi.test"),
	}
	env.dispatcher = NewDispatcher(env.notifier, log, time.Second)
	env.hierarchy = NewHierarchyService(userRepo, deptRepo)
	env.activity = NewActivityService(activityRepo, log)
	env.tasks = NewTaskService(taskRepo, env.hierarchy, env.tokens, env.dispatcher, env.activity, log)
	env.evaluations = NewEvaluationService(evalRepo, taskRepo, env.hierarchy, env.dispatcher, env.activity, log)
	env.aggregation = NewAggregationService(evalRepo, env.hierarchy)
	env.org = NewOrgService(userRepo, deptRepo, positionRepo, env.activity, log)
	env.auth = NewAuthService(userRepo, log)
	return env
}

func (env *testEnv) createUser(t *testing.T, username string, role models.Role, dept *models.Department) *models.User {
	t.Helper()
	u := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hashedpassword",
		Role:         role,
		IsActive:     true,
	}
	if dept != nil {
		id := dept.ID
		u.DepartmentID = &id
	}
	require.NoError(t, env.db.Create(u).Error)
	return u
}

func (env *testEnv) seedOrg(t *testing.T) *testOrg {
	t.Helper()
	o := &testOrg{
		sales: &models.Department{Name: "Sales"},
		ops:   &models.Department{Name: "Ops"},
	}
	require.NoError(t, env.db.Create(o.sales).Error)
	require.NoError(t, env.db.Create(o.ops).Error)

	o.admin = env.createUser(t, "admin", models.RoleAdmin, nil)
	o.tm = env.createUser(t, "tm", models.RoleTopManagement, nil)
	o.ceo = env.createUser(t, "ceo", models.RoleCEO, nil)
	o.lead = env.createUser(t, "lead", models.RoleDepartmentLead, o.sales)
	o.manager = env.createUser(t, "manager", models.RoleManager, o.sales)
	o.employee = env.createUser(t, "employee", models.RoleEmployee, o.sales)
	o.peer = env.createUser(t, "peer", models.RoleEmployee, o.sales)
	o.opsManager = env.createUser(t, "ops_manager", models.RoleManager, o.ops)
	o.opsEmployee = env.createUser(t, "ops_employee", models.RoleEmployee, o.ops)

	require.NoError(t, env.db.Model(o.sales).Updates(map[string]interface{}{
		"manager_id":         o.manager.ID,
		"department_lead_id": o.lead.ID,
	}).Error)
	require.NoError(t, env.db.Model(o.ops).Update("manager_id", o.opsManager.ID).Error)
	require.NoError(t, env.db.Exec(
		"INSERT INTO department_top_management (department_id, user_id) VALUES (?, ?)", o.sales.ID, o.tm.ID,
	).Error)
	return o
}

// createApprovedTask stores a task directly, bypassing the authorizer.
func (env *testEnv) createApprovedTask(t *testing.T, creator, assignee *models.User) *models.Task {
	t.Helper()
	task := &models.Task{
		Title:       "Quarterly report",
		Status:      models.TaskStatusTodo,
		Priority:    models.TaskPriorityMedium,
		AssigneeID:  assignee.ID,
		CreatedByID: creator.ID,
		Approved:    true,
	}
	require.NoError(t, env.db.Omit("Assignee", "CreatedBy").Create(task).Error)
	return task
}

func defaultPage() utils.PaginationParams {
	return utils.PaginationParams{Page: 1, Limit: 20}
}
