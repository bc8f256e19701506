package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/kpi-management-api/internal/constants"
	"github.com/yukikurage/kpi-management-api/internal/database"
	apierrors "github.com/yukikurage/kpi-management-api/internal/errors"
	"github.com/yukikurage/kpi-management-api/internal/models"
	"github.com/yukikurage/kpi-management-api/internal/repository"
	"github.com/yukikurage/kpi-management-api/internal/services"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPassword = "supersecret"

// handlerEnv wires real services against an in-memory database.
type handlerEnv struct {
	db          *gorm.DB
	dispatcher  *services.Dispatcher
	tokens      *services.ApprovalTokenService
	auth        *services.AuthService
	org         *services.OrgService
	hierarchy   *services.HierarchyService
	activity    *services.ActivityService
	tasks       *services.TaskService
	evaluations *services.EvaluationService
	aggregation *services.AggregationService
}

// salesOrg is a department with a manager and two employees and no
// top-management overseer, so evaluations there are single-stage.
type salesOrg struct {
	dept     *models.Department
	admin    *models.User
	manager  *models.User
	employee *models.User
	peer     *models.User
	outsider *models.User
}

func setupHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig(logger.Silent))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db, zap.NewNop()))

	// Middleware reads the package-level handle
	database.SetDB(db)

	log := zap.NewNop()
	userRepo := repository.NewUserRepository(db)
	deptRepo := repository.NewDepartmentRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	evalRepo := repository.NewEvaluationRepository(db)

	env := &handlerEnv{
		db:         db,
		dispatcher: services.NewDispatcher(services.NewLogNotifier(log), log, time.Second),
		tokens:     services.NewApprovalTokenService("handler-secret", time.Hour, "https://kpi.test"),
	}
	env.auth = services.NewAuthService(userRepo, log)
	env.activity = services.NewActivityService(repository.NewActivityRepository(db), log)
	env.hierarchy = services.NewHierarchyService(userRepo, deptRepo)
	env.org = services.NewOrgService(userRepo, deptRepo, repository.NewPositionRepository(db), env.activity, log)
	env.tasks = services.NewTaskService(taskRepo, env.hierarchy, env.tokens, env.dispatcher, env.activity, log)
	env.evaluations = services.NewEvaluationService(evalRepo, taskRepo, env.hierarchy, env.dispatcher, env.activity, log)
	env.aggregation = services.NewAggregationService(evalRepo, env.hierarchy)

	t.Cleanup(func() {
		env.dispatcher.Wait()
		sqlDB.Close()
	})
	return env
}

func (env *handlerEnv) createUser(t *testing.T, username string, role models.Role, dept *models.Department) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}
	if dept != nil {
		id := dept.ID
		user.DepartmentID = &id
	}
	require.NoError(t, env.db.Create(user).Error)
	return user
}

func (env *handlerEnv) seedSales(t *testing.T) *salesOrg {
	t.Helper()
	o := &salesOrg{dept: &models.Department{Name: "Sales"}}
	require.NoError(t, env.db.Create(o.dept).Error)

	ops := &models.Department{Name: "Ops"}
	require.NoError(t, env.db.Create(ops).Error)

	o.admin = env.createUser(t, "admin", models.RoleAdmin, nil)
	o.manager = env.createUser(t, "manager", models.RoleManager, o.dept)
	o.employee = env.createUser(t, "employee", models.RoleEmployee, o.dept)
	o.peer = env.createUser(t, "peer", models.RoleEmployee, o.dept)
	o.outsider = env.createUser(t, "outsider", models.RoleEmployee, ops)

	require.NoError(t, env.db.Model(o.dept).Update("manager_id", o.manager.ID).Error)
	return o
}

func (env *handlerEnv) createTask(t *testing.T, creator, assignee *models.User, approved bool) *models.Task {
	t.Helper()
	status := models.TaskStatusPending
	if approved {
		status = models.TaskStatusTodo
	}
	task := &models.Task{
		Title:       "Monthly report",
		Description: "Test Description",
		Status:      status,
		Priority:    models.TaskPriorityMedium,
		AssigneeID:  assignee.ID,
		CreatedByID: creator.ID,
		Approved:    approved,
	}
	require.NoError(t, env.db.Omit("Assignee", "CreatedBy").Create(task).Error)
	require.NoError(t, env.db.Preload("Assignee").Preload("CreatedBy").First(task, task.ID).Error)
	return task
}

// createAuthContext builds a context as RequireAuth would leave it
func createAuthContext(method, url string, body any, userID uint64) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != nil {
		payload, _ := json.Marshal(body)
		req = httptest.NewRequest(method, url, bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, url, nil)
	}

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	if userID != 0 {
		c.Set(constants.ContextKeyUserID, userID)
	}

	return c, w
}

// setTaskContext simulates RequireTaskAccess
func setTaskContext(c *gin.Context, task *models.Task) {
	c.Set(constants.ContextKeyTask, task)
}

// asUser stands in for RequireAuth on routers built in tests
func asUser(userID uint64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(constants.ContextKeyUserID, userID)
		c.Next()
	}
}

func decodeAPIError(t *testing.T, w *httptest.ResponseRecorder) apierrors.APIError {
	t.Helper()
	var body apierrors.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func errorRule(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeAPIError(t, w)
	details, ok := body.Details.(map[string]interface{})
	if !ok {
		return ""
	}
	rule, _ := details["rule"].(string)
	return rule
}

func jsonID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
