package main

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yukikurage/kpi-management-api/internal/constants"
	"github.com/yukikurage/kpi-management-api/internal/handlers"
	"github.com/yukikurage/kpi-management-api/internal/middleware"
	"github.com/yukikurage/kpi-management-api/internal/models"
	"github.com/yukikurage/kpi-management-api/internal/services"
	"go.uber.org/zap"
)

// application holds the services shared by every route.
type application struct {
	log         *zap.Logger
	auth        *services.AuthService
	org         *services.OrgService
	hierarchy   *services.HierarchyService
	activity    *services.ActivityService
	tasks       *services.TaskService
	evaluations *services.EvaluationService
	aggregation *services.AggregationService
}

func (app *application) router(store sessions.Store) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(app.log))
	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	authHandler := handlers.NewAuthHandler(app.auth)
	taskHandler := handlers.NewTaskHandler(app.tasks)
	evalHandler := handlers.NewEvaluationHandler(app.evaluations)
	hierarchyHandler := handlers.NewHierarchyHandler(app.hierarchy, app.aggregation, app.activity)
	orgHandler := handlers.NewOrganizationHandler(app.org)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "KPI Management API is running",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", middleware.RequireAuth(), middleware.RequireActiveUser(), authHandler.GetCurrentUser)
			auth.POST("/password", middleware.RequireAuth(), middleware.RequireActiveUser(), authHandler.ChangePassword)
		}

		// Approval links are opened from notifications, without a session
		api.GET("/tasks/approval", taskHandler.PreviewApproval)
		api.POST("/tasks/approval", taskHandler.ResolveApproval)

		protected := api.Group("")
		protected.Use(middleware.RequireAuth(), middleware.RequireActiveUser())

		tasks := protected.Group("/tasks")
		{
			tasks.GET("", taskHandler.ListTasks)
			tasks.POST("", taskHandler.CreateTask)
			tasks.GET("/:id", middleware.RequireTaskAccess(app.tasks), taskHandler.GetTask)
			tasks.PATCH("/:id", middleware.RequireTaskAccess(app.tasks), taskHandler.UpdateTask)
			tasks.DELETE("/:id", middleware.RequireTaskAccess(app.tasks), taskHandler.DeleteTask)
			tasks.GET("/:id/evaluations", evalHandler.GetKPIStatus)
		}

		evaluations := protected.Group("/evaluations")
		{
			evaluations.POST("/kpi", evalHandler.SubmitKPIEvaluation)
			evaluations.POST("/user", evalHandler.SubmitUserEvaluation)
			evaluations.PATCH("/:kind/:id", evalHandler.UpdateScore)
			evaluations.GET("/:kind/:id/history", evalHandler.GetHistory)
		}

		users := protected.Group("/users/:id")
		{
			users.GET("/hierarchy", hierarchyHandler.GetHierarchy)
			users.GET("/subordinates", hierarchyHandler.GetSubordinates)
			users.GET("/evaluations", evalHandler.GetUserStatus)
			users.GET("/evaluation-summary", hierarchyHandler.GetEvaluationSummary)
		}

		protected.GET("/activity", hierarchyHandler.ListActivity)
		protected.GET("/departments", orgHandler.ListDepartments)
		protected.GET("/departments/:id", orgHandler.GetDepartment)
		protected.GET("/positions", orgHandler.ListPositions)

		// Administration
		admin := api.Group("/admin")
		admin.Use(middleware.RequireAuth(), middleware.RequireRole(models.RoleAdmin))
		{
			admin.POST("/departments", orgHandler.CreateDepartment)
			admin.PUT("/departments/:id", orgHandler.UpdateDepartment)
			admin.DELETE("/departments/:id", orgHandler.DeleteDepartment)
			admin.POST("/positions", orgHandler.CreatePosition)
			admin.GET("/users", orgHandler.ListUsers)
			admin.GET("/users/:id", orgHandler.GetUser)
			admin.POST("/users", orgHandler.ProvisionUser)
			admin.PATCH("/users/:id", orgHandler.UpdateUser)
			admin.DELETE("/users/:id", orgHandler.DeactivateUser)
		}
	}

	return r
}
