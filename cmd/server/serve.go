package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/kpi-management-api/internal/config"
	"github.com/yukikurage/kpi-management-api/internal/database"
	"github.com/yukikurage/kpi-management-api/internal/repository"
	"github.com/yukikurage/kpi-management-api/internal/services"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func loadConfig(configFile string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, log, nil
}

func runMigrate(configFile string) error {
	cfg, log, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := database.Connect(cfg, log); err != nil {
		return err
	}
	db := database.GetDB()
	if err := database.Migrate(db, log); err != nil {
		return err
	}

	authService := services.NewAuthService(repository.NewUserRepository(db), log)
	if _, err := authService.BootstrapAdmin(cfg.BootstrapAdminUsername, cfg.BootstrapAdminPassword); err != nil {
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}
	return nil
}

func runServe(ctx context.Context, configFile string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, log, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	defer log.Sync()

	gin.SetMode(cfg.GinMode)

	if err := database.Connect(cfg, log); err != nil {
		return err
	}
	db := database.GetDB()
	if err := database.Migrate(db, log); err != nil {
		return err
	}

	// Setup session store with Redis
	redisAddr := cfg.RedisHost + ":" + cfg.RedisPort
	store, err := redisStore.NewStore(
		10,        // Redis pool size
		"tcp",     // network type
		redisAddr, // Redis address from config
		"",        // username (empty for default user)
		"",        // password (empty = no password)
		[]byte(cfg.SessionSecret),
	)
	if err != nil {
		return fmt.Errorf("failed to create Redis store: %w", err)
	}
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})

	var notifier services.Notifier = services.NewLogNotifier(log)
	if cfg.NotifyWebhookURL != "" {
		notifier = services.NewWebhookNotifier(cfg.NotifyWebhookURL, cfg.NotifyTimeout)
	}
	dispatcher := services.NewDispatcher(notifier, log, cfg.NotifyTimeout)

	userRepo := repository.NewUserRepository(db)
	deptRepo := repository.NewDepartmentRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	evalRepo := repository.NewEvaluationRepository(db)

	tokens := services.NewApprovalTokenService(cfg.ApprovalTokenSecret, cfg.ApprovalTokenTTL, cfg.PublicBaseURL)
	authService := services.NewAuthService(userRepo, log)
	activityService := services.NewActivityService(repository.NewActivityRepository(db), log)
	hierarchyService := services.NewHierarchyService(userRepo, deptRepo)

	app := &application{
		log:         log,
		auth:        authService,
		org:         services.NewOrgService(userRepo, deptRepo, repository.NewPositionRepository(db), activityService, log),
		hierarchy:   hierarchyService,
		activity:    activityService,
		tasks:       services.NewTaskService(taskRepo, hierarchyService, tokens, dispatcher, activityService, log),
		evaluations: services.NewEvaluationService(evalRepo, taskRepo, hierarchyService, dispatcher, activityService, log),
		aggregation: services.NewAggregationService(evalRepo, hierarchyService),
	}

	if _, err := authService.BootstrapAdmin(cfg.BootstrapAdminUsername, cfg.BootstrapAdminPassword); err != nil {
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.router(store),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	dispatcher.Close()

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	return nil
}
