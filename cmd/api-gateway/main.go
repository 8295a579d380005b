package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/router"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
)

// @title SMA Timetable API
// @version 1.0.0
// @description Weekly school timetable generation service
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, timetable cache disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	subjectRepo := repository.NewSubjectRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	classRepo := repository.NewClassRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	maintenanceRepo := repository.NewMaintenanceRepository(db)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Timetable.CacheTTL, logr, cfg.Timetable.CacheEnabled)

	policy := service.ParseGenerationPolicy(cfg.Timetable.TeacherSelection, cfg.Timetable.SubjectFallback, logr)
	engine := service.NewTimetableEngine(policy)

	authSvc := service.NewAuthService(validate, logr, service.AuthConfig{
		AdminUsername:     cfg.Auth.AdminUsername,
		AdminPasswordHash: cfg.Auth.AdminPasswordHash,
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	subjectSvc := service.NewSubjectService(subjectRepo, cacheSvc, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, subjectRepo, cacheSvc, validate, logr)
	classSvc := service.NewClassService(classRepo, cacheSvc, validate, logr)
	timetableSvc := service.NewTimetableService(engine, subjectRepo, teacherRepo, classRepo, timetableRepo, db, cacheSvc, metricsSvc, logr, service.TimetableServiceConfig{
		GenerateTimeout: cfg.Timetable.GenerateTimeout,
		CacheTTL:        cfg.Timetable.CacheTTL,
	})
	exportSvc := service.NewExportService(subjectRepo, teacherRepo, classRepo, timetableRepo, validate, logr)
	maintenanceSvc := service.NewMaintenanceService(maintenanceRepo, cacheSvc, logr)
	jobSvc := service.NewGenerationJobService(timetableSvc, metricsSvc, logr, service.GenerationJobConfig{
		BufferSize: cfg.Timetable.JobsBufferSize,
		MaxRetries: cfg.Timetable.JobsRetries,
		RetryDelay: cfg.Timetable.JobsRetryDelay,
	})
	jobSvc.Start(ctx)
	defer jobSvc.Stop()

	engineRouter := router.New(router.Handlers{
		Auth:        handler.NewAuthHandler(authSvc),
		Subjects:    handler.NewSubjectHandler(subjectSvc),
		Teachers:    handler.NewTeacherHandler(teacherSvc),
		Classes:     handler.NewClassHandler(classSvc),
		Timetable:   handler.NewTimetableHandler(timetableSvc, jobSvc, exportSvc),
		Maintenance: handler.NewMaintenanceHandler(maintenanceSvc),
		Metrics:     handler.NewMetricsHandler(metricsSvc, db),
	}, router.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AuthEnabled:    cfg.Auth.Enabled,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Tokens:         authSvc,
		Observer:       metricsSvc,
		Logger:         logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engineRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env,
			"teacher_selection", policy.TeacherSelection, "subject_fallback", policy.SubjectFallback)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
