package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	_ "github.com/tutorhub/backoffice-api/api/swagger"
	"github.com/tutorhub/backoffice-api/internal/handler"
	"github.com/tutorhub/backoffice-api/internal/repository"
	"github.com/tutorhub/backoffice-api/internal/router"
	"github.com/tutorhub/backoffice-api/internal/service"
	"github.com/tutorhub/backoffice-api/pkg/cache"
	"github.com/tutorhub/backoffice-api/pkg/config"
	"github.com/tutorhub/backoffice-api/pkg/database"
	"github.com/tutorhub/backoffice-api/pkg/export"
	"github.com/tutorhub/backoffice-api/pkg/logger"
)

// @title TutorHub Back Office API
// @version 1.0.0
// @description Role-based back office for a tutoring school
// @BasePath /api
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	balanceRepo := repository.NewBalanceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)

	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "tutorhub-backoffice",
		RootEmail:          cfg.Admins.RootEmail,
		RootPassword:       cfg.Admins.RootPassword,
		Whitelist:          cfg.Admins.Whitelist,
		MaxPrivileged:      cfg.Admins.MaxPrivileged,
	})
	userSvc := service.NewUserService(userRepo, auditRepo, validate, logr, cfg.Admins.RootEmail)
	paymentSvc := service.NewPaymentService(paymentRepo, auditRepo, export.NewPDFExporter(), validate, logr, metricsSvc)
	lessonSvc := service.NewLessonService(lessonRepo, userRepo, balanceRepo, validate, logr, metricsSvc)
	balanceSvc := service.NewBalanceService(balanceRepo, validate, logr, metricsSvc)
	requestSvc := service.NewRequestService(requestRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, validate, logr)
	auditSvc := service.NewAuditService(auditRepo, export.NewCSVExporter(), logr)
	dashboardSvc := service.NewDashboardService(userRepo, balanceRepo, cacheSvc, cfg.Dashboard.CacheTTL, logr)

	handlers := router.Handlers{
		Auth:      handler.NewAuthHandler(authSvc),
		User:      handler.NewUserHandler(userSvc),
		Payment:   handler.NewPaymentHandler(paymentSvc),
		Lesson:    handler.NewLessonHandler(lessonSvc),
		Balance:   handler.NewBalanceHandler(balanceSvc, dashboardSvc),
		Audit:     handler.NewAuditHandler(auditSvc),
		Request:   handler.NewRequestHandler(requestSvc),
		Course:    handler.NewCourseHandler(courseSvc),
		Dashboard: handler.NewDashboardHandler(dashboardSvc, metricsSvc),
	}

	r := router.New(cfg, logr, authSvc, metricsSvc, handlers)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
