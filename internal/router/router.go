package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/tutorhub/backoffice-api/internal/handler"
	"github.com/tutorhub/backoffice-api/internal/middleware"
	"github.com/tutorhub/backoffice-api/internal/models"
	"github.com/tutorhub/backoffice-api/internal/service"
	"github.com/tutorhub/backoffice-api/pkg/config"
	"github.com/tutorhub/backoffice-api/pkg/logger"
	corsmiddleware "github.com/tutorhub/backoffice-api/pkg/middleware/cors"
	reqidmiddleware "github.com/tutorhub/backoffice-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler wired into the engine.
type Handlers struct {
	Auth      *handler.AuthHandler
	User      *handler.UserHandler
	Payment   *handler.PaymentHandler
	Lesson    *handler.LessonHandler
	Balance   *handler.BalanceHandler
	Audit     *handler.AuditHandler
	Request   *handler.RequestHandler
	Course    *handler.CourseHandler
	Dashboard *handler.DashboardHandler
}

// New assembles the gin engine with role-prefixed route groups.
func New(cfg *config.Config, logr *zap.Logger, auth *service.AuthService, metrics *service.MetricsService, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	policy := middleware.NewAccessPolicy(cfg.Admins.RootEmail)
	authed := middleware.JWT(auth)

	api := r.Group(cfg.APIPrefix)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/admin-login", h.Auth.AdminLogin)
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/refresh", h.Auth.Refresh)
		authGroup.POST("/logout", authed, h.Auth.Logout)
		authGroup.GET("/me", authed, h.Auth.Me)
		authGroup.PATCH("/me", authed, h.Auth.UpdateProfile)
	}

	admin := api.Group("/admin", authed, policy.Require(models.RoleAdmin))
	{
		admin.GET("/users", h.User.List)
		admin.POST("/users", h.User.Create)
		admin.GET("/users/by-email", h.User.GetByEmail)
		admin.GET("/users/:id", h.User.Get)
		admin.PATCH("/users/:id", h.User.Update)
		admin.DELETE("/users/:id", h.User.Delete)
		admin.PUT("/users/:id/role", h.User.SetRole)
		admin.GET("/audit", h.Audit.List)
		admin.GET("/audit/export", h.Audit.Export)
		admin.GET("/overview", h.Dashboard.Overview)
	}

	manager := api.Group("/manager", authed, policy.Require(models.RoleManager, models.RoleAdmin))
	{
		manager.GET("/clients", h.User.ListClients)
		manager.GET("/users/by-email", h.User.GetByEmail)

		manager.GET("/payments", h.Payment.List)
		manager.POST("/payments", h.Payment.Create)
		manager.GET("/payments/:id", h.Payment.Get)
		manager.POST("/payments/:id/confirm", h.Payment.Confirm)
		manager.GET("/payments/:id/receipt", h.Payment.Receipt)

		manager.GET("/lessons", h.Lesson.List)
		manager.POST("/lessons", h.Lesson.Create)
		manager.GET("/lessons/:id", h.Lesson.Get)
		manager.PATCH("/lessons/:id", h.Lesson.Update)
		manager.POST("/lessons/:id/cancel", h.Lesson.Cancel)
		manager.POST("/lessons/:id/debit", h.Lesson.Debit)

		manager.GET("/balances", h.Balance.List)
		manager.GET("/students/:id/balance", h.Balance.Get)
		manager.PATCH("/students/:id/balance", h.Balance.Adjust)

		manager.GET("/requests", h.Request.List)
		manager.POST("/requests/:id/respond", h.Request.Respond)

		manager.GET("/courses", h.Course.ListCourses)
		manager.POST("/courses", h.Course.CreateCourse)
		manager.GET("/courses/:id", h.Course.GetCourse)
		manager.PUT("/courses/:id", h.Course.UpdateCourse)
		manager.DELETE("/courses/:id", h.Course.DeleteCourse)
		manager.GET("/courses/:id/modules", h.Course.ListModules)
		manager.POST("/courses/:id/modules", h.Course.CreateModule)
		manager.PUT("/modules/:id", h.Course.UpdateModule)
		manager.DELETE("/modules/:id", h.Course.DeleteModule)
		manager.GET("/modules/:id/topics", h.Course.ListTopics)
		manager.POST("/modules/:id/topics", h.Course.CreateTopic)
		manager.PUT("/topics/:id", h.Course.UpdateTopic)
		manager.DELETE("/topics/:id", h.Course.DeleteTopic)
	}

	teacher := api.Group("/teacher", authed, policy.Require(models.RoleTeacher, models.RoleAdmin))
	{
		teacher.GET("/lessons", h.Lesson.List)
		teacher.POST("/lessons", h.Lesson.Create)
		teacher.GET("/lessons/:id", h.Lesson.Get)
		teacher.PATCH("/lessons/:id", h.Lesson.Update)
		teacher.POST("/lessons/:id/cancel", h.Lesson.Cancel)
		teacher.POST("/lessons/:id/debit", h.Lesson.Debit)
		teacher.GET("/students", h.Lesson.Students)
		teacher.GET("/students/by-email", h.User.GetByEmail)
		teacher.GET("/students/:id/lessons", h.Lesson.StudentLessons)
	}

	student := api.Group("/student", authed, policy.Require(models.RoleStudent, models.RoleAdmin))
	{
		student.GET("/dashboard", h.Dashboard.Student)
		student.GET("/season", h.Dashboard.Season)
		student.GET("/lessons", h.Lesson.ListOwn)
		student.GET("/balance", h.Balance.GetOwn)
		student.GET("/payments", h.Payment.ListOwn)
		student.POST("/payments", h.Payment.CreateOwn)
		student.GET("/requests", h.Request.ListOwn)
		student.POST("/requests", h.Request.Create)
		student.GET("/courses", h.Course.ListCourses)
	}

	applicant := api.Group("/applicant", authed, policy.Require(models.RoleApplicant, models.RoleAdmin))
	{
		applicant.GET("/dashboard", h.Dashboard.Student)
		applicant.GET("/lessons", h.Lesson.ListOwn)
		applicant.GET("/balance", h.Balance.GetOwn)
		applicant.GET("/courses", h.Course.ListCourses)
		applicant.GET("/payments", h.Payment.ListOwn)
		applicant.POST("/payments", h.Payment.CreateOwn)
		applicant.GET("/requests", h.Request.ListOwn)
		applicant.POST("/requests", h.Request.Create)
	}

	return r
}
