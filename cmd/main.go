package main

import (
	"context"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/EUDYDEV/eproject-saas/internal/authz"
	"github.com/EUDYDEV/eproject-saas/internal/handler"
	"github.com/EUDYDEV/eproject-saas/internal/mailer"
	"github.com/EUDYDEV/eproject-saas/internal/middleware"
	"github.com/EUDYDEV/eproject-saas/internal/model"
	"github.com/EUDYDEV/eproject-saas/internal/subscription"
	"github.com/EUDYDEV/eproject-saas/pkg/config"
	"github.com/EUDYDEV/eproject-saas/pkg/database"
	"github.com/EUDYDEV/eproject-saas/pkg/jwtutil"
	"github.com/EUDYDEV/eproject-saas/pkg/logger"
	"github.com/EUDYDEV/eproject-saas/prometheus"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	if err := logger.InitLogger(cfg); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	log.Info("Starting agency back-office...", zap.String("environment", cfg.Server.Env))

	db, err := database.InitDB(&cfg.DB)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	if err := database.MigrateModels(
		&model.Branch{},
		&model.User{},
		&model.Membership{},
		&model.AgencySubscription{},
		&model.PortalSetting{},
		&model.Student{},
		&model.StudyCase{},
		&model.Appointment{},
		&model.SMTPSetting{},
		&model.EmailLog{},
		&model.AuditLog{},
	); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	jwtutil.Initialize(&cfg.JWT)

	mail := mailer.New(db, &cfg.SMTP, log)
	subSvc := subscription.NewService(db, mail, log, cfg.Server.BaseURL)
	resolver := authz.NewResolver(db)
	handler.Init(resolver, subSvc, mail)

	// Maintenance subcommands run once and exit; the scheduler invokes the
	// same binary it serves with.
	if len(os.Args) > 1 {
		runCommand(os.Args[1], cfg, subSvc, log)
		return
	}

	// Boot-time maintenance. Failures here must never keep the server down.
	bootstrapPlatformAdmin(&cfg.Bootstrap, log)

	prometheus.InitMetrics()
	log.Info("Prometheus metrics initialized")

	e := echo.New()
	e.HideBanner = true

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestID)
	e.Use(logger.Middleware())
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))
	e.GET("/robots.txt", handler.RobotsTxt)
	e.GET("/sitemap.xml", handler.SitemapXML)

	// Authentication routes
	auth := e.Group("/auth")
	auth.POST("/login", handler.Login)
	auth.POST("/signup-agency", handler.SignupAgency)

	// Authenticated self-service routes. The billing gate runs here too but
	// exempts these paths so a blocked owner can still pay.
	session := e.Group("/auth")
	session.Use(middleware.AuthMiddleware)
	session.Use(middleware.EnforceSubscription(subSvc))
	session.GET("/profile", handler.Profile)
	session.POST("/change-password", handler.ChangePassword)
	session.GET("/subscription", handler.GetSubscription)
	session.POST("/subscription", handler.PostSubscription)
	session.POST("/it-scope", handler.SetITScope, middleware.RequireSuperAdmin)

	// API routes - all require authentication and an agency in good standing
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)
	api.Use(middleware.EnforceSubscription(subSvc))

	students := api.Group("/students")
	students.GET("", handler.ListStudents)
	students.POST("", handler.CreateStudent, middleware.RequireRoles(authz.RoleEmployee))
	students.GET("/:id", handler.GetStudent)
	students.PUT("/:id", handler.UpdateStudent, middleware.RequireRoles(authz.RoleEmployee))
	students.DELETE("/:id", handler.DeleteStudent, middleware.RequireRoles(authz.RoleAdminBranch))

	procedures := api.Group("/procedures")
	procedures.GET("", handler.ListCases)
	procedures.POST("", handler.CreateCase, middleware.RequireRoles(authz.RoleEmployee))
	procedures.PATCH("/:id/status", handler.UpdateCaseStatus, middleware.RequireRoles(authz.RoleEmployee))

	appointments := api.Group("/appointments")
	appointments.GET("", handler.ListAppointments)
	appointments.POST("", handler.CreateAppointment, middleware.RequireRoles(authz.RoleEmployee))
	appointments.POST("/:id/process", handler.ProcessAppointment, middleware.RequireRoles(authz.RoleEmployee))

	branches := api.Group("/branches")
	branches.GET("", handler.ListBranches)
	branches.GET("/:id", handler.GetBranch, middleware.RequireBranchAccess(resolver))
	branches.POST("", handler.CreateBranch, middleware.RequireRoles(authz.RoleFounder))

	users := api.Group("/users", middleware.RequireRoles(authz.RoleAdminBranch))
	users.GET("", handler.ListUsers)
	users.POST("", handler.CreateUser)
	users.PUT("/:id", handler.UpdateUser)
	users.DELETE("/:id", handler.DeleteUser)

	api.GET("/dashboard", handler.Dashboard)

	// Platform console - super admin only, never billing-gated
	admin := e.Group("/admin/it")
	admin.Use(middleware.AuthMiddleware)
	admin.Use(middleware.RequireSuperAdmin)
	admin.GET("/subscriptions", handler.ITListSubscriptions)
	admin.POST("/subscriptions/:id/activate", handler.ITActivateSubscription)
	admin.POST("/subscriptions/:id/expire", handler.ITExpireSubscription)
	admin.GET("/settings", handler.ITGetSettings)
	admin.PUT("/settings", handler.ITUpdateSettings)

	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}

// runCommand dispatches the one-shot maintenance subcommands.
func runCommand(name string, cfg *config.Config, subSvc *subscription.Service, log *zap.Logger) {
	switch name {
	case "process-subscriptions":
		if err := subSvc.Process(context.Background(), time.Now().UTC()); err != nil {
			log.Fatal("Subscription processing failed", zap.Error(err))
		}
		log.Info("Subscription processing finished")
	case "backfill-memberships":
		backfillMemberships(log)
	case "check-founder-isolation":
		checkFounderIsolation(false, log)
	case "fix-founder-isolation":
		checkFounderIsolation(true, log)
	case "bootstrap-platform-admin":
		bootstrapPlatformAdmin(&cfg.Bootstrap, log)
	default:
		log.Fatal("Unknown command", zap.String("command", name))
	}
}
