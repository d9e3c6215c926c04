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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campusconnect/campusconnect-api/api/swagger"
	"github.com/campusconnect/campusconnect-api/internal/handler"
	"github.com/campusconnect/campusconnect-api/internal/middleware"
	"github.com/campusconnect/campusconnect-api/internal/models"
	"github.com/campusconnect/campusconnect-api/internal/repository"
	"github.com/campusconnect/campusconnect-api/internal/service"
	"github.com/campusconnect/campusconnect-api/internal/ws"
	"github.com/campusconnect/campusconnect-api/pkg/cache"
	"github.com/campusconnect/campusconnect-api/pkg/config"
	"github.com/campusconnect/campusconnect-api/pkg/database"
	"github.com/campusconnect/campusconnect-api/pkg/export"
	"github.com/campusconnect/campusconnect-api/pkg/jobs"
	"github.com/campusconnect/campusconnect-api/pkg/logger"
	corsmiddleware "github.com/campusconnect/campusconnect-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campusconnect/campusconnect-api/pkg/middleware/requestid"
	"github.com/campusconnect/campusconnect-api/pkg/storage"
)

// @title CampusConnect API
// @version 1.0.0
// @description Campus administration backend: clearance workflow, messaging, events, notifications
// @BasePath /api/v1
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
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	files, err := storage.NewExportStore(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	clearanceRepo := repository.NewClearanceRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	clubRepo := repository.NewClubRepository(db)
	eventRepo := repository.NewEventRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	// Real-time hub and metrics.
	hub := ws.NewHub(cfg.Messaging.ClientBufferSize, cfg.Messaging.KeepAlive, logr)
	metricsService := service.NewMetricsService()
	metricsService.SetConnectedUsersFunc(hub.ConnectedUsers)

	// Services.
	validate := validator.New()
	authService := service.NewAuthService(userRepo, cfg.JWT, logr)
	userService := service.NewUserService(userRepo, validate, logr)
	orgService := service.NewOrganizationService(departmentRepo, clubRepo, userRepo, validate, logr)
	csvExporter := export.NewCSVExporter()
	pdfExporter := export.NewPDFExporter()
	clearanceService := service.NewClearanceService(
		clearanceRepo, userRepo, orgService, cacheRepo, hub,
		csvExporter, pdfExporter, files, signer, cfg.Clearance, logr)
	clearanceService.SetMetrics(metricsService)
	messagingService := service.NewMessagingService(conversationRepo, userRepo, hub, cfg.Messaging, logr)
	messagingService.SetMetrics(metricsService)
	eventService := service.NewEventService(eventRepo, userRepo, csvExporter, files, signer, logr)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, hub, nil, service.TemplateDrafter{}, logr)

	dispatchQueue := jobs.NewQueue("notifications", notificationService.Dispatch, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	notificationService.SetQueue(dispatchQueue)

	queueCtx, queueCancel := context.WithCancel(context.Background())
	defer queueCancel()
	dispatchQueue.Start(queueCtx)
	defer dispatchQueue.Stop()

	// Expired exports are unreachable once their signed links lapse; sweep
	// them off disk periodically.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-queueCtx.Done():
				return
			case <-ticker.C:
				if removed, err := files.Sweep(cfg.Exports.Retention); err != nil {
					logr.Sugar().Warnw("export sweep failed", "error", err)
				} else if removed > 0 {
					logr.Sugar().Infow("swept expired exports", "removed", removed)
				}
			}
		}
	}()

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	clearanceHandler := handler.NewClearanceHandler(clearanceService)
	messagingHandler := handler.NewMessagingHandler(messagingService)
	wsHandler := handler.NewWSHandler(hub, cfg.Messaging.AllowAnyOrigin)
	orgHandler := handler.NewOrganizationHandler(orgService)
	eventHandler := handler.NewEventHandler(eventService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	exportHandler := handler.NewExportHandler(files, signer)
	opsHandler := handler.NewOpsHandler(db, redisClient, metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", opsHandler.Health)
	r.GET("/ready", opsHandler.Ready)
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
			auth.PUT("/password", middleware.JWT(authService), authHandler.ChangePassword)
		}

		api.GET("/exports/:token", exportHandler.Download)
		api.GET("/ws", middleware.WebSocketJWT(authService), wsHandler.Connect)

		protected := api.Group("")
		protected.Use(middleware.JWT(authService))
		{
			adminOnly := middleware.RequireRoles(models.RoleSuperAdmin)
			staff := middleware.RequireRoles(
				models.RoleSuperAdmin, models.RoleSSGAdmin,
				models.RoleDepartmentAdmin, models.RoleClubAdmin, models.RoleOIC)

			users := protected.Group("/users")
			{
				users.POST("", adminOnly, userHandler.Create)
				users.GET("", staff, userHandler.List)
				users.GET("/directory", userHandler.Directory)
				users.GET("/:id", middleware.RBAC(string(models.RoleSuperAdmin), string(models.RoleSSGAdmin), "SELF"), userHandler.Get)
				users.PUT("/:id", adminOnly, userHandler.Update)
				users.DELETE("/:id", adminOnly, userHandler.Deactivate)
			}

			clearance := protected.Group("/clearance")
			{
				clearance.POST("", middleware.RequireRoles(models.RoleStudent), clearanceHandler.Initiate)
				clearance.GET("", clearanceHandler.List)
				clearance.GET("/summary", staff, clearanceHandler.Summary)
				clearance.POST("/export", staff, clearanceHandler.ExportRoster)
				clearance.GET("/:id", clearanceHandler.Get)
				clearance.POST("/:id/decision", staff, clearanceHandler.Decide)
				clearance.POST("/:id/certificate", clearanceHandler.ExportCertificate)
			}

			conversations := protected.Group("/conversations")
			{
				conversations.GET("", messagingHandler.List)
				conversations.POST("/direct", messagingHandler.StartDirect)
				conversations.POST("/group", messagingHandler.CreateGroup)
				conversations.GET("/:id/messages", messagingHandler.Messages)
				conversations.POST("/:id/messages", messagingHandler.Send)
			}

			departmentAudit := middleware.Audit(userRepo, models.AuditActionDepartmentWrite, "department")
			departments := protected.Group("/departments")
			{
				departments.GET("", orgHandler.ListDepartments)
				departments.POST("", adminOnly, departmentAudit, orgHandler.CreateDepartment)
				departments.PUT("/:id", adminOnly, departmentAudit, orgHandler.UpdateDepartment)
			}

			clubAudit := middleware.Audit(userRepo, models.AuditActionClubWrite, "club")
			clubs := protected.Group("/clubs")
			{
				clubs.GET("", orgHandler.ListClubs)
				clubs.POST("", adminOnly, clubAudit, orgHandler.CreateClub)
				clubs.PUT("/:id", adminOnly, clubAudit, orgHandler.UpdateClub)
				clubs.GET("/:id/members", staff, orgHandler.ClubMembers)
				clubs.POST("/:id/members", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleClubAdmin), orgHandler.JoinClub)
				clubs.POST("/:id/points", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleClubAdmin), orgHandler.AdjustPoints)
				clubs.GET("/:id/points/:studentId", staff, orgHandler.PointHistory)
			}

			events := protected.Group("/events")
			{
				events.GET("", eventHandler.List)
				events.POST("", staff, eventHandler.Create)
				events.POST("/check-in", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleSSGAdmin, models.RoleOIC), eventHandler.CheckIn)
				events.GET("/:id", eventHandler.Get)
				events.PUT("/:id", staff, eventHandler.Update)
				events.GET("/:id/attendance", staff, eventHandler.Attendance)
				events.POST("/:id/attendance/export", staff, eventHandler.ExportAttendance)
			}

			notifications := protected.Group("/notifications")
			{
				notifications.GET("", notificationHandler.List)
				notifications.POST("", staff, notificationHandler.Create)
				notifications.POST("/draft", staff, notificationHandler.Draft)
				notifications.GET("/:id", notificationHandler.Get)
				notifications.POST("/:id/publish", staff, notificationHandler.Publish)
			}

			protected.GET("/ops/metrics", adminOnly, opsHandler.Snapshot)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
