package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/sgpt-dev/sgpt-api/api/swagger"
	"github.com/sgpt-dev/sgpt-api/internal/handler"
	internalmiddleware "github.com/sgpt-dev/sgpt-api/internal/middleware"
	"github.com/sgpt-dev/sgpt-api/internal/models"
	"github.com/sgpt-dev/sgpt-api/internal/repository"
	"github.com/sgpt-dev/sgpt-api/internal/service"
	"github.com/sgpt-dev/sgpt-api/pkg/cache"
	"github.com/sgpt-dev/sgpt-api/pkg/config"
	"github.com/sgpt-dev/sgpt-api/pkg/database"
	"github.com/sgpt-dev/sgpt-api/pkg/export"
	"github.com/sgpt-dev/sgpt-api/pkg/jobs"
	"github.com/sgpt-dev/sgpt-api/pkg/logger"
	corsmiddleware "github.com/sgpt-dev/sgpt-api/pkg/middleware/cors"
	reqidmiddleware "github.com/sgpt-dev/sgpt-api/pkg/middleware/requestid"
	"github.com/sgpt-dev/sgpt-api/pkg/storage"
)

// @title SGPT API
// @version 1.0.0
// @description Backend del sistema de gestión de proyectos de titulación
// @BasePath /api
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	if err := database.Migrate(cfg.Database); err != nil {
		logr.Sugar().Fatalw("failed to run migrations", "error", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, stats caching disabled", "error", err)
		redisClient = nil
	}

	fileStorage, err := storage.NewLocalStorage(cfg.Files.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init file storage", "error", err)
	}
	reportStorage, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}

	fileSigner := storage.NewSignedURLSigner(cfg.Files.SignedURLSecret, cfg.Files.SignedURLTTL)
	reportSigner := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	observationRepo := repository.NewObservationRepository(db)
	fileRepo := repository.NewFileRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	chatRepo := repository.NewChatRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, auditRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, auditRepo, nil, logr)
	projectSvc := service.NewProjectService(projectRepo, observationRepo, userRepo, cacheRepo, auditRepo, nil, logr, cfg.Stats.CacheTTL)
	projectSvc.SetMetrics(metricsSvc)

	fileSvc := service.NewFileService(fileRepo, projectRepo, fileStorage, fileSigner, auditRepo, logr, service.FileConfig{
		MaxSizeBytes: cfg.Files.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Files.AllowedMIMEs,
	})

	assistantClient := service.NewAssistantClient(service.AssistantClientConfig{
		BaseURL: cfg.Assistant.BaseURL,
		APIKey:  cfg.Assistant.APIKey,
		Model:   cfg.Assistant.Model,
		Timeout: cfg.Assistant.Timeout,
	}, logr)
	assistantClient.SetMetrics(metricsSvc)

	chatSvc := service.NewChatService(chatRepo, assistantClient, fileStorage, nil, logr)
	canvasSvc := service.NewCanvasService(projectRepo, assistantClient, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, logr)
	auditSvc := service.NewAuditService(auditRepo)

	reportSvc := service.NewReportService(reportRepo, projectRepo, userRepo, observationRepo, reportStorage, reportSigner, export.NewProjectPDFExporter(), logr, service.ReportConfig{
		RetentionTTL: cfg.Reports.SignedURLTTL,
		DownloadPath: cfg.APIPrefix + "/reportes/descargar",
	})
	reportSvc.SetMetrics(metricsSvc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var reportQueue *jobs.Queue
	if cfg.Reports.Enabled {
		reportQueue = jobs.NewQueue("reports", reportSvc.Process, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		reportSvc.SetQueue(reportQueue)
		reportQueue.Start(ctx)
		defer reportQueue.Stop()

		go func() {
			ticker := time.NewTicker(cfg.Reports.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					reportSvc.Cleanup()
				}
			}
		}()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	projectHandler := handler.NewProjectHandler(projectSvc)
	fileHandler := handler.NewFileHandler(fileSvc)
	chatHandler := handler.NewChatHandler(chatSvc)
	canvasHandler := handler.NewCanvasHandler(canvasSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	auditHandler := handler.NewAuditHandler(auditSvc)
	reportHandler := handler.NewReportHandler(reportSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/registro", authHandler.Register)
		auth.POST("/refresh", authHandler.Refresh)

		session := auth.Group("", internalmiddleware.JWT(authSvc))
		session.GET("/perfil", authHandler.Profile)
		session.POST("/logout", authHandler.Logout)
		session.PUT("/password", authHandler.ChangePassword)
	}

	api.GET("/usuarios/verificar-email", userHandler.CheckEmail)

	usuarios := api.Group("/usuarios", internalmiddleware.JWT(authSvc))
	{
		usuarios.GET("", internalmiddleware.RequireRoles(models.RoleAdmin), userHandler.List)
		usuarios.POST("", internalmiddleware.RequireRoles(models.RoleAdmin), userHandler.Create)
		usuarios.GET("/:id", internalmiddleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
		usuarios.PUT("/:id", internalmiddleware.RequireRoles(models.RoleAdmin), userHandler.Update)
		usuarios.DELETE("/:id", internalmiddleware.RequireRoles(models.RoleAdmin), userHandler.Delete)
	}

	proyectos := api.Group("/proyectos", internalmiddleware.JWT(authSvc))
	{
		proyectos.GET("", projectHandler.List)
		proyectos.POST("", internalmiddleware.RequireRoles(models.RoleStudent), projectHandler.Create)
		proyectos.GET("/estadisticas", internalmiddleware.RequireRoles(models.RoleAdmin), projectHandler.Stats)
		proyectos.GET("/grafico", internalmiddleware.RequireRoles(models.RoleAdmin), projectHandler.Series)
		proyectos.GET("/:id", projectHandler.Get)
		proyectos.PUT("/:id", projectHandler.Update)
		proyectos.DELETE("/:id", projectHandler.Delete)
		proyectos.PATCH("/:id/estado", projectHandler.ChangeStatus)
		proyectos.PATCH("/:id/asignar-tutor", internalmiddleware.RequireRoles(models.RoleAdmin), projectHandler.AssignTutor)
		proyectos.GET("/:id/observaciones", projectHandler.Observations)
		proyectos.POST("/:id/observaciones", internalmiddleware.RequireRoles(models.RoleTutor, models.RoleAdmin), projectHandler.AddObservation)
		proyectos.GET("/:id/archivos", fileHandler.List)
		proyectos.POST("/:id/archivos", fileHandler.Upload)
		proyectos.POST("/:id/reporte", reportHandler.Enqueue)
	}

	// Signed-token downloads carry their own auth in the token.
	api.GET("/archivos/descargar", fileHandler.Download)
	archivos := api.Group("/archivos", internalmiddleware.JWT(authSvc))
	{
		archivos.GET("/:id/descargar", fileHandler.Sign)
		archivos.DELETE("/:id", fileHandler.Delete)
	}

	chat := api.Group("/chat", internalmiddleware.JWT(authSvc))
	{
		chat.POST("/mensaje", chatHandler.SendMessage)
		chat.GET("/conversaciones", chatHandler.ListConversations)
		chat.POST("/conversaciones", chatHandler.CreateConversation)
		chat.GET("/conversaciones/:id/mensajes", chatHandler.History)
		chat.GET("/historial", chatHandler.History)
		chat.DELETE("/conversaciones/:id", chatHandler.DeleteConversation)
		chat.POST("/upload", chatHandler.Upload)
		chat.POST("/archivos", chatHandler.Upload)
	}

	// EventSource cannot send headers; the SSE routes authenticate via ?token=.
	canvas := api.Group("/canvas", internalmiddleware.JWTQuery(authSvc))
	{
		canvas.GET("/generar-capitulo-stream", canvasHandler.Generate)
		canvas.GET("/generar-resumen-stream", canvasHandler.GenerateSummary)
		canvas.GET("/generar-stream", canvasHandler.Generate)
	}

	notificaciones := api.Group("/notificaciones", internalmiddleware.JWT(authSvc))
	{
		notificaciones.GET("", notificationHandler.List)
		notificaciones.PATCH("/leer-todas", notificationHandler.MarkAllRead)
		notificaciones.PATCH("/leidas", notificationHandler.MarkAllRead)
		notificaciones.PATCH("/:id/leer", notificationHandler.MarkRead)
		notificaciones.PATCH("/:id/leida", notificationHandler.MarkRead)
	}

	api.GET("/auditoria", internalmiddleware.JWT(authSvc), internalmiddleware.RequireRoles(models.RoleAdmin), auditHandler.List)

	api.GET("/reportes/descargar", reportHandler.Download)
	api.GET("/reportes/:id", internalmiddleware.JWT(authSvc), reportHandler.Status)

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

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
