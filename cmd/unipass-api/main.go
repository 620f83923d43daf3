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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/harsha-e/unipass-api/api/swagger"
	"github.com/harsha-e/unipass-api/internal/handler"
	"github.com/harsha-e/unipass-api/internal/middleware"
	"github.com/harsha-e/unipass-api/internal/models"
	"github.com/harsha-e/unipass-api/internal/repository"
	"github.com/harsha-e/unipass-api/internal/service"
	"github.com/harsha-e/unipass-api/pkg/cache"
	"github.com/harsha-e/unipass-api/pkg/config"
	"github.com/harsha-e/unipass-api/pkg/database"
	"github.com/harsha-e/unipass-api/pkg/export"
	"github.com/harsha-e/unipass-api/pkg/logger"
	corsmiddleware "github.com/harsha-e/unipass-api/pkg/middleware/cors"
	reqidmiddleware "github.com/harsha-e/unipass-api/pkg/middleware/requestid"
	"github.com/harsha-e/unipass-api/pkg/storage"
)

// @title UNI-Pass API
// @version 1.0.0
// @description Campus gate-pass approval workflow
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	permRepo := repository.NewPermissionRepository(db)
	eventRepo := repository.NewPermissionEventRepository(db)
	reasonRepo := repository.NewReasonRepository(db)
	reportRepo := repository.NewDisciplinaryRepository(db)
	otpRepo := repository.NewOTPRepository(redisClient)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	var limiterStore service.RateLimitStore
	if cfg.RateLimit.Backend == config.RateLimitBackendRedis {
		limiterStore = repository.NewRedisRateLimitStore(redisClient)
	} else {
		limiterStore = repository.NewRateLimitRepository(db)
	}

	// Pass artifact plumbing.
	files, err := storage.NewLocalStorage(cfg.Passes.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare pass storage", "error", err)
	}
	urlSigner := storage.NewSignedURLSigner(cfg.Passes.SignedURLSecret, cfg.Passes.SignedURLTTL)
	renderer := export.NewPassRenderer("", "")

	// Services.
	metricsSvc := service.NewMetricsService()
	identitySvc := service.NewIdentityService(userRepo, logr)
	limiterSvc := service.NewRateLimitService(limiterStore, cfg.RateLimit, logr)
	reasonSvc := service.NewReasonService(reasonRepo, logr)
	verificationSvc := service.NewVerificationService(permRepo, cfg.Passes, validate, logr)
	passSvc := service.NewPassService(permRepo, verificationSvc, renderer, files, urlSigner, cfg.Passes, logr).
		WithRenderMetrics(metricsSvc)
	permOpts := []service.PermissionServiceOption{
		service.WithPassIssuer(passSvc),
		service.WithTransitionObserver(metricsSvc),
	}
	if cfg.Cache.Enabled {
		permOpts = append(permOpts,
			service.WithReviewCache(cacheRepo, cfg.Cache.TTL),
			service.WithCacheMetrics(metricsSvc))
	}
	permSvc := service.NewPermissionService(permRepo, reasonSvc, eventRepo, cfg.Workflow, validate, logr, permOpts...)
	disciplinarySvc := service.NewDisciplinaryService(reportRepo, userRepo, validate, logr)
	authSvc := service.NewAuthService(userRepo, otpRepo, nil, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "unipass-api",
		OTPTTL:             cfg.OTP.TTL,
		OTPLength:          cfg.OTP.Length,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	passSvc.Start(ctx)
	defer passSvc.Stop()

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	permHandler := handler.NewPermissionHandler(permSvc)
	passHandler := handler.NewPassHandler(passSvc)
	verificationHandler := handler.NewVerificationHandler(verificationSvc)
	disciplinaryHandler := handler.NewDisciplinaryHandler(disciplinarySvc)
	userHandler := handler.NewUserHandler(userSvc)
	reasonHandler := handler.NewReasonHandler(reasonSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/otp/request", authHandler.RequestOTP)
		auth.POST("/otp/verify", authHandler.VerifyOTP)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authSvc), middleware.Identity(identitySvc), authHandler.Me)
	}

	// Gate boundary: no user session, guarded by client key / token.
	verification := api.Group("/verification")
	{
		verification.POST("/tokens",
			middleware.Audit(userRepo, models.AuditActionPassIssue, "verification"),
			verificationHandler.IssueToken)
		verification.GET("/verify", verificationHandler.Verify)
	}
	api.GET("/passes/download", passHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc), middleware.Identity(identitySvc))
	{
		authed.GET("/reasons", reasonHandler.List)

		perms := authed.Group("/permissions")
		{
			perms.POST("",
				middleware.RequireRoles(models.RoleStudent),
				middleware.RateLimit(limiterSvc, metricsSvc, "create_permission"),
				permHandler.Create)
			perms.GET("/mine", permHandler.ListMine)
			perms.GET("", middleware.RequireRoles(models.RoleHOD, models.RoleAdmin), permHandler.ReviewQueue)
			perms.GET("/pending", middleware.RequireRoles(models.RoleTeacher), permHandler.PendingTeacher)
			perms.GET("/:id", permHandler.Get)
			perms.GET("/:id/history", permHandler.History)
			perms.GET("/:id/events", permHandler.Timeline)
			perms.POST("/:id/teacher-decision",
				middleware.RequireRoles(models.RoleTeacher),
				middleware.RateLimit(limiterSvc, metricsSvc, "teacher_decision"),
				permHandler.TeacherDecide)
			perms.POST("/:id/hod-decision",
				middleware.RequireRoles(models.RoleHOD),
				middleware.RateLimit(limiterSvc, metricsSvc, "hod_decision"),
				permHandler.HodDecide)
			perms.POST("/:id/reject",
				middleware.RequireRoles(models.RoleTeacher, models.RoleHOD),
				middleware.RateLimit(limiterSvc, metricsSvc, "reject_permission"),
				permHandler.Reject)
			perms.POST("/:id/block",
				middleware.RequireRoles(models.RoleTeacher, models.RoleHOD, models.RoleAdmin),
				permHandler.Block)
		}

		authed.GET("/passes/:id/download-link", passHandler.DownloadLink)

		disciplinary := authed.Group("/disciplinary")
		disciplinary.Use(middleware.RequireRoles(models.RoleTeacher, models.RoleHOD, models.RoleAdmin))
		{
			disciplinary.POST("/reports",
				middleware.RateLimit(limiterSvc, metricsSvc, "disciplinary_report"),
				middleware.Audit(userRepo, models.AuditActionReportCreate, "disciplinary"),
				disciplinaryHandler.Report)
			disciplinary.GET("/reports", disciplinaryHandler.List)
			disciplinary.POST("/execute-block",
				middleware.RequireRoles(models.RoleHOD, models.RoleAdmin),
				middleware.Audit(userRepo, models.AuditActionBlockExecute, "disciplinary"),
				disciplinaryHandler.ExecuteBlock)
		}

		users := authed.Group("/users")
		users.Use(middleware.RequireRoles(models.RoleTeacher, models.RoleHOD, models.RoleAdmin))
		{
			users.GET("", userHandler.List)
			users.GET("/:id", userHandler.Get)
			users.POST("/:id/approve", userHandler.Approve)
			users.POST("/:id/block", middleware.RequireRoles(models.RoleHOD, models.RoleAdmin), userHandler.Block)
			users.POST("/:id/unblock", middleware.RequireRoles(models.RoleHOD, models.RoleAdmin), userHandler.Unblock)
			users.POST("/import", middleware.RequireRoles(models.RoleAdmin), userHandler.BulkImport)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
