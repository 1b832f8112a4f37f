package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"civictrack/config"
	"civictrack/controllers"
	"civictrack/media"
	"civictrack/metrics"
	"civictrack/middlewares"
	"civictrack/repository"
	"civictrack/routes"
	"civictrack/services"
	"civictrack/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := config.SetupLogger(cfg)
	if err := middlewares.RegisterValidators(); err != nil {
		log.Fatalf("Failed to register validators: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoClient, db, err := config.ConnectMongo(ctx, cfg.Mongo)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()
	logger.Info("MongoDB connection established")

	redisClient, err := config.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	issueRepo := repository.NewMongoIssueRepository(db)
	userRepo := repository.NewMongoUserRepository(db)
	departmentRepo := repository.NewMongoDepartmentRepository(db)
	notificationRepo := repository.NewMongoNotificationRepository(db)
	for _, ix := range []interface {
		EnsureIndexes(context.Context) error
	}{issueRepo, userRepo, departmentRepo, notificationRepo} {
		if err := ix.EnsureIndexes(ctx); err != nil {
			log.Fatalf("Failed to create indexes: %v", err)
		}
	}

	if err := config.SeedDepartments(ctx, departmentRepo); err != nil {
		log.Fatalf("Failed to seed departments: %v", err)
	}
	if err := config.SeedAdmin(ctx, userRepo, cfg.Admin); err != nil {
		log.Fatalf("Failed to seed admin: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	hub := ws.NewHub(logger)

	publicDir := filepath.Join(cfg.UploadDir, "public")
	var store media.Store = media.NewLocalStore(publicDir, "/uploads")
	if cfg.Cloudinary.Enabled() {
		cld, err := media.NewCloudinaryStore(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
		if err != nil {
			log.Fatalf("Failed to configure Cloudinary: %v", err)
		}
		store = cld
	} else {
		logger.Warn("Cloudinary not configured, storing media on local disk", "dir", publicDir)
	}

	notificationService := services.NewNotificationService(notificationRepo, userRepo, departmentRepo, hub, m, logger)
	router := services.NewDepartmentRouter(departmentRepo, logger)
	issueService := services.NewIssueService(
		issueRepo,
		services.NewGeoDedupChecker(issueRepo, m),
		router,
		services.NewRewardLedger(userRepo, m),
		notificationService,
		services.NewMediaUploader(store, m, logger),
		m,
		logger,
	)
	authService := services.NewAuthService(userRepo)
	departmentService := services.NewDepartmentService(departmentRepo, userRepo, issueRepo, logger)
	analyticsService := services.NewAnalyticsService(issueRepo, departmentRepo)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), middlewares.CORS(cfg.FrontendURL))
	r.MaxMultipartMemory = 32 << 20

	auth := middlewares.AuthMiddleware(cfg.JWT.Secret, userRepo)
	limiter := middlewares.IssueRateLimiter(redisClient, cfg.Redis.IssueLimitQueue, cfg.Redis.IssueDailyLimit, m)

	routes.IssueRoutes(r, controllers.NewIssueController(issueService, cfg.UploadDir), auth, limiter)
	routes.NotificationRoutes(r, controllers.NewNotificationController(notificationService), auth)
	routes.RealtimeRoutes(r, controllers.NewWSController(hub, cfg.FrontendURL), middlewares.WSAuthMiddleware(cfg.JWT.Secret, userRepo))

	api := r.Group("/api/v1")
	routes.AuthRoutes(api, controllers.NewAuthController(authService, cfg.JWT.Secret, cfg.JWT.TTL, cfg.CookieDomain, cfg.IsProduction()), auth)
	routes.DepartmentRoutes(api, controllers.NewDepartmentController(departmentService), auth)
	routes.AnalyticsRoutes(api, controllers.NewAnalyticsController(analyticsService), auth)

	r.Static("/uploads", publicDir)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
