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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/campus-events-api/api/swagger"
	"github.com/noah-isme/campus-events-api/internal/handler"
	internalmiddleware "github.com/noah-isme/campus-events-api/internal/middleware"
	"github.com/noah-isme/campus-events-api/internal/models"
	"github.com/noah-isme/campus-events-api/internal/repository"
	"github.com/noah-isme/campus-events-api/internal/service"
	"github.com/noah-isme/campus-events-api/pkg/cache"
	"github.com/noah-isme/campus-events-api/pkg/config"
	"github.com/noah-isme/campus-events-api/pkg/database"
	"github.com/noah-isme/campus-events-api/pkg/export"
	"github.com/noah-isme/campus-events-api/pkg/jobs"
	"github.com/noah-isme/campus-events-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-events-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-events-api/pkg/middleware/requestid"
	"github.com/noah-isme/campus-events-api/pkg/storage"
)

// @title Campus Events API
// @version 1.0.0
// @description Event registration, attendance and certificate service
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type auditSink interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

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

	checks := map[string]handler.ReadinessCheck{}

	var (
		store service.EventStore
		audit auditSink
	)
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		store = repository.NewMemoryEventRepository()
		logr.Warn("using in-memory event store, data is lost on restart")
	default:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer db.Close() //nolint:errcheck
		store = repository.NewEventRepository(db)
		audit = repository.NewAuditRepository(db)
		checks["database"] = pingDB(db)
	}

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, event cache disabled", zap.Error(err))
		} else {
			defer client.Close() //nolint:errcheck
			cacheRepo = repository.NewCacheRepository(client)
			checks["redis"] = pingRedis(client)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled && cacheRepo != nil)

	mediaFiles, err := storage.NewLocalStorage(cfg.Media.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare media storage", zap.Error(err))
	}
	mediaStore := storage.NewMediaStore(mediaFiles, cfg.Media.PublicBaseURL)

	exportFiles, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	clock := service.SystemClock()
	schedule := models.Schedule{
		Location:    cfg.Events.Location(),
		DefaultTime: cfg.Events.DefaultStartTime,
		Window:      cfg.Events.AttendanceWindow,
	}

	tokenSvc := service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiration,
	}, clock)
	qrSvc := service.NewQRTokenService(cfg.JWT.Secret, cfg.Events.QRTokenTTL, clock)

	mediaSvc := service.NewMediaService(mediaStore, service.MediaConfig{
		MaxImageSize: cfg.Media.MaxImageSizeBytes,
		MaxDimension: cfg.Media.ImageMaxDimension,
	}, logr)
	eventSvc := service.NewEventService(store, mediaSvc, cacheSvc, audit, validator.New(), logr)
	registrationSvc := service.NewRegistrationService(store, schedule, clock, cacheSvc, metricsSvc, audit, logr)
	attendanceSvc := service.NewAttendanceService(store, qrSvc, schedule, clock, cfg.Events.FrontendURL, cacheSvc, metricsSvc, audit, logr)
	certificateSvc := service.NewCertificateService(store, export.NewCertificateRenderer(), mediaStore, cfg.Certificates.Organizer, cacheSvc, metricsSvc, audit, logr)
	exportSvc := service.NewExportService(store, exportFiles, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, clock, metricsSvc, audit, logr)

	certificateQueue := jobs.NewQueue("certificates", certificateSvc.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Certificates.Workers,
		MaxRetries: cfg.Certificates.Retries,
		RetryDelay: cfg.Certificates.RetryDelay,
		Logger:     logr,
	})
	certificateSvc.UseQueue(certificateQueue)
	certificateQueue.Start(ctx)
	defer certificateQueue.Stop()

	go runExportCleanup(ctx, exportSvc, cfg.Exports.SignedURLTTL)

	eventHandler := handler.NewEventHandler(eventSvc, registrationSvc, cfg.Media.MaxImageSizeBytes)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	certificateHandler := handler.NewCertificateHandler(certificateSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if cfg.Metrics.Enabled {
		r.Use(internalmiddleware.Metrics(metricsSvc))
		r.GET("/metrics", metricsHandler.Prometheus)
	}

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.Static("/media", mediaFiles.Dir())

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	authed := api.Group("", internalmiddleware.JWT(tokenSvc))
	authed.GET("/metrics/snapshot", internalmiddleware.RequireRoles(models.RoleAdmin), metricsHandler.Snapshot)
	registerEventRoutes(api, authed, routeHandlers{
		events:       eventHandler,
		attendance:   attendanceHandler,
		certificates: certificateHandler,
		exports:      exportHandler,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "storage", cfg.StorageDriver)
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

type routeHandlers struct {
	events       *handler.EventHandler
	attendance   *handler.AttendanceHandler
	certificates *handler.CertificateHandler
	exports      *handler.ExportHandler
}

// registerEventRoutes mounts the event API. Browsing the catalogue and
// downloading a signed export need no token; everything else goes through authed.
func registerEventRoutes(public, authed *gin.RouterGroup, h routeHandlers) {
	adminOnly := internalmiddleware.RequireRoles(models.RoleAdmin)
	studentOnly := internalmiddleware.RequireRoles(models.RoleStudent)

	public.GET("/exports/download", h.exports.Download)
	public.GET("/events", h.events.List)
	public.GET("/events/:id", h.events.Get)

	events := authed.Group("/events")
	events.POST("", adminOnly, h.events.Create)
	events.GET("/registered", studentOnly, h.events.Registered)
	events.POST("/scan", studentOnly, h.attendance.Scan)
	events.PUT("/:id", adminOnly, h.events.Update)
	events.DELETE("/:id", adminOnly, h.events.Delete)
	events.POST("/:id/register", studentOnly, h.events.Register)
	events.POST("/:id/attendance", studentOnly, h.attendance.Mark)
	events.GET("/:id/attendance-qrcode", adminOnly, h.attendance.QRCode)
	events.GET("/:id/attendance/export", adminOnly, h.exports.Export)
	events.POST("/:id/certificates/generate", adminOnly, h.certificates.Generate)
}

func runExportCleanup(ctx context.Context, exports *service.ExportService, every time.Duration) {
	if every <= 0 {
		every = time.Hour
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			exports.CleanupExpired()
		}
	}
}

func pingDB(db *sqlx.DB) handler.ReadinessCheck {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}

func pingRedis(client *redis.Client) handler.ReadinessCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
