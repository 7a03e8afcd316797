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
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/impact-assessment-api/api/swagger"
	"github.com/noah-isme/impact-assessment-api/internal/handler"
	internalmiddleware "github.com/noah-isme/impact-assessment-api/internal/middleware"
	"github.com/noah-isme/impact-assessment-api/internal/repository"
	"github.com/noah-isme/impact-assessment-api/internal/service"
	"github.com/noah-isme/impact-assessment-api/pkg/cache"
	"github.com/noah-isme/impact-assessment-api/pkg/config"
	"github.com/noah-isme/impact-assessment-api/pkg/database"
	"github.com/noah-isme/impact-assessment-api/pkg/jobs"
	"github.com/noah-isme/impact-assessment-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/impact-assessment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/impact-assessment-api/pkg/middleware/requestid"
	"github.com/noah-isme/impact-assessment-api/pkg/validation"
)

// @title Impact Assessment API
// @version 1.0.0
// @description School impact reporting, verification, statistics and exports
// @BasePath /
// @schemes http https
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

	startupCtx := context.Background()
	db, err := database.NewPostgres(startupCtx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Statistics.CacheEnabled {
		redisClient, err = cache.NewRedis(startupCtx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, statistics cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	location, err := time.LoadLocation(cfg.Export.Timezone)
	if err != nil {
		logr.Warn("unknown export timezone, falling back to UTC", zap.String("timezone", cfg.Export.Timezone), zap.Error(err))
		location = time.UTC
	}

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	impactRepo := repository.NewImpactAssessmentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Statistics.CacheTTL, logr, redisClient != nil)
	exportSvc := service.NewExportService(location, logr, nil, nil, nil)
	impactSvc := service.NewImpactAssessmentService(impactRepo, validation.New(), cacheSvc, metricsSvc, exportSvc, logr, service.ImpactAssessmentConfig{
		StatisticsTTL: cfg.Statistics.CacheTTL,
		ExportMaxRows: cfg.Export.MaxRows,
	})
	auditSvc := service.NewAuditService(auditRepo, logr, jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.QueueSize,
		MaxRetries: 3,
		Logger:     logr,
	})
	auditSvc.Start(context.Background())
	tokenValidator := service.NewTokenValidator(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	r := gin.New()
	handler.RegisterRoutes(r, handler.RouterConfig{
		APIPrefix:  cfg.APIPrefix,
		EnableDocs: cfg.Env != config.EnvProduction,
		Logger:     logr,
		Impact:     handler.NewImpactAssessmentHandler(impactSvc),
		Metrics: handler.NewMetricsHandler(metricsSvc, map[string]handler.Pinger{
			"database": handler.PingFunc(func(ctx context.Context) error { return db.PingContext(ctx) }),
			"cache":    cacheRepo,
		}),
		Authenticate:  internalmiddleware.JWT(tokenValidator),
		AuditRecorder: auditSvc,
		HTTPMiddleware: []gin.HandlerFunc{
			gin.Recovery(),
			reqidmiddleware.Middleware(),
			logger.GinMiddleware(logr),
			corsmiddleware.New(cfg.CORS.AllowedOrigins),
			internalmiddleware.Metrics(metricsSvc),
		},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "statistics_cache", cacheSvc.Enabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Audit.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("server forced to shutdown", zap.Error(err))
	}
	auditSvc.Stop(ctx)
}
