package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/impact-assessment-api/internal/middleware"
	"github.com/noah-isme/impact-assessment-api/internal/models"
)

// RouterConfig collects the collaborators needed to mount the HTTP surface.
type RouterConfig struct {
	APIPrefix      string
	EnableDocs     bool
	Logger         *zap.Logger
	Impact         *ImpactAssessmentHandler
	Metrics        *MetricsHandler
	Authenticate   gin.HandlerFunc
	AuditRecorder  middleware.AuditRecorder
	HTTPMiddleware []gin.HandlerFunc
}

// RegisterRoutes mounts every endpoint on r.
func RegisterRoutes(r *gin.Engine, cfg RouterConfig) {
	for _, mw := range cfg.HTTPMiddleware {
		r.Use(mw)
	}

	if cfg.Metrics != nil {
		r.GET("/health", cfg.Metrics.Health)
		r.GET("/ready", cfg.Metrics.Ready)
		r.GET("/metrics", cfg.Metrics.Prometheus)
	}
	if cfg.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	impact := api.Group("/impact-assessments")
	impact.POST("", cfg.Impact.Create)

	secured := impact.Group("")
	if cfg.Authenticate != nil {
		secured.Use(cfg.Authenticate)
	}
	secured.GET("", cfg.Impact.List)
	secured.GET("/statistics", cfg.Impact.Statistics)
	secured.GET("/export/csv", cfg.Impact.ExportCSV)
	secured.GET("/export/xlsx", cfg.Impact.ExportXLSX)
	secured.GET("/export/pdf", cfg.Impact.ExportPDF)
	secured.POST("/bulk/delete",
		middleware.RequireRoles(models.ImpactDeleteRoles...),
		middleware.Audit(cfg.AuditRecorder, cfg.Logger, models.AuditActionImpactBulkDelete, models.AuditResourceImpactAssessments),
		cfg.Impact.BulkDelete)
	secured.GET("/:id", cfg.Impact.Get)
	secured.PATCH("/:id", cfg.Impact.Update)
	secured.DELETE("/:id",
		middleware.RequireRoles(models.ImpactDeleteRoles...),
		middleware.Audit(cfg.AuditRecorder, cfg.Logger, models.AuditActionImpactDelete, models.AuditResourceImpactAssessments),
		cfg.Impact.Delete)
	secured.POST("/:id/verify",
		middleware.RequireRoles(models.ImpactVerifyRoles...),
		middleware.Audit(cfg.AuditRecorder, cfg.Logger, models.AuditActionImpactVerify, models.AuditResourceImpactAssessments),
		cfg.Impact.Verify)
}
