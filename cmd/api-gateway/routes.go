package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/handler"
	"github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/config"
)

type routeDeps struct {
	cfg            *config.Config
	logger         *zap.Logger
	auth           *service.AuthService
	metrics        *handler.MetricsHandler
	metricsSvc     *service.MetricsService
	timetables     *handler.TimetableHandler
	substitutes    *handler.SubstituteHandler
	rearrangements *handler.RearrangementHandler
	leaves         *handler.LeaveHandler
	notifications  *handler.NotificationHandler
	exports        *handler.ExportHandler
}

func registerRoutes(r *gin.Engine, d routeDeps) {
	r.Use(middleware.Metrics(d.metricsSvc))

	r.GET("/health", d.metrics.Health)
	r.GET("/ready", d.metrics.Ready)
	r.GET("/metrics", d.metrics.Prometheus)
	if d.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := d.cfg.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)
	api.Use(middleware.WithResponseMeta())

	// the signed token is the credential
	api.GET("/exports/:token", d.exports.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(d.auth))

	planners := middleware.RequireRoles(models.RoleAdmin, models.RoleHOD)
	staff := middleware.RequireRoles(models.RoleFaculty, models.RoleHOD, models.RoleAdmin)

	timetables := secured.Group("/timetables")
	timetables.POST("/generate", planners, d.timetables.Generate)
	timetables.POST("/publish", planners, middleware.Audit(d.logger, "timetable.publish"), d.timetables.Publish)
	timetables.GET("/live", d.timetables.Live)
	timetables.GET("/versions", d.timetables.Versions)
	timetables.GET("/faculty-consolidated", d.timetables.FacultyConsolidated)
	timetables.GET("/:id", d.timetables.Get)
	timetables.POST("/:id/export", planners, d.exports.Export)

	secured.GET("/substitutes", staff, d.substitutes.Available)

	rearrangements := secured.Group("/rearrangements")
	rearrangements.POST("", staff, middleware.Audit(d.logger, "rearrangement.create"), d.rearrangements.Create)
	rearrangements.GET("", d.rearrangements.List)
	rearrangements.POST("/absence", planners, middleware.Audit(d.logger, "rearrangement.absence"), d.rearrangements.Absence)
	rearrangements.GET("/:id", d.rearrangements.Get)
	rearrangements.POST("/:id/respond", staff, middleware.Audit(d.logger, "rearrangement.respond"), d.rearrangements.Respond)

	leaves := secured.Group("/leaves")
	leaves.POST("", middleware.RequireRoles(models.RoleFaculty, models.RoleHOD), d.leaves.Apply)
	leaves.GET("", d.leaves.List)
	leaves.POST("/:id/review", planners, middleware.Audit(d.logger, "leave.review"), d.leaves.Review)

	notifications := secured.Group("/notifications")
	notifications.GET("", d.notifications.List)
	notifications.POST("/:id/read", d.notifications.MarkRead)
}
