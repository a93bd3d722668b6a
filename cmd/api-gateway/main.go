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
	"go.uber.org/zap"

	_ "github.com/noah-isme/timetable-api/api/swagger"
	"github.com/noah-isme/timetable-api/internal/handler"
	"github.com/noah-isme/timetable-api/internal/repository"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/cache"
	"github.com/noah-isme/timetable-api/pkg/config"
	"github.com/noah-isme/timetable-api/pkg/database"
	"github.com/noah-isme/timetable-api/pkg/jobs"
	"github.com/noah-isme/timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/timetable-api/pkg/middleware/requestid"
	"github.com/noah-isme/timetable-api/pkg/storage"
)

// @title Timetable API
// @version 1.0.0
// @description Timetable generation, publishing and substitute rearrangement for academic departments.
// @BasePath /api/v1
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	deps := map[string]handler.Pinger{"postgres": handler.PingFunc(db.PingContext)}

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, live timetable cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			cacheRepo = repository.NewCacheRepository(client, logr)
			deps["redis"] = handler.PingFunc(cache.Ping(client))
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled && cacheRepo != nil)

	subjectRepo := repository.NewSubjectRepository(db)
	facultyRepo := repository.NewFacultyRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	rearrangementRepo := repository.NewRearrangementRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	leaveRepo := repository.NewLeaveRepository(db)
	userRepo := repository.NewUserRepository(db)

	validate := validator.New()

	notifications := service.NewNotificationService(notificationRepo, userRepo, metrics, logr)
	queue := jobs.NewQueue("notifications", notifications.Handle, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.Retries,
		Logger:     logr,
		OnDead:     notifications.OnDead,
	})
	notifications.UseQueue(queue)
	queue.Start(ctx)
	defer queue.Stop()

	generator := scheduler.NewGenerator(schedulerConfig(cfg.Scheduler), cfg.Scheduler.Parallel)
	timetables := service.NewTimetableService(
		subjectRepo, facultyRepo, classroomRepo, timetableRepo, generator, db,
		cacheSvc, notifications, metrics, validate, logr,
		service.TimetableServiceConfig{
			Candidates:  cfg.Scheduler.Candidates,
			ProposalTTL: cfg.Scheduler.ProposalTTL,
			CacheTTL:    cfg.Cache.TTL,
		},
	)
	substitutes := service.NewSubstituteService(facultyRepo, timetableRepo, rearrangementRepo, logr)
	rearrangements := service.NewRearrangementService(
		rearrangementRepo, facultyRepo, timetableRepo, substitutes, db,
		cacheSvc, notifications, metrics, validate, logr,
	)
	leaves := service.NewLeaveService(leaveRepo, facultyRepo, rearrangements, notifications, validate, logr, cfg.Leave.MaxDays)

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return fmt.Errorf("prepare export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exports := service.NewExportService(timetableRepo, files, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, validate, logr, nil, nil)
	go runExportCleanup(ctx, exports, cfg.Exports.CleanupInterval, logr)

	auth := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	registerRoutes(r, routeDeps{
		cfg:            cfg,
		logger:         logr,
		auth:           auth,
		metrics:        handler.NewMetricsHandler(metrics, deps, logr),
		metricsSvc:     metrics,
		timetables:     handler.NewTimetableHandler(timetables),
		substitutes:    handler.NewSubstituteHandler(substitutes),
		rearrangements: handler.NewRearrangementHandler(rearrangements),
		leaves:         handler.NewLeaveHandler(leaves),
		notifications:  handler.NewNotificationHandler(notifications),
		exports:        handler.NewExportHandler(exports),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func schedulerConfig(raw config.SchedulerConfig) scheduler.Config {
	cfg := scheduler.DefaultConfig()
	if raw.PeriodsPerDay > 0 {
		cfg.PeriodsPerDay = raw.PeriodsPerDay
	}
	if len(raw.LabBlocks) > 0 {
		cfg.LabBlocks = raw.LabBlocks
	}
	if raw.MaxClassesPerDay > 0 {
		cfg.MaxClassesPerDay = raw.MaxClassesPerDay
	}
	if raw.MaxClassesPerWeek > 0 {
		cfg.MaxClassesPerWeek = raw.MaxClassesPerWeek
	}
	if raw.MinAcademicPerDay > 0 {
		cfg.MinAcademicPerDay = raw.MinAcademicPerDay
	}
	if len(raw.Pillars) > 0 {
		cfg.Pillars = raw.Pillars
	}
	if raw.FacultyFallback == string(scheduler.FallbackNone) {
		cfg.FacultyFallback = scheduler.FallbackNone
	}
	return cfg
}

type exportCleaner interface {
	Cleanup() (int, error)
}

func runExportCleanup(ctx context.Context, exports exportCleaner, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := exports.Cleanup()
			if err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				logr.Info("expired exports removed", zap.Int("count", removed))
			}
		}
	}
}
