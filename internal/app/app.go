package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/surveykit/hooks/internal/config"
	"github.com/surveykit/hooks/internal/database"
	"github.com/surveykit/hooks/internal/middleware"
	"github.com/surveykit/hooks/internal/modules/gateway/gateway"
	"github.com/surveykit/hooks/internal/modules/hooks/delivery"
	"github.com/surveykit/hooks/internal/modules/hooks/dispatch"
	"github.com/surveykit/hooks/internal/modules/hooks/settings"
	"github.com/surveykit/hooks/internal/modules/platform"
	"github.com/surveykit/hooks/internal/modules/storage/archive"
	"github.com/surveykit/hooks/internal/pkg/bark"
	"github.com/surveykit/hooks/internal/pkg/cluster"
	pkgcron "github.com/surveykit/hooks/internal/pkg/cron"
	pkgredis "github.com/surveykit/hooks/internal/pkg/redis"
	"github.com/surveykit/hooks/internal/pkg/taskqueue"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	rc     *pkgredis.Client
	hub    *gateway.Hub
	logger *zap.Logger
	cancel context.CancelFunc
	sched  *pkgcron.Scheduler

	platform    *platform.Client
	bark        *bark.Service
	settingsSvc *settings.Service
	dispatchSvc *dispatch.Service
	eventSvc    *delivery.EventService
	bulkSvc     *delivery.BulkRedispatcher
	taskSvc     *taskqueue.Service
	archiver    *archive.Archiver
}

// New initializes the application: config, database, redis, services,
// routes, background jobs.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := applyRuntimeSettings(cfg, logger); err != nil {
		return nil, err
	}

	// Only one replica runs schema migration.
	db, err := database.Connect(cfg, cluster.ShouldRunCron())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := pkgredis.Connect(cfg.URLValue())
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
		if !cluster.ShouldLogDevDiagnostics() {
			gin.DebugPrintRouteFunc = func(string, string, string, int) {}
			gin.DebugPrintFunc = func(string, ...interface{}) {}
		}
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(buildCORSConfig(cfg)))

	barkSvc := bark.New(func() (key, serverURL, appTitle string) {
		if !cfg.Bark.Enable {
			return "", "", ""
		}
		return cfg.Bark.Key, cfg.Bark.ServerURL, cfg.Bark.AppTitle
	})

	// Rate limiting and idempotence run on every route (requires Redis).
	router.Use(middleware.RateLimit(rc.Raw(), barkSvc))
	router.Use(middleware.Idempotence(rc.Raw()))

	hub := gateway.NewHub(rc, logger, func(token string) bool {
		_, err := middleware.ValidateToken(db, token)
		return err == nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	a := &App{
		cfg:    cfg,
		router: router,
		db:     db,
		rc:     rc,
		hub:    hub,
		logger: logger,
		cancel: cancel,
		bark:   barkSvc,
	}
	a.buildServices()

	a.sched = pkgcron.New()
	a.registerCronJobs()
	if cluster.ShouldRunCron() {
		go a.sched.Start(ctx)
	}

	a.registerRoutes()
	return a, nil
}

// buildServices wires the dispatch pipeline and its supporting services.
func (a *App) buildServices() {
	cfg, db, logger := a.cfg, a.db, a.logger

	a.settingsSvc = settings.NewService(db)
	resolver := settings.NewResolver(a.settingsSvc)

	recorder := delivery.NewRecorder(db, logger)
	deliverer := delivery.NewDeliverer(
		time.Duration(cfg.Delivery.TimeoutSeconds)*time.Second,
		recorder,
		logger,
	)

	a.platform = platform.NewClient(cfg.Platform, logger)

	a.dispatchSvc = dispatch.NewService(resolver, a.platform, a.platform, a.platform, deliverer, logger)
	a.dispatchSvc.SetBroadcaster(a.hub)

	a.eventSvc = delivery.NewEventService(db, deliverer)
	a.taskSvc = taskqueue.NewService(a.rc)
	a.bulkSvc = delivery.NewBulkRedispatcher(a.eventSvc, a.taskSvc, logger)

	a.archiver = archive.NewArchiver(cfg, archive.NewSQLTableReader(cfg.DSNValue()), a.eventSvc, logger)
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background goroutines and releases the redis connection.
func (a *App) Shutdown() {
	a.cancel()
	_ = a.rc.Close()
}

var processStart = time.Now()
