package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/surveykit/hooks/internal/middleware"
	"github.com/surveykit/hooks/internal/modules/auth/auth"
	"github.com/surveykit/hooks/internal/modules/auth/authn"
	"github.com/surveykit/hooks/internal/modules/auth/user"
	"github.com/surveykit/hooks/internal/modules/gateway/gateway"
	"github.com/surveykit/hooks/internal/modules/hooks/delivery"
	"github.com/surveykit/hooks/internal/modules/hooks/dispatch"
	"github.com/surveykit/hooks/internal/modules/hooks/settings"
	"github.com/surveykit/hooks/internal/modules/storage/archive"
	"github.com/surveykit/hooks/internal/modules/system/core/health"
	"github.com/surveykit/hooks/internal/modules/system/core/option"
	"github.com/surveykit/hooks/internal/modules/tasks/crontask"
	"github.com/surveykit/hooks/internal/pkg/response"
)

const apiPrefix = "/api/v2"

func (a *App) registerRoutes() {
	r := a.router
	db := a.db
	authMW := middleware.Auth(db)

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	appInfo := gin.H{
		"name":     "surveykit-hooks",
		"version":  "1.0.0",
		"homepage": "https://github.com/surveykit/hooks",
		"issues":   "https://github.com/surveykit/hooks/issues",
	}

	// WebSocket gateway sits at the server root.
	root := r.Group("")
	gateway.RegisterRoutes(root, a.hub)

	api := r.Group(apiPrefix)
	api.Use(middleware.OptionalAuth(db))

	api.GET("", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/info", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })
	api.GET("/uptime", func(c *gin.Context) {
		uptimeMs := time.Since(processStart).Milliseconds()
		c.JSON(http.StatusOK, gin.H{
			"timestamp": uptimeMs,
			"humanize":  humanizeDuration(time.Duration(uptimeMs) * time.Millisecond),
		})
	})

	// Clock probe for clients that correct skew when rendering delivery
	// timestamps. t2 is receipt time, t3 is send time, NTP style.
	api.GET("/server-time", func(c *gin.Context) {
		t2 := time.Now().UnixMilli()
		c.JSON(http.StatusOK, gin.H{
			"t2": t2,
			"t3": time.Now().UnixMilli(),
		})
	})

	health.RegisterRoutes(api, db, a.rc, a.sched, a.platform, a.bark, authMW)

	// Auth & account
	auth.NewHandler(auth.NewService(db)).RegisterRoutes(api, authMW)
	user.NewHandler(user.NewService(db)).RegisterRoutes(api, authMW)
	authn.NewHandler(db, a.logger).RegisterRoutes(api, authMW)

	// Hook configuration and dispatch
	settings.NewHandler(a.settingsSvc).RegisterRoutes(api, authMW)
	dispatch.NewHandler(a.dispatchSvc).RegisterRoutes(api, authMW)
	delivery.NewHandler(a.eventSvc, a.bulkSvc).RegisterRoutes(api, authMW)

	// Archives
	archive.NewHandler(a.archiver).RegisterRoutes(api, authMW)

	// Options (key-value store)
	option.NewHandler(db).RegisterRoutes(api, authMW)

	// Cron and background task management
	crontask.NewHandler(a.sched, a.taskSvc).RegisterRoutes(api, authMW)

	api.GET("/gateway/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"admin": a.hub.ClientCount(gateway.RoomAdmin),
			"total": a.hub.ClientCount(""),
		})
	})
}
