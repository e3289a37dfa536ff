package health

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/surveykit/hooks/internal/modules/platform"
	"github.com/surveykit/hooks/internal/pkg/bark"
	"github.com/surveykit/hooks/internal/pkg/cron"
	"github.com/surveykit/hooks/internal/pkg/nativelog"
	redispkg "github.com/surveykit/hooks/internal/pkg/redis"
	"github.com/surveykit/hooks/internal/pkg/response"
	"gorm.io/gorm"
)

type logItem struct {
	Size     string `json:"size"`
	Filename string `json:"filename"`
	Created  int64  `json:"created"`
}

func RegisterRoutes(rg *gin.RouterGroup, db *gorm.DB, rc *redispkg.Client, sched *cron.Scheduler, pf *platform.Client, barkSvc *bark.Service, authMW gin.HandlerFunc) {
	rg.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		dbOK := err == nil && sqlDB.Ping() == nil

		redisOK := true
		if rc != nil {
			redisOK = rc.Ping(c.Request.Context()) == nil
		}

		status := "ok"
		code := http.StatusOK
		if !dbOK || !redisOK {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":   status,
			"database": dbOK,
			"redis":    redisOK,
		})
	})

	adminHealth := rg.Group("/health", authMW)

	cronGroup := adminHealth.Group("/cron")
	{
		cronGroup.GET("", func(c *gin.Context) {
			items := sched.List()
			byName := make(map[string]cron.ListItem, len(items))
			for _, item := range items {
				byName[item.Name] = item
			}
			response.OK(c, byName)
		})

		cronGroup.POST("/run/:name", func(c *gin.Context) {
			if err := sched.Run(c.Request.Context(), c.Param("name")); err != nil {
				response.NotFoundMsg(c, err.Error())
				return
			}
			response.OK(c, gin.H{"message": "job triggered"})
		})

		cronGroup.GET("/task/:name", func(c *gin.Context) {
			result, err := sched.GetTask(c.Param("name"))
			if err != nil {
				response.NotFoundMsg(c, err.Error())
				return
			}
			response.OK(c, result)
		})
	}

	// Checks the survey platform API with the configured credentials, so
	// a misconfigured base URL or service token surfaces here instead of
	// on the first live dispatch.
	adminHealth.GET("/platform", func(c *gin.Context) {
		if pf == nil {
			response.UnprocessableEntity(c, "platform api is not configured")
			return
		}
		started := time.Now()
		if err := pf.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"ok":      false,
				"message": err.Error(),
			})
			return
		}
		response.OK(c, gin.H{
			"ok":      true,
			"latency": time.Since(started).Milliseconds(),
		})
	})

	adminHealth.GET("/bark/test", func(c *gin.Context) {
		if barkSvc == nil {
			response.UnprocessableEntity(c, "bark is not enabled")
			return
		}
		if err := barkSvc.Push("Bark test", "If you received this push, bark alerting is configured correctly."); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
			return
		}
		response.OK(c, gin.H{"ok": true})
	})

	logGroup := adminHealth.Group("/log")
	{
		logGroup.GET("/list", func(c *gin.Context) {
			logDir := nativelog.ResolveDir()

			entries, err := os.ReadDir(logDir)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					response.OK(c, []logItem{})
					return
				}
				response.BadRequest(c, "log dir not readable")
				return
			}

			items := make([]logItem, 0, len(entries))
			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				info, err := entry.Info()
				if err != nil {
					continue
				}
				items = append(items, logItem{
					Size:     formatByteSize(info.Size()),
					Filename: entry.Name(),
					Created:  info.ModTime().UnixMilli(),
				})
			}

			sort.Slice(items, func(i, j int) bool {
				return items[i].Created > items[j].Created
			})
			response.OK(c, items)
		})

		logGroup.GET("", func(c *gin.Context) {
			filename := strings.TrimSpace(c.Query("filename"))
			if filename == "" {
				response.UnprocessableEntity(c, "filename must be string")
				return
			}
			filename = filepath.Base(filename)
			if filename == "." || filename == string(filepath.Separator) {
				response.UnprocessableEntity(c, "filename must be string")
				return
			}

			logPath := filepath.Join(nativelog.ResolveDir(), filename)
			data, err := os.ReadFile(logPath)
			if err != nil {
				response.BadRequest(c, "log file not exists")
				return
			}
			c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
		})

		logGroup.DELETE("", func(c *gin.Context) {
			filename := strings.TrimSpace(c.Query("filename"))
			if filename == "" {
				response.UnprocessableEntity(c, "filename must be string")
				return
			}
			filename = filepath.Base(filename)
			if filename == "." || filename == string(filepath.Separator) {
				response.UnprocessableEntity(c, "filename must be string")
				return
			}

			logDir := nativelog.ResolveDir()
			targetPath := filepath.Join(logDir, filename)
			todayPath := filepath.Join(logDir, nativelog.TodayFilename(time.Now()))

			// The active log and the error log stay open in the writer;
			// truncate those instead of unlinking them.
			if strings.HasSuffix(strings.ToLower(targetPath), "error.log") || samePath(targetPath, todayPath) {
				if err := os.WriteFile(targetPath, []byte(""), 0o644); err != nil && !errors.Is(err, os.ErrNotExist) {
					response.InternalError(c, err)
					return
				}
			} else if err := os.Remove(targetPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				response.InternalError(c, err)
				return
			}

			response.NoContent(c)
		})
	}
}

func formatByteSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}

func samePath(a, b string) bool {
	left := filepath.Clean(a)
	right := filepath.Clean(b)
	if runtime.GOOS == "windows" {
		return strings.EqualFold(left, right)
	}
	return left == right
}
