package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	pkgcron "github.com/surveykit/hooks/internal/pkg/cron"
	"github.com/surveykit/hooks/internal/pkg/prettylog"
	sessionpkg "github.com/surveykit/hooks/internal/pkg/session"
)

const heartbeatAlertThreshold = 3

// registerCronJobs registers the scheduled background jobs. The
// scheduler only starts on the replica that owns cron, but the jobs are
// registered everywhere so the admin panel can list and trigger them.
func (a *App) registerCronJobs() {
	log := a.logger.Named("cron")

	if a.cfg.Archive.Enable {
		a.sched.Register(pkgcron.Job{
			Name:        "archive_hook_events",
			Description: "Archive and prune delivery logs past retention",
			Interval:    24 * time.Hour,
			Fn: func(ctx context.Context) error {
				report, err := a.archiver.Run(ctx, time.Now())
				if err != nil {
					log.Warn("archive run failed", zap.Error(err))
					return err
				}
				log.Info(fmt.Sprintf("archived %s, pruned %d events", report.Filename, report.PrunedEvents), prettylog.SuccessField())
				return nil
			},
		})
	}

	a.sched.Register(pkgcron.Job{
		Name:        "cleanup_sessions",
		Description: "Delete expired login sessions",
		Interval:    24 * time.Hour,
		Fn: func(ctx context.Context) error {
			n, err := sessionpkg.CleanupExpired(a.db, time.Now())
			if err != nil {
				log.Warn("session cleanup failed", zap.Error(err))
				return err
			}
			log.Info(fmt.Sprintf("removed %d expired sessions", n))
			return nil
		},
	})

	if a.cfg.Platform.BaseURL != "" {
		var failures int
		var alerted bool
		a.sched.Register(pkgcron.Job{
			Name:        "platform_heartbeat",
			Description: "Check the survey platform API is reachable",
			Interval:    15 * time.Minute,
			Fn: func(ctx context.Context) error {
				err := a.platform.Ping(ctx)
				if err == nil {
					if alerted {
						_ = a.bark.Push("Platform recovered", "The survey platform API is reachable again")
					}
					failures = 0
					alerted = false
					return nil
				}

				failures++
				log.Warn("platform heartbeat failed",
					zap.Int("consecutive", failures),
					zap.Error(err))
				if failures >= heartbeatAlertThreshold && !alerted {
					alerted = true
					_ = a.bark.Push("Platform unreachable",
						fmt.Sprintf("%d consecutive heartbeat failures: %v", failures, err))
				}
				return err
			},
		})
	}
}
