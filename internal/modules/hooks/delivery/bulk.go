package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/surveykit/hooks/internal/pkg/taskqueue"
)

// TaskTypeRedispatch is the queue task type for bulk replays.
const TaskTypeRedispatch = "hook_redispatch"

const (
	defaultBulkLimit = 100
	maxBulkLimit     = 1000
)

// BulkRedispatchRequest selects which logged deliveries to replay.
// SinceHours bounds the window backwards from enqueue time; zero means
// unbounded.
type BulkRedispatchRequest struct {
	SurveyID   *int `json:"surveyId"`
	FailedOnly bool `json:"failedOnly"`
	SinceHours int  `json:"sinceHours"`
	Limit      int  `json:"limit"`
}

type bulkRedispatchSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// BulkRedispatcher replays batches of logged deliveries through the task
// queue, so a large replay survives as an inspectable task instead of a
// long-hanging request.
type BulkRedispatcher struct {
	events *EventService
	tasks  *taskqueue.Service
	log    *zap.Logger
}

func NewBulkRedispatcher(events *EventService, tasks *taskqueue.Service, logger *zap.Logger) *BulkRedispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &BulkRedispatcher{events: events, tasks: tasks, log: logger.Named("redispatch")}
	tasks.RegisterExecutor(TaskTypeRedispatch, b.runTask)
	return b
}

func (b *BulkRedispatcher) runTask(ctx context.Context, task *taskqueue.Task) {
	var req BulkRedispatchRequest
	if err := json.Unmarshal(task.Payload, &req); err != nil {
		_ = b.tasks.UpdateStatus(ctx, task.ID, taskqueue.TaskFailed, nil, "invalid payload: "+err.Error())
		return
	}
	b.execute(ctx, task, req)
}

// Enqueue registers a replay task and starts working it in the
// background. An identical replay already pending or running is returned
// instead of being enqueued twice.
func (b *BulkRedispatcher) Enqueue(ctx context.Context, req BulkRedispatchRequest) (*taskqueue.Task, error) {
	if req.Limit <= 0 {
		req.Limit = defaultBulkLimit
	}
	if req.Limit > maxBulkLimit {
		req.Limit = maxBulkLimit
	}
	if req.SinceHours < 0 {
		req.SinceHours = 0
	}

	group := "all"
	if req.SurveyID != nil {
		group = fmt.Sprintf("survey:%d", *req.SurveyID)
	}
	dedup := fmt.Sprintf("%s:failed=%t:since=%dh:limit=%d", group, req.FailedOnly, req.SinceHours, req.Limit)

	task, err := b.tasks.Enqueue(ctx, TaskTypeRedispatch, req, dedup, group)
	if err != nil {
		return nil, err
	}
	if task.Status == taskqueue.TaskPending {
		b.tasks.Dispatch(task)
	}
	return task, nil
}

func (b *BulkRedispatcher) execute(ctx context.Context, task *taskqueue.Task, req BulkRedispatchRequest) {
	b.tasks.Execute(ctx, task, func(ctx context.Context) (interface{}, error) {
		var since *time.Time
		if req.SinceHours > 0 {
			cutoff := time.Now().Add(-time.Duration(req.SinceHours) * time.Hour)
			since = &cutoff
		}
		ids, err := b.events.IDsForRedispatch(ctx, req.SurveyID, req.FailedOnly, since, req.Limit)
		if err != nil {
			return nil, err
		}

		summary := bulkRedispatchSummary{Total: len(ids)}
		for _, id := range ids {
			outcomes, err := b.events.Redispatch(ctx, id)
			if err != nil {
				summary.Failed++
				b.log.Warn("replay failed", zap.String("event", id), zap.Error(err))
				continue
			}
			ok := true
			for _, o := range outcomes {
				if !o.Succeeded {
					ok = false
					break
				}
			}
			if ok {
				summary.Succeeded++
			} else {
				summary.Failed++
			}
		}

		b.log.Info("bulk redispatch finished",
			zap.Int("total", summary.Total),
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("failed", summary.Failed))
		return summary, nil
	})
}
