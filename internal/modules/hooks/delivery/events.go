package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/surveykit/hooks/internal/models"
	"github.com/surveykit/hooks/internal/pkg/pagination"
	"github.com/surveykit/hooks/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrEventNotFound is returned when an audit row does not exist.
var ErrEventNotFound = errors.New("hook event not found")

// Recorder writes delivery outcomes into hook_events. A failed insert only
// logs; the audit trail is best effort and never disturbs a dispatch.
type Recorder struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewRecorder(db *gorm.DB, log *zap.Logger) *Recorder {
	return &Recorder{db: db, log: log}
}

// Record implements EventRecorder.
func (r *Recorder) Record(ctx context.Context, meta Meta, payload []byte, outcome Outcome) {
	respBody := ""
	if outcome.ResponseBody != nil {
		respBody = *outcome.ResponseBody
	}
	ev := &models.HookEventModel{
		SurveyID:   meta.SurveyID,
		ResponseID: meta.ResponseID,
		Event:      meta.Event,
		URL:        outcome.URL,
		Payload:    string(payload),
		Response:   respBody,
		Success:    outcome.Succeeded,
		Status:     outcome.Status,
		Elapsed:    outcome.Elapsed,
		Timestamp:  time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(ev).Error; err != nil {
		r.log.Warn("failed to record hook event",
			zap.String("url", outcome.URL),
			zap.Int("survey", meta.SurveyID),
			zap.Error(err),
		)
	}
}

// EventService exposes the audit trail to operators.
type EventService struct {
	db        *gorm.DB
	deliverer *Deliverer
}

func NewEventService(db *gorm.DB, deliverer *Deliverer) *EventService {
	return &EventService{db: db, deliverer: deliverer}
}

// List returns audit rows, newest first, optionally filtered by survey
// and success flag.
func (s *EventService) List(ctx context.Context, q pagination.Query, surveyID *int, success *bool) ([]models.HookEventModel, response.Pagination, error) {
	base := s.db.WithContext(ctx).Model(&models.HookEventModel{}).Order("timestamp DESC")
	if surveyID != nil {
		base = base.Where("survey_id = ?", *surveyID)
	}
	if success != nil {
		base = base.Where("success = ?", *success)
	}
	var items []models.HookEventModel
	pag, err := pagination.Paginate(base, q, &items)
	if err != nil {
		return nil, response.Pagination{}, err
	}
	return items, pag, nil
}

// Get returns a single audit row.
func (s *EventService) Get(ctx context.Context, id string) (*models.HookEventModel, error) {
	var ev models.HookEventModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// Redispatch resends the exact payload bytes of a logged delivery to its
// original URL. The replay is recorded as a fresh audit row.
func (s *EventService) Redispatch(ctx context.Context, id string) ([]Outcome, error) {
	ev, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	meta := Meta{
		Event:      ev.Event,
		SurveyID:   ev.SurveyID,
		ResponseID: ev.ResponseID,
	}
	return s.deliverer.Deliver(ctx, []string{ev.URL}, []byte(ev.Payload), meta), nil
}

// IDsForRedispatch returns audit row IDs matching the replay filter,
// newest first, capped at limit. A non-nil since bounds the window so a
// replay of "last night's outage" does not sweep up ancient failures.
func (s *EventService) IDsForRedispatch(ctx context.Context, surveyID *int, failedOnly bool, since *time.Time, limit int) ([]string, error) {
	q := s.db.WithContext(ctx).
		Model(&models.HookEventModel{}).
		Order("timestamp DESC").
		Limit(limit)
	if surveyID != nil {
		q = q.Where("survey_id = ?", *surveyID)
	}
	if failedOnly {
		q = q.Where("success = ?", false)
	}
	if since != nil {
		q = q.Where("timestamp >= ?", *since)
	}
	var ids []string
	err := q.Pluck("id", &ids).Error
	return ids, err
}

// ClearBySurvey deletes all audit rows for one survey.
func (s *EventService) ClearBySurvey(ctx context.Context, surveyID int) error {
	return s.db.WithContext(ctx).
		Where("survey_id = ?", surveyID).
		Unscoped().
		Delete(&models.HookEventModel{}).Error
}

// DeleteOlderThan permanently removes audit rows past the cutoff.
func (s *EventService) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("timestamp < ?", cutoff).
		Unscoped().
		Delete(&models.HookEventModel{})
	return res.RowsAffected, res.Error
}
