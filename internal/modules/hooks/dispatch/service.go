package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/surveykit/hooks/internal/modules/hooks/debugreport"
	"github.com/surveykit/hooks/internal/modules/hooks/delivery"
	"github.com/surveykit/hooks/internal/modules/hooks/payload"
	"github.com/surveykit/hooks/internal/modules/hooks/settings"
	"go.uber.org/zap"
)

// ResponseStore fetches a finalized response record from the survey platform.
type ResponseStore interface {
	Response(ctx context.Context, surveyID, responseID int) (map[string]any, error)
}

// ParticipantDirectory looks up the invitee a response token belongs to.
// A missing record is (nil, nil), not an error.
type ParticipantDirectory interface {
	FindParticipant(ctx context.Context, surveyID int, token string) (*payload.Participant, error)
}

// ExportRenderer produces the human-readable export of a response, keyed by
// full question text with answer labels as values.
type ExportRenderer interface {
	RenderPretty(ctx context.Context, surveyID int, responseIDs []int, language string) (map[string]any, error)
}

// Deliverer posts a payload to each target. Satisfied by delivery.Deliverer.
type Deliverer interface {
	Deliver(ctx context.Context, urls []string, body []byte, meta delivery.Meta) []delivery.Outcome
}

// Broadcaster pushes dispatch results to connected admin clients.
type Broadcaster interface {
	BroadcastAdmin(event string, payload any)
}

// Gateway event names for the live dispatch feed.
const (
	BroadcastEventDispatched     = "HOOK_DISPATCHED"
	BroadcastEventDeliveryFailed = "HOOK_DELIVERY_FAILED"
)

// Service runs the dispatch pipeline for one completion notification at a
// time. Concurrent completions are independent invocations; the service keeps
// no state between them.
type Service struct {
	resolver  *settings.Resolver
	responses ResponseStore
	directory ParticipantDirectory
	exporter  ExportRenderer
	deliverer Deliverer
	hub       Broadcaster
	log       *zap.Logger
}

func NewService(
	resolver *settings.Resolver,
	responses ResponseStore,
	directory ParticipantDirectory,
	exporter ExportRenderer,
	deliverer Deliverer,
	log *zap.Logger,
) *Service {
	return &Service{
		resolver:  resolver,
		responses: responses,
		directory: directory,
		exporter:  exporter,
		deliverer: deliverer,
		log:       log,
	}
}

// SetBroadcaster attaches an optional gateway hub for the live dispatch feed.
func (s *Service) SetBroadcaster(hub Broadcaster) { s.hub = hub }

// HandleSurveyComplete runs the full pipeline for one completed response.
// Every failure mode resolves into the returned Result; nothing escalates to
// the caller, because a broken notification target must never affect the
// respondent's completion flow.
func (s *Service) HandleSurveyComplete(ctx context.Context, surveyID, responseID int) *Result {
	start := time.Now()
	result := s.run(ctx, start, surveyID, responseID)
	result.ElapsedSeconds = time.Since(start).Seconds()

	if s.hub != nil {
		s.hub.BroadcastAdmin(BroadcastEventDispatched, result)
		if failed := failedURLs(result.Outcomes); len(failed) > 0 {
			s.hub.BroadcastAdmin(BroadcastEventDeliveryFailed, map[string]any{
				"surveyId":   surveyID,
				"responseId": responseID,
				"urls":       failed,
			})
		}
	}
	return result
}

func failedURLs(outcomes []delivery.Outcome) []string {
	var urls []string
	for _, o := range outcomes {
		if !o.Succeeded {
			urls = append(urls, o.URL)
		}
	}
	return urls
}

func (s *Service) run(ctx context.Context, start time.Time, surveyID, responseID int) *Result {
	enabled, err := s.resolver.IsEnabled(ctx, surveyID)
	if err != nil {
		s.log.Error("hook settings read failed", zap.Int("survey", surveyID), zap.Error(err))
		return &Result{Reason: ReasonDisabled}
	}
	if !enabled {
		return &Result{Reason: ReasonDisabled}
	}

	urls, err := s.resolver.ResolveURLs(ctx, surveyID)
	if err != nil {
		s.log.Error("hook url resolution failed", zap.Int("survey", surveyID), zap.Error(err))
		return &Result{Reason: ReasonNoURLs}
	}
	if len(urls) == 0 {
		s.log.Info("no notification urls configured", zap.Int("survey", surveyID))
		return &Result{Reason: ReasonNoURLs}
	}

	response, err := s.responses.Response(ctx, surveyID, responseID)
	if err != nil {
		s.log.Error("response lookup failed",
			zap.Int("survey", surveyID),
			zap.Int("response", responseID),
			zap.Error(err),
		)
		return &Result{Reason: ReasonResponseFetch}
	}

	submitDate := payload.NormalizeSubmitDate(stringField(response, "submitdate"))
	token := stringField(response, "token")
	language := stringField(response, "startlanguage")

	var tokenPtr *string
	var participant *payload.Participant
	if token != "" {
		tokenPtr = &token
		participant, err = s.directory.FindParticipant(ctx, surveyID, token)
		if err != nil {
			s.log.Warn("participant lookup failed",
				zap.Int("survey", surveyID),
				zap.String("token", token),
				zap.Error(err),
			)
			participant = nil
		}
	}

	pretty, err := s.exporter.RenderPretty(ctx, surveyID, []int{responseID}, language)
	if err != nil {
		s.log.Warn("pretty export failed, sending raw response only",
			zap.Int("survey", surveyID),
			zap.Int("response", responseID),
			zap.Error(err),
		)
		pretty = nil
	}

	authToken, err := s.resolver.ResolveAuthToken(ctx, surveyID)
	if err != nil {
		s.log.Warn("auth token resolution failed", zap.Int("survey", surveyID), zap.Error(err))
		authToken = nil
	}

	doc := payload.Build(
		payload.EventAfterSurveyComplete,
		surveyID,
		responseID,
		response,
		pretty,
		submitDate,
		tokenPtr,
		participant,
		authToken,
	)
	body, err := json.Marshal(doc)
	if err != nil {
		s.log.Error("payload serialization failed", zap.Int("survey", surveyID), zap.Error(err))
		return &Result{Reason: ReasonPayloadTooBroken}
	}

	meta := delivery.Meta{
		Event:      payload.EventAfterSurveyComplete,
		SurveyID:   surveyID,
		ResponseID: responseID,
	}
	outcomes := s.deliverer.Deliver(ctx, urls, body, meta)

	result := &Result{Dispatched: true, Outcomes: outcomes}

	debug, err := s.resolver.DebugEnabled(ctx)
	if err != nil {
		s.log.Warn("debug flag read failed", zap.Error(err))
	}
	if debug {
		elapsed := time.Since(start).Seconds()
		result.DebugHTML = debugreport.Render(payload.EventAfterSurveyComplete, body, outcomes, elapsed)
	}
	return result
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
