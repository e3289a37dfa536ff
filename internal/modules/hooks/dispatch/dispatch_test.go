package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surveykit/hooks/internal/modules/hooks/delivery"
	"github.com/surveykit/hooks/internal/modules/hooks/payload"
	"github.com/surveykit/hooks/internal/modules/hooks/settings"
	"go.uber.org/zap"
)

type fakeStore struct {
	global map[string]string
	survey map[int]map[string]string
}

func (f *fakeStore) GlobalSetting(_ context.Context, name string) (string, error) {
	return f.global[name], nil
}

func (f *fakeStore) SurveySetting(_ context.Context, name string, surveyID int) (string, error) {
	return f.survey[surveyID][name], nil
}

type fakeResponses struct {
	data  map[string]any
	err   error
	calls int
}

func (f *fakeResponses) Response(_ context.Context, _, _ int) (map[string]any, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

type fakeDirectory struct {
	participant *payload.Participant
	err         error
	gotToken    string
	calls       int
}

func (f *fakeDirectory) FindParticipant(_ context.Context, _ int, token string) (*payload.Participant, error) {
	f.calls++
	f.gotToken = token
	return f.participant, f.err
}

type fakeExporter struct {
	pretty      map[string]any
	err         error
	gotLanguage string
	gotIDs      []int
}

func (f *fakeExporter) RenderPretty(_ context.Context, _ int, responseIDs []int, language string) (map[string]any, error) {
	f.gotLanguage = language
	f.gotIDs = responseIDs
	if f.err != nil {
		return nil, f.err
	}
	return f.pretty, nil
}

type fakeDeliverer struct {
	outcomes []delivery.Outcome
	gotURLs  []string
	gotBody  []byte
	gotMeta  delivery.Meta
	calls    int
}

func (f *fakeDeliverer) Deliver(_ context.Context, urls []string, body []byte, meta delivery.Meta) []delivery.Outcome {
	f.calls++
	f.gotURLs = urls
	f.gotBody = body
	f.gotMeta = meta
	if f.outcomes != nil {
		return f.outcomes
	}
	out := make([]delivery.Outcome, len(urls))
	for i, u := range urls {
		out[i] = delivery.Outcome{URL: u, Succeeded: true}
	}
	return out
}

type fakeHub struct {
	mu       sync.Mutex
	events   []string
	payloads []any
}

func (f *fakeHub) BroadcastAdmin(event string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	f.payloads = append(f.payloads, data)
}

func enabledStore(surveyID int, urls string) *fakeStore {
	return &fakeStore{
		global: map[string]string{},
		survey: map[int]map[string]string{
			surveyID: {
				settings.SettingEnabled: "1",
				settings.SettingURLs:    urls,
			},
		},
	}
}

func newTestService(store settings.Store, responses ResponseStore, directory ParticipantDirectory, exporter ExportRenderer, deliverer Deliverer) *Service {
	return NewService(settings.NewResolver(store), responses, directory, exporter, deliverer, zap.NewNop())
}

func TestDispatchSkipsDisabledSurvey(t *testing.T) {
	responses := &fakeResponses{data: map[string]any{"Q1": "yes"}}
	deliverer := &fakeDeliverer{}
	svc := newTestService(&fakeStore{}, responses, &fakeDirectory{}, &fakeExporter{}, deliverer)

	result := svc.HandleSurveyComplete(context.Background(), 100, 42)

	assert.False(t, result.Dispatched)
	assert.Equal(t, ReasonDisabled, result.Reason)
	assert.Zero(t, responses.calls)
	assert.Zero(t, deliverer.calls)
}

func TestDispatchSkipsWithoutURLs(t *testing.T) {
	store := &fakeStore{
		global: map[string]string{},
		survey: map[int]map[string]string{100: {settings.SettingEnabled: "1"}},
	}
	responses := &fakeResponses{data: map[string]any{"Q1": "yes"}}
	deliverer := &fakeDeliverer{}
	svc := newTestService(store, responses, &fakeDirectory{}, &fakeExporter{}, deliverer)

	result := svc.HandleSurveyComplete(context.Background(), 100, 42)

	assert.False(t, result.Dispatched)
	assert.Equal(t, ReasonNoURLs, result.Reason)
	assert.Zero(t, responses.calls)
	assert.Zero(t, deliverer.calls)
}

func TestDispatchResponseLookupFailureIsFatalToDispatchOnly(t *testing.T) {
	responses := &fakeResponses{err: errors.New("platform unavailable")}
	deliverer := &fakeDeliverer{}
	svc := newTestService(enabledStore(100, "https://hook.test/a"), responses, &fakeDirectory{}, &fakeExporter{}, deliverer)

	result := svc.HandleSurveyComplete(context.Background(), 100, 42)

	assert.False(t, result.Dispatched)
	assert.Equal(t, ReasonResponseFetch, result.Reason)
	assert.Zero(t, deliverer.calls)
}

func TestDispatchWithoutTokenSkipsDirectory(t *testing.T) {
	responses := &fakeResponses{data: map[string]any{"Q1": "yes", "submitdate": "2024-01-01 10:00:00"}}
	directory := &fakeDirectory{}
	deliverer := &fakeDeliverer{}
	svc := newTestService(enabledStore(100, "https://hook.test/a"), responses, directory, &fakeExporter{}, deliverer)

	result := svc.HandleSurveyComplete(context.Background(), 100, 42)

	require.True(t, result.Dispatched)
	assert.Zero(t, directory.calls)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(deliverer.gotBody, &doc))
	assert.Equal(t, "null", string(doc["token"]))
	assert.Equal(t, "null", string(doc["participant"]))
}

func TestDispatchParticipantLookupFailureLeavesFieldNull(t *testing.T) {
	responses := &fakeResponses{data: map[string]any{"token": "PARTXYZ"}}
	directory := &fakeDirectory{err: errors.New("directory down")}
	deliverer := &fakeDeliverer{}
	svc := newTestService(enabledStore(100, "https://hook.test/a"), responses, directory, &fakeExporter{}, deliverer)

	result := svc.HandleSurveyComplete(context.Background(), 100, 42)

	require.True(t, result.Dispatched)
	assert.Equal(t, "PARTXYZ", directory.gotToken)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(deliverer.gotBody, &doc))
	assert.Equal(t, `"PARTXYZ"`, string(doc["token"]))
	assert.Equal(t, "null", string(doc["participant"]))
}

func TestDispatchPrettyExportFailureStillDelivers(t *testing.T) {
	responses := &fakeResponses{data: map[string]any{"Q1": "yes"}}
	exporter := &fakeExporter{err: errors.New("export broken")}
	deliverer := &fakeDeliverer{}
	svc := newTestService(enabledStore(100, "https://hook.test/a"), responses, &fakeDirectory{}, exporter, deliverer)

	result := svc.HandleSurveyComplete(context.Background(), 100, 42)

	require.True(t, result.Dispatched)
	require.Equal(t, 1, deliverer.calls)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(deliverer.gotBody, &doc))
	assert.Equal(t, "null", string(doc["response_pretty"]))
}

func TestDispatchUsesResponseLanguageForExport(t *testing.T) {
	responses := &fakeResponses{data: map[string]any{"startlanguage": "de"}}
	exporter := &fakeExporter{pretty: map[string]any{"Frage 1": "Ja"}}
	deliverer := &fakeDeliverer{}
	svc := newTestService(enabledStore(100, "https://hook.test/a"), responses, &fakeDirectory{}, exporter, deliverer)

	result := svc.HandleSurveyComplete(context.Background(), 100, 42)

	require.True(t, result.Dispatched)
	assert.Equal(t, "de", exporter.gotLanguage)
	assert.Equal(t, []int{42}, exporter.gotIDs)
}

func TestDispatchMeta(t *testing.T) {
	responses := &fakeResponses{data: map[string]any{}}
	deliverer := &fakeDeliverer{}
	svc := newTestService(enabledStore(7, "https://hook.test/a"), responses, &fakeDirectory{}, &fakeExporter{}, deliverer)

	svc.HandleSurveyComplete(context.Background(), 7, 9)

	assert.Equal(t, delivery.Meta{
		Event:      payload.EventAfterSurveyComplete,
		SurveyID:   7,
		ResponseID: 9,
	}, deliverer.gotMeta)
}

func TestDispatchDebugReport(t *testing.T) {
	store := enabledStore(100, "https://hook.test/a")
	store.global[settings.SettingDebug] = "1"
	responses := &fakeResponses{data: map[string]any{"Q1": "yes"}}
	svc := newTestService(store, responses, &fakeDirectory{}, &fakeExporter{}, &fakeDeliverer{})

	result := svc.HandleSurveyComplete(context.Background(), 100, 42)

	require.True(t, result.Dispatched)
	assert.Contains(t, result.DebugHTML, "afterSurveyComplete")
	assert.Contains(t, result.DebugHTML, "Elapsed:")
}

func TestDispatchWithoutDebugFlagOmitsReport(t *testing.T) {
	responses := &fakeResponses{data: map[string]any{"Q1": "yes"}}
	svc := newTestService(enabledStore(100, "https://hook.test/a"), responses, &fakeDirectory{}, &fakeExporter{}, &fakeDeliverer{})

	result := svc.HandleSurveyComplete(context.Background(), 100, 42)

	require.True(t, result.Dispatched)
	assert.Empty(t, result.DebugHTML)
}

func TestDispatchBroadcastsResult(t *testing.T) {
	responses := &fakeResponses{data: map[string]any{"Q1": "yes"}}
	hub := &fakeHub{}
	svc := newTestService(enabledStore(100, "https://hook.test/a"), responses, &fakeDirectory{}, &fakeExporter{}, &fakeDeliverer{})
	svc.SetBroadcaster(hub)

	result := svc.HandleSurveyComplete(context.Background(), 100, 42)

	hub.mu.Lock()
	defer hub.mu.Unlock()
	require.Len(t, hub.events, 1)
	assert.Equal(t, BroadcastEventDispatched, hub.events[0])
	assert.Equal(t, result, hub.payloads[0])
}

func TestDispatchBroadcastsDeliveryFailures(t *testing.T) {
	responses := &fakeResponses{data: map[string]any{"Q1": "yes"}}
	hub := &fakeHub{}
	deliverer := &fakeDeliverer{outcomes: []delivery.Outcome{
		{URL: "https://hook.test/a", Succeeded: true},
		{URL: "https://hook.test/b", Succeeded: false},
	}}
	svc := newTestService(enabledStore(100, "https://hook.test/a\nhttps://hook.test/b"), responses, &fakeDirectory{}, &fakeExporter{}, deliverer)
	svc.SetBroadcaster(hub)

	svc.HandleSurveyComplete(context.Background(), 100, 42)

	hub.mu.Lock()
	defer hub.mu.Unlock()
	require.Len(t, hub.events, 2)
	assert.Equal(t, BroadcastEventDispatched, hub.events[0])
	assert.Equal(t, BroadcastEventDeliveryFailed, hub.events[1])
	failure, ok := hub.payloads[1].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 100, failure["surveyId"])
	assert.Equal(t, 42, failure["responseId"])
	assert.Equal(t, []string{"https://hook.test/b"}, failure["urls"])
}

func TestDispatchEndToEnd(t *testing.T) {
	var mu sync.Mutex
	bodies := map[string][]byte{}
	hookServer := func(name string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			mu.Lock()
			bodies[name] = b
			mu.Unlock()
			_, _ = w.Write([]byte("received " + name))
		}))
	}
	srvA := hookServer("a")
	defer srvA.Close()
	srvB := hookServer("b")
	defer srvB.Close()

	store := &fakeStore{
		global: map[string]string{settings.SettingDefaultAuthToken: "tok"},
		survey: map[int]map[string]string{
			100: {
				settings.SettingEnabled: "1",
				settings.SettingURLs:    srvA.URL + "\n" + srvB.URL,
			},
		},
	}
	responses := &fakeResponses{data: map[string]any{
		"Q1":         "yes",
		"submitdate": "",
		"token":      "PARTXYZ",
	}}
	directory := &fakeDirectory{participant: &payload.Participant{
		Firstname: "Jane", Lastname: "Roe", Email: "jane@x.io",
	}}

	deliverer := delivery.NewDeliverer(2*time.Second, nil, zap.NewNop())
	svc := newTestService(store, responses, directory, &fakeExporter{}, deliverer)

	result := svc.HandleSurveyComplete(context.Background(), 100, 42)

	require.True(t, result.Dispatched)
	require.Len(t, result.Outcomes, 2)
	assert.True(t, result.Outcomes[0].Succeeded)
	assert.True(t, result.Outcomes[1].Succeeded)
	assert.Equal(t, "received a", *result.Outcomes[0].ResponseBody)
	assert.Equal(t, "received b", *result.Outcomes[1].ResponseBody)
	assert.Greater(t, result.ElapsedSeconds, 0.0)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 2)
	// both targets got the identical document
	assert.Equal(t, bodies["a"], bodies["b"])

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(bodies["a"], &doc))
	assert.Equal(t, `"tok"`, string(doc["api_token"]))
	assert.Equal(t, "100", string(doc["survey"]))
	assert.Equal(t, "42", string(doc["respondId"]))
	assert.Equal(t, `"PARTXYZ"`, string(doc["token"]))
	assert.JSONEq(t, `{"firstname":"Jane","lastname":"Roe","email":"jane@x.io"}`, string(doc["participant"]))
	assert.JSONEq(t, `{"Q1":"yes","submitdate":"","token":"PARTXYZ"}`, string(doc["response"]))

	var submitDate string
	require.NoError(t, json.Unmarshal(doc["submitDate"], &submitDate))
	assert.Regexp(t, regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`), submitDate)
}
