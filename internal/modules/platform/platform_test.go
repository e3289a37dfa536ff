package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surveykit/hooks/internal/config"
	"github.com/surveykit/hooks/internal/modules/hooks/payload"
	"go.uber.org/zap"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.PlatformConfig{
		BaseURL:        baseURL,
		ServiceToken:   "svc-token",
		TimeoutSeconds: 2,
	}, zap.NewNop())
}

func TestResponseFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/internal/surveys/100/responses/42", r.URL.Path)
		assert.Equal(t, "Bearer svc-token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Q1":         "yes",
			"submitdate": "2024-12-04 15:30:00",
			"token":      "PARTXYZ",
		})
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Response(context.Background(), 100, 42)
	require.NoError(t, err)
	assert.Equal(t, "yes", got["Q1"])
	assert.Equal(t, "PARTXYZ", got["token"])
}

func TestResponseFetchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "response not finalized", http.StatusConflict)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Response(context.Background(), 100, 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "response not finalized")
}

func TestFindParticipant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/internal/surveys/100/participants/PARTXYZ", r.URL.Path)
		_ = json.NewEncoder(w).Encode(payload.Participant{
			Firstname: "Jane", Lastname: "Roe", Email: "jane@x.io",
		})
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).FindParticipant(context.Background(), 100, "PARTXYZ")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Jane", got.Firstname)
	assert.Equal(t, "jane@x.io", got.Email)
}

func TestFindParticipantAbsentIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).FindParticipant(context.Background(), 100, "UNKNOWN")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRenderPretty(t *testing.T) {
	var gotReq exportRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/internal/surveys/100/responses/export", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]any{"Question 1": "Yes"})
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).RenderPretty(context.Background(), 100, []int{42}, "de")
	require.NoError(t, err)
	assert.Equal(t, "Yes", got["Question 1"])

	assert.Equal(t, []int{42}, gotReq.ResponseIDs)
	assert.Equal(t, "de", gotReq.Language)
	assert.Equal(t, "json", gotReq.Format)
	assert.Equal(t, "full", gotReq.HeaderMode)
	assert.Equal(t, "label", gotReq.AnswerMode)
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/internal/ping", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	assert.NoError(t, newTestClient(srv.URL).Ping(context.Background()))
}

func TestPingUnreachable(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")
	assert.Error(t, c.Ping(context.Background()))
}
