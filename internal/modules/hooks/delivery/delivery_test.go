package delivery

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureRecorder struct {
	mu       sync.Mutex
	outcomes []Outcome
	payloads [][]byte
}

func (r *captureRecorder) Record(_ context.Context, _ Meta, payload []byte, outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
	r.payloads = append(r.payloads, payload)
}

func newTestDeliverer(timeout time.Duration, rec EventRecorder) *Deliverer {
	return NewDeliverer(timeout, rec, zap.NewNop())
}

func TestDeliverPostsJSONBody(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body := []byte(`{"survey":1}`)
	outcomes := newTestDeliverer(time.Second, nil).
		Deliver(context.Background(), []string{srv.URL}, body, Meta{Event: "afterSurveyComplete"})

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Succeeded)
	assert.Equal(t, srv.URL, outcomes[0].URL)
	assert.Equal(t, http.StatusOK, outcomes[0].Status)
	require.NotNil(t, outcomes[0].ResponseBody)
	assert.Equal(t, "ok", *outcomes[0].ResponseBody)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, body, gotBody)
}

func TestDeliverFailureIsolation(t *testing.T) {
	okSrv := func(body string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
	}
	first := okSrv("first")
	defer first.Close()
	third := okSrv("third")
	defer third.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = w.Write([]byte("too late"))
	}))
	defer slow.Close()

	urls := []string{first.URL, slow.URL, third.URL}
	outcomes := newTestDeliverer(100*time.Millisecond, nil).
		Deliver(context.Background(), urls, []byte(`{}`), Meta{Event: "afterSurveyComplete"})

	require.Len(t, outcomes, 3)
	// outcomes keep input order
	assert.Equal(t, first.URL, outcomes[0].URL)
	assert.Equal(t, slow.URL, outcomes[1].URL)
	assert.Equal(t, third.URL, outcomes[2].URL)

	assert.True(t, outcomes[0].Succeeded)
	assert.Equal(t, "first", *outcomes[0].ResponseBody)

	assert.False(t, outcomes[1].Succeeded)
	assert.Nil(t, outcomes[1].ResponseBody)

	assert.True(t, outcomes[2].Succeeded)
	assert.Equal(t, "third", *outcomes[2].ResponseBody)
}

func TestDeliverTreatsNon2xxWithBodyAsSucceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	outcomes := newTestDeliverer(time.Second, nil).
		Deliver(context.Background(), []string{srv.URL}, []byte(`{}`), Meta{})

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Succeeded)
	assert.Equal(t, http.StatusInternalServerError, outcomes[0].Status)
	require.NotNil(t, outcomes[0].ResponseBody)
	assert.Equal(t, "boom", *outcomes[0].ResponseBody)
}

func TestDeliverUnreachableTarget(t *testing.T) {
	// reserved port with nothing listening
	outcomes := newTestDeliverer(200*time.Millisecond, nil).
		Deliver(context.Background(), []string{"http://127.0.0.1:1"}, []byte(`{}`), Meta{})

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Succeeded)
	assert.Nil(t, outcomes[0].ResponseBody)
	assert.Zero(t, outcomes[0].Status)
}

func TestDeliverNoURLs(t *testing.T) {
	outcomes := newTestDeliverer(time.Second, nil).
		Deliver(context.Background(), nil, []byte(`{}`), Meta{})
	assert.Empty(t, outcomes)
}

func TestDeliverRecordsEveryOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	rec := &captureRecorder{}
	payload := []byte(`{"survey":7}`)
	meta := Meta{Event: "afterSurveyComplete", SurveyID: 7, ResponseID: 3}

	outcomes := newTestDeliverer(time.Second, rec).
		Deliver(context.Background(), []string{srv.URL, "http://127.0.0.1:1"}, payload, meta)

	require.Len(t, outcomes, 2)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.outcomes, 2)
	for _, p := range rec.payloads {
		assert.Equal(t, payload, p)
	}

	succeeded := 0
	for _, o := range rec.outcomes {
		if o.Succeeded {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
}
