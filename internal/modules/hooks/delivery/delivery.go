package delivery

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single outbound POST.
const DefaultTimeout = 30 * time.Second

// Meta identifies the dispatch a delivery belongs to, for logging and the
// audit trail.
type Meta struct {
	Event      string
	SurveyID   int
	ResponseID int
}

// Outcome is the per-URL delivery result. Succeeded means the HTTP exchange
// completed and a body came back; the status code is recorded but does not
// decide success, matching what consumers of this notifier have relied on.
type Outcome struct {
	URL          string  `json:"url"`
	ResponseBody *string `json:"response_body"`
	Succeeded    bool    `json:"succeeded"`
	Status       int     `json:"status"`
	Elapsed      float64 `json:"elapsed"`
}

// EventRecorder persists outcomes. Implementations must tolerate concurrent
// calls; Deliver records each URL from its own goroutine.
type EventRecorder interface {
	Record(ctx context.Context, meta Meta, payload []byte, outcome Outcome)
}

// Deliverer posts a payload to each resolved URL independently. One broken
// endpoint never stops the others, and nothing here retries or queues.
type Deliverer struct {
	client   *http.Client
	recorder EventRecorder
	log      *zap.Logger
}

// NewDeliverer builds a Deliverer with the given per-request timeout.
// recorder may be nil to skip the audit trail.
func NewDeliverer(timeout time.Duration, recorder EventRecorder, log *zap.Logger) *Deliverer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Deliverer{
		client:   &http.Client{Timeout: timeout},
		recorder: recorder,
		log:      log,
	}
}

// Deliver posts body to every URL and returns one outcome per URL in input
// order. The per-URL requests run concurrently; a failure is captured in its
// outcome and never aborts the siblings.
func (d *Deliverer) Deliver(ctx context.Context, urls []string, body []byte, meta Meta) []Outcome {
	outcomes := make([]Outcome, len(urls))
	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			outcomes[i] = d.post(ctx, url, body, meta)
		}(i, url)
	}
	wg.Wait()
	return outcomes
}

func (d *Deliverer) post(ctx context.Context, url string, body []byte, meta Meta) Outcome {
	start := time.Now()
	outcome := Outcome{URL: url}

	respBody, status, err := d.do(ctx, url, body)
	outcome.Elapsed = time.Since(start).Seconds()
	outcome.Status = status

	if err != nil {
		d.log.Warn("webhook delivery failed",
			zap.String("url", url),
			zap.String("event", meta.Event),
			zap.Int("survey", meta.SurveyID),
			zap.Error(err),
		)
	} else {
		outcome.Succeeded = true
		outcome.ResponseBody = &respBody
		d.log.Debug("webhook delivered",
			zap.String("url", url),
			zap.String("event", meta.Event),
			zap.Int("survey", meta.SurveyID),
			zap.Int("status", status),
		)
	}

	if d.recorder != nil {
		d.recorder.Record(ctx, meta, body, outcome)
	}
	return outcome
}

func (d *Deliverer) do(ctx context.Context, url string, body []byte) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(b), resp.StatusCode, nil
}
