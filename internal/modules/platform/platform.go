package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/surveykit/hooks/internal/config"
	"github.com/surveykit/hooks/internal/modules/hooks/payload"
	"go.uber.org/zap"
)

// Client talks to the SurveyKit internal API. It backs the dispatch
// collaborators: response records, participant lookups, and pretty exports
// all come from here. Results are never cached; a completion event always
// sees the platform's current data.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	log     *zap.Logger
}

func NewClient(cfg config.PlatformConfig, log *zap.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.ServiceToken,
		httpc:   &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Response fetches one finalized response record.
func (c *Client) Response(ctx context.Context, surveyID, responseID int) (map[string]any, error) {
	path := fmt.Sprintf("/api/internal/surveys/%d/responses/%d", surveyID, responseID)
	var out map[string]any
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindParticipant looks up the invitee behind a response token. A token with
// no matching record returns (nil, nil).
func (c *Client) FindParticipant(ctx context.Context, surveyID int, token string) (*payload.Participant, error) {
	path := fmt.Sprintf("/api/internal/surveys/%d/participants/%s", surveyID, token)

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var p payload.Participant
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("platform: decode participant: %w", err)
	}
	return &p, nil
}

type exportRequest struct {
	ResponseIDs []int  `json:"responseIds"`
	Language    string `json:"language,omitempty"`
	Format      string `json:"format"`
	HeaderMode  string `json:"headerMode"`
	AnswerMode  string `json:"answerMode"`
}

// RenderPretty asks the platform for the labeled export of the responses:
// keys are full question texts, values are answer labels.
func (c *Client) RenderPretty(ctx context.Context, surveyID int, responseIDs []int, language string) (map[string]any, error) {
	body, err := json.Marshal(exportRequest{
		ResponseIDs: responseIDs,
		Language:    language,
		Format:      "json",
		HeaderMode:  "full",
		AnswerMode:  "label",
	})
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/api/internal/surveys/%d/responses/export", surveyID)
	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("platform: decode export: %w", err)
	}
	return out, nil
}

// Ping verifies the platform is reachable with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/internal/ping", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("platform: decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.log.Debug("platform request", zap.String("method", method), zap.String("path", path))
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("platform: %s %s: %w", method, path, err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("platform: %s %s returned %d: %s",
		resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, strings.TrimSpace(string(snippet)))
}
