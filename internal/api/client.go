package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/yourusername/research-lab/internal/analysis"
	"github.com/yourusername/research-lab/internal/models"
	"github.com/yourusername/research-lab/internal/service"
)

// APIError is a non-2xx reply from the server
type APIError struct {
	StatusCode int
	Errors     []Error
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("api error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Message)
	}
	return fmt.Sprintf("api error: %d %s", e.StatusCode, strings.Join(msgs, "; "))
}

// Client calls the research lab API
type Client struct {
	http    *retryablehttp.Client
	baseURL string
}

// NewClient creates an API client. Only connection errors and 5xx replies are retried.
func NewClient(baseURL string, timeout time.Duration) *Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = timeout
	rc.RetryMax = 2
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = time.Second
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, nil
		}
		return resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented &&
			resp.StatusCode != http.StatusServiceUnavailable, nil
	}

	return &Client{http: rc, baseURL: strings.TrimRight(baseURL, "/")}
}

// CreateExperiment creates, and optionally starts, an experiment
func (c *Client) CreateExperiment(ctx context.Context, req CreateExperimentRequest) (*models.Experiment, error) {
	var exp models.Experiment
	if err := c.do(ctx, http.MethodPost, "/api/v1/experiments", req, &exp); err != nil {
		return nil, err
	}
	return &exp, nil
}

// StartExperiment starts a pending experiment
func (c *Client) StartExperiment(ctx context.Context, id uuid.UUID) (*models.Experiment, error) {
	var exp models.Experiment
	if err := c.do(ctx, http.MethodPost, "/api/v1/experiments/"+id.String()+"/start", nil, &exp); err != nil {
		return nil, err
	}
	return &exp, nil
}

// GetExperiment returns an experiment's status report
func (c *Client) GetExperiment(ctx context.Context, id uuid.UUID) (*service.StatusReport, error) {
	var report service.StatusReport
	if err := c.do(ctx, http.MethodGet, "/api/v1/experiments/"+id.String(), nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// CancelExperiment cancels a running experiment
func (c *Client) CancelExperiment(ctx context.Context, id uuid.UUID, reason string) (*service.StatusReport, error) {
	var report service.StatusReport
	if err := c.do(ctx, http.MethodPost, "/api/v1/experiments/"+id.String()+"/cancel", CancelRequest{Reason: reason}, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ListExperiments lists experiments, optionally filtered by status
func (c *Client) ListExperiments(ctx context.Context, statuses []models.ExperimentStatus, limit int) ([]*models.Experiment, error) {
	q := url.Values{}
	for _, s := range statuses {
		q.Add("status", string(s))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	path := "/api/v1/experiments"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var exps []*models.Experiment
	if err := c.do(ctx, http.MethodGet, path, nil, &ListData{Rows: &exps}); err != nil {
		return nil, err
	}
	return exps, nil
}

// AnalyzeExperiment returns the analysis of a stored experiment
func (c *Client) AnalyzeExperiment(ctx context.Context, id uuid.UUID) (*analysis.AnalysisResult, error) {
	var result analysis.AnalysisResult
	if err := c.do(ctx, http.MethodGet, "/api/v1/experiments/"+id.String()+"/analysis", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Compare ranks experiments by fitness
func (c *Client) Compare(ctx context.Context, ids []uuid.UUID) (*analysis.ComparisonReport, error) {
	var report analysis.ComparisonReport
	if err := c.do(ctx, http.MethodPost, "/api/v1/analysis/compare", CompareRequest{ExperimentIDs: ids}, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// RunResearchCycle triggers a research cycle
func (c *Client) RunResearchCycle(ctx context.Context) (*service.CycleReport, error) {
	var report service.CycleReport
	if err := c.do(ctx, http.MethodPost, "/api/v1/research/cycles", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Stats returns orchestrator counters
func (c *Client) Stats(ctx context.Context) (*service.OrchestratorStats, error) {
	var stats service.OrchestratorStats
	if err := c.do(ctx, http.MethodGet, "/api/v1/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	envelope := struct {
		Data   json.RawMessage `json:"data"`
		Errors []Error         `json:"errors"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Errors: envelope.Errors}
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
