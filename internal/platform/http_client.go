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

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourusername/research-lab/internal/config"
	"github.com/yourusername/research-lab/internal/metrics"
	"github.com/yourusername/research-lab/internal/models"
)

const maxErrorBody = 4096

// HTTPClient is a rate-limited, retrying client for the platform REST API
type HTTPClient struct {
	client  *retryablehttp.Client
	limiter *rate.Limiter
	baseURL string
	apiKey  string
	logger  *logrus.Entry
	metrics *metrics.Registry
}

// NewHTTPClient creates a new platform client
func NewHTTPClient(cfg *config.PlatformConfig, logger *logrus.Logger, reg *metrics.Registry) *HTTPClient {
	entry := logger.WithField("component", "platform")

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	retryClient.RetryMax = cfg.RetryAttempts
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.CheckRetry = retryPolicy
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = leveledLogger{entry: entry}

	return &HTTPClient{
		client:  retryClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		logger:  entry,
		metrics: reg,
	}
}

// SubmitJob submits a training or backtest job
func (c *HTTPClient) SubmitJob(ctx context.Context, req JobRequest) (*Job, error) {
	const op = "submit"

	body, err := json.Marshal(req)
	if err != nil {
		return nil, NewError(op, models.ErrorCauseParameter, fmt.Errorf("failed to marshal request: %w", err))
	}

	var job Job
	if err := c.doJSON(ctx, op, http.MethodPost, "/api/v1/jobs", body, &job); err != nil {
		return nil, err
	}
	if job.ID == "" {
		return nil, NewError(op, models.ErrorCauseRemote, fmt.Errorf("%w: missing job id", ErrInvalidResponse))
	}
	if job.Kind == "" {
		job.Kind = req.Kind
	}

	c.logger.WithFields(logrus.Fields{
		"job_id":        job.ID,
		"kind":          job.Kind,
		"experiment_id": req.ExperimentID,
	}).Info("Platform job submitted")
	return &job, nil
}

// JobStatus polls a job. Failures are reported as JobStateUnknown.
func (c *HTTPClient) JobStatus(ctx context.Context, jobID string) JobStatus {
	var status JobStatus
	if err := c.doJSON(ctx, "status", http.MethodGet, "/api/v1/jobs/"+jobID, nil, &status); err != nil {
		return JobStatus{State: JobStateUnknown, Err: err}
	}

	switch status.State {
	case JobStateQueued, JobStateRunning, JobStateCompleted, JobStateFailed:
		return status
	default:
		return JobStatus{
			State: JobStateUnknown,
			Err:   NewError("status", models.ErrorCauseRemote, fmt.Errorf("%w: state %q", ErrInvalidResponse, status.State)),
		}
	}
}

// JobResults fetches the result payload of a completed job
func (c *HTTPClient) JobResults(ctx context.Context, jobID string) (map[string]interface{}, error) {
	var results map[string]interface{}
	if err := c.doJSON(ctx, "results", http.MethodGet, "/api/v1/jobs/"+jobID+"/results", nil, &results); err != nil {
		return nil, err
	}
	if nested, ok := results["results"].(map[string]interface{}); ok {
		return nested, nil
	}
	return results, nil
}

// StopJob asks the platform to stop a job
func (c *HTTPClient) StopJob(ctx context.Context, jobID string) error {
	return c.doJSON(ctx, "stop", http.MethodPost, "/api/v1/jobs/"+jobID+"/stop", nil, nil)
}

// HealthCheck checks platform health
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	if err := c.doJSON(ctx, "health", http.MethodGet, "/health", nil, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close releases idle connections
func (c *HTTPClient) Close() {
	c.client.HTTPClient.CloseIdleConnections()
}

func (c *HTTPClient) doJSON(ctx context.Context, op, method, path string, body []byte, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		c.metrics.RecordPlatformRequest(op, "rate_limited")
		return NewError(op, classifyTransport(err), fmt.Errorf("rate limiter: %w", err))
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return NewError(op, models.ErrorCauseParameter, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.RecordPlatformRequest(op, "transport_error")
		return NewError(op, classifyTransport(err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.metrics.RecordPlatformRequest(op, "not_found")
		return NewError(op, models.ErrorCauseUnknown, ErrJobNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.metrics.RecordPlatformRequest(op, "http_error")
		return NewError(op, classifyStatus(resp.StatusCode),
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	c.metrics.RecordPlatformRequest(op, "success")
	if out == nil {
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return NewError(op, models.ErrorCauseRemote, fmt.Errorf("%w: %v", ErrInvalidResponse, err))
	}
	return nil
}

// retryPolicy retries transport errors, 429 and 5xx, but never a cancelled request.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	case http.StatusInternalServerError:
		return true, nil
	}
	return false, nil
}

// leveledLogger adapts logrus to retryablehttp.LeveledLogger.
type leveledLogger struct {
	entry *logrus.Entry
}

func (l leveledLogger) fields(keysAndValues []interface{}) *logrus.Entry {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return l.entry.WithFields(f)
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Error(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Debug(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Debug(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Warn(msg)
}
