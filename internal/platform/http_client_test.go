package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/research-lab/internal/config"
	"github.com/yourusername/research-lab/internal/metrics"
	"github.com/yourusername/research-lab/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) (*HTTPClient, *metrics.Registry) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	reg := metrics.NewRegistry()
	client := NewHTTPClient(&config.PlatformConfig{
		Mode:           "http",
		URL:            srv.URL,
		APIKey:         "secret",
		TimeoutSeconds: 5,
		RetryAttempts:  2,
		RateLimit:      1000,
	}, logger, reg)
	t.Cleanup(client.Close)
	return client, reg
}

func TestHTTPClientSubmitJob(t *testing.T) {
	expID := uuid.New()
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/jobs", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req JobRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, JobKindTraining, req.Kind)
		assert.Equal(t, expID, req.ExperimentID)

		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"job_id": "job-1"})
	}))

	job, err := client.SubmitJob(context.Background(), JobRequest{
		Kind:         JobKindTraining,
		ExperimentID: expID,
		Parameters:   map[string]interface{}{"lookback": 10},
	})
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, JobKindTraining, job.Kind)
}

func TestHTTPClientClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		code int
		want models.ErrorCause
	}{
		{http.StatusBadRequest, models.ErrorCauseParameter},
		{http.StatusUnprocessableEntity, models.ErrorCauseParameter},
		{http.StatusGatewayTimeout, models.ErrorCauseTimeout},
		{http.StatusInternalServerError, models.ErrorCauseRemote},
		{http.StatusForbidden, models.ErrorCauseUnknown},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.code), func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.code)
			}))
			client.client.RetryWaitMin = time.Millisecond
			client.client.RetryWaitMax = time.Millisecond

			_, err := client.SubmitJob(context.Background(), JobRequest{Kind: JobKindTraining})
			require.Error(t, err)
			assert.Equal(t, tc.want, CauseOf(err))
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestHTTPClientRetriesServerErrors(t *testing.T) {
	var calls int32
	client, reg := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(JobStatus{State: JobStateRunning, Progress: 0.5})
	}))
	client.client.RetryWaitMin = time.Millisecond
	client.client.RetryWaitMax = time.Millisecond

	status := client.JobStatus(context.Background(), "job-1")
	assert.Equal(t, JobStateRunning, status.State)
	assert.NoError(t, status.Err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.PlatformRequestsTotal.WithLabelValues("status", "success")))
}

func TestHTTPClientJobStatusUnknown(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/jobs/garbled":
			_, _ = w.Write([]byte(`{"state": "exploded"}`))
		default:
			http.NotFound(w, r)
		}
	}))

	garbled := client.JobStatus(context.Background(), "garbled")
	assert.Equal(t, JobStateUnknown, garbled.State)
	assert.ErrorIs(t, garbled.Err, ErrInvalidResponse)

	missing := client.JobStatus(context.Background(), "missing")
	assert.Equal(t, JobStateUnknown, missing.State)
	assert.ErrorIs(t, missing.Err, ErrJobNotFound)
}

func TestHTTPClientJobResults(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/jobs/job-9/results", r.URL.Path)
		_, _ = w.Write([]byte(`{"results": {"sharpe_ratio": 1.25, "total_trades": 42}}`))
	}))

	results, err := client.JobResults(context.Background(), "job-9")
	require.NoError(t, err)
	assert.Equal(t, json.Number("1.25"), results["sharpe_ratio"])
	assert.Equal(t, json.Number("42"), results["total_trades"])
}

func TestHTTPClientStopAndHealth(t *testing.T) {
	var stopped int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/jobs/job-2/stop":
			atomic.StoreInt32(&stopped, 1)
			w.WriteHeader(http.StatusAccepted)
		case "/health":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))

	require.NoError(t, client.StopJob(context.Background(), "job-2"))
	assert.EqualValues(t, 1, atomic.LoadInt32(&stopped))
	assert.NoError(t, client.HealthCheck(context.Background()))
}

func TestHTTPClientHealthCheckUnavailable(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	assert.ErrorIs(t, client.HealthCheck(context.Background()), ErrUnavailable)
}

func TestHTTPClientTransportErrorIsNetwork(t *testing.T) {
	logger, _ := test.NewNullLogger()
	client := NewHTTPClient(&config.PlatformConfig{
		URL:            "http://127.0.0.1:1",
		TimeoutSeconds: 1,
		RateLimit:      100,
	}, logger, nil)

	_, err := client.SubmitJob(context.Background(), JobRequest{Kind: JobKindTraining})
	require.Error(t, err)
	assert.Equal(t, models.ErrorCauseNetwork, CauseOf(err))
}

func TestHTTPClientCancelledContext(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status := client.JobStatus(ctx, "job-1")
	assert.Equal(t, JobStateUnknown, status.State)
	assert.Error(t, status.Err)
}
