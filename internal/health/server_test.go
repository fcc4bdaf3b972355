package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(checks map[string]CheckFunc) *Server {
	log, _ := test.NewNullLogger()
	return NewServer(Config{
		ServiceName: "research-lab",
		Version:     "test",
		Logger:      log,
		Checks:      checks,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthAndLive(t *testing.T) {
	h := newTestServer(nil).Handler()

	for _, path := range []string{"/health", "/live"} {
		rec := get(t, h, path)
		assert.Equal(t, http.StatusOK, rec.Code, path)

		var body HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, "research-lab", body.Service)
	}

	assert.Equal(t, "# metrics", get(t, h, "/metrics").Body.String())
}

func TestReadyReportsEachCheck(t *testing.T) {
	s := newTestServer(map[string]CheckFunc{
		"store":    func(context.Context) error { return nil },
		"platform": func(context.Context) error { return errors.New("connection refused") },
	})

	rec := get(t, s.Handler(), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body ReadyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_ready", body.Status)
	assert.Equal(t, "not_ready", body.Checks["service"])
	assert.Equal(t, "ok", body.Checks["store"])
	assert.Equal(t, "error: connection refused", body.Checks["platform"])
}

func TestReadyWhenAllHealthy(t *testing.T) {
	s := newTestServer(map[string]CheckFunc{
		"store": func(context.Context) error { return nil },
	})
	s.SetReady(true)

	rec := get(t, s.Handler(), "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, s.IsReady())
}
