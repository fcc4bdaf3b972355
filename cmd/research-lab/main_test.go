package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "migrate", "experiment", "research", "compare", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestExperimentList_PrintsRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/experiments", r.URL.Path)
		assert.Equal(t, []string{"running"}, r.URL.Query()["status"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":200,"message":"OK","data":{"rows":[
			{"id":"7f1c1f6e-8f0c-4b43-9d7e-0d5d3c8b2a10","name":"momentum","experiment_type":"pattern-discovery",
			 "status":"running","priority":3,"created_at":"2026-01-02T03:04:05Z","updated_at":"2026-01-02T03:04:05Z"}],"total":1}}`))
	}))
	defer srv.Close()

	out, err := run(t, "--api-url", srv.URL, "experiment", "list", "--status", "RUNNING")
	require.NoError(t, err)
	assert.Contains(t, out, "momentum")
	assert.Contains(t, out, "pattern-discovery")
	assert.Contains(t, out, "2026-01-02T03:04:05Z")
}

func TestExperimentList_RejectsUnknownStatus(t *testing.T) {
	_, err := run(t, "--api-url", "http://127.0.0.1:1", "experiment", "list", "--status", "paused")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown status")
}

func TestExperimentStart_ReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"status":429,"message":"Too Many Requests","errors":[{"code":"ERR_RESOURCE_LIMIT","message":"concurrency limit reached"}]}`))
	}))
	defer srv.Close()

	_, err := run(t, "--api-url", srv.URL, "experiment", "start", "7f1c1f6e-8f0c-4b43-9d7e-0d5d3c8b2a10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestCompare_RequiresValidIDs(t *testing.T) {
	_, err := run(t, "compare", "not-a-uuid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid experiment id")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "research-lab dev")
}
