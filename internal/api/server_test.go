package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staticsnap/staticsnap/internal/snap"
)

func TestHealthz(t *testing.T) {
	srv := NewServer(&snap.RunReport{}, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReportSnapshot(t *testing.T) {
	report := &snap.RunReport{}
	report.PagesRendered.Add(5)
	report.BlockedRequests.Add(2)
	srv := NewServer(report, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/report", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var snapshot snap.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, int64(5), snapshot.PagesRendered)
	assert.Equal(t, int64(2), snapshot.BlockedRequests)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := NewServer(&snap.RunReport{}, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
}
