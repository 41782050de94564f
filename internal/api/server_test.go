package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p4blo4p/sitemap-hunter/internal/hunter"
	"github.com/p4blo4p/sitemap-hunter/internal/state"
	"github.com/p4blo4p/sitemap-hunter/internal/state/memory"
)

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(NewServer(memory.New(), nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetReport(t *testing.T) {
	t.Parallel()

	store := memory.New()
	require.NoError(t, state.PutJSON(context.Background(), store, state.ReportKey("pass-1"),
		hunter.PassReport{PassID: "pass-1", Phrase: "dragon ball"}))

	srv := httptest.NewServer(NewServer(store, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/reports/pass-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rep hunter.PassReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rep))
	assert.Equal(t, "dragon ball", rep.Phrase)

	missing, err := http.Get(srv.URL + "/v1/reports/nope")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestGetDomainHealth(t *testing.T) {
	t.Parallel()

	store := memory.New()
	require.NoError(t, state.PutJSON(context.Background(), store, state.HealthKey("a.example"),
		hunter.HealthRecord{Domain: "a.example", Attempts: 4, Circuit: hunter.CircuitClosed}))

	srv := httptest.NewServer(NewServer(store, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/domains/a.example/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec hunter.HealthRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, int64(4), rec.Attempts)
}
