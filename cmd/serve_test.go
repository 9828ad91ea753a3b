package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leads-cli/internal/dedup"
	"github.com/sells-group/leads-cli/internal/model"
)

func newTestAPI(t *testing.T, runsPerMinute float64) (*apiServer, http.Handler) {
	t.Helper()
	st := newTestStore(t)
	seedStore(t, st)
	api := newAPIServer(st, dedup.NewAnalyzer(st, nil, 0), runsPerMinute, false)
	return api, buildRouter(api, []string{"*"})
}

func doRequest(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestResolvePort_FlagSet(t *testing.T) {
	assert.Equal(t, 9090, resolvePort(9090, 8080))
}

func TestResolvePort_FlagZero(t *testing.T) {
	assert.Equal(t, 8080, resolvePort(0, 8080))
}

func TestBuildRouter_Health(t *testing.T) {
	_, h := newTestAPI(t, 10)

	rr := doRequest(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestBuildRouter_StatsBeforeRun(t *testing.T) {
	_, h := newTestAPI(t, 10)

	rr := doRequest(t, h, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var stats model.DedupStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, int64(4), stats.TotalLeads)
	assert.Equal(t, int64(0), stats.DuplicateLeads)
	assert.Equal(t, "0.00%", stats.DeduplicationRate)
}

func TestBuildRouter_GroupsEmpty(t *testing.T) {
	_, h := newTestAPI(t, 10)

	rr := doRequest(t, h, http.MethodGet, "/api/duplicates/groups", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"groups":[],"count":0}`, rr.Body.String())
}

func TestBuildRouter_RunThenInspect(t *testing.T) {
	_, h := newTestAPI(t, 10)

	rr := doRequest(t, h, http.MethodPost, "/api/duplicates/run", []byte(`{"reset":true}`))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var summary dedup.RunSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, 4, summary.Accounts)
	assert.Equal(t, 1, summary.Matches)
	assert.Equal(t, 1, summary.Groups)
	assert.Equal(t, 1, summary.Saved)

	rr = doRequest(t, h, http.MethodGet, "/api/duplicates/groups", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Groups []model.GroupSummary `json:"groups"`
		Count  int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, int64(1), list.Groups[0].MatchCount)

	rr = doRequest(t, h, http.MethodGet, "/api/duplicates/groups/"+list.Groups[0].DuplicateGroupID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var detail struct {
		DuplicateGroupID string `json:"duplicate_group_id"`
		Matches          []struct {
			model.DuplicateAnalysis
			AccountA *model.Account `json:"account_a"`
			AccountB *model.Account `json:"account_b"`
		} `json:"matches"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
	assert.Equal(t, list.Groups[0].DuplicateGroupID, detail.DuplicateGroupID)
	require.Len(t, detail.Matches, 1)
	m := detail.Matches[0]
	assert.Equal(t, "companyName", m.MatchedFields)
	require.NotNil(t, m.AccountA)
	require.NotNil(t, m.AccountB)
	assert.Equal(t, "Acme Widgets Inc", m.AccountA.CompanyName)
	assert.Equal(t, "Acme Widgets LLC", m.AccountB.CompanyName)
	assert.True(t, m.AccountA.PossibleDuplicate)

	rr = doRequest(t, h, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var stats model.DedupStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats.DuplicateLeads)
	assert.Equal(t, 1, stats.DuplicateGroups)
	assert.Equal(t, "50.00%", stats.DeduplicationRate)
}

func TestBuildRouter_GroupNotFound(t *testing.T) {
	_, h := newTestAPI(t, 10)

	rr := doRequest(t, h, http.MethodGet, "/api/duplicates/groups/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "duplicate group not found")
}

func TestBuildRouter_RunEmptyBody(t *testing.T) {
	_, h := newTestAPI(t, 10)

	rr := doRequest(t, h, http.MethodPost, "/api/duplicates/run", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestBuildRouter_RunDryRun(t *testing.T) {
	_, h := newTestAPI(t, 10)

	rr := doRequest(t, h, http.MethodPost, "/api/duplicates/run", []byte(`{"dry_run":true}`))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, h, http.MethodGet, "/api/duplicates/groups", nil)
	assert.JSONEq(t, `{"groups":[],"count":0}`, rr.Body.String())
}

func TestBuildRouter_RunInvalidBody(t *testing.T) {
	_, h := newTestAPI(t, 10)

	rr := doRequest(t, h, http.MethodPost, "/api/duplicates/run", []byte(`{not json`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid request body")
}

func TestBuildRouter_RunRateLimited(t *testing.T) {
	_, h := newTestAPI(t, 1)

	rr := doRequest(t, h, http.MethodPost, "/api/duplicates/run", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, h, http.MethodPost, "/api/duplicates/run", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Body.String(), "rate limit")
}

func TestBuildRouter_RunInProgress(t *testing.T) {
	api, h := newTestAPI(t, 10)

	api.runMu.Lock()
	defer api.runMu.Unlock()

	rr := doRequest(t, h, http.MethodPost, "/api/duplicates/run", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "already running")
}

func TestBuildRouter_CORSPreflight(t *testing.T) {
	st := newTestStore(t)
	api := newAPIServer(st, dedup.NewAnalyzer(st, nil, 0), 10, false)
	h := buildRouter(api, []string{"https://crm.example.com"})

	req := httptest.NewRequest(http.MethodOptions, "/api/stats", nil)
	req.Header.Set("Origin", "https://crm.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "https://crm.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRunScheduled_RunsAndStops(t *testing.T) {
	api, _ := newTestAPI(t, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		api.runScheduled(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		groups, err := api.store.ListDuplicateGroups(context.Background())
		return err == nil && len(groups) > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func getFreePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

func TestStartServer_GracefulShutdown(t *testing.T) {
	api, h := newTestAPI(t, 10)
	port := getFreePort(t)
	srv := &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", port), Handler: h}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- startServer(ctx, srv, api, 0) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
