package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolfleet/toolfleet/internal/broker"
	"github.com/toolfleet/toolfleet/internal/dispatch"
	"github.com/toolfleet/toolfleet/internal/job"
	"github.com/toolfleet/toolfleet/internal/store"
)

func newTestServer(t *testing.T, apiKey string) (*httptest.Server, *dispatch.Dispatcher) {
	t.Helper()
	db, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	d := dispatch.New(store.NewSQLiteStore(db), broker.NewInProc(), "")
	s := New(Config{Listen: "127.0.0.1:0", APIKey: apiKey}, d, nil)
	ts := httptest.NewServer(s.setupRoutes())
	t.Cleanup(ts.Close)
	return ts, d
}

func doJSON(t *testing.T, method, url, apiKey string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestSubmitJob(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp := doJSON(t, http.MethodPost, ts.URL+"/jobs", "", SubmitJobRequest{
		Toolkit:   "zabbix",
		Operation: "bulk_add_hosts",
		Payload:   json.RawMessage(`{"rows":[]}`),
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	j := decode[job.Job](t, resp)
	assert.NotEmpty(t, j.ID)
	assert.Equal(t, "zabbix.bulk_add_hosts", j.Type)
	assert.Equal(t, job.StatusQueued, j.Status)
}

func TestSubmitJobValidation(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp := doJSON(t, http.MethodPost, ts.URL+"/jobs", "", SubmitJobRequest{Toolkit: "zabbix"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	errResp := decode[ErrorResponse](t, resp)
	assert.Contains(t, errResp.Error, "operation")
}

func TestGetJob(t *testing.T) {
	ts, d := newTestServer(t, "")

	created, err := d.Enqueue(context.Background(), store.CreateRequest{Toolkit: "echo", Operation: "run"})
	require.NoError(t, err)

	resp := doJSON(t, http.MethodGet, ts.URL+"/jobs/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	j := decode[job.Job](t, resp)
	assert.Equal(t, created.ID, j.ID)
	assert.Equal(t, "echo.run", j.Type)
}

func TestGetJobNotFound(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp := doJSON(t, http.MethodGet, ts.URL+"/jobs/no-such-id", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	nf := decode[NotFoundResponse](t, resp)
	assert.Equal(t, "no-such-id", nf.ID)
	assert.Equal(t, "not_found", nf.Status)
}

func TestListJobsFiltered(t *testing.T) {
	ts, d := newTestServer(t, "")
	ctx := context.Background()

	_, err := d.Enqueue(ctx, store.CreateRequest{Toolkit: "zabbix", Operation: "bulk_add_hosts"})
	require.NoError(t, err)
	_, err = d.Enqueue(ctx, store.CreateRequest{Toolkit: "echo", Operation: "run"})
	require.NoError(t, err)

	resp := doJSON(t, http.MethodGet, ts.URL+"/jobs?toolkit=zabbix", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list := decode[ListJobsResponse](t, resp)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "zabbix", list.Items[0].Toolkit)
}

func TestListJobsPagination(t *testing.T) {
	ts, d := newTestServer(t, "")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := d.Enqueue(ctx, store.CreateRequest{Toolkit: "echo", Operation: "run"})
		require.NoError(t, err)
	}

	resp := doJSON(t, http.MethodGet, ts.URL+"/jobs?limit=2&offset=4", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list := decode[ListJobsResponse](t, resp)
	assert.Equal(t, 5, list.Total)
	assert.Len(t, list.Items, 1)
}

func TestListJobsBadLimit(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp := doJSON(t, http.MethodGet, ts.URL+"/jobs?limit=many", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCancelJob(t *testing.T) {
	ts, d := newTestServer(t, "")

	created, err := d.Enqueue(context.Background(), store.CreateRequest{Toolkit: "echo", Operation: "sleep"})
	require.NoError(t, err)

	resp := doJSON(t, http.MethodPost, ts.URL+"/jobs/"+created.ID+"/cancel", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	j := decode[job.Job](t, resp)
	assert.Equal(t, job.StatusCancelled, j.Status)
}

func TestCancelJobNotFound(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp := doJSON(t, http.MethodPost, ts.URL+"/jobs/no-such-id/cancel", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	nf := decode[NotFoundResponse](t, resp)
	assert.Equal(t, "not_found", nf.Status)
}

func TestAuthRequired(t *testing.T) {
	ts, _ := newTestServer(t, "sekret")

	resp := doJSON(t, http.MethodGet, ts.URL+"/jobs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/jobs", "wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/jobs", "sekret", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthzUnauthenticated(t *testing.T) {
	ts, _ := newTestServer(t, "sekret")

	resp := doJSON(t, http.MethodGet, ts.URL+"/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	h := decode[HealthzResponse](t, resp)
	assert.Equal(t, "ok", h.Status)
}
