package bridge

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postgrab/pkg/config"
	"postgrab/pkg/grabber"
	"postgrab/pkg/messaging"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Output.Directory = t.TempDir()

	g, err := grabber.New(cfg, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(NewServer(g, cfg.Bridge, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, messaging.Response) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope messaging.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProgressEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp, envelope := doJSON(t, http.MethodGet, srv.URL+"/api/progress", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success)
	require.NotEmpty(t, envelope.RequestID)

	var snap map[string]interface{}
	require.NoError(t, json.Unmarshal(envelope.Data, &snap))
	assert.EqualValues(t, 0, snap["total"])
}

func TestExtractRejectsInvalidURL(t *testing.T) {
	srv := newTestServer(t)
	resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/api/extract", `{"url":"not a url"}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, envelope.Success)
	assert.Equal(t, "validation", envelope.ErrorKind)
}

func TestExtractUnsupportedHost(t *testing.T) {
	srv := newTestServer(t)
	resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/api/extract", `{"url":"https://example.com/page"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.False(t, envelope.Success)
}

func TestBatchRejectsEmptyList(t *testing.T) {
	srv := newTestServer(t)
	resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/api/downloads/batch", `{"images":[]}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, envelope.Success)
	assert.Contains(t, envelope.Error, "at least one image")
}

func TestCancelEmptyQueue(t *testing.T) {
	srv := newTestServer(t)
	resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/api/downloads/cancel", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success)

	var data map[string]int
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, 0, data["cancelled"])
}

func TestConfigRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	resp, envelope := doJSON(t, http.MethodGet, srv.URL+"/api/config", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success)

	var cfg config.Config
	require.NoError(t, json.Unmarshal(envelope.Data, &cfg))
	assert.Equal(t, 3, cfg.Download.MaxConcurrent)

	resp, envelope = doJSON(t, http.MethodPatch, srv.URL+"/api/config",
		`{"download":{"max_concurrent":5}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success, envelope.Error)

	_, envelope = doJSON(t, http.MethodGet, srv.URL+"/api/config", "")
	require.NoError(t, json.Unmarshal(envelope.Data, &cfg))
	assert.Equal(t, 5, cfg.Download.MaxConcurrent)
}

func TestConfigUpdateRejected(t *testing.T) {
	srv := newTestServer(t)
	resp, envelope := doJSON(t, http.MethodPatch, srv.URL+"/api/config",
		`{"download":{"max_concurrent":99}}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, envelope.Success)
}
