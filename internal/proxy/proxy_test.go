package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProxy(t *testing.T) *httptest.Server {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"courses":[]}`))
	}))
	t.Cleanup(upstream.Close)

	server, err := NewServer(upstream.URL, nil)
	require.NoError(t, err)

	proxy := httptest.NewServer(server.Handler())
	t.Cleanup(proxy.Close)

	return proxy
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)

	return resp
}

func deleteReq(t *testing.T, url string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, url, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	return resp
}

func TestProxyPassThrough(t *testing.T) {
	proxy := newProxy(t)

	resp, err := http.Get(proxy.URL + "/api/v1/dashboard/my-courses")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"courses":[]}`, string(body))
}

func TestProxyAppliedFaultAffectsTraffic(t *testing.T) {
	proxy := newProxy(t)

	resp := postJSON(t, proxy.URL+"/chaos/faults", map[string]any{
		"pattern":    "/api/v1/dashboard/**",
		"kind":       "http_error",
		"statusCode": 503,
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err := http.Get(proxy.URL + "/api/v1/dashboard/my-courses")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	// Admin endpoints stay reachable while faults are live.
	resp, err = http.Get(proxy.URL + "/chaos/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var status struct {
		Faults []struct {
			Pattern string `json:"pattern"`
			Kind    string `json:"kind"`
		} `json:"faults"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.Len(t, status.Faults, 1)
	assert.Equal(t, "http_error", status.Faults[0].Kind)
}

func TestProxyDisconnectBecomesBadGateway(t *testing.T) {
	proxy := newProxy(t)

	resp := postJSON(t, proxy.URL+"/chaos/faults", map[string]any{
		"pattern": "/api/v1/dashboard/my-courses",
		"kind":    "disconnect",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err := http.Get(proxy.URL + "/api/v1/dashboard/my-courses")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode,
		"an injected transport failure surfaces as a dead upstream")
}

func TestProxyClearFaults(t *testing.T) {
	proxy := newProxy(t)

	resp := postJSON(t, proxy.URL+"/chaos/faults", map[string]any{
		"pattern": "/api/**",
		"kind":    "disconnect",
	})
	resp.Body.Close()

	resp = deleteReq(t, proxy.URL+"/chaos/faults")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err := http.Get(proxy.URL + "/api/v1/dashboard/my-courses")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProxyRandomChaosLifecycle(t *testing.T) {
	proxy := newProxy(t)

	resp := postJSON(t, proxy.URL+"/chaos/random", map[string]any{
		"endpoints":   []string{"/api/v1/dashboard/my-courses"},
		"failureRate": 1.0,
		"kinds":       []string{"http_error"},
		"durationMs":  5000,
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err := http.Get(proxy.URL + "/api/v1/dashboard/my-courses")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp = deleteReq(t, proxy.URL+"/chaos/random")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(proxy.URL + "/api/v1/dashboard/my-courses")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProxyRejectsBadRequests(t *testing.T) {
	proxy := newProxy(t)

	cases := []struct {
		name    string
		payload map[string]any
	}{
		{"unknown kind", map[string]any{"pattern": "/api/**", "kind": "explode"}},
		{"invalid pattern", map[string]any{"pattern": "/api/[", "kind": "disconnect"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, proxy.URL+"/chaos/faults", tc.payload)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	t.Run("chaos without endpoints", func(t *testing.T) {
		resp := postJSON(t, proxy.URL+"/chaos/random", map[string]any{
			"failureRate": 1.0,
			"durationMs":  1000,
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestProxyMetricsEndpoint(t *testing.T) {
	proxy := newProxy(t)

	resp, err := http.Get(proxy.URL + "/api/v1/dashboard/my-courses")
	require.NoError(t, err)
	resp.Body.Close()

	// Counters are updated asynchronously with the response body.
	time.Sleep(20 * time.Millisecond)

	resp, err = http.Get(proxy.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "chaosproxy_requests_total")
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer("", nil)
	assert.Error(t, err)

	_, err = NewServer("ftp://example.com", nil)
	assert.Error(t, err)
}
