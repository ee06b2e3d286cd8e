package fault

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, in *Injector) (*http.Client, string) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(server.Close)

	client := &http.Client{
		Transport: in.Transport(http.DefaultTransport),
		Timeout:   5 * time.Second,
	}

	return client, server.URL
}

func TestInjectorPassThrough(t *testing.T) {
	in := NewInjector()
	client, baseURL := newTestClient(t, in)

	resp, err := client.Get(baseURL + "/api/courses")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInjectorDisconnect(t *testing.T) {
	in := NewInjector()
	client, baseURL := newTestClient(t, in)

	require.NoError(t, in.Apply(Rule{
		Pattern:  "/api/courses",
		Kind:     KindDisconnect,
		Duration: 150 * time.Millisecond,
	}))

	_, err := client.Get(baseURL + "/api/courses")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDisconnected))

	// Unrelated endpoints keep working while the fault is live.
	resp, err := client.Get(baseURL + "/api/lessons")
	require.NoError(t, err)
	resp.Body.Close()

	// The rule clears itself once its duration elapses.
	time.Sleep(250 * time.Millisecond)

	resp, err = client.Get(baseURL + "/api/courses")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, in.Active())
}

func TestInjectorSlow(t *testing.T) {
	in := NewInjector()
	client, baseURL := newTestClient(t, in)

	require.NoError(t, in.Apply(Rule{
		Pattern: "/api/**",
		Kind:    KindSlow,
		Latency: 120 * time.Millisecond,
	}))

	start := time.Now()
	resp, err := client.Get(baseURL + "/api/courses/intro-to-go")
	elapsed := time.Since(start)

	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.GreaterOrEqual(t, elapsed, 120*time.Millisecond)
}

func TestInjectorIntermittentConvergence(t *testing.T) {
	in := NewInjector()
	client, baseURL := newTestClient(t, in)

	const probability = 0.3
	require.NoError(t, in.Apply(Rule{
		Pattern:            "/api/flaky",
		Kind:               KindIntermittent,
		FailureProbability: probability,
	}))

	const n = 2000
	failures := 0
	for i := 0; i < n; i++ {
		resp, err := client.Get(baseURL + "/api/flaky")
		if err != nil {
			failures++
			continue
		}
		resp.Body.Close()
	}

	observed := float64(failures) / float64(n)
	assert.InDelta(t, probability, observed, 0.05,
		"observed failure rate should converge to the configured probability")
}

func TestInjectorIntermittentBounds(t *testing.T) {
	in := NewInjector()
	client, baseURL := newTestClient(t, in)

	require.NoError(t, in.Apply(Rule{Pattern: "/a", Kind: KindIntermittent, FailureProbability: 0}))
	resp, err := client.Get(baseURL + "/a")
	require.NoError(t, err)
	resp.Body.Close()

	require.NoError(t, in.Apply(Rule{Pattern: "/b", Kind: KindIntermittent, FailureProbability: 1}))
	_, err = client.Get(baseURL + "/b")
	require.Error(t, err)
}

func TestInjectorDNS(t *testing.T) {
	in := NewInjector()
	client, baseURL := newTestClient(t, in)

	require.NoError(t, in.Apply(Rule{Pattern: "/api/courses", Kind: KindDNS}))

	_, err := client.Get(baseURL + "/api/courses")
	require.Error(t, err)

	var dnsErr *net.DNSError
	require.True(t, errors.As(err, &dnsErr), "dns fault should be distinguishable from a disconnect")
	assert.True(t, dnsErr.IsNotFound)
	assert.False(t, errors.Is(err, ErrDisconnected))
}

func TestInjectorHTTPError(t *testing.T) {
	in := NewInjector()
	client, baseURL := newTestClient(t, in)

	require.NoError(t, in.Apply(Rule{
		Pattern:     "/api/quiz/*/submit",
		Kind:        KindHTTPError,
		StatusCode:  http.StatusBadGateway,
		Body:        `{"error":"upstream exploded"}`,
		ContentType: "application/json",
	}))

	resp, err := client.Post(baseURL+"/api/quiz/42/submit", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"upstream exploded"}`, string(body))
}

func TestInjectorTimeoutSurfacesAsCallerTimeout(t *testing.T) {
	in := NewInjector()
	_, baseURL := newTestClient(t, in)

	client := &http.Client{
		Transport: in.Transport(http.DefaultTransport),
		Timeout:   100 * time.Millisecond,
	}

	require.NoError(t, in.Apply(Rule{
		Pattern: "/api/courses",
		Kind:    KindTimeout,
		Latency: 5 * time.Second,
	}))

	start := time.Now()
	_, err := client.Get(baseURL + "/api/courses")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, time.Second, "the caller's own timeout should fire, not the injector's bound")
}

func TestInjectorRateLimit(t *testing.T) {
	in := NewInjector()
	client, baseURL := newTestClient(t, in)

	const limit = 3
	window := 200 * time.Millisecond

	require.NoError(t, in.Apply(Rule{
		Pattern: "/api/courses",
		Kind:    KindRateLimit,
		Limit:   limit,
		Window:  window,
	}))

	for i := 0; i < limit; i++ {
		resp, err := client.Get(baseURL + "/api/courses")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, "request %d should pass", i+1)
	}

	resp, err := client.Get(baseURL + "/api/courses")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// Counter resets once the window elapses.
	time.Sleep(window + 50*time.Millisecond)

	resp, err = client.Get(baseURL + "/api/courses")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInjectorOverload(t *testing.T) {
	in := NewInjector()
	client, baseURL := newTestClient(t, in)

	require.NoError(t, in.Apply(Rule{
		Pattern:            "/api/courses",
		Kind:               KindOverload,
		FailureProbability: 1,
		Latency:            50 * time.Millisecond,
	}))

	start := time.Now()
	resp, err := client.Get(baseURL + "/api/courses")
	elapsed := time.Since(start)

	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestInjectorOverwriteSemantics(t *testing.T) {
	in := NewInjector()
	client, baseURL := newTestClient(t, in)

	require.NoError(t, in.Apply(Rule{Pattern: "/api/courses", Kind: KindDisconnect}))
	require.NoError(t, in.Apply(Rule{
		Pattern:    "/api/courses",
		Kind:       KindHTTPError,
		StatusCode: http.StatusTeapot,
	}))

	require.Len(t, in.Active(), 1, "re-applying a pattern overwrites, not merges")

	resp, err := client.Get(baseURL + "/api/courses")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
}

func TestInjectorLastAppliedWinsAcrossPatterns(t *testing.T) {
	in := NewInjector()
	client, baseURL := newTestClient(t, in)

	require.NoError(t, in.Apply(Rule{Pattern: "/api/**", Kind: KindDisconnect}))
	require.NoError(t, in.Apply(Rule{
		Pattern:    "/api/courses",
		Kind:       KindHTTPError,
		StatusCode: http.StatusTooEarly,
	}))

	resp, err := client.Get(baseURL + "/api/courses")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooEarly, resp.StatusCode)
}

func TestInjectorClearAll(t *testing.T) {
	in := NewInjector()
	client, baseURL := newTestClient(t, in)

	require.NoError(t, in.Apply(Rule{Pattern: "/api/courses", Kind: KindDisconnect, Duration: time.Hour}))
	require.NoError(t, in.Apply(Rule{Pattern: "/api/lessons/**", Kind: KindDNS}))
	require.NoError(t, in.Apply(Rule{Pattern: "/api/quiz", Kind: KindHTTPError, StatusCode: 500}))

	in.ClearAll()
	require.Empty(t, in.Active())

	for _, path := range []string{"/api/courses", "/api/lessons/1", "/api/quiz"} {
		resp, err := client.Get(baseURL + path)
		require.NoError(t, err, "no interception may leak for %s", path)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	// The stale expiry timer must not resurrect anything.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, in.Active())
}

func TestInjectorInvalidPattern(t *testing.T) {
	in := NewInjector()

	err := in.Apply(Rule{Pattern: "/api/[", Kind: KindDisconnect})
	require.Error(t, err)
	assert.Empty(t, in.Active())
}

func TestInjectorWildcardSegments(t *testing.T) {
	in := NewInjector()
	client, baseURL := newTestClient(t, in)

	require.NoError(t, in.Apply(Rule{
		Pattern:    "/api/courses/*/lessons/*",
		Kind:       KindHTTPError,
		StatusCode: http.StatusNotFound,
	}))

	resp, err := client.Get(baseURL + "/api/courses/intro-to-go/lessons/3")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = client.Get(baseURL + "/api/courses/intro-to-go")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestParseKind(t *testing.T) {
	for _, name := range []string{"disconnect", "slow", "intermittent", "dns", "http_error", "timeout", "rate_limit", "overload"} {
		kind, err := ParseKind(name)
		require.NoError(t, err)
		assert.Equal(t, name, kind.String())
	}

	_, err := ParseKind("server")
	assert.Error(t, err)
}
