package perf

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

type callObservation struct {
	url      string
	duration time.Duration
	status   int
	failed   bool
}

// Collector measures one bounded session: API calls issued through its
// Transport, interactions wrapped with MeasureInteraction, and the
// platform readings pulled from its TimingSource at Stop.
type Collector struct {
	src TimingSource
	log *slog.Logger

	mu           sync.Mutex
	active       bool
	sessionID    string
	start        time.Time
	calls        []callObservation
	interactions []InteractionSample
}

func NewCollector(src TimingSource, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{src: src, log: logger}
}

// Start resets all counters and begins a new session. A session
// already in progress is discarded.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.active = true
	c.sessionID = uuid.NewString()
	c.start = time.Now()
	c.calls = nil
	c.interactions = nil
}

// Stop finalizes the session and returns its Snapshot. Platform
// readings that are unavailable or failing degrade to zero values;
// measurement never aborts the test it observes.
func (c *Collector) Stop() Snapshot {
	c.mu.Lock()
	c.active = false
	sessionID := c.sessionID
	start := c.start
	calls := c.calls
	interactions := c.interactions
	c.mu.Unlock()

	page, resources, memory := c.readSource()

	snap := Snapshot{
		SessionID:    sessionID,
		PageLoad:     page,
		Network:      networkMetrics(resources, calls),
		API:          apiMetrics(calls),
		Interactions: interactionMetrics(interactions),
		Resources:    resourceMetrics(resources),
		Memory:       memory,
	}

	// Without a preceding Start there is no session to time; the
	// timing block degrades to zeros like the platform readings do.
	if !start.IsZero() {
		end := time.Now()
		snap.Timing = SessionTiming{
			StartTime:  start,
			EndTime:    end,
			DurationMs: end.Sub(start).Milliseconds(),
		}
	}

	return snap
}

func (c *Collector) readSource() (PageLoadMetrics, []ResourceSample, MemoryMetrics) {
	var page PageLoadMetrics
	var resources []ResourceSample
	var memory MemoryMetrics

	if c.src == nil {
		return page, resources, memory
	}

	var err error
	if page, err = c.src.PageLoad(); err != nil {
		c.log.Debug("page load timing unavailable", "error", err)
		page = PageLoadMetrics{}
	}
	if resources, err = c.src.Resources(); err != nil {
		c.log.Debug("resource timing unavailable", "error", err)
		resources = nil
	}
	if memory, err = c.src.Memory(); err != nil {
		c.log.Debug("heap memory unavailable", "error", err)
		memory = MemoryMetrics{}
	}

	return page, resources, memory
}

// MeasureInteraction wraps one user action, recording its wall-clock
// duration under label. The action's outcome passes through untouched:
// an error is returned as-is and a panic is re-raised after the
// observation is recorded.
func (c *Collector) MeasureInteraction(label string, fn func() error) error {
	start := time.Now()

	defer func() {
		c.recordInteraction(label, time.Since(start))
		if r := recover(); r != nil {
			panic(r)
		}
	}()

	return fn()
}

// MeasureInteractionValue is MeasureInteraction for actions that
// return a value alongside their error.
func MeasureInteractionValue[T any](c *Collector, label string, fn func() (T, error)) (T, error) {
	start := time.Now()

	defer func() {
		c.recordInteraction(label, time.Since(start))
		if r := recover(); r != nil {
			panic(r)
		}
	}()

	return fn()
}

func (c *Collector) recordInteraction(label string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return
	}
	c.interactions = append(c.interactions, InteractionSample{
		Label:      label,
		DurationMs: float64(d) / float64(time.Millisecond),
	})
}

// Transport returns a RoundTripper that records API call timings while
// a session is active. A nil next falls back to http.DefaultTransport.
func (c *Collector) Transport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &observingTransport{c: c, next: next}
}

type observingTransport struct {
	c    *Collector
	next http.RoundTripper
}

func (t *observingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	elapsed := time.Since(start)

	obs := callObservation{
		url:      req.URL.String(),
		duration: elapsed,
	}
	if err != nil {
		obs.failed = true
	} else {
		obs.status = resp.StatusCode
		obs.failed = resp.StatusCode >= 400
	}

	t.c.recordCall(obs)

	return resp, err
}

func (c *Collector) recordCall(obs callObservation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return
	}
	c.calls = append(c.calls, obs)
}

// apiMetrics aggregates observed calls. The average covers successful
// (2xx) calls only; failures are tallied separately. Slowest is the
// first-observed maximum.
func apiMetrics(calls []callObservation) APIMetrics {
	m := APIMetrics{TotalCalls: len(calls)}

	var sumMs float64
	var successes int
	var latencies []float64
	var slowest *CallSample

	for _, call := range calls {
		ms := float64(call.duration) / float64(time.Millisecond)

		if call.failed {
			m.FailedCalls++
		} else if call.status >= 200 && call.status < 300 {
			successes++
			sumMs += ms
			latencies = append(latencies, ms)
		}

		if slowest == nil || ms > slowest.DurationMs {
			slowest = &CallSample{URL: call.url, DurationMs: ms, Status: call.status}
		}
	}

	if successes > 0 {
		m.AverageResponseTimeMs = sumMs / float64(successes)
	}
	m.SlowestCall = slowest
	m.Latency = CalculateLatencyStats(latencies)

	return m
}

func interactionMetrics(interactions []InteractionSample) InteractionMetrics {
	m := InteractionMetrics{TotalInteractions: len(interactions)}
	if len(interactions) == 0 {
		return m
	}

	var sum float64
	var slowest *InteractionSample

	for i := range interactions {
		sample := interactions[i]
		sum += sample.DurationMs
		if slowest == nil || sample.DurationMs > slowest.DurationMs {
			copied := sample
			slowest = &copied
		}
	}

	m.AverageDurationMs = sum / float64(len(interactions))
	m.SlowestInteraction = slowest

	return m
}

// networkMetrics summarizes platform-reported requests. Cache hits are
// entries that transferred nothing but decoded something. Transport
// failures observed on API calls count as failed requests since
// resource timing does not surface them.
func networkMetrics(resources []ResourceSample, calls []callObservation) NetworkMetrics {
	m := NetworkMetrics{
		TotalRequests:   len(resources),
		BreakdownByType: make(map[string]int),
	}

	for _, res := range resources {
		m.TotalTransferredBytes += res.TransferSize
		if res.TransferSize == 0 && res.DecodedSize > 0 {
			m.CachedRequests++
		}
		if res.Type != "" {
			m.BreakdownByType[res.Type]++
		}
	}

	for _, call := range calls {
		if call.failed && call.status == 0 {
			m.FailedRequests++
		}
	}

	return m
}

func resourceMetrics(resources []ResourceSample) ResourceMetrics {
	m := ResourceMetrics{
		TotalCount:      len(resources),
		BreakdownByType: make(map[string]ResourceTypeStats),
	}
	if len(resources) == 0 {
		return m
	}

	var sumMs float64
	for _, res := range resources {
		size := res.TransferSize
		m.TotalSizeBytes += size
		sumMs += res.DurationMs

		typ := res.Type
		if typ == "" {
			typ = "other"
		}
		stats := m.BreakdownByType[typ]
		stats.Count++
		stats.SizeBytes += size
		m.BreakdownByType[typ] = stats
	}

	m.AverageLoadTimeMs = sumMs / float64(len(resources))

	return m
}
