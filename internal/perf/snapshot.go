package perf

import (
	"time"
)

// Snapshot is the immutable result of one measurement session. It is
// assembled once in Collector.Stop and never mutated afterward.
type Snapshot struct {
	SessionID    string             `json:"session_id"`
	PageLoad     PageLoadMetrics    `json:"page_load"`
	Network      NetworkMetrics     `json:"network"`
	API          APIMetrics         `json:"api"`
	Interactions InteractionMetrics `json:"interactions"`
	Resources    ResourceMetrics    `json:"resources"`
	Memory       MemoryMetrics      `json:"memory"`
	Timing       SessionTiming      `json:"timing"`
}

// PageLoadMetrics are navigation/paint timings in milliseconds. Paint
// fields are zero when the platform does not report them.
type PageLoadMetrics struct {
	DOMContentLoaded       float64 `json:"dom_content_loaded"`
	LoadComplete           float64 `json:"load_complete"`
	FirstPaint             float64 `json:"first_paint"`
	FirstContentfulPaint   float64 `json:"first_contentful_paint"`
	LargestContentfulPaint float64 `json:"largest_contentful_paint"`
}

type NetworkMetrics struct {
	TotalRequests         int            `json:"total_requests"`
	TotalTransferredBytes int64          `json:"total_transferred_bytes"`
	CachedRequests        int            `json:"cached_requests"`
	FailedRequests        int            `json:"failed_requests"`
	BreakdownByType       map[string]int `json:"breakdown_by_type,omitempty"`
}

type CallSample struct {
	URL        string  `json:"url"`
	DurationMs float64 `json:"duration_ms"`
	Status     int     `json:"status"`
}

type APIMetrics struct {
	TotalCalls            int          `json:"total_calls"`
	AverageResponseTimeMs float64      `json:"average_response_time_ms"`
	SlowestCall           *CallSample  `json:"slowest_call,omitempty"`
	FailedCalls           int          `json:"failed_calls"`
	Latency               LatencyStats `json:"latency"`
}

type InteractionSample struct {
	Label      string  `json:"label"`
	DurationMs float64 `json:"duration_ms"`
}

type InteractionMetrics struct {
	TotalInteractions  int                `json:"total_interactions"`
	AverageDurationMs  float64            `json:"average_duration_ms"`
	SlowestInteraction *InteractionSample `json:"slowest_interaction,omitempty"`
}

type ResourceTypeStats struct {
	Count     int   `json:"count"`
	SizeBytes int64 `json:"size_bytes"`
}

type ResourceMetrics struct {
	TotalCount        int                          `json:"total_count"`
	TotalSizeBytes    int64                        `json:"total_size_bytes"`
	AverageLoadTimeMs float64                      `json:"average_load_time_ms"`
	BreakdownByType   map[string]ResourceTypeStats `json:"breakdown_by_type,omitempty"`
}

// MemoryMetrics degrade to zeros on engines without heap
// introspection.
type MemoryMetrics struct {
	UsedHeapBytes  int64 `json:"used_heap_bytes"`
	TotalHeapBytes int64 `json:"total_heap_bytes"`
	HeapLimitBytes int64 `json:"heap_limit_bytes"`
}

type SessionTiming struct {
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	DurationMs int64     `json:"duration_ms"`
}

// MetricPaths lists every resolvable metric path in fixed check
// order: page load, network, api, interactions, resources, memory.
var MetricPaths = []string{
	"pageLoad.domContentLoaded",
	"pageLoad.loadComplete",
	"pageLoad.firstPaint",
	"pageLoad.firstContentfulPaint",
	"pageLoad.largestContentfulPaint",
	"network.totalRequests",
	"network.totalTransferredBytes",
	"network.cachedRequests",
	"network.failedRequests",
	"api.totalCalls",
	"api.averageResponseTimeMs",
	"api.failedCalls",
	"api.p95",
	"interactions.totalInteractions",
	"interactions.averageDurationMs",
	"resources.totalCount",
	"resources.totalSizeBytes",
	"resources.averageLoadTimeMs",
	"memory.usedHeapBytes",
	"memory.totalHeapBytes",
	"memory.heapLimitBytes",
}

// MetricValue resolves a dotted metric path such as
// "pageLoad.domContentLoaded" against a snapshot. The second return is
// false for unknown paths. Both the threshold validator and the trend
// computation resolve paths through this table.
func MetricValue(s Snapshot, path string) (float64, bool) {
	switch path {
	case "pageLoad.domContentLoaded":
		return s.PageLoad.DOMContentLoaded, true
	case "pageLoad.loadComplete":
		return s.PageLoad.LoadComplete, true
	case "pageLoad.firstPaint":
		return s.PageLoad.FirstPaint, true
	case "pageLoad.firstContentfulPaint":
		return s.PageLoad.FirstContentfulPaint, true
	case "pageLoad.largestContentfulPaint":
		return s.PageLoad.LargestContentfulPaint, true
	case "network.totalRequests":
		return float64(s.Network.TotalRequests), true
	case "network.totalTransferredBytes":
		return float64(s.Network.TotalTransferredBytes), true
	case "network.cachedRequests":
		return float64(s.Network.CachedRequests), true
	case "network.failedRequests":
		return float64(s.Network.FailedRequests), true
	case "api.totalCalls":
		return float64(s.API.TotalCalls), true
	case "api.averageResponseTimeMs":
		return s.API.AverageResponseTimeMs, true
	case "api.failedCalls":
		return float64(s.API.FailedCalls), true
	case "api.p95":
		return s.API.Latency.P95, true
	case "interactions.totalInteractions":
		return float64(s.Interactions.TotalInteractions), true
	case "interactions.averageDurationMs":
		return s.Interactions.AverageDurationMs, true
	case "resources.totalCount":
		return float64(s.Resources.TotalCount), true
	case "resources.totalSizeBytes":
		return float64(s.Resources.TotalSizeBytes), true
	case "resources.averageLoadTimeMs":
		return s.Resources.AverageLoadTimeMs, true
	case "memory.usedHeapBytes":
		return float64(s.Memory.UsedHeapBytes), true
	case "memory.totalHeapBytes":
		return float64(s.Memory.TotalHeapBytes), true
	case "memory.heapLimitBytes":
		return float64(s.Memory.HeapLimitBytes), true
	}
	return 0, false
}
