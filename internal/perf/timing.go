package perf

// ResourceSample is one resource-timing entry as reported by the
// platform under test. A zero TransferSize with a nonzero DecodedSize
// means the resource was served from cache.
type ResourceSample struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	TransferSize int64   `json:"transfer_size"`
	DecodedSize  int64   `json:"decoded_size"`
	DurationMs   float64 `json:"duration_ms"`
}

// TimingSource abstracts the browser-level timing surfaces the
// collector reads at session stop: navigation/paint timing, resource
// timing and heap introspection. Implementations bridge to whatever
// automation driver the suite runs under. Any method may fail or a
// source may be absent entirely; the collector degrades those readings
// to zeros instead of failing the session.
type TimingSource interface {
	PageLoad() (PageLoadMetrics, error)
	Resources() ([]ResourceSample, error)
	Memory() (MemoryMetrics, error)
}

// StaticTimingSource returns fixed readings. Useful in tests and when
// replaying timings captured out of band.
type StaticTimingSource struct {
	Page PageLoadMetrics
	Res  []ResourceSample
	Mem  MemoryMetrics
}

func (s *StaticTimingSource) PageLoad() (PageLoadMetrics, error) {
	return s.Page, nil
}

func (s *StaticTimingSource) Resources() ([]ResourceSample, error) {
	return s.Res, nil
}

func (s *StaticTimingSource) Memory() (MemoryMetrics, error) {
	return s.Mem, nil
}
