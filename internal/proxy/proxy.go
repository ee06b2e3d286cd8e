// Package proxy runs a fault-injecting reverse proxy in front of the
// application under test, so suites in any language can point an API
// base URL at it and drive chaos over HTTP.
package proxy

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/perfgate/perfgate/internal/chaos"
	"github.com/perfgate/perfgate/internal/fault"
)

type Server struct {
	upstream *url.URL
	injector *fault.Injector
	orch     *chaos.Orchestrator
	log      *slog.Logger

	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

func NewServer(upstream string, logger *slog.Logger) (*Server, error) {
	raw := strings.TrimSpace(upstream)
	if raw == "" {
		return nil, fmt.Errorf("upstream is empty")
	}

	upURL, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	if upURL.Scheme != "http" && upURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid scheme in upstream URL")
	}

	if logger == nil {
		logger = slog.Default()
	}

	injector := fault.NewInjector()

	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chaosproxy",
		Name:      "requests_total",
		Help:      "Proxied requests by status class.",
	}, []string{"code"})
	if err := registry.Register(requests); err != nil {
		return nil, fmt.Errorf("registering request counter: %w", err)
	}

	return &Server{
		upstream: upURL,
		injector: injector,
		orch:     chaos.NewOrchestrator(injector, logger),
		log:      logger,
		registry: registry,
		requests: requests,
	}, nil
}

// Injector exposes the underlying fault injector for in-process use.
func (s *Server) Injector() *fault.Injector {
	return s.injector
}

// Handler mounts the admin API, the metrics endpoint and the proxy
// itself.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Route("/chaos", func(r chi.Router) {
		r.Post("/faults", s.handleApplyFault)
		r.Delete("/faults", s.handleClearFaults)
		r.Post("/random", s.handleStartChaos)
		r.Delete("/random", s.handleStopChaos)
		r.Get("/status", s.handleStatus)
	})

	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.NotFound(s.proxyHandler().ServeHTTP)

	return r
}

func (s *Server) proxyHandler() http.Handler {
	proxy := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = s.upstream.Scheme
			req.URL.Host = s.upstream.Host
			req.Host = s.upstream.Host
		},
		Transport: s.injector.Transport(http.DefaultTransport),
		ModifyResponse: func(resp *http.Response) error {
			s.requests.WithLabelValues(fmt.Sprintf("%dxx", resp.StatusCode/100)).Inc()
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, req *http.Request, err error) {
			s.requests.WithLabelValues("error").Inc()
			s.log.Debug("proxied request failed", "path", req.URL.Path, "error", err)
			// Injected transport failures surface as 502 to the suite,
			// matching a dead upstream.
			http.Error(w, err.Error(), http.StatusBadGateway)
		},
	}

	return proxy
}

type faultRequest struct {
	Pattern            string  `json:"pattern"`
	Kind               string  `json:"kind"`
	DurationMs         int64   `json:"durationMs,omitempty"`
	LatencyMs          int64   `json:"latencyMs,omitempty"`
	FailureProbability float64 `json:"failureProbability,omitempty"`
	StatusCode         int     `json:"statusCode,omitempty"`
	Body               string  `json:"body,omitempty"`
	ContentType        string  `json:"contentType,omitempty"`
	Limit              int     `json:"limit,omitempty"`
	WindowMs           int64   `json:"windowMs,omitempty"`
}

func (f *faultRequest) rule() (fault.Rule, error) {
	kind, err := fault.ParseKind(f.Kind)
	if err != nil {
		return fault.Rule{}, err
	}

	return fault.Rule{
		Pattern:            f.Pattern,
		Kind:               kind,
		Duration:           time.Duration(f.DurationMs) * time.Millisecond,
		Latency:            time.Duration(f.LatencyMs) * time.Millisecond,
		FailureProbability: f.FailureProbability,
		StatusCode:         f.StatusCode,
		Body:               f.Body,
		ContentType:        f.ContentType,
		Limit:              f.Limit,
		Window:             time.Duration(f.WindowMs) * time.Millisecond,
	}, nil
}

func (s *Server) handleApplyFault(w http.ResponseWriter, r *http.Request) {
	var req faultRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rule, err := req.rule()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.injector.Apply(rule); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.log.Info("fault applied", "pattern", rule.Pattern, "kind", rule.Kind.String())
	respondJSON(w, http.StatusCreated, map[string]string{"status": "applied"})
}

func (s *Server) handleClearFaults(w http.ResponseWriter, r *http.Request) {
	s.injector.ClearAll()
	s.log.Info("all faults cleared")
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

type chaosRequest struct {
	Endpoints   []string `json:"endpoints"`
	FailureRate float64  `json:"failureRate"`
	Kinds       []string `json:"kinds,omitempty"`
	DurationMs  int64    `json:"durationMs"`
}

func (s *Server) handleStartChaos(w http.ResponseWriter, r *http.Request) {
	var req chaosRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(req.Endpoints) == 0 {
		respondError(w, http.StatusBadRequest, "endpoints is required")
		return
	}
	if req.DurationMs <= 0 {
		respondError(w, http.StatusBadRequest, "durationMs must be positive")
		return
	}

	var kinds []fault.Kind
	for _, name := range req.Kinds {
		kind, err := fault.ParseKind(name)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		kinds = append(kinds, kind)
	}

	s.orch.Start(req.Endpoints, chaos.Options{
		FailureRate: req.FailureRate,
		Kinds:       kinds,
		Duration:    time.Duration(req.DurationMs) * time.Millisecond,
	})

	respondJSON(w, http.StatusCreated, map[string]string{"status": "started"})
}

func (s *Server) handleStopChaos(w http.ResponseWriter, r *http.Request) {
	s.orch.Stop()
	respondJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rules := s.injector.Active()

	active := make([]faultRequest, 0, len(rules))
	for _, rule := range rules {
		active = append(active, faultRequest{
			Pattern:            rule.Pattern,
			Kind:               rule.Kind.String(),
			DurationMs:         rule.Duration.Milliseconds(),
			LatencyMs:          rule.Latency.Milliseconds(),
			FailureProbability: rule.FailureProbability,
			StatusCode:         rule.StatusCode,
			Limit:              rule.Limit,
			WindowMs:           rule.Window.Milliseconds(),
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"upstream":    s.upstream.String(),
		"chaosActive": s.orch.Active(),
		"faults":      active,
		"injected":    s.injector.Injected(),
	})
}
