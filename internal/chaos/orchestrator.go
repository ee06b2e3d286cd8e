package chaos

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/perfgate/perfgate/internal/fault"
)

const (
	trialInterval = time.Second

	// defaultTrialFaultTTL bounds each randomly activated fault so a
	// single trial cannot outlive the run by much.
	defaultTrialFaultTTL = time.Second
)

// Options configures one chaos run.
type Options struct {
	// FailureRate is the per-tick probability of activating a fault.
	FailureRate float64

	// Kinds is the pool of fault kinds to draw from. Empty means the
	// full set of network fault kinds.
	Kinds []fault.Kind

	// Duration is the total length of the run; once it elapses the
	// orchestrator stops itself and clears the injector.
	Duration time.Duration

	// FaultTTL is how long each activated fault stays live. Zero
	// means defaultTrialFaultTTL.
	FaultTTL time.Duration
}

var defaultKinds = []fault.Kind{
	fault.KindDisconnect,
	fault.KindSlow,
	fault.KindIntermittent,
	fault.KindHTTPError,
	fault.KindOverload,
}

// Orchestrator runs randomized, time-bounded fault injection over a
// set of endpoints. At most one run is active at a time; starting a
// new run stops the previous one first.
type Orchestrator struct {
	inj *fault.Injector
	log *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	rng    *rand.Rand
}

func NewOrchestrator(inj *fault.Injector, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		inj: inj,
		log: logger,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start begins a chaos run over endpoints. The first trial happens
// immediately, then once per second until opts.Duration elapses or
// Stop is called.
func (o *Orchestrator) Start(endpoints []string, opts Options) {
	if len(endpoints) == 0 || opts.Duration <= 0 {
		return
	}
	if len(opts.Kinds) == 0 {
		opts.Kinds = defaultKinds
	}
	if opts.FaultTTL <= 0 {
		opts.FaultTTL = defaultTrialFaultTTL
	}

	o.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), opts.Duration)
	done := make(chan struct{})

	o.mu.Lock()
	o.cancel = cancel
	o.done = done
	o.mu.Unlock()

	o.log.Info("chaos run started",
		"endpoints", len(endpoints),
		"failure_rate", opts.FailureRate,
		"duration", opts.Duration)

	// Run the first trial synchronously so a failureRate of 1.0 is
	// observable on the very next request.
	o.trial(endpoints, opts)

	go o.run(ctx, done, endpoints, opts)
}

func (o *Orchestrator) run(ctx context.Context, done chan struct{}, endpoints []string, opts Options) {
	defer close(done)
	defer o.inj.ClearAll()

	ticker := time.NewTicker(trialInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.log.Info("chaos run finished")
			return
		case <-ticker.C:
			o.trial(endpoints, opts)
		}
	}
}

func (o *Orchestrator) trial(endpoints []string, opts Options) {
	o.mu.Lock()
	hit := o.rng.Float64() < opts.FailureRate
	var endpoint string
	var kind fault.Kind
	if hit {
		endpoint = endpoints[o.rng.Intn(len(endpoints))]
		kind = opts.Kinds[o.rng.Intn(len(opts.Kinds))]
	}
	o.mu.Unlock()

	if !hit {
		return
	}

	rule := trialRule(endpoint, kind, opts.FaultTTL)
	if err := o.inj.Apply(rule); err != nil {
		o.log.Warn("chaos trial skipped", "endpoint", endpoint, "error", err)
		return
	}

	o.log.Info("chaos fault activated", "endpoint", endpoint, "kind", kind.String())
}

// Stop ends the active run, cancels its timers and clears the
// injector. It is idempotent and safe to call when no run is active.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	cancel := o.cancel
	done := o.done
	o.cancel = nil
	o.done = nil
	o.mu.Unlock()

	if cancel == nil {
		o.inj.ClearAll()
		return
	}

	cancel()
	<-done
}

// Active reports whether a chaos run is in progress.
func (o *Orchestrator) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.done == nil {
		return false
	}
	select {
	case <-o.done:
		return false
	default:
		return true
	}
}

// trialRule fills in per-kind parameters that make a randomly drawn
// fault observable without stalling the run.
func trialRule(endpoint string, kind fault.Kind, ttl time.Duration) fault.Rule {
	rule := fault.Rule{
		Pattern:  endpoint,
		Kind:     kind,
		Duration: ttl,
	}

	switch kind {
	case fault.KindSlow:
		rule.Latency = 250 * time.Millisecond
	case fault.KindIntermittent:
		rule.FailureProbability = 0.5
	case fault.KindHTTPError:
		rule.StatusCode = http.StatusInternalServerError
	case fault.KindTimeout:
		rule.Latency = ttl
	case fault.KindRateLimit:
		rule.Limit = 5
		rule.Window = ttl
	case fault.KindOverload:
		rule.FailureProbability = 0.7
		rule.Latency = 100 * time.Millisecond
	}

	return rule
}
