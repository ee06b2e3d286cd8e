package fault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrDisconnected is returned by the transport when a disconnect or
// intermittent rule drops the request before it reaches the network.
var ErrDisconnected = errors.New("fault: connection dropped")

// defaultHangBound keeps a timeout rule from blocking forever when the
// caller forgot to set its own request deadline.
const defaultHangBound = 5 * time.Minute

type activeRule struct {
	rule      Rule
	appliedAt time.Time
	timer     *time.Timer
	hits      []time.Time
}

// Injector owns a set of fault rules and produces an http.RoundTripper
// that applies them to matching requests. It replaces ambient
// module-level interception state with an explicit object so parallel
// test harnesses stay isolated.
type Injector struct {
	mu       sync.Mutex
	rules    []*activeRule
	rng      *rand.Rand
	injected map[Kind]int64
}

func NewInjector() *Injector {
	return &Injector{
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		injected: make(map[Kind]int64),
	}
}

// Apply registers a rule. A rule for an already-registered pattern
// replaces the old one (overwrite, not merge). Rules with a positive
// Duration clear themselves when it elapses.
func (in *Injector) Apply(rule Rule) error {
	if !doublestar.ValidatePattern(rule.Pattern) {
		return fmt.Errorf("invalid endpoint pattern %q", rule.Pattern)
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	in.removeLocked(rule.Pattern)

	ar := &activeRule{rule: rule, appliedAt: time.Now()}
	if rule.Duration > 0 {
		ar.timer = time.AfterFunc(rule.Duration, func() {
			in.expire(ar)
		})
	}
	in.rules = append(in.rules, ar)

	return nil
}

// Clear removes the rule registered for pattern, if any, and cancels
// its expiry timer.
func (in *Injector) Clear(pattern string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.removeLocked(pattern)
}

// ClearAll removes every rule and cancels all pending expiry timers.
// Subsequent requests pass through untouched.
func (in *Injector) ClearAll() {
	in.mu.Lock()
	defer in.mu.Unlock()

	for _, ar := range in.rules {
		if ar.timer != nil {
			ar.timer.Stop()
		}
	}
	in.rules = nil
}

// Active returns the currently registered rules, oldest first.
func (in *Injector) Active() []Rule {
	in.mu.Lock()
	defer in.mu.Unlock()

	rules := make([]Rule, 0, len(in.rules))
	for _, ar := range in.rules {
		rules = append(rules, ar.rule)
	}
	return rules
}

// Injected reports how many faults have fired, per kind.
func (in *Injector) Injected() map[string]int64 {
	in.mu.Lock()
	defer in.mu.Unlock()

	out := make(map[string]int64, len(in.injected))
	for k, n := range in.injected {
		out[k.String()] = n
	}
	return out
}

func (in *Injector) removeLocked(pattern string) {
	kept := in.rules[:0]
	for _, ar := range in.rules {
		if ar.rule.Pattern == pattern {
			if ar.timer != nil {
				ar.timer.Stop()
			}
			continue
		}
		kept = append(kept, ar)
	}
	in.rules = kept
}

// expire removes ar only if it is still registered; a rule replaced or
// cleared before its timer fired must stay gone.
func (in *Injector) expire(ar *activeRule) {
	in.mu.Lock()
	defer in.mu.Unlock()

	kept := in.rules[:0]
	for _, cur := range in.rules {
		if cur == ar {
			continue
		}
		kept = append(kept, cur)
	}
	in.rules = kept
}

// match returns the most recently applied rule whose pattern matches
// the request URL, or nil.
func (in *Injector) match(u string, path string) *activeRule {
	in.mu.Lock()
	defer in.mu.Unlock()

	for i := len(in.rules) - 1; i >= 0; i-- {
		ar := in.rules[i]
		if ok, _ := doublestar.Match(ar.rule.Pattern, path); ok {
			return ar
		}
		if ok, _ := doublestar.Match(ar.rule.Pattern, u); ok {
			return ar
		}
	}
	return nil
}

func (in *Injector) recordInjection(k Kind) {
	in.mu.Lock()
	in.injected[k]++
	in.mu.Unlock()
}

// Transport wraps next with the injector. A nil next falls back to
// http.DefaultTransport.
func (in *Injector) Transport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &transport{in: in, next: next}
}

type transport struct {
	in   *Injector
	next http.RoundTripper
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ar := t.in.match(req.URL.String(), req.URL.Path)
	if ar == nil {
		return t.next.RoundTrip(req)
	}
	return t.in.roundTrip(ar, req, t.next)
}

func (in *Injector) roundTrip(ar *activeRule, req *http.Request, next http.RoundTripper) (*http.Response, error) {
	rule := ar.rule

	switch rule.Kind {
	case KindDisconnect:
		in.recordInjection(rule.Kind)
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: ErrDisconnected}

	case KindSlow:
		in.recordInjection(rule.Kind)
		if err := sleep(req.Context(), rule.Latency); err != nil {
			return nil, err
		}
		return next.RoundTrip(req)

	case KindIntermittent:
		if in.trial(rule.FailureProbability) {
			in.recordInjection(rule.Kind)
			return nil, &net.OpError{Op: "read", Net: "tcp", Err: ErrDisconnected}
		}
		return next.RoundTrip(req)

	case KindDNS:
		in.recordInjection(rule.Kind)
		return nil, &net.DNSError{
			Err:        "no such host",
			Name:       req.URL.Hostname(),
			IsNotFound: true,
		}

	case KindHTTPError:
		in.recordInjection(rule.Kind)
		if err := sleep(req.Context(), rule.Latency); err != nil {
			return nil, err
		}
		return synthetic(req, rule), nil

	case KindTimeout:
		in.recordInjection(rule.Kind)
		bound := rule.Latency
		if bound <= 0 {
			bound = defaultHangBound
		}
		// Hang until the caller's own deadline fires; if it never
		// does, give up after the bound and let traffic through.
		if err := sleep(req.Context(), bound); err != nil {
			return nil, err
		}
		return next.RoundTrip(req)

	case KindRateLimit:
		if in.overLimit(ar) {
			in.recordInjection(rule.Kind)
			return rateLimited(req, rule), nil
		}
		return next.RoundTrip(req)

	case KindOverload:
		if in.trial(rule.FailureProbability) {
			in.recordInjection(rule.Kind)
			delay := rule.Latency
			if delay <= 0 {
				delay = 500 * time.Millisecond
			}
			if err := sleep(req.Context(), delay); err != nil {
				return nil, err
			}
			overloaded := rule
			overloaded.StatusCode = http.StatusServiceUnavailable
			overloaded.Body = `{"error":"service overloaded"}`
			overloaded.ContentType = "application/json"
			return synthetic(req, overloaded), nil
		}
		return next.RoundTrip(req)
	}

	return next.RoundTrip(req)
}

func (in *Injector) trial(p float64) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.rng.Float64() < p
}

// overLimit slides the rule's hit window forward and reports whether
// this request exceeds the configured limit.
func (in *Injector) overLimit(ar *activeRule) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-ar.rule.Window)

	kept := ar.hits[:0]
	for _, hit := range ar.hits {
		if hit.After(cutoff) {
			kept = append(kept, hit)
		}
	}
	ar.hits = kept

	if len(ar.hits) >= ar.rule.Limit {
		return true
	}
	ar.hits = append(ar.hits, now)
	return false
}

func synthetic(req *http.Request, rule Rule) *http.Response {
	status := rule.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	body := rule.Body
	if body == "" {
		body = fmt.Sprintf(`{"error":"injected failure","status":%d}`, status)
	}
	contentType := rule.ContentType
	if contentType == "" {
		contentType = "application/json"
	}

	header := make(http.Header)
	header.Set("Content-Type", contentType)

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

func rateLimited(req *http.Request, rule Rule) *http.Response {
	retryAfter := int(rule.Window / time.Second)
	if retryAfter < 1 {
		retryAfter = 1
	}

	resp := synthetic(req, Rule{
		StatusCode:  http.StatusTooManyRequests,
		Body:        fmt.Sprintf(`{"error":"rate limit exceeded","retryAfter":%d}`, retryAfter),
		ContentType: "application/json",
	})
	resp.Header.Set("Retry-After", strconv.Itoa(retryAfter))
	return resp
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
