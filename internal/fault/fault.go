package fault

import (
	"fmt"
	"time"
)

// Kind enumerates the failure modes the injector can apply to a
// matching request.
type Kind int

const (
	KindDisconnect Kind = iota
	KindSlow
	KindIntermittent
	KindDNS
	KindHTTPError
	KindTimeout
	KindRateLimit
	KindOverload
)

var kindNames = map[Kind]string{
	KindDisconnect:   "disconnect",
	KindSlow:         "slow",
	KindIntermittent: "intermittent",
	KindDNS:          "dns",
	KindHTTPError:    "http_error",
	KindTimeout:      "timeout",
	KindRateLimit:    "rate_limit",
	KindOverload:     "overload",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown fault kind %q", s)
}

// Rule describes one fault applied to requests whose URL path matches
// Pattern (doublestar glob, wildcard segments allowed). Fields beyond
// Pattern and Kind are per-kind parameters; unused ones are ignored.
type Rule struct {
	Pattern string
	Kind    Kind

	// Duration is how long the rule stays active. Zero means until
	// explicitly cleared.
	Duration time.Duration

	// Latency delays the response for slow/http_error/overload, and
	// bounds the hang for timeout.
	Latency time.Duration

	// FailureProbability drives intermittent and overload trials.
	FailureProbability float64

	// StatusCode, Body and ContentType shape the synthetic response
	// for http_error.
	StatusCode  int
	Body        string
	ContentType string

	// Limit and Window configure the rate_limit sliding window.
	Limit  int
	Window time.Duration
}
