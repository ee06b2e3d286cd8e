// Package budget loads performance budgets and validates snapshots
// against them.
package budget

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Threshold is a maximum acceptable value for one metric path.
type Threshold struct {
	Max      float64  `yaml:"max" json:"max"`
	Severity Severity `yaml:"severity" json:"severity"`
}

// Profile maps metric paths (e.g. "pageLoad.domContentLoaded") to
// thresholds.
type Profile map[string]Threshold

// Config holds environment profiles (development/production/ci) and
// flow profiles (login, dashboard, ...) that override the environment
// profile per metric path.
type Config struct {
	Environments map[string]Profile `yaml:"environments"`
	Flows        map[string]Profile `yaml:"flows"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading budget file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing budget file: %w", err)
	}

	for name, profile := range cfg.Environments {
		if err := checkProfile(profile); err != nil {
			return nil, fmt.Errorf("environment %q: %w", name, err)
		}
	}
	for name, profile := range cfg.Flows {
		if err := checkProfile(profile); err != nil {
			return nil, fmt.Errorf("flow %q: %w", name, err)
		}
	}

	return &cfg, nil
}

func checkProfile(p Profile) error {
	for path, threshold := range p {
		if !knownMetric(path) {
			return fmt.Errorf("unknown metric path %q", path)
		}
		switch threshold.Severity {
		case SeverityError, SeverityWarning, "":
		default:
			return fmt.Errorf("metric %q: unknown severity %q", path, threshold.Severity)
		}
	}
	return nil
}

// Resolve builds the effective threshold set: the named environment
// profile overlaid field-by-field with the named flow profile. Empty
// names skip that layer; an unknown name is an error.
func (c *Config) Resolve(env, flow string) (Profile, error) {
	effective := Profile{}

	if env != "" {
		base, ok := c.Environments[env]
		if !ok {
			return nil, fmt.Errorf("unknown environment profile %q", env)
		}
		for path, threshold := range base {
			effective[path] = withDefaultSeverity(threshold)
		}
	}

	if flow != "" {
		overlay, ok := c.Flows[flow]
		if !ok {
			return nil, fmt.Errorf("unknown flow profile %q", flow)
		}
		for path, threshold := range overlay {
			effective[path] = withDefaultSeverity(threshold)
		}
	}

	return effective, nil
}

func withDefaultSeverity(t Threshold) Threshold {
	if t.Severity == "" {
		t.Severity = SeverityError
	}
	return t
}
