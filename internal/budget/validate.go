package budget

import (
	"strings"

	"github.com/perfgate/perfgate/internal/perf"
)

// checkOrder fixes the order violations appear in: page load first,
// then network, api, interactions, resources, memory. Within a
// category the listed metric order applies.
var checkOrder = perf.MetricPaths

func knownMetric(path string) bool {
	for _, known := range checkOrder {
		if known == path {
			return true
		}
	}
	return false
}

type Violation struct {
	Category  string   `json:"category"`
	Metric    string   `json:"metric"`
	Actual    float64  `json:"actual"`
	Threshold float64  `json:"threshold"`
	Severity  Severity `json:"severity"`
}

type ValidationResult struct {
	Passed     bool        `json:"passed"`
	Violations []Violation `json:"violations"`
	Errors     int         `json:"errors"`
	Warnings   int         `json:"warnings"`
}

// Validate compares a snapshot against a threshold profile. It is a
// pure function: identical inputs always yield an identical result,
// violations in the fixed check order. Passed is false on any
// violation, warnings included; only error-severity items are meant to
// block CI, which is the caller's policy, not this function's.
func Validate(snap perf.Snapshot, thresholds Profile) ValidationResult {
	result := ValidationResult{Passed: true}

	for _, path := range checkOrder {
		threshold, ok := thresholds[path]
		if !ok {
			continue
		}

		actual, ok := perf.MetricValue(snap, path)
		if !ok {
			continue
		}

		if actual > threshold.Max {
			category, metric, _ := strings.Cut(path, ".")
			severity := withDefaultSeverity(threshold).Severity

			result.Violations = append(result.Violations, Violation{
				Category:  category,
				Metric:    metric,
				Actual:    actual,
				Threshold: threshold.Max,
				Severity:  severity,
			})

			if severity == SeverityWarning {
				result.Warnings++
			} else {
				result.Errors++
			}
		}
	}

	result.Passed = len(result.Violations) == 0

	return result
}
