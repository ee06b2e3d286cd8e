// Package report renders validation and trend results for humans, CI
// logs and scrapers. It only consumes data produced elsewhere.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/perfgate/perfgate/internal/budget"
	"github.com/perfgate/perfgate/internal/history"
	"github.com/perfgate/perfgate/internal/perf"
)

// Data bundles everything one report covers.
type Data struct {
	TestName    string                          `json:"test_name"`
	Environment string                          `json:"environment"`
	Snapshot    perf.Snapshot                   `json:"snapshot"`
	Validation  budget.ValidationResult         `json:"validation"`
	Trends      map[string]*history.TrendResult `json:"trends,omitempty"`
	Regressions []string                        `json:"regressions,omitempty"`
}

// FormatText renders the console itemization printed at the end of a
// CI run.
func FormatText(data Data) string {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString("═══════════════════════════════════════════════════════\n")
	sb.WriteString("            PERFORMANCE BUDGET VALIDATION\n")
	sb.WriteString("═══════════════════════════════════════════════════════\n")
	sb.WriteString(fmt.Sprintf("Test:        %s\n", data.TestName))
	sb.WriteString(fmt.Sprintf("Environment: %s\n", data.Environment))
	sb.WriteString("\n")

	if data.Validation.Passed {
		sb.WriteString("PASSED - all metrics within budget\n")
	} else {
		sb.WriteString(fmt.Sprintf("FAILED - %d violation(s): %d error(s), %d warning(s)\n",
			len(data.Validation.Violations), data.Validation.Errors, data.Validation.Warnings))
		sb.WriteString("\n")

		for i, v := range data.Validation.Violations {
			sb.WriteString("───────────────────────────────────────────────────────\n")
			sb.WriteString(fmt.Sprintf("Violation #%d [%s]\n", i+1, v.Severity))
			sb.WriteString(fmt.Sprintf("Metric:    %s.%s\n", v.Category, v.Metric))
			sb.WriteString(fmt.Sprintf("Actual:    %s\n", formatValue(v.Actual)))
			sb.WriteString(fmt.Sprintf("Threshold: %s\n", formatValue(v.Threshold)))
		}
	}

	if len(data.Trends) > 0 {
		sb.WriteString("\n")
		sb.WriteString("Trends:\n")
		for _, path := range sortedTrendPaths(data.Trends) {
			trend := data.Trends[path]
			if trend == nil {
				sb.WriteString(fmt.Sprintf("  %-35s insufficient data\n", path))
				continue
			}
			sb.WriteString(fmt.Sprintf("  %-35s %-10s %+.1f%% over %d run(s)\n",
				path, trend.Direction, trend.PercentChange, trend.SampleCount))
		}
	}

	if len(data.Regressions) > 0 {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("REGRESSIONS DETECTED (%d):\n", len(data.Regressions)))
		for _, path := range data.Regressions {
			sb.WriteString(fmt.Sprintf("  %s\n", path))
		}
	}

	sb.WriteString("═══════════════════════════════════════════════════════\n")

	return sb.String()
}

// FormatMarkdown renders the same content for PR comments and job
// summaries.
func FormatMarkdown(data Data) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## Performance budget: %s\n\n", data.TestName))

	if data.Validation.Passed {
		sb.WriteString("**PASSED** — all metrics within budget.\n\n")
	} else {
		sb.WriteString(fmt.Sprintf("**FAILED** — %d violation(s) (%d errors, %d warnings).\n\n",
			len(data.Validation.Violations), data.Validation.Errors, data.Validation.Warnings))

		sb.WriteString("| Metric | Actual | Threshold | Severity |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, v := range data.Validation.Violations {
			sb.WriteString(fmt.Sprintf("| %s.%s | %s | %s | %s |\n",
				v.Category, v.Metric, formatValue(v.Actual), formatValue(v.Threshold), v.Severity))
		}
		sb.WriteString("\n")
	}

	if len(data.Trends) > 0 {
		sb.WriteString("### Trends\n\n")
		sb.WriteString("| Metric | Direction | Change | Samples |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, path := range sortedTrendPaths(data.Trends) {
			trend := data.Trends[path]
			if trend == nil {
				sb.WriteString(fmt.Sprintf("| %s | — | insufficient data | — |\n", path))
				continue
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %+.1f%% | %d |\n",
				path, trend.Direction, trend.PercentChange, trend.SampleCount))
		}
		sb.WriteString("\n")
	}

	if len(data.Regressions) > 0 {
		sb.WriteString("### Regressions\n\n")
		for _, path := range data.Regressions {
			sb.WriteString(fmt.Sprintf("- `%s`\n", path))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// FormatJSON dumps the full report payload.
func FormatJSON(data Data) (string, error) {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	return string(out), nil
}

func sortedTrendPaths(trends map[string]*history.TrendResult) []string {
	paths := make([]string, 0, len(trends))
	for path := range trends {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func formatValue(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
