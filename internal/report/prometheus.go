package report

import (
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/perfgate/perfgate/internal/perf"
)

// Registry builds a prometheus registry exposing the snapshot metrics
// and validation counts, labelled by test and environment. Scraped by
// CI dashboards or written as a textfile for the node exporter.
func Registry(data Data) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()

	metric := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "perfgate",
		Name:      "metric_value",
		Help:      "Latest measured value per metric path.",
	}, []string{"test", "environment", "metric"})

	violations := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "perfgate",
		Name:      "violations_total",
		Help:      "Budget violations in the latest run, by severity.",
	}, []string{"test", "environment", "severity"})

	passed := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "perfgate",
		Name:      "validation_passed",
		Help:      "1 when the latest run passed its budget, else 0.",
	}, []string{"test", "environment"})

	for _, collector := range []prometheus.Collector{metric, violations, passed} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("registering collector: %w", err)
		}
	}

	for _, path := range perf.MetricPaths {
		value, ok := perf.MetricValue(data.Snapshot, path)
		if !ok {
			continue
		}
		metric.WithLabelValues(data.TestName, data.Environment, promPath(path)).Set(value)
	}

	violations.WithLabelValues(data.TestName, data.Environment, "error").Set(float64(data.Validation.Errors))
	violations.WithLabelValues(data.TestName, data.Environment, "warning").Set(float64(data.Validation.Warnings))

	var passedValue float64
	if data.Validation.Passed {
		passedValue = 1
	}
	passed.WithLabelValues(data.TestName, data.Environment).Set(passedValue)

	return reg, nil
}

// WritePrometheus writes the registry contents in text exposition
// format to outputPath.
func WritePrometheus(data Data, outputPath string) error {
	reg, err := Registry(data)
	if err != nil {
		return err
	}

	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	encoder := expfmt.NewEncoder(file, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			return fmt.Errorf("encoding metric family: %w", err)
		}
	}

	return nil
}

// promPath turns "pageLoad.domContentLoaded" into
// "page_load_dom_content_loaded".
func promPath(path string) string {
	var sb strings.Builder
	for _, r := range path {
		switch {
		case r == '.':
			sb.WriteByte('_')
		case r >= 'A' && r <= 'Z':
			sb.WriteByte('_')
			sb.WriteRune(r + ('a' - 'A'))
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
