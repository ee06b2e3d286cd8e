package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/perfgate/perfgate/internal/budget"
	"github.com/perfgate/perfgate/internal/cli"
	"github.com/perfgate/perfgate/internal/history"
	"github.com/perfgate/perfgate/internal/perf"
	"github.com/perfgate/perfgate/internal/report"
)

func main() {
	os.Exit(int(run()))
}

func run() cli.ExitCode {
	args, code := cli.ParseArgs()
	if code != cli.ExitOK {
		return code
	}

	return execute(args)
}

func execute(args *cli.CliArgs) cli.ExitCode {
	ctx := context.Background()

	snapshot, err := loadSnapshot(args.SnapshotFile)
	if err != nil {
		return handleError("Failed to load snapshot", err)
	}

	config, err := budget.Load(args.BudgetFile)
	if err != nil {
		return handleError("Failed to load budget", err)
	}

	thresholds, err := config.Resolve(args.Environment, args.Flow)
	if err != nil {
		return handleError("Failed to resolve budget profile", err)
	}

	validation := budget.Validate(snapshot, thresholds)

	store, closeStore, err := openStore(ctx, args)
	if err != nil {
		return handleError("Failed to open history store", err)
	}
	defer closeStore()

	entry := history.Entry{
		ID:          uuid.New(),
		TestName:    args.TestName,
		Timestamp:   time.Now(),
		Environment: args.Environment,
		Snapshot:    snapshot,
		Validation:  validation,
		Metadata: history.Metadata{
			Browser:  args.Browser,
			Viewport: args.Viewport,
			Commit:   args.Commit,
			Branch:   args.Branch,
		},
	}

	if err := store.Record(ctx, entry); err != nil {
		return handleError("Failed to record history", err)
	}

	entries, err := store.History(ctx, args.TestName)
	if err != nil {
		return handleError("Failed to read history", err)
	}

	trends, regressions := analyzeTrends(entries, args)

	data := report.Data{
		TestName:    args.TestName,
		Environment: args.Environment,
		Snapshot:    snapshot,
		Validation:  validation,
		Trends:      trends,
		Regressions: regressions,
	}

	if code := writeReports(args, data); code != cli.ExitOK {
		return code
	}

	if args.OutputJSON {
		out, err := report.FormatJSON(data)
		if err != nil {
			return handleError("Failed to encode report", err)
		}
		fmt.Println(out)
	} else {
		fmt.Fprint(os.Stderr, report.FormatText(data))
	}

	return verdict(validation, regressions)
}

func loadSnapshot(path string) (perf.Snapshot, error) {
	var snapshot perf.Snapshot

	data, err := os.ReadFile(path)
	if err != nil {
		return snapshot, fmt.Errorf("reading snapshot file: %w", err)
	}

	if err := json.Unmarshal(data, &snapshot); err != nil {
		return snapshot, fmt.Errorf("decoding snapshot file: %w", err)
	}

	return snapshot, nil
}

func openStore(ctx context.Context, args *cli.CliArgs) (history.Store, func(), error) {
	if args.DatabaseURL != "" {
		store, err := history.Connect(ctx, args.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}

	store, err := history.NewFileStore(args.HistoryDir)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {}, nil
}

// analyzeTrends computes a trend per requested metric and flags
// regressions: an increasing direction past the configured percent
// gate. Every tracked metric is lower-is-better.
func analyzeTrends(entries []history.Entry, args *cli.CliArgs) (map[string]*history.TrendResult, []string) {
	if len(args.TrendMetrics) == 0 {
		return nil, nil
	}

	window := time.Duration(args.TrendWindowDays) * 24 * time.Hour
	now := time.Now()

	trends := make(map[string]*history.TrendResult, len(args.TrendMetrics))
	var regressions []string

	for _, path := range args.TrendMetrics {
		trend := history.Trend(entries, path, window, now)
		trends[path] = trend

		if trend != nil &&
			trend.Direction == history.DirectionIncreasing &&
			trend.PercentChange >= args.RegressionPercent {
			regressions = append(regressions, path)
		}
	}

	return trends, regressions
}

func writeReports(args *cli.CliArgs, data report.Data) cli.ExitCode {
	if args.MarkdownOut != "" {
		if err := os.WriteFile(args.MarkdownOut, []byte(report.FormatMarkdown(data)), 0o644); err != nil {
			return handleError("Failed to write markdown report", err)
		}
	}

	if args.HTMLOut != "" {
		if err := report.GenerateHTML(data, args.HTMLOut); err != nil {
			return handleError("Failed to write HTML report", err)
		}
	}

	if args.JSONOut != "" {
		out, err := report.FormatJSON(data)
		if err != nil {
			return handleError("Failed to encode JSON report", err)
		}
		if err := os.WriteFile(args.JSONOut, []byte(out), 0o644); err != nil {
			return handleError("Failed to write JSON report", err)
		}
	}

	if args.PromOut != "" {
		if err := report.WritePrometheus(data, args.PromOut); err != nil {
			return handleError("Failed to write Prometheus report", err)
		}
	}

	return cli.ExitOK
}

// verdict maps the run outcome to the CI exit-code contract:
// error-severity violations and regressions block, warnings alone do
// not.
func verdict(validation budget.ValidationResult, regressions []string) cli.ExitCode {
	if validation.Errors > 0 {
		return cli.ExitViolations
	}
	if len(regressions) > 0 {
		return cli.ExitRegression
	}
	return cli.ExitOK
}

func handleError(msg string, err error) cli.ExitCode {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	return cli.ExitRuntime
}
