package cli

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type ExitCode int

const (
	ExitOK ExitCode = iota
	ExitViolations
	ExitRegression
	ExitInvalid
	ExitRuntime
)

type CliArgs struct {
	SnapshotFile string
	BudgetFile   string
	TestName     string
	Environment  string
	Flow         string

	HistoryDir  string
	DatabaseURL string

	TrendMetrics      []string
	TrendWindowDays   int
	RegressionPercent float64

	OutputJSON  bool
	MarkdownOut string
	HTMLOut     string
	JSONOut     string
	PromOut     string

	Browser  string
	Viewport string
	Commit   string
	Branch   string
}

func ParseArgs() (*CliArgs, ExitCode) {
	args := &CliArgs{}

	flag.StringVar(&args.SnapshotFile, "snapshot", "", "Path to the performance snapshot JSON file")
	flag.StringVar(&args.BudgetFile, "budget", "", "Path to the budget YAML file")
	flag.StringVar(&args.TestName, "test", "", "Logical test name the run belongs to")
	flag.StringVar(&args.Environment, "env", defaultEnvironment(), "Environment profile (development, production, ci)")
	flag.StringVar(&args.Flow, "flow", "", "Flow profile overriding the environment profile (e.g. login)")

	flag.StringVar(&args.HistoryDir, "history-dir", ".perfgate", "Directory for the JSON history store")
	flag.StringVar(&args.DatabaseURL, "db-url", os.Getenv("PERFGATE_DATABASE_URL"), "Postgres URL for a shared history store (overrides -history-dir)")

	var trendMetricsFlag stringSlice
	flag.Var(&trendMetricsFlag, "trend-metric", "Metric path to trend (can be repeated)")
	flag.IntVar(&args.TrendWindowDays, "trend-window", 7, "Trend window in days")
	flag.Float64Var(&args.RegressionPercent, "regression-percent", 10, "Percent change that counts as a regression")

	flag.BoolVar(&args.OutputJSON, "output-json", false, "Print the report as JSON instead of text")
	flag.StringVar(&args.MarkdownOut, "markdown-report", "", "Write a Markdown report at the specified path")
	flag.StringVar(&args.HTMLOut, "html-report", "", "Write an HTML report at the specified path")
	flag.StringVar(&args.JSONOut, "json-report", "", "Write a JSON report at the specified path")
	flag.StringVar(&args.PromOut, "prom-report", "", "Write a Prometheus textfile at the specified path")

	flag.StringVar(&args.Browser, "browser", "", "Browser the snapshot was captured with")
	flag.StringVar(&args.Viewport, "viewport", "", "Viewport the snapshot was captured with")
	flag.StringVar(&args.Commit, "commit", detectCommit(), "Commit the run was measured at")
	flag.StringVar(&args.Branch, "branch", detectBranch(), "Branch the run was measured at")

	flag.Parse()

	args.TrendMetrics = trendMetricsFlag

	if args.SnapshotFile == "" {
		fmt.Fprintln(os.Stderr, "Error: --snapshot is required")
		flag.Usage()
		return nil, ExitInvalid
	}

	if args.BudgetFile == "" {
		fmt.Fprintln(os.Stderr, "Error: --budget is required")
		flag.Usage()
		return nil, ExitInvalid
	}

	if args.TestName == "" {
		args.TestName = strings.TrimSuffix(filepath.Base(args.SnapshotFile), ".json")
	}

	return args, ExitOK
}

func defaultEnvironment() string {
	if os.Getenv("CI") != "" {
		return "ci"
	}
	return getEnvOrDefault("NODE_ENV", "development")
}

// detectCommit reads the commit identifiers CI systems export.
func detectCommit() string {
	for _, key := range []string{"GITHUB_SHA", "CI_COMMIT_SHA", "GIT_COMMIT"} {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}

	return ""
}

func detectBranch() string {
	for _, key := range []string{"GITHUB_REF_NAME", "CI_COMMIT_BRANCH", "GIT_BRANCH"} {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}

	return ""
}

type stringSlice []string

func (s *stringSlice) String() string {
	return fmt.Sprintf("%v", *s)
}

func (s *stringSlice) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultVal
}
