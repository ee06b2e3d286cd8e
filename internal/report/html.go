package report

import (
	"fmt"
	"html/template"
	"os"
	"time"
)

type htmlData struct {
	GeneratedAt string
	Data
}

// GenerateHTML writes a standalone HTML report to outputPath.
func GenerateHTML(data Data, outputPath string) error {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"severityClass": severityClass,
		"formatValue":   formatValue,
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	payload := htmlData{
		GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
		Data:        data,
	}

	if err := tmpl.Execute(file, payload); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

func severityClass(severity any) string {
	if fmt.Sprintf("%v", severity) == "warning" {
		return "status-warning"
	}
	return "status-error"
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Performance Budget Report</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            background: #f5f7fa;
            color: #2d3748;
            padding: 2rem;
        }
        .container { max-width: 1200px; margin: 0 auto; }

        .header {
            background: white;
            padding: 2rem;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
            margin-bottom: 2rem;
        }
        h1 { color: #1a202c; font-size: 2rem; margin-bottom: 0.5rem; }
        .meta { color: #718096; font-size: 0.9rem; }

        .stats-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
            gap: 1rem;
            margin-bottom: 2rem;
        }
        .stat-card {
            background: white;
            padding: 1.5rem;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
        }
        .stat-value { font-size: 2rem; font-weight: bold; margin-bottom: 0.25rem; }
        .stat-label { color: #718096; font-size: 0.875rem; }
        .stat-value.success { color: #48bb78; }
        .stat-value.error { color: #f56565; }
        .stat-value.warning { color: #ed8936; }

        .section {
            background: white;
            padding: 1.5rem;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
            margin-bottom: 2rem;
            overflow-x: auto;
        }
        .section-title {
            font-size: 1.25rem;
            font-weight: 600;
            margin-bottom: 1rem;
            color: #2d3748;
        }

        table { width: 100%; border-collapse: collapse; }
        th, td {
            padding: 1rem;
            text-align: left;
            border-bottom: 1px solid #e2e8f0;
        }
        th {
            background: #f7fafc;
            font-weight: 600;
            color: #4a5568;
            font-size: 0.875rem;
            text-transform: uppercase;
            letter-spacing: 0.05em;
        }
        tr:hover { background: #f7fafc; }

        .status-badge {
            display: inline-block;
            padding: 0.25rem 0.75rem;
            border-radius: 9999px;
            font-size: 0.875rem;
            font-weight: 500;
        }
        .status-success { background: #c6f6d5; color: #22543d; }
        .status-warning { background: #feebc8; color: #7c2d12; }
        .status-error { background: #fed7d7; color: #742a2a; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Performance Budget Report</h1>
            <div class="meta">
                Test: {{.TestName}} &middot; Environment: {{.Environment}} &middot; Generated {{.GeneratedAt}}
            </div>
        </div>

        <div class="stats-grid">
            <div class="stat-card">
                {{if .Validation.Passed}}
                <div class="stat-value success">PASSED</div>
                {{else}}
                <div class="stat-value error">FAILED</div>
                {{end}}
                <div class="stat-label">Verdict</div>
            </div>
            <div class="stat-card">
                <div class="stat-value error">{{.Validation.Errors}}</div>
                <div class="stat-label">Errors</div>
            </div>
            <div class="stat-card">
                <div class="stat-value warning">{{.Validation.Warnings}}</div>
                <div class="stat-label">Warnings</div>
            </div>
            <div class="stat-card">
                <div class="stat-value">{{.Snapshot.API.TotalCalls}}</div>
                <div class="stat-label">API Calls</div>
            </div>
            <div class="stat-card">
                <div class="stat-value">{{printf "%.0f" .Snapshot.API.AverageResponseTimeMs}} ms</div>
                <div class="stat-label">Avg API Response</div>
            </div>
        </div>

        {{if .Validation.Violations}}
        <div class="section">
            <div class="section-title">Violations</div>
            <table>
                <thead>
                    <tr>
                        <th>Metric</th>
                        <th>Actual</th>
                        <th>Threshold</th>
                        <th>Severity</th>
                    </tr>
                </thead>
                <tbody>
                    {{range .Validation.Violations}}
                    <tr>
                        <td>{{.Category}}.{{.Metric}}</td>
                        <td>{{formatValue .Actual}}</td>
                        <td>{{formatValue .Threshold}}</td>
                        <td><span class="status-badge {{severityClass .Severity}}">{{.Severity}}</span></td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
        </div>
        {{end}}

        {{if .Trends}}
        <div class="section">
            <div class="section-title">Trends</div>
            <table>
                <thead>
                    <tr>
                        <th>Metric</th>
                        <th>Direction</th>
                        <th>Change</th>
                        <th>Samples</th>
                    </tr>
                </thead>
                <tbody>
                    {{range $path, $trend := .Trends}}
                    <tr>
                        <td>{{$path}}</td>
                        {{if $trend}}
                        <td>{{$trend.Direction}}</td>
                        <td>{{printf "%+.1f%%" $trend.PercentChange}}</td>
                        <td>{{$trend.SampleCount}}</td>
                        {{else}}
                        <td colspan="3">insufficient data</td>
                        {{end}}
                    </tr>
                    {{end}}
                </tbody>
            </table>
        </div>
        {{end}}
    </div>
</body>
</html>`
