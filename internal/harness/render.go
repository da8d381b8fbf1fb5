package harness

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

var (
	passLabel = color.New(color.Bold, color.FgGreen).Sprint("PASS")
	warnLabel = color.New(color.Bold, color.FgYellow).Sprint("WARN")
	failLabel = color.New(color.Bold, color.FgRed).Sprint("FAIL")
)

// verdict maps a pass rate to a colored label. Anything short of a clean
// sweep is at best a warning.
func verdict(passed, total int) string {
	switch {
	case total == 0:
		return warnLabel
	case passed == total:
		return passLabel
	case float64(passed)/float64(total) >= 0.8:
		return warnLabel
	default:
		return failLabel
	}
}

// PrintReport writes the human-readable run summary: one table row per
// suite, an overall line, and the diagnostics of every failing case.
func PrintReport(w io.Writer, report *Report) {
	fmt.Fprintf(w, "evaluation run %s\n\n", report.Timestamp)

	table := tablewriter.NewTable(w)
	table.Header([]string{"suite", "cases", "passed", "failed", "rate", "verdict"})
	for _, s := range report.Suites {
		table.Append([]string{
			s.Suite,
			fmt.Sprintf("%d", s.Total),
			fmt.Sprintf("%d", s.Passed),
			fmt.Sprintf("%d", s.Failed),
			fmt.Sprintf("%.1f%%", s.PassRate*100),
			verdict(s.Passed, s.Total),
		})
	}
	table.Append([]string{
		"overall",
		fmt.Sprintf("%d", report.Overall.Total),
		fmt.Sprintf("%d", report.Overall.Passed),
		fmt.Sprintf("%d", report.Overall.Failed),
		fmt.Sprintf("%.1f%%", report.Overall.PassRate*100),
		verdict(report.Overall.Passed, report.Overall.Total),
	})
	table.Render()

	for _, s := range report.Suites {
		failures := s.Failures()
		if len(failures) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s: %d failing case(s)\n", s.Suite, len(failures))
		for _, f := range failures {
			fmt.Fprintf(w, "  %s %s\n", failLabel, f.CaseID)
			fmt.Fprintf(w, "      question: %s\n", f.Question)
			if f.SQL != "" {
				fmt.Fprintf(w, "      sql:      %s\n", f.SQL)
			}
			fmt.Fprintf(w, "      reason:   %s\n", f.Diagnostic)
		}
	}
}

// WriteLogs persists the run under dir: one JSON file per suite plus a
// combined report, all sharing the run timestamp in their names.
func WriteLogs(dir string, report *Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	stamp := strings.ReplaceAll(report.Timestamp, ":", "-")
	if stamp == "" {
		stamp = time.Now().UTC().Format("2006-01-02T15-04-05Z")
	}

	write := func(name string, v any) error {
		raw, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, append(raw, '\n'), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		return nil
	}

	for _, s := range report.Suites {
		if err := write(fmt.Sprintf("%s_%s.json", s.Suite, stamp), s); err != nil {
			return err
		}
	}
	return write(fmt.Sprintf("report_%s.json", stamp), report)
}
