// Package reporting renders the outcome of a run for humans and machines.
package reporting

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"

	"github.com/kerntest/tester/types"
)

// maxDetailWidth bounds the Detail column before soft wrapping
const maxDetailWidth = 80

// IsTerminal reports whether w is a terminal, in which case the coloured
// table style is used.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// PrintResultsTable writes one row per case followed by a totals footer.
func PrintResultsTable(out io.Writer, result *types.RunResult, colored bool) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle(fmt.Sprintf("%s Test Results (%s)", result.Mode.Label(), formatDuration(result.Duration)))

	t.AppendHeader(table.Row{"Test", "Duration", "Lines", "Exit", "Status", "Detail"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Test", Align: text.AlignRight},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Lines", Align: text.AlignRight},
		{Name: "Exit", Align: text.AlignRight},
		{Name: "Detail", WidthMax: maxDetailWidth, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, c := range result.Cases {
		t.AppendRow(table.Row{
			fmt.Sprintf("TEST%d", c.Index),
			formatDuration(c.Duration),
			c.Lines,
			c.ExitCode,
			getResultString(c.Status),
			FailureExcerpt(c),
		})
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		formatDuration(result.Duration),
		"",
		"",
		getResultString(result.Status),
		fmt.Sprintf("%d passed, %d failed", result.Stats.Passed, result.Stats.Failed),
	})

	switch {
	case !colored:
		t.SetStyle(table.StyleLight)
	case result.Status == types.TestStatusPass:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.Render()
}

// FailureExcerpt extracts the most pertinent reason a case failed for display
func FailureExcerpt(c *types.CaseResult) string {
	if c == nil || !c.Failed() {
		return ""
	}
	if c.MatchedLine != "" {
		line := strings.TrimSpace(c.MatchedLine)
		// Start at the marker so the assertion message itself is shown
		if c.MatchedMarker != "" {
			if idx := strings.Index(line, c.MatchedMarker); idx > 0 {
				line = line[idx:]
			}
		}
		return line
	}
	if c.Error == nil {
		return ""
	}
	errStr := c.Error.Error()
	if newLine := strings.Index(errStr, "\n"); newLine != -1 {
		errStr = errStr[:newLine]
	}
	return errStr
}

// getResultString returns a string representing the test result
func getResultString(status types.TestStatus) string {
	switch status {
	case types.TestStatusPass:
		return "✓ pass"
	case types.TestStatusError:
		return "! error"
	default:
		return "✗ fail"
	}
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
