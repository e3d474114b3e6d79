package reporting

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-outcome/outcomes"
	"github.com/ethereum-optimism/infra/op-outcome/requirements"
	"github.com/ethereum-optimism/infra/op-outcome/types"
)

// ReportData is everything an aggregation pass produced.
type ReportData struct {
	RunID        string
	Timestamp    time.Time
	Duration     time.Duration
	Requirements *requirements.RequirementsOutcomes
	Releases     *requirements.ReleaseOutcomes
}

// ReportFormatter defines the interface for different report output formats
type ReportFormatter interface {
	Format(data *ReportData) (string, error)
}

// ReportWriter defines the interface for writing reports to various destinations
type ReportWriter interface {
	Write(content string) error
}

// FileWriter writes reports to a file
type FileWriter struct {
	path string
}

// NewFileWriter creates a new file writer
func NewFileWriter(path string) *FileWriter {
	return &FileWriter{path: path}
}

// Write writes the content to the file
func (fw *FileWriter) Write(content string) error {
	return os.WriteFile(fw.path, []byte(content), 0644)
}

// StdoutWriter writes reports to stdout
type StdoutWriter struct{}

// NewStdoutWriter creates a new stdout writer
func NewStdoutWriter() *StdoutWriter {
	return &StdoutWriter{}
}

// Write writes the content to stdout
func (sw *StdoutWriter) Write(content string) error {
	_, err := fmt.Print(content)
	return err
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}

func resultString(r types.Result) string {
	return strings.ToUpper(r.String())
}

// TableFormatter formats requirement and release rollups as ASCII tables
type TableFormatter struct {
	showIndividualTests bool
	title               string
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(title string, showIndividualTests bool) *TableFormatter {
	return &TableFormatter{
		showIndividualTests: showIndividualTests,
		title:               title,
	}
}

// Format renders the requirement table followed by the release table, if
// there are any releases.
func (tf *TableFormatter) Format(data *ReportData) (string, error) {
	if data.Requirements == nil {
		return "", fmt.Errorf("no requirement outcomes to format")
	}

	var buf bytes.Buffer
	title := tf.title
	if data.Requirements.Mode() == requirements.ModeFlatTagTypes {
		title += " (by tag type)"
	}
	tf.render(&buf, title, "Requirement", data.Requirements.Outcomes(), data.Requirements.TestOutcomes())

	if data.Releases != nil && !data.Releases.IsEmpty() {
		var covered []*outcomes.Collection
		for _, rel := range data.Releases.Releases() {
			covered = append(covered, rel.TestOutcomes())
		}
		buf.WriteString("\n")
		tf.render(&buf, "Releases", "Release", data.Releases.Releases(), outcomes.Union(covered...))
	}
	return buf.String(), nil
}

func (tf *TableFormatter) render(buf *bytes.Buffer, title, kind string, roots []*requirements.Node, total *outcomes.Collection) {
	t := table.NewWriter()
	t.SetOutputMirror(buf)
	t.SetTitle(title)

	t.AppendHeader(table.Row{
		"Type", kind, "Tests", "Passed", "Failed", "Pending", "Result",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: kind, WidthMax: 120, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Pending", Align: text.AlignRight},
	})

	for _, root := range roots {
		tf.addNode(t, root, 0, true, nil)
		t.AppendSeparator()
	}

	counts := total.Counts()
	switch {
	case counts.Failing() > 0:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case counts.Indeterminate() > 0:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		counts.Total,
		counts.Passing(),
		counts.Failing(),
		counts.Indeterminate(),
		resultString(counts.Result()),
	})
	t.Render()
}

func (tf *TableFormatter) addNode(t table.Writer, node *requirements.Node, depth int, isLast bool, parentIsLast []bool) {
	counts := node.Counts()
	t.AppendRow(table.Row{
		titleCase(node.Type()),
		BuildTreePrefix(depth, isLast, parentIsLast) + node.Label(),
		counts.Total,
		counts.Passing(),
		counts.Failing(),
		counts.Indeterminate(),
		resultString(node.Result()),
	})

	var childLast []bool
	if depth > 0 {
		childLast = append(append([]bool(nil), parentIsLast...), isLast)
	}
	children := node.Children()
	tests := node.DirectOutcomes().Outcomes()
	if !tf.showIndividualTests {
		tests = nil
	}

	for i, child := range children {
		tf.addNode(t, child, depth+1, i == len(children)-1 && len(tests) == 0, childLast)
	}
	for i, test := range tests {
		t.AppendRow(table.Row{
			"Test",
			BuildTreePrefix(depth+1, i == len(tests)-1, childLast) + test.Title(),
			1,
			boolToInt(test.Result() == types.ResultSuccess),
			boolToInt(test.Result().IsFailing()),
			boolToInt(test.Result().IsIndeterminate()),
			resultString(test.Result()),
		})
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// boolToInt converts a boolean to int for table display
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// TextSummaryFormatter formats reports as plain text summaries
type TextSummaryFormatter struct {
	includeDetails bool
}

// NewTextSummaryFormatter creates a new text summary formatter
func NewTextSummaryFormatter(includeDetails bool) *TextSummaryFormatter {
	return &TextSummaryFormatter{
		includeDetails: includeDetails,
	}
}

// Format formats the report data as a text summary
func (tsf *TextSummaryFormatter) Format(data *ReportData) (string, error) {
	if data.Requirements == nil {
		return "", fmt.Errorf("no requirement outcomes to format")
	}
	var summary strings.Builder
	tests := data.Requirements.TestOutcomes()
	counts := tests.Counts()

	fmt.Fprintf(&summary, "OUTCOME SUMMARY\n")
	fmt.Fprintf(&summary, "===============\n")
	fmt.Fprintf(&summary, "Run ID: %s\n", data.RunID)
	fmt.Fprintf(&summary, "Time: %s\n", data.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&summary, "Duration: %s\n", formatDuration(data.Duration))
	fmt.Fprintf(&summary, "Grouping: %s\n\n", data.Requirements.Mode())

	fmt.Fprintf(&summary, "Results:\n")
	fmt.Fprintf(&summary, "  Total:   %d\n", counts.Total)
	fmt.Fprintf(&summary, "  Passed:  %d\n", counts.Success)
	fmt.Fprintf(&summary, "  Failed:  %d\n", counts.Failure)
	fmt.Fprintf(&summary, "  Errors:  %d\n", counts.Error)
	fmt.Fprintf(&summary, "  Pending: %d\n", counts.Pending)
	fmt.Fprintf(&summary, "  Ignored: %d\n", counts.Ignored)
	fmt.Fprintf(&summary, "  Skipped: %d\n", counts.Skipped)
	fmt.Fprintf(&summary, "Overall: %s\n", resultString(counts.Result()))

	if !tsf.includeDetails {
		return summary.String(), nil
	}

	failing := tests.WithResults(types.ResultFailure, types.ResultError)
	if failing.Total() > 0 {
		fmt.Fprintf(&summary, "\nFAILED TESTS:\n")
		for _, o := range failing.Outcomes() {
			fmt.Fprintf(&summary, "  %s [%s]\n", o.Title(), resultString(o.Result()))
			if se := o.Steps().FirstError(); se != nil {
				fmt.Fprintf(&summary, "      %s\n", strings.ReplaceAll(se.Message, "\n", "\n      "))
			}
		}
	}
	return summary.String(), nil
}
