package orchestrator

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/onvifscout/scout-release/internal/domain"
)

// ColumnAlignment controls how a table column is aligned.
type ColumnAlignment int

const (
	AlignLeft ColumnAlignment = iota
	AlignRight
)

// RenderTable renders rows under headers with rounded borders. Short rows
// are padded.
func RenderTable(headers []string, rows [][]string, aligns []ColumnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}
	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == AlignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

// RenderSummary renders one row per step with its status and duration.
func RenderSummary(results []StepResult) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		duration := "-"
		if r.Status != domain.OperationStatusSkipped {
			duration = r.Duration.Round(time.Millisecond).String()
		}
		detail := ""
		if r.Err != nil {
			detail = r.Err.Error()
		}
		rows = append(rows, []string{r.Name, string(r.Status), duration, detail})
	}
	return RenderTable(
		[]string{"Step", "Status", "Duration", "Error"},
		rows,
		[]ColumnAlignment{AlignLeft, AlignLeft, AlignRight, AlignLeft},
	)
}

// RenderFindings renders ruff diagnostics and unformatted files.
func RenderFindings(report domain.LintReport) string {
	var rows [][]string
	for _, check := range report.Checks {
		for _, f := range check.Findings {
			rows = append(rows, []string{f.Location(), f.Code, f.Message})
		}
		for _, file := range check.Unformatted {
			rows = append(rows, []string{file, "format", "would reformat"})
		}
	}
	if len(rows) == 0 {
		return ""
	}
	return RenderTable([]string{"Location", "Code", "Message"}, rows, nil)
}

// RenderLintChecks renders the pass/fail line of each check.
func RenderLintChecks(report domain.LintReport) string {
	rows := make([][]string, 0, len(report.Checks))
	for _, c := range report.Checks {
		status := "passed"
		if !c.Passed() {
			status = fmt.Sprintf("failed (exit %d)", c.ExitCode)
		}
		rows = append(rows, []string{c.Name, status, fmt.Sprint(len(c.Findings) + len(c.Unformatted))})
	}
	return RenderTable(
		[]string{"Check", "Result", "Findings"},
		rows,
		[]ColumnAlignment{AlignLeft, AlignLeft, AlignRight},
	)
}
