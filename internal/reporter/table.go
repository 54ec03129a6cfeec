package reporter

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"ui_regression/internal/model"
)

const (
	resultPass = "PASS"
	resultFail = "FAIL"
	resultSkip = "SKIP"
)

// Table 在控制台输出结果表格，整体状态决定表格颜色
func Table(w io.Writer, s *model.RunSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("UI Regression Results (%s)", formatDuration(s.Elapsed)))

	t.AppendHeader(table.Row{
		"User", "#", "Case", "Total", "Rendering", "Security", "Action", "Result", "Message",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "User", AutoMerge: true},
		{Name: "#", Align: text.AlignRight},
		{Name: "Case", WidthMax: 40, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Total", Align: text.AlignRight},
		{Name: "Rendering", Align: text.AlignRight},
		{Name: "Security", Align: text.AlignRight},
		{Name: "Action", Align: text.AlignRight},
		{Name: "Message", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	var executed, failed, skipped int
	if s.Parallel {
		for _, u := range s.Results {
			appendOutcomes(t, u.ProcessName, u.Cases)
			if u.ErrorMessage != "" {
				t.AppendRow(table.Row{u.ProcessName, "", "", "", "", "", "", resultFail, u.ErrorMessage})
			}
			t.AppendSeparator()
			executed += u.Executed
			failed += u.Failed
			skipped += u.Skipped()
		}
	} else {
		appendOutcomes(t, s.DriverName, s.Outcomes)
		executed, failed, skipped = s.Executed, s.Failed, s.Skipped()
	}

	switch {
	case s.Empty():
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	case s.Passed():
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL", "", fmt.Sprintf("executed %d", executed),
		formatDuration(s.Elapsed), "", "", "",
		fmt.Sprintf("%d failed", failed), fmt.Sprintf("%d skipped", skipped),
	})
	t.Render()
}

func appendOutcomes(t table.Writer, owner string, outcomes []model.CaseOutcome) {
	for i, o := range outcomes {
		t.AppendRow(table.Row{
			owner,
			i + 1,
			o.CaseName,
			formatDuration(o.Timings.Total),
			formatDuration(o.Timings.Rendering),
			formatDuration(o.Timings.Security),
			formatDuration(o.Timings.Action),
			outcomeResult(o),
			o.Message,
		})
	}
}

func outcomeResult(o model.CaseOutcome) string {
	switch {
	case o.Skipped:
		return resultSkip
	case o.Success:
		return resultPass
	default:
		return resultFail
	}
}

// formatDuration 秒，保留一位小数
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
