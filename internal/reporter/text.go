package reporter

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"ui_regression/internal/model"
)

var lineSeparator = strings.Repeat("-", 132)

// Text 按行输出报告。顺序模式没有执行任何用例时什么也不写。
func Text(w io.Writer, s *model.RunSummary) error {
	if s == nil || s.Empty() {
		return nil
	}

	var b bytes.Buffer
	if s.Parallel {
		writeParallelText(&b, s)
	} else {
		writeSequentialText(&b, s)
	}
	_, err := w.Write(b.Bytes())
	return err
}

func writeSequentialText(b *bytes.Buffer, s *model.RunSummary) {
	fmt.Fprintln(b, lineSeparator)
	fmt.Fprintf(b, "Test Engine Report - web driver used : %s\n", s.DriverName)
	if s.ErrorMessage != "" {
		fmt.Fprintf(b, "Error Message : %s\n", s.ErrorMessage)
	}
	fmt.Fprintln(b, lineSeparator)
	writeCaseLines(b, s.Outcomes)
	fmt.Fprintln(b, lineSeparator)
	writeTotals(b, s.Cases, s.Executed, s.Skipped(), s.Succeeded(), s.Failed, ms(s.Elapsed))
	fmt.Fprintln(b, lineSeparator)
}

func writeParallelText(b *bytes.Buffer, s *model.RunSummary) {
	fmt.Fprintln(b, lineSeparator)
	fmt.Fprintf(b, "Test Engine Report PARALLEL RUN - users : %d, limit : %d, users executed : %d, Elapsed Time : %d ms\n",
		s.Users, s.Limit, s.UsersExecuted, ms(s.Elapsed))
	fmt.Fprintln(b, lineSeparator)

	for _, u := range s.Results {
		fmt.Fprintln(b, lineSeparator)
		fmt.Fprintf(b, "Test Engine Report PARALLEL (processName : '%s') - web driver used : %s\n", u.ProcessName, u.DriverName)
		fmt.Fprintf(b, "Succeded : '%t  - Error Message : %s\n", u.Success, u.ErrorMessage)
		fmt.Fprintln(b, lineSeparator)
		writeCaseLines(b, u.Cases)
		fmt.Fprintln(b, lineSeparator)
		writeTotals(b, s.Cases, u.Executed, u.Skipped(), u.Succeeded(), u.Failed, ms(u.Elapsed))
		fmt.Fprintln(b, lineSeparator)
	}
}

func writeCaseLines(b *bytes.Buffer, outcomes []model.CaseOutcome) {
	for i, o := range outcomes {
		t := o.Timings
		fmt.Fprintf(b, "Case %d - %s, elapsed : %d ms, security : %d ms, rendering : %d ms, test : %d ms\n",
			i+1, o.Message, ms(t.Total), ms(t.Security), ms(t.Rendering), ms(t.Action))
	}
}

func writeTotals(b *bytes.Buffer, cases, executed, skipped, success, failed int, elapsed int64) {
	fmt.Fprintf(b, "Total Cases :  %d, Executed : %d, Skipped : %d, Success : %d, Failed : %d, Elapsed Time : %d ms\n",
		cases, executed, skipped, success, failed, elapsed)
}
