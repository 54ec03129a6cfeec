package reporter

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"ui_regression/internal/model"
)

// caseReport 与 runReport 的字段名是报告消费方依赖的格式，不能修改
type caseReport struct {
	CaseName         string `json:"caseName"`
	Success          bool   `json:"success"`
	Skipped          bool   `json:"skipped"`
	TotalElapsed     int64  `json:"totalElapsed"`
	RenderingElapsed int64  `json:"renderingElapsed"`
	ActionsElapsed   int64  `json:"actionsElapsed"`
	SecurityElapsed  int64  `json:"securityElapsed"`
	Message          string `json:"message"`
}

type runReport struct {
	ProcessName   string       `json:"processName"`
	Parallel      string       `json:"parallel"`
	Succeded      bool         `json:"succeded"`
	ErrorMessage  string       `json:"errorMessage"`
	Driver        string       `json:"driver"`
	Cases         int          `json:"cases"`
	Executed      int          `json:"executed"`
	Skipped       int          `json:"skipped"`
	Failed        int          `json:"failed"`
	Success       int          `json:"success"`
	Elapsed       int64        `json:"elapsed"`
	CasesResponse []caseReport `json:"casesResponse"`
}

type parallelReport struct {
	ParallelResult     bool        `json:"parallelResult"`
	NumberOfUsers      int         `json:"numberOfUsers"`
	LimitPerSession    int         `json:"limitPerSession"`
	TotalUsersExecuted int         `json:"totalUsersExecuted"`
	TotalElapsedTime   int64       `json:"totalElapsedTime"`
	Results            []runReport `json:"results"`
}

// JSON 生成结构化报告，耗时单位为毫秒
func JSON(s *model.RunSummary) ([]byte, error) {
	var v any
	if s.Parallel {
		v = buildParallelReport(s)
	} else {
		v = buildSequentialReport(s)
	}

	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func buildSequentialReport(s *model.RunSummary) runReport {
	return runReport{
		ProcessName:   "",
		Parallel:      strconv.FormatBool(false),
		Succeded:      s.Success(),
		ErrorMessage:  s.ErrorMessage,
		Driver:        s.DriverName,
		Cases:         s.Cases,
		Executed:      s.Executed,
		Skipped:       s.Skipped(),
		Failed:        s.Failed,
		Success:       s.Succeeded(),
		Elapsed:       ms(s.Elapsed),
		CasesResponse: caseReports(s.Outcomes),
	}
}

func buildParallelReport(s *model.RunSummary) parallelReport {
	results := make([]runReport, 0, len(s.Results))
	for _, u := range s.Results {
		results = append(results, runReport{
			ProcessName:   u.ProcessName,
			Parallel:      strconv.FormatBool(true),
			Succeded:      u.Success,
			ErrorMessage:  u.ErrorMessage,
			Driver:        u.DriverName,
			Cases:         s.Cases,
			Executed:      u.Executed,
			Skipped:       u.Skipped(),
			Failed:        u.Failed,
			Success:       u.Succeeded(),
			Elapsed:       ms(u.Elapsed),
			CasesResponse: caseReports(u.Cases),
		})
	}
	return parallelReport{
		ParallelResult:     true,
		NumberOfUsers:      s.Users,
		LimitPerSession:    s.Limit,
		TotalUsersExecuted: s.UsersExecuted,
		TotalElapsedTime:   ms(s.Elapsed),
		Results:            results,
	}
}

func caseReports(outcomes []model.CaseOutcome) []caseReport {
	reports := make([]caseReport, 0, len(outcomes))
	for _, o := range outcomes {
		reports = append(reports, caseReport{
			CaseName:         o.CaseName,
			Success:          o.Success,
			Skipped:          o.Skipped,
			TotalElapsed:     ms(o.Timings.Total),
			RenderingElapsed: ms(o.Timings.Rendering),
			ActionsElapsed:   ms(o.Timings.Action),
			SecurityElapsed:  ms(o.Timings.Security),
			Message:          o.Message,
		})
	}
	return reports
}

func ms(d time.Duration) int64 {
	return d.Milliseconds()
}
