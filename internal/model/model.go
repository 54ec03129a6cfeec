package model

import (
	"time"

	"ui_regression/internal/timing"
)

// CaseOutcome 一次用例执行（或跳过）的结果，创建后不再修改
type CaseOutcome struct {
	CaseUID  string
	CaseName string
	Success  bool
	Skipped  bool // 之前的用例中止了本轮，该用例未执行
	Message  string
	Timings  timing.Snapshot
}

// UserRunResult 并发模式下一个模拟用户的完整执行结果
type UserRunResult struct {
	Ticket       int
	ProcessName  string
	DriverName   string
	Cases        []CaseOutcome // 与用例列表顺序一致
	Executed     int
	Failed       int
	Success      bool
	ErrorMessage string // 用户级错误，例如获取会话失败
	Elapsed      time.Duration
}

// Succeeded 执行成功的用例数
func (u UserRunResult) Succeeded() int {
	return u.Executed - u.Failed
}

// Skipped 未执行的用例数
func (u UserRunResult) Skipped() int {
	n := 0
	for _, c := range u.Cases {
		if c.Skipped {
			n++
		}
	}
	return n
}

// RunSummary 一次运行的汇总，每次运行都重新生成
type RunSummary struct {
	RunID    string
	Parallel bool
	Started  time.Time
	Elapsed  time.Duration
	Cases    int // 用例列表长度

	// 顺序模式
	DriverName   string
	Outcomes     []CaseOutcome
	Executed     int
	Failed       int
	ErrorMessage string // 不可跨越的失败中止了本轮

	// 并发模式
	Users         int
	Limit         int
	UsersExecuted int
	Results       []UserRunResult // 按 Ticket 升序
}

func (s *RunSummary) Succeeded() int {
	return s.Executed - s.Failed
}

func (s *RunSummary) Skipped() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Skipped {
			n++
		}
	}
	return n
}

// Success 顺序模式：至少执行了一个用例，中止只体现在 ErrorMessage 和计数里；
// 并发模式：所有用户成功
func (s *RunSummary) Success() bool {
	if s.Parallel {
		if len(s.Results) == 0 {
			return false
		}
		for _, r := range s.Results {
			if !r.Success {
				return false
			}
		}
		return true
	}
	return s.Executed > 0
}

// Passed 所有执行的用例都成功，用于退出码
func (s *RunSummary) Passed() bool {
	if s.Parallel {
		for _, r := range s.Results {
			if !r.Success || r.Failed > 0 {
				return false
			}
		}
		return true
	}
	return s.ErrorMessage == "" && s.Failed == 0
}

// Empty 顺序模式下没有执行任何用例
func (s *RunSummary) Empty() bool {
	return !s.Parallel && s.Executed == 0
}
