package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/acarl005/stripansi"
	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	app_errors "ui_regression/internal/errors"
	"ui_regression/internal/metrics"
	"ui_regression/internal/model"
	"ui_regression/internal/session"
	"ui_regression/internal/testcase"
	"ui_regression/internal/timing"
)

// 报告消息模板
const (
	successTemplate = "[SUCCESS]: Test Case '%s' executed correctly"
	failTemplate    = "[FAIL]: Test Case '%s' failed due to: %s"
	skipTemplate    = "[SKIPPED]: Test Case '%s' skipped in last execution"
)

// caseRun 收集一轮用例执行的结果，执行过程中逐个追加
type caseRun struct {
	outcomes []model.CaseOutcome
	executed int
	failed   int
	err      error // 不可跨越的失败
}

// skipRemaining 把尚未产生结果的用例标记为跳过
func (cr *caseRun) skipRemaining(cases []testcase.TestCase) {
	for _, tc := range cases[min(len(cr.outcomes), len(cases)):] {
		o := skippedOutcome(tc)
		cr.outcomes = append(cr.outcomes, o)
		metrics.RecordCase(o.CaseName, metrics.ResultSkip, 0)
	}
}

// executeCases 在会话 s 上按顺序执行 cases，结果写入 run。
// 顺序模式和并发模式的每个用户都走这里。循环中的 panic 视为不可跨越的失败。
func (r *Runner) executeCases(ctx context.Context, s session.Session, cases []testcase.TestCase, run *caseRun, log *slog.Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			stack := pkgerrors.Errorf("%v", rec)
			log.Error("执行用例时发生 panic，中止本轮剩余用例", "error", rec, "stack", fmt.Sprintf("%+v", stack))
			run.err = fmt.Errorf("%w: %v", app_errors.ErrUnexpectedTask, rec)
			run.skipRemaining(cases)
		}
	}()

	for _, tc := range cases {
		outcome, err := r.executeCase(ctx, s, tc, log)
		run.outcomes = append(run.outcomes, outcome)
		run.executed++
		if err == nil {
			metrics.RecordCase(outcome.CaseName, metrics.ResultPass, outcome.Timings.Total)
			continue
		}

		run.failed++
		metrics.RecordCase(outcome.CaseName, metrics.ResultFail, outcome.Timings.Total)
		metrics.RecordError(app_errors.Class(err))
		if tc.ExceptionTransversable() {
			log.Error("用例失败，中止本轮剩余用例", "name", outcome.CaseName, "error", err)
			run.err = fmt.Errorf("%w: %q: %w", app_errors.ErrCaseFailure, outcome.CaseName, err)
			run.skipRemaining(cases)
			return
		}
		log.Error("用例失败", "name", outcome.CaseName, "error", err)
	}
}

// executeCase 执行单个用例。计时器每次新建，只属于这一次执行。
// 用例实现中的任何 panic 都转为该用例的失败。
func (r *Runner) executeCase(ctx context.Context, s session.Session, tc testcase.TestCase, log *slog.Logger) (outcome model.CaseOutcome, err error) {
	timers := timing.New(timing.WithClock(r.now))
	timers.Reset()
	timers.Start(timing.Total)
	uid, name := caseIdentity(tc)

	ctx, span := r.tracer.Start(ctx, "case")
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			err = pkgerrors.Errorf("panic: %v", rec)
			log.Debug("用例 panic", "name", name, "stack", fmt.Sprintf("%+v", err))
		}
		// 失败路径上可能还有计时器在运行
		timers.Stop(timing.Rendering)
		timers.Stop(timing.Security)
		timers.Stop(timing.Total)

		outcome = model.CaseOutcome{
			CaseUID:  uid,
			CaseName: name,
			Success:  err == nil,
			Timings:  timers.Snapshot(),
		}
		if err == nil {
			outcome.Message = fmt.Sprintf(successTemplate, name)
			return
		}
		outcome.Message = fmt.Sprintf(failTemplate, name, flatten(err.Error()))
		span.SetStatus(codes.Error, err.Error())
	}()

	span.SetAttributes(attribute.String("case_uid", uid), attribute.String("case_name", name))
	if r.traceRun {
		log.Info("执行用例", "uid", uid, "name", name)
	}

	if err := r.connect(ctx, s, tc, timers); err != nil {
		return outcome, err
	}
	return outcome, tc.AutomatedTest(ctx, s, timers)
}

// caseIdentity 读取用例的 UID 和名称，实现 panic 时名称退回为类型名
func caseIdentity(tc testcase.TestCase) (uid, name string) {
	defer func() {
		if recover() != nil {
			name = fmt.Sprintf("%T", tc)
		}
	}()
	uid = tc.UID()
	name = tc.Name()
	return uid, name
}

func (r *Runner) connect(ctx context.Context, s session.Session, tc testcase.TestCase, timers *timing.Registry) error {
	if !tc.ConnectionRequired() {
		return nil
	}

	if !tc.SecureConnection() {
		timers.Start(timing.Rendering)
		err := s.Navigate(ctx, tc.ConnectionURL())
		timers.Stop(timing.Rendering)
		if err != nil {
			return connectionError(err)
		}
		return nil
	}

	timers.Start(timing.Security)
	timers.Start(timing.Rendering)
	ok := tc.HandleSecureConnection(ctx, s)
	timers.Stop(timing.Rendering)
	timers.Stop(timing.Security)
	if !ok {
		timers.Stop(timing.Total)
		return fmt.Errorf("%w: %w: 无法连接 %s", app_errors.ErrConnection, app_errors.ErrAuthentication, tc.ConnectionURL())
	}
	return nil
}

func connectionError(err error) error {
	if errors.Is(err, app_errors.ErrConnection) {
		return err
	}
	return fmt.Errorf("%w: %w", app_errors.ErrConnection, err)
}

func skippedOutcome(tc testcase.TestCase) model.CaseOutcome {
	uid, name := caseIdentity(tc)
	return model.CaseOutcome{
		CaseUID:  uid,
		CaseName: name,
		Skipped:  true,
		Message:  fmt.Sprintf(skipTemplate, name),
	}
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// flatten 去掉颜色控制符，换行替换为空格
func flatten(msg string) string {
	return lineBreaks.Replace(stripansi.Strip(msg))
}
