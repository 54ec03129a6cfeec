package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	app_errors "ui_regression/internal/errors"
	"ui_regression/internal/metrics"
	"ui_regression/internal/model"
	"ui_regression/internal/session"
	"ui_regression/internal/testcase"
)

const userErrorTemplate = "Unable to complete the user run due to: %s"

// RunParallel 模拟 users 个独立用户并发执行同一组用例，同时运行的用户不超过 limit。
// 每个用户从 factory 获取自己的会话，结束时一定释放。
// 调用会阻塞到所有用户结束，结果按 Ticket 升序返回。
func (r *Runner) RunParallel(ctx context.Context, factory session.Factory, users, limit int) (*model.RunSummary, error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: 会话工厂为空", app_errors.ErrConfiguration)
	}
	if users < 1 {
		return nil, fmt.Errorf("%w: 用户数必须大于 0，当前为 %d", app_errors.ErrConfiguration, users)
	}
	if limit < 1 {
		return nil, fmt.Errorf("%w: 并发上限必须大于 0，当前为 %d", app_errors.ErrConfiguration, limit)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	cases := r.cases

	start := r.now()
	summary := &model.RunSummary{
		RunID:    uuid.New().String(),
		Parallel: true,
		Started:  start,
		Cases:    len(cases),
		Users:    users,
		Limit:    limit,
	}

	ctx, span := r.tracer.Start(ctx, "run parallel")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", summary.RunID),
		attribute.Int("users", users),
		attribute.Int("limit", limit),
	)

	log := r.log.With("run_id", summary.RunID)
	log.Info("开始并发执行", "users", users, "limit", limit, "cases", len(cases))

	// 创建工作池
	var (
		tickets    atomic.Int64
		wg         sync.WaitGroup
		jobChan    = make(chan struct{}, users)
		resultChan = make(chan model.UserRunResult, users)
	)
	for i := 0; i < min(limit, users); i++ {
		go r.worker(ctx, factory, cases, &tickets, jobChan, resultChan, &wg, log)
	}

	// 分发任务
	for i := 0; i < users; i++ {
		wg.Add(1)
		jobChan <- struct{}{}
	}
	close(jobChan)

	// 等待所有用户完成
	wg.Wait()
	close(resultChan)

	results := make([]model.UserRunResult, 0, users)
	for result := range resultChan {
		results = append(results, result)
	}

	// 完成顺序不确定，按 Ticket 排序
	sortResults(results)

	summary.Results = results
	summary.UsersExecuted = int(tickets.Load())
	summary.Elapsed = r.now().Sub(start)
	if !summary.Success() {
		span.SetStatus(codes.Error, "one or more users failed")
	}
	metrics.RecordRun("parallel", summary.Passed(), summary.Elapsed)

	log.Info("并发执行结束", "users", summary.UsersExecuted, "elapsed", summary.Elapsed)
	return summary, nil
}

func (r *Runner) worker(
	ctx context.Context,
	factory session.Factory,
	cases []testcase.TestCase,
	tickets *atomic.Int64,
	jobs <-chan struct{},
	results chan<- model.UserRunResult,
	wg *sync.WaitGroup,
	log *slog.Logger,
) {
	for range jobs {
		results <- r.runUser(ctx, factory, cases, tickets, log)
		wg.Done()
	}
}

// runUser 是一个模拟用户：领取 Ticket，获取会话，执行用例，释放会话。
// 用户内的任何错误都记录到结果里，不会传到外面。
func (r *Runner) runUser(
	ctx context.Context,
	factory session.Factory,
	cases []testcase.TestCase,
	tickets *atomic.Int64,
	log *slog.Logger,
) (result model.UserRunResult) {
	ticket := int(tickets.Add(1))
	result = model.UserRunResult{
		Ticket:      ticket,
		ProcessName: fmt.Sprintf("User%d", ticket),
	}
	log = log.With("user", result.ProcessName)

	ctx, span := r.tracer.Start(ctx, "user "+result.ProcessName)
	defer span.End()
	span.SetAttributes(attribute.Int("ticket", ticket))

	metrics.UserStarted()
	defer metrics.UserFinished()

	start := r.now()
	run := &caseRun{}
	var sess session.Session

	defer func() {
		if rec := recover(); rec != nil {
			stack := pkgerrors.Errorf("%v", rec)
			log.Error("用户任务异常", "error", rec, "stack", fmt.Sprintf("%+v", stack))
			r.fail(&result, fmt.Errorf("%w: %v", app_errors.ErrUnexpectedTask, rec))
			run.skipRemaining(cases)
		}
		if sess != nil {
			r.release(sess, log)
		}

		result.Cases = run.outcomes
		result.Executed = run.executed
		result.Failed = run.failed
		result.Elapsed = r.now().Sub(start)
		if result.ErrorMessage != "" {
			span.SetStatus(codes.Error, result.ErrorMessage)
		}
		metrics.RecordUser(result.Success)
		log.Info("用户执行结束",
			"success", result.Success,
			"executed", result.Executed,
			"failed", result.Failed,
			"elapsed", result.Elapsed)
	}()

	s, err := factory.NextSession(ctx)
	if s != nil {
		sess = s
	}
	if err != nil {
		if !errors.Is(err, app_errors.ErrSessionAcquisition) {
			err = fmt.Errorf("%w: %w", app_errors.ErrSessionAcquisition, err)
		}
		log.Error("获取会话失败", "error", err)
		r.fail(&result, err)
		run.skipRemaining(cases)
		return result
	}
	if sess == nil {
		r.fail(&result, fmt.Errorf("%w: 会话工厂返回空会话", app_errors.ErrSessionAcquisition))
		run.skipRemaining(cases)
		return result
	}

	result.DriverName = sess.DriverName()
	r.executeCases(ctx, sess, cases, run, log)
	if run.err != nil {
		r.fail(&result, run.err)
		return result
	}
	result.Success = true
	return result
}

func (r *Runner) fail(result *model.UserRunResult, err error) {
	result.Success = false
	result.ErrorMessage = flatten(fmt.Sprintf(userErrorTemplate, err.Error()))
	metrics.RecordError(app_errors.Class(err))
}

// release 释放会话，释放失败只记录日志
func (r *Runner) release(s session.Session, log *slog.Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("释放会话时发生 panic", "error", rec)
		}
	}()
	if err := s.Release(); err != nil {
		log.Warn("释放会话失败", "error", err)
	}
}

// sortResults 按 Ticket 升序
func sortResults(results []model.UserRunResult) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Ticket < results[j].Ticket
	})
}
