package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	app_errors "ui_regression/internal/errors"
	"ui_regression/internal/metrics"
	"ui_regression/internal/model"
	"ui_regression/internal/session"
	"ui_regression/internal/testcase"
)

// Runner 持有有序、去重的用例列表，并以顺序或并发方式执行它们。
// 每次运行的结果作为返回值生成，Runner 本身不保存运行状态。
type Runner struct {
	mu    sync.RWMutex // 运行期间持有读锁，修改用例列表需要写锁
	cases []testcase.TestCase
	uids  map[string]struct{}

	log      *slog.Logger
	tracer   trace.Tracer
	traceRun bool
	now      func() time.Time
}

type Option func(*Runner)

func WithLogger(log *slog.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// WithTraceRun 控制是否为每个用例输出执行日志
func WithTraceRun(enabled bool) Option {
	return func(r *Runner) {
		r.traceRun = enabled
	}
}

// WithClock 替换时间源，测试用
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

func New(opts ...Option) *Runner {
	r := &Runner{
		uids:     make(map[string]struct{}),
		log:      slog.Default(),
		tracer:   otel.Tracer("ui-regression runner"),
		traceRun: true,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With("component", "runner")
	return r
}

// AddCase 追加用例，nil 或 UID 重复时忽略并返回 false
func (r *Runner) AddCase(tc testcase.TestCase) bool {
	if tc == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	uid := tc.UID()
	if _, ok := r.uids[uid]; ok {
		return false
	}
	r.uids[uid] = struct{}{}
	r.cases = append(r.cases, tc)
	return true
}

// AddCaseByName 通过注册表按标识加载一个用例
func (r *Runner) AddCaseByName(l testcase.Loader, id string) error {
	tc, err := l.LoadByName(id)
	if err != nil {
		r.log.Error("加载用例失败", "id", id, "error", err)
		return err
	}
	r.AddCase(tc)
	return nil
}

// AddCasesByGroup 通过注册表加载一个分组内的全部用例
func (r *Runner) AddCasesByGroup(l testcase.Loader, group string) error {
	cases, err := l.LoadByGroup(group)
	if err != nil {
		r.log.Error("加载分组失败", "group", group, "error", err)
		return err
	}
	for _, tc := range cases {
		r.AddCase(tc)
	}
	return nil
}

// Cases 返回用例列表的副本
func (r *Runner) Cases() []testcase.TestCase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]testcase.TestCase(nil), r.cases...)
}

func (r *Runner) CaseNumber() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cases)
}

func (r *Runner) ClearCases() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cases = nil
	r.uids = make(map[string]struct{})
}

// Run 在一个共享会话上按顺序执行全部用例。
// 不可跨越的用例失败时返回该错误，同时返回的汇总仍然完整（剩余用例标记为跳过）。
func (r *Runner) Run(ctx context.Context, s session.Session) (*model.RunSummary, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: 会话为空", app_errors.ErrConfiguration)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	start := r.now()
	summary := &model.RunSummary{
		RunID:      uuid.New().String(),
		Started:    start,
		Cases:      len(r.cases),
		DriverName: s.DriverName(),
	}

	ctx, span := r.tracer.Start(ctx, "run sequential")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", summary.RunID),
		attribute.Int("cases", summary.Cases),
	)

	log := r.log.With("run_id", summary.RunID)
	log.Info("开始顺序执行", "cases", summary.Cases, "driver", summary.DriverName)

	run := &caseRun{}
	r.executeCases(ctx, s, r.cases, run, log)

	summary.Outcomes = run.outcomes
	summary.Executed = run.executed
	summary.Failed = run.failed
	summary.Elapsed = r.now().Sub(start)
	if run.err != nil {
		summary.ErrorMessage = flatten(run.err.Error())
		span.SetStatus(codes.Error, summary.ErrorMessage)
		metrics.RecordError(app_errors.Class(run.err))
	}
	metrics.RecordRun("sequential", summary.Passed(), summary.Elapsed)

	log.Info("顺序执行结束",
		"executed", summary.Executed,
		"failed", summary.Failed,
		"skipped", summary.Skipped(),
		"elapsed", summary.Elapsed)
	return summary, run.err
}
