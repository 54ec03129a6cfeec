package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	"ui_regression/internal/cases"
	"ui_regression/internal/config"
	app_errors "ui_regression/internal/errors"
	"ui_regression/internal/metrics"
	"ui_regression/internal/model"
	"ui_regression/internal/reporter"
	"ui_regression/internal/runner"
	"ui_regression/internal/session"
	"ui_regression/internal/testcase"
)

// app 是一次命令执行需要的全部组件
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	registry *testcase.Registry
	engine   *runner.Runner
	factory  session.Factory
	reporter *reporter.Reporter

	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func runSequential(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := c.Context
	s, err := a.factory.NextSession(ctx)
	if err != nil {
		if s != nil {
			_ = s.Release()
		}
		return fmt.Errorf("%w: %w", app_errors.ErrSessionAcquisition, err)
	}
	defer func() {
		if err := s.Release(); err != nil {
			a.log.Warn("释放会话失败", "error", err)
		}
	}()

	summary, runErr := a.engine.Run(ctx, s)
	if runErr != nil && summary == nil {
		return runErr
	}
	if runErr != nil {
		a.log.Error("执行中止", "error", runErr)
	}
	return a.finish(summary)
}

func runParallel(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.close()

	users, limit := a.cfg.Parallel.Users, a.cfg.Parallel.Limit
	summary, err := a.engine.RunParallel(c.Context, a.factory, users, limit)
	if err != nil {
		return err
	}
	return a.finish(summary)
}

func listCases(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := newLogger(c.App.ErrWriter, cfg)
	reg, err := buildRegistry(cfg, log)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintln(w, "用例:")
	for _, id := range reg.Names() {
		fmt.Fprintf(w, "  %s\n", id)
	}
	fmt.Fprintln(w, "分组:")
	for _, g := range reg.Groups() {
		ids, _ := reg.LoadByGroup(g)
		fmt.Fprintf(w, "  %s (%d)\n", g, len(ids))
	}
	return nil
}

// finish 输出报告并根据结果决定退出码
func (a *app) finish(summary *model.RunSummary) error {
	if err := a.reporter.GenerateReport(summary); err != nil {
		return fmt.Errorf("生成报告失败: %w", err)
	}
	if !summary.Passed() {
		return errTestFailure
	}
	return nil
}

// setup 按启动流程组装组件：配置、日志、观测、用例、会话工厂、报告
func setup(c *cli.Context) (*app, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	if !cfg.HasCaseSource() {
		return nil, fmt.Errorf("%w: 没有配置用例来源 (cases, groups 或 workbook)", app_errors.ErrConfiguration)
	}

	a := &app{cfg: cfg, log: newLogger(c.App.ErrWriter, cfg)}
	slog.SetDefault(a.log)

	if c.Bool(otelFlag.Name) {
		shutdown, err := otelconfig.ConfigureOpenTelemetry(
			otelconfig.WithServiceName(c.App.Name),
			otelconfig.WithServiceVersion(c.App.Version),
		)
		if err != nil {
			return nil, fmt.Errorf("初始化 OpenTelemetry 失败: %w", err)
		}
		a.closers = append(a.closers, shutdown)
	}

	if cfg.MetricsAddr != "" {
		a.closers = append(a.closers, serveMetrics(cfg.MetricsAddr, a.log))
	}

	a.registry, err = buildRegistry(cfg, a.log)
	if err != nil {
		a.close()
		return nil, err
	}

	a.engine = runner.New(runner.WithLogger(a.log), runner.WithTraceRun(cfg.TraceRun))
	loadCases(a.engine, a.registry, cfg, a.log)
	if a.engine.CaseNumber() == 0 {
		a.log.Warn("没有加载到任何用例")
	}

	if c.Bool(dryRunFlag.Name) {
		a.factory = &session.StubFactory{}
	} else {
		a.factory = session.NewRodFactory(session.RodConfig{
			Headless:   cfg.Browser.Headless,
			ControlURL: cfg.Browser.ControlURL,
			Bin:        cfg.Browser.Bin,
			NoSandbox:  cfg.Browser.NoSandbox,
			Timeout:    cfg.Browser.Timeout,
		}, a.log)
	}

	a.reporter = reporter.New(reporter.Options{
		Out:       c.App.Writer,
		JSONPath:  cfg.Report.JSONPath,
		ExcelPath: cfg.Report.ExcelPath,
		Table:     cfg.Report.Table,
		Logger:    a.log,
	})
	return a, nil
}

// loadConfig 读取配置文件，命令行参数覆盖文件中的值
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String(configFlag.Name))
	if err != nil {
		return nil, err
	}

	if c.IsSet(logLevelFlag.Name) {
		cfg.LogLevel = c.String(logLevelFlag.Name)
	}
	if c.IsSet(caseFlag.Name) {
		cfg.Cases = c.StringSlice(caseFlag.Name)
	}
	if c.IsSet(groupFlag.Name) {
		cfg.Groups = c.StringSlice(groupFlag.Name)
	}
	if c.IsSet(workbookFlag.Name) {
		cfg.Workbook.ExcelPath = c.String(workbookFlag.Name)
	}
	if c.IsSet(sheetFlag.Name) {
		cfg.Workbook.SheetName = c.String(sheetFlag.Name)
	}
	if c.IsSet(suiteFlag.Name) {
		cfg.SuiteFile = c.String(suiteFlag.Name)
	}
	if c.IsSet(controlURLFlag.Name) {
		cfg.Browser.ControlURL = c.String(controlURLFlag.Name)
	}
	if c.IsSet(headfulFlag.Name) {
		cfg.Browser.Headless = !c.Bool(headfulFlag.Name)
	}
	if c.IsSet(jsonFlag.Name) {
		cfg.Report.JSONPath = c.String(jsonFlag.Name)
	}
	if c.IsSet(excelFlag.Name) {
		cfg.Report.ExcelPath = c.String(excelFlag.Name)
	}
	if c.IsSet(tableFlag.Name) {
		cfg.Report.Table = c.Bool(tableFlag.Name)
	}
	if c.IsSet(metricsAddrFlag.Name) {
		cfg.MetricsAddr = c.String(metricsAddrFlag.Name)
	}
	if c.IsSet(usersFlag.Name) {
		cfg.Parallel.Users = c.Int(usersFlag.Name)
	}
	if c.IsSet(limitFlag.Name) {
		cfg.Parallel.Limit = c.Int(limitFlag.Name)
	}
	return cfg, nil
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.Level()}))
}

// buildRegistry 从工作簿和分组文件填充注册表
func buildRegistry(cfg *config.Config, log *slog.Logger) (*testcase.Registry, error) {
	reg := testcase.NewRegistry()
	if cfg.Workbook.ExcelPath != "" {
		ids, err := cases.RegisterWorkbook(reg, cfg.Workbook.ExcelPath, cfg.Workbook.SheetName, cfg.Workbook.HeaderRow)
		if err != nil {
			return nil, err
		}
		log.Info("已加载工作簿用例", "path", cfg.Workbook.ExcelPath, "sheet", cfg.Workbook.SheetName, "cases", len(ids))
	}
	if cfg.SuiteFile != "" {
		if err := reg.LoadSuiteFile(cfg.SuiteFile); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// loadCases 先按标识再按分组加载。某个来源失败只记录日志，不影响其他来源。
// 只配置了工作簿时加载整个工作表。
func loadCases(engine *runner.Runner, reg *testcase.Registry, cfg *config.Config, log *slog.Logger) {
	for _, id := range cfg.Cases {
		if err := engine.AddCaseByName(reg, id); err != nil {
			metrics.RecordError(app_errors.Class(err))
		}
	}
	groups := cfg.Groups
	if len(cfg.Cases) == 0 && len(groups) == 0 && cfg.Workbook.ExcelPath != "" {
		groups = []string{cfg.Workbook.SheetName}
	}
	for _, g := range groups {
		if err := engine.AddCasesByGroup(reg, g); err != nil {
			metrics.RecordError(app_errors.Class(err))
		}
	}
	log.Info("用例加载完成", "cases", engine.CaseNumber())
}

// serveMetrics 启动指标服务，返回关闭函数
func serveMetrics(addr string, log *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("指标服务已启动", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("指标服务异常退出", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
