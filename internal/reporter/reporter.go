// Package reporter renders run summaries as text, JSON, console tables and Excel sheets.
package reporter

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ui_regression/internal/model"
)

// Options 控制报告输出到哪里，路径为空表示不生成对应报告
type Options struct {
	Out       io.Writer
	JSONPath  string
	ExcelPath string
	Table     bool
	Logger    *slog.Logger
}

type Reporter struct {
	opts Options
	log  *slog.Logger
	now  func() time.Time
}

func New(opts Options) *Reporter {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Reporter{
		opts: opts,
		log:  log.With("component", "reporter"),
		now:  time.Now,
	}
}

// GenerateReport 输出文本报告，并按配置生成表格、JSON 和 Excel 报告。
// 某一种报告失败不影响其他报告，所有错误合并返回。
func (r *Reporter) GenerateReport(s *model.RunSummary) error {
	if s == nil {
		return errors.New("没有可用的运行结果")
	}

	var errs []error
	if err := Text(r.opts.Out, s); err != nil {
		errs = append(errs, fmt.Errorf("输出文本报告失败: %w", err))
	}
	if r.opts.Table {
		Table(r.opts.Out, s)
	}

	if r.opts.JSONPath != "" {
		if err := r.writeJSON(s); err != nil {
			errs = append(errs, err)
		} else {
			r.log.Info("JSON 报告已保存", "path", r.opts.JSONPath)
		}
	}

	if r.opts.ExcelPath != "" {
		sheet, err := Excel(r.opts.ExcelPath, s, r.now())
		if err != nil {
			errs = append(errs, err)
		} else {
			r.log.Info("测试报告已保存到工作表", "path", r.opts.ExcelPath, "sheet", sheet)
		}
	}
	return errors.Join(errs...)
}

func (r *Reporter) writeJSON(s *model.RunSummary) error {
	data, err := JSON(s)
	if err != nil {
		return fmt.Errorf("生成 JSON 报告失败: %w", err)
	}
	if dir := filepath.Dir(r.opts.JSONPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("创建报告目录失败: %w", err)
		}
	}
	if err := os.WriteFile(r.opts.JSONPath, data, 0o644); err != nil {
		return fmt.Errorf("保存 JSON 报告失败: %w", err)
	}
	return nil
}
