package reporter

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/xuri/excelize/v2"

	"ui_regression/internal/model"
)

const (
	// Excel 相关
	defaultSheetNameFormat = "测试报告_%s"
	timeFormat             = "2006-01-02_15-04-05"
	defaultColumnWidth     = 14
	messageColumnWidth     = 80

	// 样式相关
	patternType    = "pattern"
	patternValue   = 1
	errorBgColor   = "FF5900"
	skipBgColor    = "D9D9D9"
	warningBgColor = "FFEB9C"

	// 时间阈值
	slowCaseThreshold = 3 * time.Second
)

// 表头定义
var excelHeaders = []string{
	"用户", "用例编号", "用例名称", "测试结果", "总耗时(ms)",
	"渲染耗时(ms)", "安全连接(ms)", "操作耗时(ms)", "信息",
}

type excelStyles struct {
	failed, skipped, slow int
}

// Excel 在工作簿中新建一个带时间戳的工作表写入结果，文件不存在时创建
func Excel(path string, s *model.RunSummary, now time.Time) (string, error) {
	f, err := openWorkbook(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sheetName := fmt.Sprintf(defaultSheetNameFormat, now.Format(timeFormat))
	if _, err := f.NewSheet(sheetName); err != nil {
		return "", fmt.Errorf("创建工作表失败: %w", err)
	}
	// 新建的工作簿去掉默认工作表
	if f.Path == "" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return "", fmt.Errorf("删除默认工作表失败: %w", err)
		}
	}
	if index, err := f.GetSheetIndex(sheetName); err == nil {
		f.SetActiveSheet(index)
	}

	lastCol, _ := excelize.ColumnNumberToName(len(excelHeaders))
	_ = f.SetColWidth(sheetName, "A", lastCol, defaultColumnWidth)
	_ = f.SetColWidth(sheetName, lastCol, lastCol, messageColumnWidth)

	// 写入表头
	if err := f.SetSheetRow(sheetName, "A1", &excelHeaders); err != nil {
		return "", fmt.Errorf("写入表头失败: %w", err)
	}

	styles, err := newExcelStyles(f)
	if err != nil {
		return "", err
	}

	row := 2
	if s.Parallel {
		for _, u := range s.Results {
			row = writeOutcomes(f, sheetName, row, u.ProcessName, u.Cases, styles)
		}
	} else {
		row = writeOutcomes(f, sheetName, row, "", s.Outcomes, styles)
	}

	// 写入汇总信息
	writeSummary(f, sheetName, row+1, s)

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("保存报告失败: %w", err)
	}
	return sheetName, nil
}

func openWorkbook(path string) (*excelize.File, error) {
	f, err := excelize.OpenFile(path)
	if err == nil {
		return f, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return excelize.NewFile(), nil
	}
	return nil, fmt.Errorf("打开Excel文件失败: %w", err)
}

func newExcelStyles(f *excelize.File) (excelStyles, error) {
	fill := func(color string) (int, error) {
		return f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{
				Type:    patternType,
				Pattern: patternValue,
				Color:   []string{color},
			},
		})
	}

	var (
		styles excelStyles
		err    error
	)
	if styles.failed, err = fill(errorBgColor); err != nil {
		return styles, fmt.Errorf("创建样式失败: %w", err)
	}
	if styles.skipped, err = fill(skipBgColor); err != nil {
		return styles, fmt.Errorf("创建样式失败: %w", err)
	}
	if styles.slow, err = fill(warningBgColor); err != nil {
		return styles, fmt.Errorf("创建样式失败: %w", err)
	}
	return styles, nil
}

// writeOutcomes 从 row 开始逐行写入，返回下一个空行
func writeOutcomes(f *excelize.File, sheet string, row int, owner string, outcomes []model.CaseOutcome, styles excelStyles) int {
	for i, o := range outcomes {
		cells := []any{
			owner,
			i + 1,
			o.CaseName,
			outcomeResult(o),
			ms(o.Timings.Total),
			ms(o.Timings.Rendering),
			ms(o.Timings.Security),
			ms(o.Timings.Action),
			o.Message,
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		end, _ := excelize.CoordinatesToCellName(len(cells), row)
		_ = f.SetSheetRow(sheet, start, &cells)

		// 失败红色，跳过灰色，慢用例黄色
		switch {
		case o.Skipped:
			_ = f.SetCellStyle(sheet, start, end, styles.skipped)
		case !o.Success:
			_ = f.SetCellStyle(sheet, start, end, styles.failed)
		case o.Timings.Total > slowCaseThreshold:
			_ = f.SetCellStyle(sheet, start, end, styles.slow)
		}
		row++
	}
	return row
}

func writeSummary(f *excelize.File, sheet string, startRow int, s *model.RunSummary) {
	lines := []string{
		"测试汇总",
		fmt.Sprintf("运行编号: %s", s.RunID),
		fmt.Sprintf("总执行时间: %dms", ms(s.Elapsed)),
		fmt.Sprintf("总用例数: %d", s.Cases),
	}
	if s.Parallel {
		failedUsers := 0
		for _, u := range s.Results {
			if !u.Success {
				failedUsers++
			}
		}
		lines = append(lines,
			fmt.Sprintf("用户数: %d", s.Users),
			fmt.Sprintf("并发上限: %d", s.Limit),
			fmt.Sprintf("已执行用户数: %d", s.UsersExecuted),
			fmt.Sprintf("失败用户数: %d", failedUsers),
		)
	} else {
		lines = append(lines,
			fmt.Sprintf("执行用例数: %d", s.Executed),
			fmt.Sprintf("失败用例数: %d", s.Failed),
			fmt.Sprintf("跳过用例数: %d", s.Skipped()),
		)
	}

	for i, line := range lines {
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", startRow+i), line)
	}
}
