package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	app_errors "ui_regression/internal/errors"
)

var Version = "v0.3.0"

// 退出码
const (
	exitTestFailure = 1 // 有用例或用户失败
	exitRuntimeErr  = 2 // 配置错误或运行时错误
)

// errTestFailure 表示运行正常结束但结果不通过
var errTestFailure = errors.New("测试失败")

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "配置文件路径，为空时在 . 和 ./configs 下查找 config.*",
		EnvVars: []string{"UITEST_CONFIG"},
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "日志级别 debug|info|warn|error",
	}
	caseFlag = &cli.StringSliceFlag{
		Name:  "case",
		Usage: "按标识加载用例，可重复",
	}
	groupFlag = &cli.StringSliceFlag{
		Name:  "group",
		Usage: "按分组加载用例，可重复",
	}
	workbookFlag = &cli.StringFlag{
		Name:  "workbook",
		Usage: "用例工作簿路径",
	}
	sheetFlag = &cli.StringFlag{
		Name:  "sheet",
		Usage: "用例工作表名称",
	}
	suiteFlag = &cli.StringFlag{
		Name:  "suite",
		Usage: "分组定义文件 (yaml)",
	}
	controlURLFlag = &cli.StringFlag{
		Name:  "control-url",
		Usage: "连接远程浏览器，不在本地启动",
	}
	headfulFlag = &cli.BoolFlag{
		Name:  "headful",
		Usage: "显示浏览器窗口",
	}
	jsonFlag = &cli.StringFlag{
		Name:  "json",
		Usage: "JSON 报告输出路径",
	}
	excelFlag = &cli.StringFlag{
		Name:  "excel",
		Usage: "Excel 报告输出路径，已存在时追加工作表",
	}
	tableFlag = &cli.BoolFlag{
		Name:  "table",
		Usage: "在控制台输出结果表格",
	}
	metricsAddrFlag = &cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "Prometheus 指标监听地址，例如 127.0.0.1:9100",
	}
	otelFlag = &cli.BoolFlag{
		Name:  "otel",
		Usage: "启用 OpenTelemetry 导出，导出配置读取 OTEL_* 环境变量",
	}
	dryRunFlag = &cli.BoolFlag{
		Name:  "dry-run",
		Usage: "不启动浏览器，使用空会话走完整流程",
	}
	usersFlag = &cli.IntFlag{
		Name:  "users",
		Usage: "模拟用户数",
	}
	limitFlag = &cli.IntFlag{
		Name:  "limit",
		Usage: "同时运行的用户上限",
	}
)

var commonFlags = []cli.Flag{
	configFlag, logLevelFlag, caseFlag, groupFlag, workbookFlag, sheetFlag, suiteFlag,
	controlURLFlag, headfulFlag, jsonFlag, excelFlag, tableFlag, metricsAddrFlag, otelFlag, dryRunFlag,
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "ui-regression",
		Usage:   "浏览器 UI 回归测试",
		Version: Version,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "在一个浏览器会话中按顺序执行用例",
				Flags:  commonFlags,
				Action: runSequential,
			},
			{
				Name:   "parallel",
				Usage:  "模拟多个用户并发执行用例，每个用户使用独立会话",
				Flags:  append([]cli.Flag{usersFlag, limitFlag}, commonFlags...),
				Action: runParallel,
			},
			{
				Name:   "list",
				Usage:  "列出可用的用例和分组",
				Flags:  []cli.Flag{configFlag, logLevelFlag, workbookFlag, sheetFlag, suiteFlag},
				Action: listCases,
			},
		},
		ExitErrHandler: handleExit,
	}
}

// handleExit 测试失败退出码 1，其他错误退出码 2
func handleExit(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	var exitErr cli.ExitCoder
	switch {
	case errors.As(err, &exitErr):
		cli.HandleExitCoder(exitErr)
	case errors.Is(err, errTestFailure):
		cli.HandleExitCoder(cli.Exit(err.Error(), exitTestFailure))
	default:
		cli.HandleExitCoder(cli.Exit(fmt.Sprintf("%s (%s)", err.Error(), app_errors.Class(err)), exitRuntimeErr))
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		os.Exit(exitRuntimeErr)
	}
}
