package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	app_errors "ui_regression/internal/errors"
)

const (
	envPrefix      = "UITEST"
	defaultTimeout = 30 * time.Second
)

// fileConfig 是配置文件的结构，时长以字符串表示
type fileConfig struct {
	Browser struct {
		Headless   bool   `mapstructure:"headless"`
		ControlURL string `mapstructure:"control_url" validate:"omitempty,url"`
		Bin        string `mapstructure:"bin"`
		Timeout    string `mapstructure:"timeout"`
		NoSandbox  bool   `mapstructure:"no_sandbox"`
	} `mapstructure:"browser"`

	Workbook struct {
		ExcelPath string `mapstructure:"excel_path"`
		SheetName string `mapstructure:"sheet_name"`
		HeaderRow int    `mapstructure:"header_row" validate:"gte=0"`
	} `mapstructure:"workbook"`

	SuiteFile string   `mapstructure:"suite_file"`
	Cases     []string `mapstructure:"cases"`
	Groups    []string `mapstructure:"groups"`

	Parallel struct {
		Users int `mapstructure:"users" validate:"gte=1"`
		Limit int `mapstructure:"limit" validate:"gte=1"`
	} `mapstructure:"parallel"`

	Report struct {
		JSONPath  string `mapstructure:"json_path"`
		ExcelPath string `mapstructure:"excel_path"`
		Table     bool   `mapstructure:"table"`
	} `mapstructure:"report"`

	LogLevel    string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	TraceRun    bool   `mapstructure:"trace_run"`
	MetricsAddr string `mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`
}

type BrowserConfig struct {
	Headless   bool
	ControlURL string // 远程浏览器地址，为空时在本地启动
	Bin        string
	Timeout    time.Duration
	NoSandbox  bool
}

type WorkbookConfig struct {
	ExcelPath string
	SheetName string
	HeaderRow int
}

type ParallelConfig struct {
	Users int
	Limit int
}

type ReportConfig struct {
	JSONPath  string
	ExcelPath string
	Table     bool
}

type Config struct {
	Browser     BrowserConfig
	Workbook    WorkbookConfig
	SuiteFile   string
	Cases       []string
	Groups      []string
	Parallel    ParallelConfig
	Report      ReportConfig
	LogLevel    string
	TraceRun    bool
	MetricsAddr string
}

// HasCaseSource 至少配置了一个用例来源
func (c *Config) HasCaseSource() bool {
	return len(c.Cases) > 0 || len(c.Groups) > 0 || c.Workbook.ExcelPath != ""
}

// Level 返回日志级别
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load 读取配置文件和 UITEST_ 前缀的环境变量。
// path 为空时在当前目录和 ./configs 下查找 config.*，找不到则只用默认值和环境变量。
func Load(path string) (*Config, error) {
	vip := viper.New()
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: 配置文件不可用: %w", app_errors.ErrConfiguration, err)
		}
		vip.SetConfigFile(path)
	} else {
		vip.SetConfigName("config")
		vip.AddConfigPath(".")
		vip.AddConfigPath("./configs")
	}

	vip.SetEnvPrefix(envPrefix)
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vip.AutomaticEnv()
	setDefaults(vip)

	if err := vip.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: 读取配置文件失败: %w", app_errors.ErrConfiguration, err)
		}
	}

	var fc fileConfig
	if err := vip.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("%w: 解析配置失败: %w", app_errors.ErrConfiguration, err)
	}
	fc.LogLevel = strings.ToLower(strings.TrimSpace(fc.LogLevel))
	if err := validator.New().Struct(&fc); err != nil {
		return nil, fmt.Errorf("%w: 配置校验失败: %w", app_errors.ErrConfiguration, err)
	}

	return fc.toConfig(), nil
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("browser.headless", true)
	vip.SetDefault("browser.control_url", "")
	vip.SetDefault("browser.bin", "")
	vip.SetDefault("browser.timeout", defaultTimeout.String())
	vip.SetDefault("browser.no_sandbox", false)
	vip.SetDefault("workbook.excel_path", "")
	vip.SetDefault("workbook.sheet_name", "Sheet1")
	vip.SetDefault("workbook.header_row", 1)
	vip.SetDefault("suite_file", "")
	vip.SetDefault("cases", []string{})
	vip.SetDefault("groups", []string{})
	vip.SetDefault("parallel.users", 1)
	vip.SetDefault("parallel.limit", 1)
	vip.SetDefault("report.json_path", "")
	vip.SetDefault("report.excel_path", "")
	vip.SetDefault("report.table", false)
	vip.SetDefault("log_level", "info")
	vip.SetDefault("trace_run", true)
	vip.SetDefault("metrics_addr", "")
}

func (fc *fileConfig) toConfig() *Config {
	// 解析 timeout 字符串
	timeout, err := time.ParseDuration(fc.Browser.Timeout)
	if err != nil || timeout <= 0 {
		timeout = defaultTimeout
	}

	cfg := &Config{
		Browser: BrowserConfig{
			Headless:   fc.Browser.Headless,
			ControlURL: fc.Browser.ControlURL,
			Bin:        fc.Browser.Bin,
			Timeout:    timeout,
			NoSandbox:  fc.Browser.NoSandbox,
		},
		Workbook: WorkbookConfig{
			ExcelPath: fc.Workbook.ExcelPath,
			SheetName: fc.Workbook.SheetName,
			HeaderRow: fc.Workbook.HeaderRow,
		},
		SuiteFile: fc.SuiteFile,
		Cases:     fc.Cases,
		Groups:    fc.Groups,
		Parallel: ParallelConfig{
			Users: fc.Parallel.Users,
			Limit: fc.Parallel.Limit,
		},
		Report: ReportConfig{
			JSONPath:  fc.Report.JSONPath,
			ExcelPath: fc.Report.ExcelPath,
			Table:     fc.Report.Table,
		},
		LogLevel:    fc.LogLevel,
		TraceRun:    fc.TraceRun,
		MetricsAddr: fc.MetricsAddr,
	}

	// 设置默认值
	if cfg.Workbook.SheetName == "" {
		cfg.Workbook.SheetName = "Sheet1"
	}
	return cfg
}
