package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app_errors "ui_regression/internal/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"browser": {"headless": false, "control_url": "ws://127.0.0.1:9222/devtools/browser/abc", "timeout": "45s"},
		"workbook": {"excel_path": "cases.xlsx", "sheet_name": "smoke", "header_row": 2},
		"suite_file": "suites.yaml",
		"cases": ["login", "search"],
		"groups": ["nightly"],
		"parallel": {"users": 5, "limit": 2},
		"report": {"json_path": "out/report.json", "excel_path": "out/report.xlsx", "table": true},
		"log_level": "DEBUG",
		"trace_run": false,
		"metrics_addr": "127.0.0.1:9100"
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc", cfg.Browser.ControlURL)
	assert.Equal(t, 45*time.Second, cfg.Browser.Timeout)
	assert.Equal(t, WorkbookConfig{ExcelPath: "cases.xlsx", SheetName: "smoke", HeaderRow: 2}, cfg.Workbook)
	assert.Equal(t, "suites.yaml", cfg.SuiteFile)
	assert.Equal(t, []string{"login", "search"}, cfg.Cases)
	assert.Equal(t, []string{"nightly"}, cfg.Groups)
	assert.Equal(t, ParallelConfig{Users: 5, Limit: 2}, cfg.Parallel)
	assert.Equal(t, ReportConfig{JSONPath: "out/report.json", ExcelPath: "out/report.xlsx", Table: true}, cfg.Report)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.False(t, cfg.TraceRun)
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr)
	assert.True(t, cfg.HasCaseSource())
}

func TestLoadDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", "cases: [home]\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 30*time.Second, cfg.Browser.Timeout)
	assert.Equal(t, "Sheet1", cfg.Workbook.SheetName)
	assert.Equal(t, 1, cfg.Workbook.HeaderRow)
	assert.Equal(t, ParallelConfig{Users: 1, Limit: 1}, cfg.Parallel)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
	assert.True(t, cfg.TraceRun)
	assert.Empty(t, cfg.MetricsAddr)
}

func TestLoadInvalidTimeoutFallsBack(t *testing.T) {
	path := writeFile(t, "config.json", `{"browser": {"timeout": "soon"}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Browser.Timeout)
	assert.False(t, cfg.HasCaseSource())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeFile(t, "config.json", `{"parallel": {"users": 2, "limit": 2}, "cases": ["a"]}`)
	t.Setenv("UITEST_PARALLEL_USERS", "8")
	t.Setenv("UITEST_LOG_LEVEL", "warn")
	t.Setenv("UITEST_BROWSER_CONTROL_URL", "http://grid.local:9222")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Parallel.Users)
	assert.Equal(t, 2, cfg.Parallel.Limit)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "http://grid.local:9222", cfg.Browser.ControlURL)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"zero users", "config.json", `{"parallel": {"users": 0}}`},
		{"zero limit", "config.json", `{"parallel": {"limit": 0}}`},
		{"negative header row", "config.json", `{"workbook": {"header_row": -1}}`},
		{"unknown log level", "config.json", `{"log_level": "verbose"}`},
		{"bad control url", "config.json", `{"browser": {"control_url": "not a url"}}`},
		{"bad metrics addr", "config.json", `{"metrics_addr": "nope"}`},
		{"malformed file", "config.json", `{"parallel": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			assert.ErrorIs(t, err, app_errors.ErrConfiguration)
		})
	}

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
		assert.ErrorIs(t, err, app_errors.ErrConfiguration)
	})
}

func TestLoadWithoutFile(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("UITEST_CASES", "home,search")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"home", "search"}, cfg.Cases)
}
