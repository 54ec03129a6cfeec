package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"github.com/xuri/excelize/v2"
)

// runApp 执行命令，返回输出、错误和退出码
func runApp(t *testing.T, args ...string) (string, error, int) {
	t.Helper()
	wd, wdErr := os.Getwd()
	require.NoError(t, wdErr)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	code := 0
	exiter := cli.OsExiter
	cli.OsExiter = func(c int) { code = c }
	t.Cleanup(func() { cli.OsExiter = exiter })

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"ui-regression"}, args...))
	return out.String(), err, code
}

func writeCases(t *testing.T, rows ...[]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "smoke"))
	header := []any{"name", "kind", "base_url", "path", "method", "expected", "transversable", "group"}
	require.NoError(t, f.SetSheetRow("smoke", "A1", &header))
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, f.SetSheetRow("smoke", cell, &row))
	}
	path := filepath.Join(t.TempDir(), "cases.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestRunDryRun(t *testing.T) {
	workbook := writeCases(t,
		[]any{"home", "page", "https://shop.test", "/"},
		[]any{"search", "page", "", "/search", "", "", "", "catalog"},
	)
	report := filepath.Join(t.TempDir(), "report.json")

	out, err, code := runApp(t, "run", "--dry-run", "--workbook", workbook, "--sheet", "smoke", "--json", report)
	require.NoError(t, err)
	assert.Zero(t, code)
	assert.Contains(t, out, "Test Engine Report - web driver used : stub-1")
	assert.Contains(t, out, "Total Cases :  2, Executed : 2, Skipped : 0, Success : 2, Failed : 0")

	m := readJSON(t, report)
	assert.Equal(t, "false", m["parallel"])
	assert.Equal(t, true, m["succeded"])
	assert.EqualValues(t, 2, m["executed"])
}

func TestRunSelectsGroup(t *testing.T) {
	workbook := writeCases(t,
		[]any{"home", "page", "https://shop.test", "/"},
		[]any{"search", "page", "", "/search", "", "", "", "catalog"},
	)
	out, err, _ := runApp(t, "run", "--dry-run", "--workbook", workbook, "--sheet", "smoke", "--group", "catalog")
	require.NoError(t, err)
	assert.Contains(t, out, "Total Cases :  1, Executed : 1")
	assert.Contains(t, out, "'search'")
}

func TestParallelDryRun(t *testing.T) {
	workbook := writeCases(t,
		[]any{"home", "page", "https://shop.test", "/"},
		[]any{"cart", "page", "", "/cart"},
	)
	report := filepath.Join(t.TempDir(), "report.json")

	out, err, code := runApp(t, "parallel", "--dry-run", "--users", "3", "--limit", "2",
		"--workbook", workbook, "--sheet", "smoke", "--json", report, "--table")
	require.NoError(t, err)
	assert.Zero(t, code)
	assert.Contains(t, out, "users : 3, limit : 2, users executed : 3")

	m := readJSON(t, report)
	assert.Equal(t, true, m["parallelResult"])
	results := m["results"].([]any)
	require.Len(t, results, 3)
	for i, r := range results {
		u := r.(map[string]any)
		assert.Equal(t, "User"+string(rune('1'+i)), u["processName"])
		assert.EqualValues(t, 2, u["executed"])
	}
}

func TestRunFailureExitCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	workbook := writeCases(t,
		[]any{"health", "api", srv.URL, "/health", "GET", "", "true"},
		[]any{"home", "page", "", "/"},
	)
	out, err, code := runApp(t, "run", "--dry-run", "--workbook", workbook, "--sheet", "smoke")
	require.ErrorIs(t, err, errTestFailure)
	assert.Equal(t, exitTestFailure, code)
	assert.Contains(t, out, "[FAIL]: Test Case 'health' failed due to:")
	assert.Contains(t, out, "[SKIPPED]: Test Case 'home' skipped in last execution")
}

func TestRunWithoutCaseSource(t *testing.T) {
	_, err, code := runApp(t, "run", "--dry-run")
	require.Error(t, err)
	assert.Equal(t, exitRuntimeErr, code)
}

func TestParallelInvalidUsers(t *testing.T) {
	workbook := writeCases(t, []any{"home", "page", "https://shop.test", "/"})
	_, err, code := runApp(t, "parallel", "--dry-run", "--users", "0", "--workbook", workbook, "--sheet", "smoke")
	require.Error(t, err)
	assert.Equal(t, exitRuntimeErr, code)
}

func TestListCases(t *testing.T) {
	workbook := writeCases(t,
		[]any{"home", "page", "https://shop.test", "/"},
		[]any{"search", "page", "", "/search", "", "", "", "catalog"},
	)
	out, err, _ := runApp(t, "list", "--workbook", workbook, "--sheet", "smoke")
	require.NoError(t, err)
	assert.Contains(t, out, "  home\n")
	assert.Contains(t, out, "  search\n")
	assert.Contains(t, out, "  catalog (1)\n")
	assert.Contains(t, out, "  smoke (2)\n")
}
