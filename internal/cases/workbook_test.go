package cases

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	app_errors "ui_regression/internal/errors"
	"ui_regression/internal/testcase"
)

// writeWorkbook 在临时目录生成一个工作簿，rows 从 A1 开始逐行写入
func writeWorkbook(t *testing.T, sheet string, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(t.TempDir(), "cases.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

var header = []any{
	"name", "kind", "base_url", "path", "method", "query_params", "token",
	"title", "selector", "expected", "user", "password", "user_selector",
	"password_selector", "submit_selector", "success_selector", "transversable", "group",
}

func TestLoadWorkbook(t *testing.T) {
	path := writeWorkbook(t, "smoke", [][]any{
		header,
		{"login", "", "https://shop.test", "/login", "", "", "Bearer abc", "Sign in", "", "", "alice", "pw", "#user", "#pw", "#go", "#logout", "true", "auth"},
		{},
		{"search", "PAGE", "", "/search", "", "", "", "", "#results", "^[0-9]+ results$", "", "", "", "", "", "", "", "catalog, nightly"},
		{"api-items", "api", "https://api.shop.test", "/items", "get", "page=1&size=10", "", "", "", `{"code":0}`, "", "", "", "", "", "", "no", ""},
	})

	rows, err := LoadWorkbook(path, "smoke", 1)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	login := rows[0]
	assert.Equal(t, 1, login.Number)
	assert.Equal(t, KindPage, login.Kind)
	assert.Equal(t, "https://shop.test/login", login.URL())
	assert.Equal(t, "Sign in", login.Title)
	assert.True(t, login.Transversable)
	require.NotNil(t, login.Login)
	assert.Equal(t, "alice", login.Login.User)
	assert.Equal(t, "#logout", login.Login.SuccessSelector)
	assert.Equal(t, []string{"auth"}, login.Groups)

	// 空行被跳过，base_url 和 token 沿用第一行
	search := rows[1]
	assert.Equal(t, 2, search.Number)
	assert.Equal(t, KindPage, search.Kind)
	assert.Equal(t, "https://shop.test/search", search.URL())
	assert.Equal(t, "Bearer abc", search.Token)
	assert.Nil(t, search.Login)
	assert.Equal(t, []string{"catalog", "nightly"}, search.Groups)

	api := rows[2]
	assert.Equal(t, KindAPI, api.Kind)
	assert.Equal(t, "GET", api.Method)
	assert.Equal(t, "https://api.shop.test/items", api.URL())
	assert.Equal(t, map[string]string{"page": "1", "size": "10"}, api.QueryParams)
	assert.False(t, api.Transversable)
}

func TestLoadWorkbookDefaultColumns(t *testing.T) {
	path := writeWorkbook(t, "plain", [][]any{
		{"home", "page", "https://shop.test", "/", "", "", "", "", "", "Shop"},
	})
	rows, err := LoadWorkbook(path, "plain", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "home", rows[0].Name)
	assert.Equal(t, "Shop", rows[0].Title)
}

func TestLoadWorkbookErrors(t *testing.T) {
	tests := []struct {
		name  string
		rows  [][]any
		sheet string
		hdr   int
	}{
		{name: "no data", rows: [][]any{header}, sheet: "s", hdr: 1},
		{name: "missing sheet", rows: [][]any{header, {"a"}}, sheet: "other", hdr: 1},
		{name: "header beyond rows", rows: [][]any{header}, sheet: "s", hdr: 5},
		{name: "missing name", rows: [][]any{header, {"", "page"}}, sheet: "s", hdr: 1},
		{name: "unknown kind", rows: [][]any{header, {"a", "soap"}}, sheet: "s", hdr: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeWorkbook(t, "s", tt.rows)
			_, err := LoadWorkbook(path, tt.sheet, tt.hdr)
			assert.ErrorIs(t, err, app_errors.ErrDiscovery)
		})
	}

	_, err := LoadWorkbook(filepath.Join(t.TempDir(), "none.xlsx"), "s", 1)
	assert.ErrorIs(t, err, app_errors.ErrDiscovery)
}

func TestRegisterWorkbook(t *testing.T) {
	path := writeWorkbook(t, "smoke", [][]any{
		header,
		{"login", "page", "https://shop.test", "/login", "", "", "", "", "", "", "alice", "pw", "#user", "#pw", "#go", "", "true", "auth"},
		{"search", "page", "", "/search", "", "", "", "Search", "", "", "", "", "", "", "", "", "", "auth,catalog"},
		{"items", "api", "", "/api/items", "", "", "", "", "", "", "", "", "", "", "", "", "", ""},
	})

	reg := testcase.NewRegistry()
	ids, err := RegisterWorkbook(reg, path, "smoke", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"login", "search", "items"}, ids)
	assert.Equal(t, []string{"auth", "catalog", "smoke"}, reg.Groups())

	all, err := reg.LoadByGroup("smoke")
	require.NoError(t, err)
	require.Len(t, all, 3)

	login, ok := all[0].(*PageCheck)
	require.True(t, ok)
	assert.True(t, login.SecureConnection())
	assert.True(t, login.ExceptionTransversable())
	assert.Equal(t, "https://shop.test/login", login.ConnectionURL())

	search, ok := all[1].(*PageCheck)
	require.True(t, ok)
	assert.False(t, search.SecureConnection())
	assert.Equal(t, "Search", search.Title)

	items, ok := all[2].(*APICheck)
	require.True(t, ok)
	assert.Equal(t, "https://shop.test/api/items", items.RequestURL())
	assert.False(t, items.ConnectionRequired())

	auth, err := reg.LoadByGroup("auth")
	require.NoError(t, err)
	require.Len(t, auth, 2)
	assert.Equal(t, "login", auth[0].Name())
	assert.Equal(t, "search", auth[1].Name())

	// 每次加载都是新实例，UID 由标识决定
	again, err := reg.LoadByName("login")
	require.NoError(t, err)
	assert.NotSame(t, login, again)
	assert.Equal(t, login.UID(), again.UID())
	assert.NotEqual(t, login.UID(), search.UID())

	// 同名用例再次注册失败
	_, err = RegisterWorkbook(reg, path, "smoke", 1)
	assert.ErrorIs(t, err, app_errors.ErrDiscovery)
}
