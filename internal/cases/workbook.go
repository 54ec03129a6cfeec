package cases

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	app_errors "ui_regression/internal/errors"
	"ui_regression/internal/testcase"
)

// 用例类型
const (
	KindPage = "page"
	KindAPI  = "api"
)

// 工作表列名，表头行存在时按列名取值
const (
	colName             = "name"
	colKind             = "kind"
	colBaseURL          = "base_url"
	colPath             = "path"
	colMethod           = "method"
	colPathParams       = "path_params"
	colQueryParams      = "query_params"
	colBody             = "body"
	colToken            = "token"
	colTitle            = "title"
	colSelector         = "selector"
	colExpected         = "expected"
	colStrict           = "strict"
	colUser             = "user"
	colPassword         = "password"
	colUserSelector     = "user_selector"
	colPasswordSelector = "password_selector"
	colSubmitSelector   = "submit_selector"
	colSuccessSelector  = "success_selector"
	colTransversable    = "transversable"
	colGroup            = "group"
)

// 没有表头行时的列顺序
var defaultColumns = []string{
	colName, colKind, colBaseURL, colPath, colMethod, colPathParams, colQueryParams,
	colBody, colToken, colTitle, colSelector, colExpected, colStrict,
	colUser, colPassword, colUserSelector, colPasswordSelector, colSubmitSelector,
	colSuccessSelector, colTransversable, colGroup,
}

// Row 是工作表中的一行用例
type Row struct {
	Number int // 数据行序号，从 1 开始

	Name        string
	Kind        string
	BaseURL     string
	Path        string
	Method      string
	PathParams  map[string]string
	QueryParams map[string]string
	Body        string
	Token       string

	Title    string
	Selector string
	Expected string
	Strict   bool
	Login    *Login

	Transversable bool
	Groups        []string
}

func (r Row) URL() string {
	return r.BaseURL + r.Path
}

// Build 根据行内容创建一个新的用例实例
func (r Row) Build() (testcase.TestCase, error) {
	switch r.Kind {
	case KindPage:
		pc := NewPageCheck(r.Name, r.URL())
		pc.Title = r.Title
		pc.Selector = r.Selector
		pc.Expected = r.Expected
		pc.Transversable = r.Transversable
		if r.Login != nil {
			login := *r.Login
			pc.WithLogin(&login)
		}
		return pc, nil
	case KindAPI:
		c := NewAPICheck(r.Name, r.Method, r.URL())
		c.PathParams = r.PathParams
		c.QueryParams = r.QueryParams
		c.Body = r.Body
		c.Token = r.Token
		c.Expected = r.Expected
		c.StrictMatch = r.Strict
		c.Transversable = r.Transversable
		return c, nil
	default:
		return nil, fmt.Errorf("%w: 第 %d 行用例类型 %q 未知", app_errors.ErrDiscovery, r.Number, r.Kind)
	}
}

// LoadWorkbook 读取工作表中的用例，前 headerRow 行是表头。
// 第一行数据的 base_url 和 token 作为其他行的默认值。
func LoadWorkbook(path, sheet string, headerRow int) ([]Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: 无法打开Excel文件: %w", app_errors.ErrDiscovery, err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: 无法读取工作表: %w", app_errors.ErrDiscovery, err)
	}
	if headerRow < 0 || headerRow > len(rows) {
		return nil, fmt.Errorf("%w: 工作表 %q 没有找到测试用例", app_errors.ErrDiscovery, sheet)
	}

	columns := defaultColumns
	if headerRow > 0 {
		columns = headerColumns(rows[headerRow-1])
	}

	var data [][]string
	for _, row := range rows[headerRow:] {
		if !blank(row) {
			data = append(data, row)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: 工作表 %q 没有找到测试用例", app_errors.ErrDiscovery, sheet)
	}

	// 读取第一行的 base_url 和 token 作为默认值
	first := indexRow(columns, data[0])
	defaults := Row{BaseURL: first[colBaseURL], Token: first[colToken]}

	result := make([]Row, 0, len(data))
	for i, cells := range data {
		row, err := parseRow(i+1, indexRow(columns, cells), defaults)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, nil
}

// RegisterWorkbook 把工作表中的用例注册到 reg，返回注册的标识。
// 所有用例加入以工作表命名的分组，group 列中的分组名用逗号分隔。
func RegisterWorkbook(reg *testcase.Registry, path, sheet string, headerRow int) ([]string, error) {
	rows, err := LoadWorkbook(path, sheet, headerRow)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if err := reg.Register(row.Name, row.Build); err != nil {
			return nil, err
		}
		ids = append(ids, row.Name)
		for _, group := range row.Groups {
			reg.RegisterGroup(group, row.Name)
		}
	}
	reg.RegisterGroup(sheet, ids...)
	return ids, nil
}

func parseRow(number int, cells map[string]string, defaults Row) (Row, error) {
	row := Row{
		Number:        number,
		Name:          cells[colName],
		Kind:          strings.ToLower(cells[colKind]),
		BaseURL:       defaults.BaseURL,
		Path:          cells[colPath],
		Method:        strings.ToUpper(cells[colMethod]),
		PathParams:    parseParams(cells[colPathParams]),
		QueryParams:   parseParams(cells[colQueryParams]),
		Body:          cells[colBody],
		Token:         defaults.Token,
		Title:         cells[colTitle],
		Selector:      cells[colSelector],
		Expected:      cells[colExpected],
		Strict:        parseBool(cells[colStrict]),
		Transversable: parseBool(cells[colTransversable]),
	}

	// 如果行中包含 base_url 和 token，则使用行中的值
	if v := cells[colBaseURL]; v != "" {
		row.BaseURL = v
	}
	if v := cells[colToken]; v != "" {
		row.Token = v
	}
	if row.Kind == "" {
		row.Kind = KindPage
	}
	if row.Kind != KindPage && row.Kind != KindAPI {
		return Row{}, fmt.Errorf("%w: 第 %d 行用例类型 %q 未知", app_errors.ErrDiscovery, number, row.Kind)
	}
	if row.Name == "" {
		return Row{}, fmt.Errorf("%w: 第 %d 行缺少用例名称", app_errors.ErrDiscovery, number)
	}

	if sel := cells[colUserSelector]; sel != "" {
		row.Login = &Login{
			User:             cells[colUser],
			Password:         cells[colPassword],
			UserSelector:     sel,
			PasswordSelector: cells[colPasswordSelector],
			SubmitSelector:   cells[colSubmitSelector],
			SuccessSelector:  cells[colSuccessSelector],
		}
	}

	for _, g := range strings.Split(cells[colGroup], ",") {
		if g = strings.TrimSpace(g); g != "" {
			row.Groups = append(row.Groups, g)
		}
	}
	return row, nil
}

func parseParams(paramStr string) map[string]string {
	params := make(map[string]string)
	if paramStr == "" {
		return params
	}

	for _, pair := range strings.Split(paramStr, "&") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) == 2 {
			params[kv[0]] = kv[1]
		}
	}
	return params
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "y", "1":
		return true
	}
	return false
}

func headerColumns(header []string) []string {
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return columns
}

func indexRow(columns, cells []string) map[string]string {
	m := make(map[string]string, len(columns))
	for i, col := range columns {
		if i < len(cells) && col != "" {
			m[col] = strings.TrimSpace(cells[i])
		}
	}
	return m
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
