package cases

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"ui_regression/internal/session"
	"ui_regression/internal/testcase"
	"ui_regression/internal/timing"
)

// APICheck 调用页面背后的接口并比较 JSON 响应，不需要浏览器连接
type APICheck struct {
	testcase.Base

	Method      string
	Endpoint    string
	PathParams  map[string]string
	QueryParams map[string]string
	Headers     map[string]string
	Body        string
	Token       string
	Expected    string
	// StrictMatch 为 true 时递归比较嵌套字段
	StrictMatch bool

	Client *http.Client
}

var _ testcase.TestCase = (*APICheck)(nil)

func NewAPICheck(name, method, endpoint string) *APICheck {
	return &APICheck{
		Base:     testcase.NewBase(name),
		Method:   method,
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *APICheck) AutomatedTest(ctx context.Context, _ session.Session, timers *timing.Registry) error {
	return timers.Measure(timing.Action, func() error {
		req, err := c.request(ctx)
		if err != nil {
			return fmt.Errorf("创建请求失败: %w", err)
		}
		slog.Default().Debug("执行接口用例", "case", c.Name(), "curl", toCurl(req, c.Body))

		client := c.Client
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("执行请求失败: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("读取响应失败: %w", err)
		}
		return c.validate(resp.StatusCode, body)
	})
}

// RequestURL 返回替换路径参数并附加查询参数后的地址
func (c *APICheck) RequestURL() string {
	url := c.Endpoint
	for k, v := range c.PathParams {
		url = strings.ReplaceAll(url, "{"+k+"}", v)
	}
	if len(c.QueryParams) == 0 {
		return url
	}

	keys := make([]string, 0, len(c.QueryParams))
	for k := range c.QueryParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	params := make([]string, 0, len(keys))
	for _, k := range keys {
		params = append(params, k+"="+c.QueryParams[k])
	}
	return url + "?" + strings.Join(params, "&")
}

func (c *APICheck) request(ctx context.Context) (*http.Request, error) {
	method := c.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if c.Body != "" {
		body = bytes.NewBufferString(c.Body)
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), c.RequestURL(), body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", c.Token)
	}
	for key, value := range c.Headers {
		req.Header.Set(key, value)
	}
	return req, nil
}

func (c *APICheck) validate(status int, body []byte) error {
	if status >= http.StatusBadRequest {
		return fmt.Errorf("接口返回状态码 %d: %s", status, truncate(string(body), 200))
	}
	if c.Expected == "" {
		return nil
	}

	var expected map[string]any
	if err := json.Unmarshal([]byte(c.Expected), &expected); err != nil {
		return fmt.Errorf("期望结果不是有效的 JSON: %w", err)
	}
	var actual map[string]any
	if err := json.Unmarshal(body, &actual); err != nil {
		return fmt.Errorf("响应不是有效的 JSON: %s", truncate(string(body), 200))
	}

	ok := validateTopLevel(actual, expected)
	if c.StrictMatch {
		ok = validateMap(actual, expected)
	}
	if !ok {
		return fmt.Errorf("响应与期望不符: %s", truncate(string(body), 200))
	}
	return nil
}

// toCurl 将请求转换为 curl 命令，方便手工复现
func toCurl(req *http.Request, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "curl -X %s", req.Method)

	keys := make([]string, 0, len(req.Header))
	for key := range req.Header {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " -H '%s: %s'", key, req.Header.Get(key))
	}
	if body != "" {
		fmt.Fprintf(&b, " -d '%s'", body)
	}
	fmt.Fprintf(&b, " '%s'", req.URL.String())
	return b.String()
}

// truncate 最多保留 n 个字节，不会截断多字节字符
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
