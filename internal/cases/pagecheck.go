// Package cases contains the data-driven test cases loaded from workbooks.
package cases

import (
	"context"
	"fmt"
	"log/slog"

	"ui_regression/internal/session"
	"ui_regression/internal/testcase"
	"ui_regression/internal/timing"
)

// Login 描述一个表单登录
type Login struct {
	User             string
	Password         string
	UserSelector     string
	PasswordSelector string
	SubmitSelector   string
	// SuccessSelector 登录成功后出现的元素
	SuccessSelector string
}

// PageCheck 打开页面并检查标题和元素文本
type PageCheck struct {
	testcase.Base

	Title    string
	Selector string
	Expected string
	Login    *Login
}

var _ testcase.TestCase = (*PageCheck)(nil)

func NewPageCheck(name, url string) *PageCheck {
	pc := &PageCheck{Base: testcase.NewBase(name)}
	pc.URL = url
	pc.NeedsConnect = url != ""
	return pc
}

// WithLogin 设置登录表单，之后连接走安全连接流程
func (pc *PageCheck) WithLogin(l *Login) *PageCheck {
	pc.Login = l
	pc.Secure = l != nil
	return pc
}

// HandleSecureConnection 打开页面，填写登录表单并等待成功标志出现
func (pc *PageCheck) HandleSecureConnection(ctx context.Context, s session.Session) bool {
	if err := pc.login(ctx, s); err != nil {
		slog.Default().Warn("登录失败", "case", pc.Name(), "url", pc.URL, "error", err)
		return false
	}
	return true
}

func (pc *PageCheck) login(ctx context.Context, s session.Session) error {
	if err := s.Navigate(ctx, pc.URL); err != nil {
		return err
	}
	if pc.Login == nil {
		return nil
	}
	page, err := interactor(s)
	if err != nil {
		return err
	}

	l := pc.Login
	if err := page.WaitVisible(ctx, l.UserSelector); err != nil {
		return err
	}
	if err := page.Input(ctx, l.UserSelector, l.User); err != nil {
		return err
	}
	if err := page.Input(ctx, l.PasswordSelector, l.Password); err != nil {
		return err
	}
	if err := page.Click(ctx, l.SubmitSelector); err != nil {
		return err
	}
	if l.SuccessSelector == "" {
		return nil
	}
	return page.WaitVisible(ctx, l.SuccessSelector)
}

func (pc *PageCheck) AutomatedTest(ctx context.Context, s session.Session, timers *timing.Registry) error {
	return timers.Measure(timing.Action, func() error {
		page, err := interactor(s)
		if err != nil {
			return err
		}

		if pc.Title != "" {
			title, err := page.Title(ctx)
			if err != nil {
				return fmt.Errorf("读取标题失败: %w", err)
			}
			if err := expect("页面标题", title, pc.Title); err != nil {
				return err
			}
		}

		if pc.Selector == "" {
			return nil
		}
		if err := page.WaitVisible(ctx, pc.Selector); err != nil {
			return err
		}
		if pc.Expected == "" {
			return nil
		}
		text, err := page.Text(ctx, pc.Selector)
		if err != nil {
			return err
		}
		return expect(fmt.Sprintf("元素 %q 的文本", pc.Selector), text, pc.Expected)
	})
}

func interactor(s session.Session) (session.Interactor, error) {
	page, ok := s.(session.Interactor)
	if !ok {
		return nil, fmt.Errorf("会话 %s 不支持页面操作", s.DriverName())
	}
	return page, nil
}

func expect(what, actual, expected string) error {
	matched, err := matchText(actual, expected)
	if err != nil {
		return fmt.Errorf("期望值 %q 不是有效的正则表达式: %w", expected, err)
	}
	if !matched {
		return fmt.Errorf("%s为 %q，期望 %q", what, actual, expected)
	}
	return nil
}
