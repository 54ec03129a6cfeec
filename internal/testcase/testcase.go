// Package testcase defines the unit of work the engine executes and the
// registry the cases are discovered from.
package testcase

import (
	"context"

	"github.com/google/uuid"

	"ui_regression/internal/session"
	"ui_regression/internal/timing"
)

// TestCase 是一个自动化 UI 测试用例。
// 引擎只读取用例属性，计时器由引擎为每次执行单独创建后传入。
type TestCase interface {
	UID() string
	Name() string

	// ConnectionRequired 为 true 时引擎先打开 ConnectionURL
	ConnectionRequired() bool
	// SecureConnection 为 true 时由 HandleSecureConnection 完成连接和认证
	SecureConnection() bool
	ConnectionURL() string
	// ExceptionTransversable 为 true 时失败会中止本轮剩余用例
	ExceptionTransversable() bool

	HandleSecureConnection(ctx context.Context, s session.Session) bool
	AutomatedTest(ctx context.Context, s session.Session, timers *timing.Registry) error
}

// Base 提供标识和连接属性，具体用例嵌入它后实现 AutomatedTest
type Base struct {
	CaseUID       string
	CaseName      string
	URL           string
	NeedsConnect  bool
	Secure        bool
	Transversable bool
}

// NewBase 创建一个带随机 UID 的 Base
func NewBase(name string) Base {
	return Base{CaseUID: uuid.NewString(), CaseName: name}
}

func (b *Base) UID() string {
	if b.CaseUID == "" {
		b.CaseUID = uuid.NewString()
	}
	return b.CaseUID
}

// AssignUID 用注册表给出的标识覆盖随机 UID
func (b *Base) AssignUID(uid string) {
	b.CaseUID = uid
}

func (b *Base) Name() string                 { return b.CaseName }
func (b *Base) ConnectionRequired() bool     { return b.NeedsConnect }
func (b *Base) SecureConnection() bool       { return b.Secure }
func (b *Base) ConnectionURL() string        { return b.URL }
func (b *Base) ExceptionTransversable() bool { return b.Transversable }

// HandleSecureConnection 默认实现只打开连接地址
func (b *Base) HandleSecureConnection(ctx context.Context, s session.Session) bool {
	return s.Navigate(ctx, b.URL) == nil
}

// Func 用一个函数构造用例
type Func struct {
	Base
	Fn func(ctx context.Context, s session.Session, timers *timing.Registry) error
}

var _ TestCase = (*Func)(nil)

func NewFunc(name string, fn func(ctx context.Context, s session.Session, timers *timing.Registry) error) *Func {
	return &Func{Base: NewBase(name), Fn: fn}
}

func (f *Func) AutomatedTest(ctx context.Context, s session.Session, timers *timing.Registry) error {
	if f.Fn == nil {
		return nil
	}
	return timers.Measure(timing.Action, func() error {
		return f.Fn(ctx, s, timers)
	})
}
