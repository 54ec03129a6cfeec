// Package session defines the browser session collaborator the engine runs cases against.
package session

import (
	"context"
)

// Session 是一个可控制的浏览器实例
type Session interface {
	// Navigate 打开 url 并等待页面加载
	Navigate(ctx context.Context, url string) error
	// DriverName 用于报告的驱动描述
	DriverName() string
	// Release 释放浏览器资源，重复调用是安全的
	Release() error
}

// Factory 为每个并发用户提供独立的会话
type Factory interface {
	NextSession(ctx context.Context) (Session, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context) (Session, error)

func (f FactoryFunc) NextSession(ctx context.Context) (Session, error) {
	return f(ctx)
}

// Interactor 是用例操作页面所需的基本能力，由具体会话实现
type Interactor interface {
	Title(ctx context.Context) (string, error)
	Text(ctx context.Context, selector string) (string, error)
	Input(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	WaitVisible(ctx context.Context, selector string) error
}
