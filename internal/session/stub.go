package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Stub 是不启动浏览器的会话，记录所有调用。
// 用于 --dry-run 检查用例列表和报告流程，也用于测试。
type Stub struct {
	Name string

	// 可选钩子，返回错误即模拟失败
	OnNavigate func(url string) error
	OnRelease  func() error

	mu       sync.Mutex
	visited  []string
	title    string
	texts    map[string]string
	inputs   map[string]string
	clicks   []string
	released atomic.Int32
}

var (
	_ Session    = (*Stub)(nil)
	_ Interactor = (*Stub)(nil)
)

func NewStub(name string) *Stub {
	return &Stub{
		Name:   name,
		texts:  make(map[string]string),
		inputs: make(map[string]string),
	}
}

func (s *Stub) DriverName() string {
	if s.Name == "" {
		return "stub"
	}
	return s.Name
}

func (s *Stub) Navigate(_ context.Context, url string) error {
	if s.OnNavigate != nil {
		if err := s.OnNavigate(url); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visited = append(s.visited, url)
	return nil
}

// SetPage 设置后续 Title/Text 返回的内容
func (s *Stub) SetPage(title string, texts map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = title
	for k, v := range texts {
		s.texts[k] = v
	}
}

func (s *Stub) Title(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title, nil
}

func (s *Stub) Text(_ context.Context, selector string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.texts[selector]
	if !ok {
		return "", fmt.Errorf("找不到元素 %q", selector)
	}
	return text, nil
}

func (s *Stub) Input(_ context.Context, selector, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs[selector] = text
	return nil
}

func (s *Stub) Click(_ context.Context, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks = append(s.clicks, selector)
	return nil
}

func (s *Stub) WaitVisible(_ context.Context, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.texts[selector]; !ok {
		return fmt.Errorf("元素 %q 不可见", selector)
	}
	return nil
}

func (s *Stub) Release() error {
	s.released.Add(1)
	if s.OnRelease != nil {
		return s.OnRelease()
	}
	return nil
}

// Visited 返回按顺序打开过的地址
func (s *Stub) Visited() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visited...)
}

// Inputs 返回每个选择器最后一次输入的内容
func (s *Stub) Inputs() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.inputs))
	for k, v := range s.inputs {
		out[k] = v
	}
	return out
}

func (s *Stub) Clicks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.clicks...)
}

// Releases 返回 Release 被调用的次数
func (s *Stub) Releases() int {
	return int(s.released.Load())
}

// StubFactory 每次返回一个新的 Stub，并保留所有创建过的会话
type StubFactory struct {
	// Fail 返回非空错误时本次获取失败，n 从 1 开始
	Fail func(n int) error
	// Prepare 在会话交出前调整它
	Prepare func(n int, s *Stub)

	mu       sync.Mutex
	calls    int
	sessions []*Stub
}

var _ Factory = (*StubFactory)(nil)

func (f *StubFactory) NextSession(context.Context) (Session, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if f.Fail != nil {
		if err := f.Fail(n); err != nil {
			return nil, err
		}
	}
	s := NewStub(fmt.Sprintf("stub-%d", n))
	if f.Prepare != nil {
		f.Prepare(n, s)
	}

	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.mu.Unlock()
	return s, nil
}

func (f *StubFactory) Sessions() []*Stub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Stub(nil), f.sessions...)
}

func (f *StubFactory) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
