// Package timing provides the per-execution stopwatch set used to time a test case.
package timing

import (
	"sync"
	"time"
)

// Counter 计时器名称
type Counter int

const (
	Total Counter = iota
	Rendering
	Security
	Action

	numCounters
)

func (c Counter) String() string {
	switch c {
	case Total:
		return "total"
	case Rendering:
		return "rendering"
	case Security:
		return "security"
	case Action:
		return "action"
	default:
		return "unknown"
	}
}

// Snapshot 是某一时刻四个计时器的累计值
type Snapshot struct {
	Total     time.Duration
	Rendering time.Duration
	Security  time.Duration
	Action    time.Duration
}

type stopwatch struct {
	elapsed time.Duration
	started time.Time
	running bool
}

// Registry 持有一次用例执行的四个计时器。
// Rendering 和 Security 是在 Total 内部测量的子区间，三者之和不一定等于 Total。
type Registry struct {
	mu     sync.Mutex
	now    func() time.Time
	clocks [numCounters]stopwatch
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock 替换时间源，测试用
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func New(opts ...Option) *Registry {
	r := &Registry{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reset 把所有计时器清零并停止
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clocks = [numCounters]stopwatch{}
}

// Start 启动计时器，已在运行时不做任何事
func (r *Registry) Start(c Counter) {
	if !valid(c) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	sw := &r.clocks[c]
	if sw.running {
		return
	}
	sw.started = r.now()
	sw.running = true
}

// Stop 停止计时器并累加本次区间，未运行时不做任何事
func (r *Registry) Stop(c Counter) {
	if !valid(c) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	sw := &r.clocks[c]
	if !sw.running {
		return
	}
	if d := r.now().Sub(sw.started); d > 0 {
		sw.elapsed += d
	}
	sw.running = false
}

// Elapsed 返回累计时间，运行中的计时器包含当前区间
func (r *Registry) Elapsed(c Counter) time.Duration {
	if !valid(c) {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsedLocked(c)
}

func (r *Registry) Running(c Counter) bool {
	if !valid(c) {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clocks[c].running
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Total:     r.elapsedLocked(Total),
		Rendering: r.elapsedLocked(Rendering),
		Security:  r.elapsedLocked(Security),
		Action:    r.elapsedLocked(Action),
	}
}

func (r *Registry) elapsedLocked(c Counter) time.Duration {
	sw := r.clocks[c]
	if !sw.running {
		return sw.elapsed
	}
	if d := r.now().Sub(sw.started); d > 0 {
		return sw.elapsed + d
	}
	return sw.elapsed
}

func valid(c Counter) bool {
	return c >= Total && c < numCounters
}

// Measure 在计时器 c 运行期间执行 fn，用例一般用它统计 Action 耗时
func (r *Registry) Measure(c Counter, fn func() error) error {
	r.Start(c)
	defer r.Stop(c)
	return fn()
}
