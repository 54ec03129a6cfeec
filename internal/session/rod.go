package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	app_errors "ui_regression/internal/errors"
)

const defaultRodTimeout = 30 * time.Second

// RodConfig 浏览器启动参数
type RodConfig struct {
	Headless   bool          // 无头模式
	ControlURL string        // 远程浏览器地址，为空时本地启动
	Bin        string        // 本地浏览器路径，为空时由 rod 查找或下载
	NoSandbox  bool          // 容器内运行需要关闭沙箱
	Timeout    time.Duration // 单次页面操作超时
}

// RodFactory 每次调用创建一个独立的 Chrome 实例
type RodFactory struct {
	cfg RodConfig
	log *slog.Logger
}

var _ Factory = (*RodFactory)(nil)

func NewRodFactory(cfg RodConfig, log *slog.Logger) *RodFactory {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRodTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &RodFactory{cfg: cfg, log: log.With("component", "rod-factory")}
}

func (f *RodFactory) NextSession(ctx context.Context) (Session, error) {
	var (
		l   *launcher.Launcher
		url string
		err error
	)

	if f.cfg.ControlURL != "" {
		url, err = launcher.ResolveURL(f.cfg.ControlURL)
		if err != nil {
			return nil, fmt.Errorf("%w: 解析远程浏览器地址失败: %w", app_errors.ErrSessionAcquisition, err)
		}
	} else {
		l = launcher.New().Context(ctx).Headless(f.cfg.Headless).Set("disable-gpu")
		if f.cfg.NoSandbox {
			l = l.Set("no-sandbox")
		}
		if f.cfg.Bin != "" {
			l = l.Bin(f.cfg.Bin)
		}
		url, err = l.Launch()
		if err != nil {
			return nil, fmt.Errorf("%w: 启动浏览器失败: %w", app_errors.ErrSessionAcquisition, err)
		}
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		killLauncher(l)
		return nil, fmt.Errorf("%w: 连接浏览器失败: %w", app_errors.ErrSessionAcquisition, err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		killLauncher(l)
		return nil, fmt.Errorf("%w: 创建页面失败: %w", app_errors.ErrSessionAcquisition, err)
	}

	name := "rod/chrome"
	if v, err := browser.Version(); err == nil && v.Product != "" {
		name = "rod/" + v.Product
	}

	f.log.Debug("浏览器会话已创建", "driver", name, "remote", f.cfg.ControlURL != "")
	return &RodSession{
		browser:  browser,
		page:     page,
		launcher: l,
		timeout:  f.cfg.Timeout,
		name:     name,
		log:      f.log,
	}, nil
}

func killLauncher(l *launcher.Launcher) {
	if l == nil {
		return
	}
	l.Kill()
	l.Cleanup()
}

// RodSession 持有一个浏览器和一个页面
type RodSession struct {
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
	timeout  time.Duration
	name     string
	log      *slog.Logger

	once       sync.Once
	releaseErr error
}

var (
	_ Session    = (*RodSession)(nil)
	_ Interactor = (*RodSession)(nil)
)

func (s *RodSession) DriverName() string {
	return s.name
}

// Page 暴露底层页面，给需要更多操作的用例使用
func (s *RodSession) Page() *rod.Page {
	return s.page
}

func (s *RodSession) scoped(ctx context.Context) *rod.Page {
	return s.page.Context(ctx).Timeout(s.timeout)
}

func (s *RodSession) Navigate(ctx context.Context, url string) error {
	p := s.scoped(ctx)
	defer p.CancelTimeout()

	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("%w: 打开 %s 失败: %w", app_errors.ErrConnection, url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("%w: 等待 %s 加载失败: %w", app_errors.ErrConnection, url, err)
	}
	return nil
}

func (s *RodSession) Title(ctx context.Context) (string, error) {
	p := s.scoped(ctx)
	defer p.CancelTimeout()

	info, err := p.Info()
	if err != nil {
		return "", fmt.Errorf("读取页面标题失败: %w", err)
	}
	return info.Title, nil
}

func (s *RodSession) element(ctx context.Context, selector string, fn func(el *rod.Element) error) error {
	p := s.scoped(ctx)
	defer p.CancelTimeout()

	el, err := p.Element(selector)
	if err != nil {
		return fmt.Errorf("找不到元素 %q: %w", selector, err)
	}
	return fn(el)
}

func (s *RodSession) Text(ctx context.Context, selector string) (string, error) {
	var text string
	err := s.element(ctx, selector, func(el *rod.Element) error {
		var err error
		text, err = el.Text()
		return err
	})
	return text, err
}

func (s *RodSession) Input(ctx context.Context, selector, text string) error {
	return s.element(ctx, selector, func(el *rod.Element) error {
		return el.Input(text)
	})
}

func (s *RodSession) Click(ctx context.Context, selector string) error {
	return s.element(ctx, selector, func(el *rod.Element) error {
		return el.Click(proto.InputMouseButtonLeft, 1)
	})
}

func (s *RodSession) WaitVisible(ctx context.Context, selector string) error {
	return s.element(ctx, selector, func(el *rod.Element) error {
		return el.WaitVisible()
	})
}

// Release 关闭浏览器，本地启动的进程一并结束
func (s *RodSession) Release() error {
	s.once.Do(func() {
		if s.browser != nil {
			s.releaseErr = s.browser.Close()
		}
		killLauncher(s.launcher)
		s.log.Debug("浏览器会话已释放", "driver", s.name, "error", s.releaseErr)
	})
	return s.releaseErr
}
