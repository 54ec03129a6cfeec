package testcase

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	app_errors "ui_regression/internal/errors"
)

// Factory 创建一个新的用例实例
type Factory func() (TestCase, error)

// Loader 是引擎加载用例时依赖的接口
type Loader interface {
	LoadByName(id string) (TestCase, error)
	LoadByGroup(group string) ([]TestCase, error)
}

// Registry 把标识符映射到用例构造函数，启动时填充
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	groups    map[string][]string
}

var _ Loader = (*Registry)(nil)

// uidNamespace 注册表用例 UID 的命名空间
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("ui-regression/testcase"))

// RegistryUID 返回标识 id 对应的固定 UID，同一标识无论加载几次都相同
func RegistryUID(id string) string {
	return uuid.NewSHA1(uidNamespace, []byte(id)).String()
}

// uidAssigner 由嵌入 Base 的用例实现
type uidAssigner interface {
	AssignUID(uid string)
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		groups:    make(map[string][]string),
	}
}

// Register 注册一个用例，标识符不能重复
func (r *Registry) Register(id string, f Factory) error {
	if id == "" || f == nil {
		return fmt.Errorf("%w: 用例标识或构造函数为空", app_errors.ErrDiscovery)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[id]; ok {
		return fmt.Errorf("%w: 用例 %q 已注册", app_errors.ErrDiscovery, id)
	}
	r.factories[id] = f
	return nil
}

// RegisterGroup 把用例追加到分组，组内保持顺序并去重
func (r *Registry) RegisterGroup(group string, ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing := r.groups[group]
	for _, id := range ids {
		if !contains(existing, id) {
			existing = append(existing, id)
		}
	}
	r.groups[group] = existing
}

func (r *Registry) LoadByName(id string) (tc TestCase, err error) {
	r.mu.RLock()
	f, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: 未知用例 %q", app_errors.ErrDiscovery, id)
	}

	defer func() {
		if rec := recover(); rec != nil {
			tc, err = nil, fmt.Errorf("%w: 创建用例 %q 时发生 panic: %v", app_errors.ErrDiscovery, id, rec)
		}
	}()
	tc, err = f()
	if err != nil {
		return nil, fmt.Errorf("%w: 创建用例 %q 失败: %w", app_errors.ErrDiscovery, id, err)
	}
	if tc == nil {
		return nil, fmt.Errorf("%w: 用例 %q 构造结果为空", app_errors.ErrDiscovery, id)
	}
	// 按名称和按分组加载同一标识时得到相同 UID，用例列表据此去重
	if a, ok := tc.(uidAssigner); ok {
		a.AssignUID(RegistryUID(id))
	}
	return tc, nil
}

// LoadByGroup 按注册顺序加载分组内所有用例，任何一个失败则整组失败
func (r *Registry) LoadByGroup(group string) ([]TestCase, error) {
	r.mu.RLock()
	ids, ok := r.groups[group]
	ids = append([]string(nil), ids...)
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: 未知分组 %q", app_errors.ErrDiscovery, group)
	}

	cases := make([]TestCase, 0, len(ids))
	for _, id := range ids {
		tc, err := r.LoadByName(id)
		if err != nil {
			return nil, fmt.Errorf("加载分组 %q: %w", group, err)
		}
		cases = append(cases, tc)
	}
	return cases, nil
}

// Names 返回所有已注册用例标识，已排序
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for id := range r.factories {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Groups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.groups))
	for g := range r.groups {
		names = append(names, g)
	}
	sort.Strings(names)
	return names
}

// suiteFile 分组定义文件格式
//
//	groups:
//	  smoke: [login, home]
type suiteFile struct {
	Groups map[string][]string `yaml:"groups"`
}

// LoadSuiteFile 从 yaml 文件读取分组定义
func (r *Registry) LoadSuiteFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: 读取分组文件失败: %w", app_errors.ErrDiscovery, err)
	}
	var sf suiteFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("%w: 解析分组文件失败: %w", app_errors.ErrDiscovery, err)
	}

	groups := make([]string, 0, len(sf.Groups))
	for g := range sf.Groups {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	for _, g := range groups {
		r.RegisterGroup(g, sf.Groups[g]...)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
