package testcase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app_errors "ui_regression/internal/errors"
	"ui_regression/internal/session"
	"ui_regression/internal/timing"
)

func named(name string) Factory {
	return func() (TestCase, error) {
		return NewFunc(name, nil), nil
	}
}

func TestRegistryLoadByName(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("login", named("Login")))

	tc, err := reg.LoadByName("login")
	require.NoError(t, err)
	assert.Equal(t, "Login", tc.Name())
	assert.NotEmpty(t, tc.UID())

	again, err := reg.LoadByName("login")
	require.NoError(t, err)
	assert.NotSame(t, tc, again, "each load builds a fresh case")
	assert.Equal(t, tc.UID(), again.UID())
	assert.Equal(t, RegistryUID("login"), tc.UID())

	require.NoError(t, reg.Register("logout", named("Login")))
	other, err := reg.LoadByName("logout")
	require.NoError(t, err)
	assert.NotEqual(t, tc.UID(), other.UID(), "same display name, different id")
}

func TestRegistryErrors(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("ok", named("ok")))
	require.NoError(t, reg.Register("broken", func() (TestCase, error) { return nil, errors.New("boom") }))
	require.NoError(t, reg.Register("nil", func() (TestCase, error) { return nil, nil }))
	require.NoError(t, reg.Register("panics", func() (TestCase, error) { panic("bad") }))

	tests := []struct {
		name string
		run  func() error
	}{
		{"duplicate id", func() error { return reg.Register("ok", named("ok")) }},
		{"empty id", func() error { return reg.Register("", named("x")) }},
		{"nil factory", func() error { return reg.Register("x", nil) }},
		{"unknown id", func() error { _, err := reg.LoadByName("missing"); return err }},
		{"factory error", func() error { _, err := reg.LoadByName("broken"); return err }},
		{"nil case", func() error { _, err := reg.LoadByName("nil"); return err }},
		{"factory panic", func() error { _, err := reg.LoadByName("panics"); return err }},
		{"unknown group", func() error { _, err := reg.LoadByGroup("nope"); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.ErrorIs(t, err, app_errors.ErrDiscovery)
		})
	}
}

func TestRegistryGroups(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, reg.Register(id, named(id)))
	}
	reg.RegisterGroup("smoke", "c", "a")
	reg.RegisterGroup("smoke", "a", "b")

	cases, err := reg.LoadByGroup("smoke")
	require.NoError(t, err)
	require.Len(t, cases, 3)
	assert.Equal(t, "c", cases[0].Name())
	assert.Equal(t, "a", cases[1].Name())
	assert.Equal(t, "b", cases[2].Name())

	reg.RegisterGroup("broken", "a", "missing")
	_, err = reg.LoadByGroup("broken")
	assert.ErrorIs(t, err, app_errors.ErrDiscovery)

	assert.Equal(t, []string{"a", "b", "c"}, reg.Names())
	assert.Equal(t, []string{"broken", "smoke"}, reg.Groups())
}

func TestRegistryLoadSuiteFile(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []string{"login", "search", "logout"} {
		require.NoError(t, reg.Register(id, named(id)))
	}

	path := filepath.Join(t.TempDir(), "suites.yaml")
	content := "groups:\n  smoke:\n    - login\n    - logout\n  full: [login, search, logout]\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, reg.LoadSuiteFile(path))

	smoke, err := reg.LoadByGroup("smoke")
	require.NoError(t, err)
	require.Len(t, smoke, 2)
	assert.Equal(t, "login", smoke[0].Name())
	assert.Equal(t, "logout", smoke[1].Name())

	full, err := reg.LoadByGroup("full")
	require.NoError(t, err)
	assert.Len(t, full, 3)

	assert.ErrorIs(t, reg.LoadSuiteFile(filepath.Join(t.TempDir(), "missing.yaml")), app_errors.ErrDiscovery)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("groups: [::"), 0o644))
	assert.ErrorIs(t, reg.LoadSuiteFile(bad), app_errors.ErrDiscovery)
}

func TestBaseDefaults(t *testing.T) {
	b := Base{CaseName: "home", URL: "http://example.test", NeedsConnect: true}
	assert.NotEmpty(t, b.UID())
	assert.Equal(t, b.UID(), b.UID())
	assert.True(t, b.ConnectionRequired())
	assert.False(t, b.SecureConnection())
	assert.False(t, b.ExceptionTransversable())

	s := session.NewStub("stub")
	assert.True(t, b.HandleSecureConnection(context.Background(), s))
	assert.Equal(t, []string{"http://example.test"}, s.Visited())

	s.OnNavigate = func(string) error { return errors.New("refused") }
	assert.False(t, b.HandleSecureConnection(context.Background(), s))
}

func TestFuncMeasuresAction(t *testing.T) {
	called := false
	f := NewFunc("fn", func(ctx context.Context, s session.Session, timers *timing.Registry) error {
		called = true
		assert.True(t, timers.Running(timing.Action))
		return nil
	})
	timers := timing.New()
	require.NoError(t, f.AutomatedTest(context.Background(), session.NewStub(""), timers))
	assert.True(t, called)
	assert.False(t, timers.Running(timing.Action))

	empty := &Func{Base: NewBase("empty")}
	assert.NoError(t, empty.AutomatedTest(context.Background(), session.NewStub(""), timing.New()))
}
