package plugin

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waftester/scanhost/pkg/metrics"
)

// mock implements every required method.
type mock struct {
	Base
	deps    []string
	runErr  error
	panics  bool
	once    bool
	runs    atomic.Int32
	ended   bool
	endErr  error
	options OptionList
}

func newMock(name string) *mock { return &mock{Base: NewBase(name)} }

func (m *mock) Type() string                     { return "audit" }
func (m *mock) Description() string              { return "Mock plugin for testing" }
func (m *mock) LongDescription() (string, error) { return "Longer text.", nil }
func (m *mock) Dependencies() ([]string, error)  { return m.deps, nil }

func (m *mock) Options() (OptionList, error) {
	return OptionList{{Name: "depth", Value: "1", Type: TypeInteger}}, nil
}

func (m *mock) Configure(opts OptionList) error {
	schema, _ := m.Options()
	merged, err := Merge(schema, opts)
	if err != nil {
		return err
	}
	m.options = merged
	return nil
}

func (m *mock) Run(ctx context.Context, req *Request) (*Result, error) {
	n := m.runs.Add(1)
	if m.panics {
		panic("plugin bug")
	}
	if m.once && n > 1 {
		return nil, ErrRunOnce
	}
	if m.runErr != nil {
		return nil, m.runErr
	}
	return &Result{Plugin: m.Name()}, nil
}

func (m *mock) End() error {
	m.ended = true
	return m.endErr
}

func TestHost_RegisterGetList(t *testing.T) {
	h := NewHost(Env{})

	require.NoError(t, h.Register(newMock("b")))
	require.NoError(t, h.Register(newMock("a")))
	err := h.Register(newMock("a"))
	assert.ErrorIs(t, err, ErrDuplicate)

	assert.Equal(t, []string{"a", "b"}, h.List())
	p, ok := h.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", p.Name())
	_, ok = h.Get("c")
	assert.False(t, ok)

	plugins := h.Plugins()
	require.Len(t, plugins, 2)
	assert.Equal(t, "b", plugins[0].Name(), "registration order")
}

func TestHost_Info(t *testing.T) {
	h := NewHost(Env{})
	m := newMock("info-test")
	m.deps = []string{"other"}
	require.NoError(t, h.Register(m))
	require.NoError(t, h.Register(newBare()))

	info := h.Info()
	require.Len(t, info, 2)

	assert.Equal(t, "bare", info[0].Name)
	assert.Equal(t, "plugin", info[0].Type)
	assert.Empty(t, info[0].LongDescription)

	assert.Equal(t, "info-test", info[1].Name)
	assert.Equal(t, "audit", info[1].Type)
	assert.Equal(t, "Longer text.", info[1].LongDescription)
	assert.Equal(t, []string{"other"}, info[1].Dependencies)
}

func TestHost_RunAllIsolatesFailures(t *testing.T) {
	m := metrics.New()
	h := NewHost(Env{Metrics: m})

	ok := newMock("ok")
	failing := newMock("failing")
	failing.runErr = errors.New("target unreachable")
	panicking := newMock("panicking")
	panicking.panics = true

	for _, p := range []Plugin{ok, failing, panicking} {
		require.NoError(t, h.Register(p))
	}

	outcomes := h.RunAll(context.Background(), NewRequest("http://x"))
	require.Len(t, outcomes, 3)

	byName := map[string]Outcome{}
	for _, o := range outcomes {
		byName[o.Plugin] = o
	}
	assert.NoError(t, byName["ok"].Err)
	assert.Equal(t, "ok", byName["ok"].Result.Plugin)
	assert.ErrorContains(t, byName["failing"].Err, "target unreachable")
	assert.ErrorContains(t, byName["panicking"].Err, "plugin bug")

	count, err := testutil.GatherAndCount(m.Registry(), "scanhost_plugin_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestHost_RunOnce(t *testing.T) {
	h := NewHost(Env{})
	once := newMock("once")
	once.once = true
	always := newMock("always")
	require.NoError(t, h.Register(once))
	require.NoError(t, h.Register(always))

	req := NewRequest("http://x")
	assert.Len(t, h.RunAll(context.Background(), req), 2)

	second := h.RunAll(context.Background(), req)
	require.Len(t, second, 2)
	for _, o := range second {
		assert.NoError(t, o.Err, "run once is not a failure")
	}
	assert.True(t, h.Done("once"))

	third := h.RunAll(context.Background(), req)
	require.Len(t, third, 1)
	assert.Equal(t, "always", third[0].Plugin)
	assert.EqualValues(t, 2, once.runs.Load())
}

func TestHost_RunSingle(t *testing.T) {
	h := NewHost(Env{})
	require.NoError(t, h.Register(newMock("one")))

	res, err := h.Run(context.Background(), "one", NewRequest("http://x"))
	require.NoError(t, err)
	assert.Equal(t, "one", res.Plugin)

	_, err = h.Run(context.Background(), "missing", NewRequest("http://x"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHost_Configure(t *testing.T) {
	h := NewHost(Env{})
	m := newMock("m")
	require.NoError(t, h.Register(m))
	require.NoError(t, h.Register(newBare()))

	err := h.Configure(map[string]OptionList{
		"m":     {{Name: "depth", Value: "3"}},
		"ghost": nil,
	})

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr, "bare does not implement Configure")
	assert.Equal(t, "bare", cfgErr.Plugin)
	assert.ErrorIs(t, err, ErrNotFound)

	depth, err := m.options.Int("depth")
	require.NoError(t, err)
	assert.Equal(t, 3, depth)
}

func TestHost_CheckDependencies(t *testing.T) {
	h := NewHost(Env{})
	a := newMock("a")
	a.deps = []string{"b"}
	require.NoError(t, h.Register(a))
	assert.ErrorIs(t, h.CheckDependencies(), ErrMissingDependency)

	require.NoError(t, h.Register(newMock("b")))
	assert.NoError(t, h.CheckDependencies())

	require.NoError(t, h.Register(newBare()))
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, h.CheckDependencies(), &cfgErr)
}

func TestHost_End(t *testing.T) {
	h := NewHost(Env{})
	a, b := newMock("a"), newMock("b")
	b.endErr = errors.New("close failed")
	require.NoError(t, h.Register(a))
	require.NoError(t, h.Register(b))

	err := h.End()
	assert.ErrorContains(t, err, "end b: close failed")
	assert.True(t, a.ended)
	assert.True(t, b.ended)
}

func TestHost_LoadAllNoDir(t *testing.T) {
	h := NewHost(Env{})
	assert.NoError(t, h.LoadAll("/nonexistent/path"))
}

func TestHost_LoadAllBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeFile(dir+"/broken.so", "not an elf"))

	h := NewHost(Env{})
	assert.Error(t, h.LoadAll(dir))
	assert.Empty(t, h.List())
}
