package plugin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waftester/scanhost/pkg/finding"
	"github.com/waftester/scanhost/pkg/kb"
	"github.com/waftester/scanhost/pkg/netclient"
	"github.com/waftester/scanhost/pkg/netproxy"
	"github.com/waftester/scanhost/pkg/output"
	"github.com/waftester/scanhost/pkg/report"
	"github.com/waftester/scanhost/pkg/tasks"
	"github.com/waftester/scanhost/pkg/workerpool"
)

// bare overrides nothing.
type bare struct {
	Base
}

func newBare() *bare { return &bare{Base: NewBase("bare")} }

// fanout spawns one task per URL, each storing a finding.
type fanout struct {
	Base
	urls []string
}

func (f *fanout) Run(ctx context.Context, req *Request) (*Result, error) {
	for _, u := range f.urls {
		f.Dispatch(ctx, u, func(ctx context.Context) error {
			return f.Append("mails", "mails", finding.Finding{
				OriginURL:   u,
				Description: "mail found at " + u,
			})
		})
	}
	if err := f.AwaitAll(); err != nil {
		return nil, err
	}
	found := f.Store().All("mails", "mails")
	if err := f.Report(found, report.ByURL); err != nil {
		return nil, err
	}
	return &Result{Plugin: f.Name(), Findings: len(found)}, nil
}

// suppressor swallows network errors with a canned response.
type suppressor struct {
	Base
	seen []*netclient.MustStopError
}

func (s *suppressor) HandleNetworkError(ctx context.Context, err *netclient.MustStopError) netproxy.Decision {
	s.seen = append(s.seen, err)
	return netproxy.Suppress(&netclient.Response{URL: err.URL, StatusCode: 0})
}

func testEnv(t *testing.T, sink output.Sink, client netclient.Client) Env {
	t.Helper()
	pool := workerpool.New(4)
	t.Cleanup(pool.Close)
	return Env{
		Client:   client,
		Tracker:  tasks.New(pool),
		Store:    kb.New(),
		Reporter: report.New(sink),
	}
}

func TestBase_FanOutJoinReport(t *testing.T) {
	sink := output.NewRecorder()
	env := testEnv(t, sink, nil)

	p := &fanout{Base: NewBase("mailfinder")}
	for i := 0; i < 5; i++ {
		p.urls = append(p.urls, fmt.Sprintf("http://x/%d", i))
	}
	Bind(p, env)

	res, err := p.Run(context.Background(), NewRequest("http://x/"))
	require.NoError(t, err)

	assert.Len(t, env.Store.All("mails", "mails"), 5)
	assert.Equal(t, 5, res.Findings)
	assert.Equal(t, 5, sink.Len())

	s := p.TaskStats()
	assert.Zero(t, s.Live())
	assert.Equal(t, 5, s.Completed)

	for _, f := range env.Store.All("mails", "mails") {
		assert.Equal(t, "mailfinder", f.Plugin, "Append fills in the plugin name")
	}
}

func TestBase_RequiredMethodsFailWithConfigurationError(t *testing.T) {
	p := newBare()

	calls := map[string]func() error{
		"Configure":       func() error { return p.Configure(nil) },
		"Options":         func() error { _, err := p.Options(); return err },
		"Run":             func() error { _, err := p.Run(context.Background(), NewRequest("http://x")); return err },
		"Dependencies":    func() error { _, err := p.Dependencies(); return err },
		"LongDescription": func() error { _, err := p.LongDescription(); return err },
	}

	for method, call := range calls {
		t.Run(method, func(t *testing.T) {
			err := call()
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, "bare", cfgErr.Plugin)
			assert.Equal(t, method, cfgErr.Method)
			assert.Equal(t, "plugin bare is not implementing required method "+method, err.Error())
		})
	}
}

func TestBase_Defaults(t *testing.T) {
	p := newBare()
	assert.Equal(t, "plugin", p.Type())
	assert.Empty(t, p.Description())
	assert.NoError(t, p.End())
	assert.Equal(t, Key{Name: "bare"}, p.Key())
}

func TestBase_UnboundHelpers(t *testing.T) {
	p := newBare()

	_, err := p.Client().Get(context.Background(), "http://x")
	assert.ErrorIs(t, err, ErrNotBound)
	assert.ErrorIs(t, p.Append("a", "b", finding.Finding{OriginURL: "u"}), ErrNotBound)
	assert.ErrorIs(t, p.Report(nil, report.None), ErrNotBound)
	assert.Nil(t, p.Store())

	// Task helpers work without a host.
	done := make(chan struct{})
	p.Dispatch(context.Background(), "t", func(ctx context.Context) error {
		close(done)
		return nil
	})
	require.NoError(t, p.AwaitAll())
	<-done
}

func TestBase_DefaultHookLogsAndPropagates(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL + "/gone"
	srv.Close()

	var logs bytes.Buffer
	env := testEnv(t, output.NewRecorder(), netclient.NewHTTP(netclient.HTTPConfig{}))
	env.Logger = slog.New(slog.NewTextHandler(&logs, nil))

	p := newBare()
	Bind(p, env)

	_, err := p.Client().Get(context.Background(), target)
	ms, ok := netclient.AsMustStop(err)
	require.True(t, ok, "original must-stop error propagates, got %v", err)
	assert.Equal(t, target, ms.URL)

	assert.Contains(t, logs.String(), "network error")
	assert.Contains(t, logs.String(), "plugin=bare")
	assert.Contains(t, logs.String(), target)
}

func TestBase_OverriddenHookIsUsed(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	p := &suppressor{Base: NewBase("suppressor")}
	Bind(p, testEnv(t, output.NewRecorder(), netclient.NewHTTP(netclient.HTTPConfig{})))

	resp, err := p.Client().Get(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, target, resp.URL)
	require.Len(t, p.seen, 1)
	assert.Equal(t, target, p.seen[0].URL)
}

func TestBase_CancelledRequestSkipsHook(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	p := &suppressor{Base: NewBase("suppressor")}
	Bind(p, testEnv(t, output.NewRecorder(), netclient.NewHTTP(netclient.HTTPConfig{})))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Client().Get(ctx, srv.URL)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, p.seen)
}

func TestKey_Identity(t *testing.T) {
	a1 := &fanout{Base: NewBase("a")}
	a2 := &fanout{Base: NewBase("a")}
	b := newBare()

	assert.True(t, a1.Key().Equal(a2.Key()))
	assert.False(t, a1.Key().Equal(b.Key()))

	uniq := Unique([]Plugin{a1, b, a2})
	require.Len(t, uniq, 2)
	assert.Same(t, a1, uniq[0])
	assert.True(t, ContainsKey(uniq, Key{Name: "bare"}))
	assert.False(t, ContainsKey(uniq, Key{Name: "c"}))
}
