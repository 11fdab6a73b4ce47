package headers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waftester/scanhost/pkg/kb"
	"github.com/waftester/scanhost/pkg/netclient"
	"github.com/waftester/scanhost/pkg/output"
	"github.com/waftester/scanhost/pkg/plugin"
	"github.com/waftester/scanhost/pkg/report"
)

func setup(t *testing.T) (*Plugin, *kb.Store, *output.Recorder) {
	t.Helper()
	store := kb.New()
	sink := output.NewRecorder()
	p := New()
	plugin.Bind(p, plugin.Env{
		Client:   netclient.NewHTTP(netclient.HTTPConfig{}),
		Store:    store,
		Reporter: report.New(sink),
	})
	return p, store, sink
}

func TestHeaders_ReportsMissingAndWeak(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "yes", r.Header.Get("X-Scan"))
		w.Header().Set("X-Frame-Options", "ALLOW-FROM http://evil")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("Referrer-Policy", "no-referrer")
	}))
	defer srv.Close()

	p, store, sink := setup(t)
	req := plugin.NewRequest(srv.URL)
	req.Header = map[string]string{"X-Scan": "yes"}

	res, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	missing := store.All(Name, KeyMissing)
	require.Len(t, missing, 1)
	assert.Equal(t, "Permissions-Policy", missing[0].Variable)
	assert.Equal(t, Name, missing[0].Plugin)

	weak := store.All(Name, KeyWeak)
	require.Len(t, weak, 1)
	assert.Equal(t, "X-Frame-Options", weak[0].Variable)
	assert.False(t, weak[0].IsVulnerability())

	assert.Equal(t, 2, res.Findings)
	entries := sink.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, output.KindVulnerability, entries[0].Kind)
	assert.Equal(t, output.KindInformation, entries[1].Kind)
}

func TestHeaders_MultiplePaths(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	p, store, sink := setup(t)
	require.NoError(t, p.Configure(plugin.OptionList{{Name: "paths", Value: "/, /admin ,/login"}}))

	_, err := p.Run(context.Background(), plugin.NewRequest(srv.URL))
	require.NoError(t, err)

	// Six headers missing on each of three URLs.
	assert.Len(t, store.All(Name, KeyMissing), 18)
	assert.Equal(t, 18, sink.Len())
	assert.Equal(t, 3, p.TaskStats().Completed)
}

func TestHeaders_UnreachableTargetStillReports(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	p, _, sink := setup(t)
	res, err := p.Run(context.Background(), plugin.NewRequest(target))
	require.NoError(t, err)
	assert.Zero(t, res.Findings)
	assert.Zero(t, sink.Len())
	assert.Equal(t, 1, p.TaskStats().Failed)
}

func TestHeaders_Configure(t *testing.T) {
	p := New()
	assert.ErrorIs(t, p.Configure(plugin.OptionList{{Name: "depth", Value: "1"}}), plugin.ErrUnknownOption)
	assert.ErrorIs(t, p.Configure(plugin.OptionList{{Name: "paths", Value: " , "}}), plugin.ErrInvalidOption)

	long, err := p.LongDescription()
	require.NoError(t, err)
	assert.True(t, strings.Contains(long, "paths"))

	deps, err := p.Dependencies()
	assert.NoError(t, err)
	assert.Empty(t, deps)
	assert.Equal(t, "audit", p.Type())
}
