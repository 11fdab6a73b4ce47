package report

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waftester/scanhost/pkg/finding"
	"github.com/waftester/scanhost/pkg/metrics"
	"github.com/waftester/scanhost/pkg/output"
)

func mk(url, variable, desc string) finding.Finding {
	return finding.Finding{OriginURL: url, Variable: variable, Description: desc, Plugin: "test"}
}

func TestFilter_ByURLKeepsFirstSeen(t *testing.T) {
	in := []finding.Finding{
		mk("http://x/a", "", "a1"),
		mk("http://x/b", "", "b1"),
		mk("http://x/a", "", "a2"),
		mk("http://x/c", "", "c1"),
		mk("http://x/b", "", "b2"),
	}

	out, err := Filter(in, ByURL)
	require.NoError(t, err)

	var descs []string
	for _, f := range out {
		descs = append(descs, f.Description)
	}
	assert.Equal(t, []string{"a1", "b1", "c1"}, descs)
}

func TestFilter_ByURLOnePerDistinctURL(t *testing.T) {
	var in []finding.Finding
	for i := 0; i < 100; i++ {
		in = append(in, mk(fmt.Sprintf("http://x/%d", i%7), "", fmt.Sprint(i)))
	}

	out, err := Filter(in, ByURL)
	require.NoError(t, err)
	require.Len(t, out, 7)

	for i, f := range out {
		// First occurrence of URL i is finding i.
		assert.Equal(t, fmt.Sprintf("http://x/%d", i), f.OriginURL)
		assert.Equal(t, fmt.Sprint(i), f.Description)
	}
}

func TestFilter_NonePreservesLengthAndOrder(t *testing.T) {
	in := []finding.Finding{
		mk("http://x/a", "", "1"),
		mk("http://x/a", "", "2"),
		mk("http://x/a", "q", "3"),
	}
	for _, p := range []Policy{None, ""} {
		out, err := Filter(in, p)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestFilter_VariableKeyIsUnambiguous(t *testing.T) {
	in := []finding.Finding{
		mk("http://x/a", "bc", "1"),
		mk("http://x/ab", "c", "2"),
	}
	out, err := Filter(in, ByURLAndVariable)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestReport_URLVersusVariable(t *testing.T) {
	in := []finding.Finding{
		mk("http://x/a", "id", "sqli in id"),
		mk("http://x/a", "name", "sqli in name"),
	}

	byURL := output.NewRecorder()
	require.NoError(t, New(byURL).Report(in, ByURL))
	assert.Equal(t, 1, byURL.Len())

	byVar := output.NewRecorder()
	require.NoError(t, New(byVar).Report(in, ByURLAndVariable))
	assert.Equal(t, 2, byVar.Len())
}

func TestReport_InvalidPolicyEmitsNothing(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	sink := output.NewRecorder()

	err := New(sink, WithLogger(logger)).Report([]finding.Finding{mk("http://x/a", "", "a")}, Policy("BOGUS"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPolicy)
	var ipe *InvalidPolicyError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, Policy("BOGUS"), ipe.Policy)

	assert.Zero(t, sink.Len(), "sink must receive zero calls")
	assert.Contains(t, logs.String(), "level=ERROR")
	assert.Contains(t, logs.String(), "BOGUS")
}

func TestReport_SeverityRouting(t *testing.T) {
	sink := output.NewRecorder()
	m := metrics.New()
	in := []finding.Finding{
		{OriginURL: "http://x/a", Description: "xss", Severity: finding.High, Plugin: "p"},
		{OriginURL: "http://x/b", Description: "mail", Plugin: "p"},
	}

	require.NoError(t, New(sink, WithMetrics(m)).Report(in, None))

	entries := sink.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, output.KindVulnerability, entries[0].Kind)
	assert.Equal(t, finding.High, entries[0].Severity)
	assert.Equal(t, output.KindInformation, entries[1].Kind)

	count, err := testutil.GatherAndCount(m.Registry(), "scanhost_findings_emitted_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"URL", ByURL, false},
		{"by_url", ByURL, false},
		{"var", ByURLAndVariable, false},
		{"BY_URL_AND_VARIABLE", ByURLAndVariable, false},
		{"none", None, false},
		{"", None, false},
		{"BOGUS", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPolicy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
