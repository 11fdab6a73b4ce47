package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_TaskLifecycle(t *testing.T) {
	c := New()

	c.TaskSpawned("mailfinder")
	c.TaskSpawned("mailfinder")
	c.TaskStarted("mailfinder")
	c.TaskStarted("mailfinder")
	c.TaskFinished("mailfinder", "completed")
	c.TaskFinished("mailfinder", "failed")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.tasksSpawned.WithLabelValues("mailfinder")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.tasksRunning.WithLabelValues("mailfinder")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.tasksFinished.WithLabelValues("mailfinder", "failed")))
}

func TestCollector_Interceptions(t *testing.T) {
	c := New()
	c.Interception("headers", DecisionSuppressed)
	c.Interception("headers", DecisionPropagated)
	c.Interception("headers", DecisionPropagated)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.interceptions.WithLabelValues("headers", DecisionPropagated)))
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.TaskSpawned("p")
		c.TaskStarted("p")
		c.TaskFinished("p", "completed")
		c.Interception("p", DecisionSuppressed)
		c.FindingEmitted("information")
		c.PluginFailed("p")
	})
}

func TestServe(t *testing.T) {
	c := New()
	c.FindingEmitted("vulnerability")

	s, err := Serve(c, "127.0.0.1:0", "/metrics")
	require.NoError(t, err)
	defer s.Close(context.Background())

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `scanhost_findings_emitted_total{kind="vulnerability"} 1`)

	require.NoError(t, s.Close(context.Background()))
	assert.NoError(t, s.Close(context.Background()), "second close is a no-op")
}
