package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg)
	require.NoError(t, err)

	p.RefreshStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(p.inFlight))
	p.WaiterQueued()
	p.WaiterQueued()
	p.RefreshFinished(nil, 2)
	p.RefreshStarted()
	p.RefreshFinished(errors.New("x"), 0)
	p.RequestRetried("replayed")
	p.RequestRetried("exhausted")
	p.RequestRetried("replayed")

	assert.Equal(t, 0.0, testutil.ToFloat64(p.inFlight))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.waiters))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.refreshes.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.refreshes.WithLabelValues("failure")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.retries.WithLabelValues("replayed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.retries.WithLabelValues("exhausted")))
}

func TestNewPrometheus_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheus(reg)
	require.NoError(t, err)

	_, err = NewPrometheus(reg)
	assert.Error(t, err)
}
