// file: internal/metrics/metrics_test.go
// version: 1.0.0
// guid: 3c5d7e9f-1a2b-4c4d-8e6f-0a1b2c3d4e5f

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	Register()
	Register() // a second call must not panic on duplicate registration
}

// TestObserveJobItemRecordsSeconds pins the unit conversion: a duration
// observation lands in the histogram as seconds, not nanoseconds.
func TestObserveJobItemRecordsSeconds(t *testing.T) {
	ObserveJobItem(150 * time.Millisecond)
	ObserveJobItem(200 * time.Millisecond)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(jobItemDuration))
	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	require.Len(t, families[0].GetMetric(), 1)

	h := families[0].GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(2), h.GetSampleCount())
	assert.InDelta(t, 0.35, h.GetSampleSum(), 1e-9)
}

func TestJobLifecycleCounters(t *testing.T) {
	before := testutil.ToFloat64(jobsLaunched)
	IncJobLaunched()
	assert.Equal(t, before+1, testutil.ToFloat64(jobsLaunched))

	finished := jobsFinished.WithLabelValues("partial")
	beforeFinished := testutil.ToFloat64(finished)
	IncJobFinished("partial")
	assert.Equal(t, beforeFinished+1, testutil.ToFloat64(finished))
}
