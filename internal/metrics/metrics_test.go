package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg)
	// second Init must not panic on duplicate registration
	Init(reg)

	ObservePrintJob("receipt", ResultSuccess, 300*time.Millisecond)
	ObservePrintJob("receipt", ResultError, time.Second)
	IncConnectAttempt("label", ResultError)
	IncConnectAttempt("label", ResultError)
	AddBytesWritten("label", "gatt", 250)

	assert.Equal(t, 1.0, testutil.ToFloat64(printJobs.WithLabelValues("receipt", ResultSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(connectAttempts.WithLabelValues("label", ResultError)))
	assert.Equal(t, 250.0, testutil.ToFloat64(bytesWritten.WithLabelValues("label", "gatt")))

	n, err := testutil.GatherAndCount(reg, metricPrefix+"print_job_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
