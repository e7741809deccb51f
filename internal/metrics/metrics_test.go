package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestMetricsWithoutRegistererStillCounts(t *testing.T) {
	m := New(nil)
	m.IncFramesDropped()
	m.IncFramesDropped()
	m.IncDecodeErrors("audio")

	require.Equal(t, uint64(2), m.FramesDropped())
	require.Equal(t, uint64(1), m.DecodeErrors())
}

func TestMetricsWithRegistererMirrorsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.IncFramesDropped()
	m.SetQueueBytes(4096)

	require.Equal(t, uint64(1), m.FramesDropped())
	require.Equal(t, int64(4096), m.QueueBytes())

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
