package server

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castmill/castmill-sub005/internal/events"
)

func TestMetricsObserveBus(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	bus := events.NewBus()
	require.NoError(t, bus.Start())
	defer bus.Stop()
	m.Observe(bus)

	bus.Publish(events.NewPlaybackTimeEvent("main", events.PlaybackTimeData{
		Offset:   1500 * time.Millisecond,
		Duration: 3 * time.Second,
	}))
	bus.Publish(events.NewPlaybackEndEvent("main", events.PlaybackEndData{Lap: 1}))
	bus.Publish(events.NewLayerErrorEvent("main", events.LayerErrorData{Layer: "promo"}))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.TicksEmitted) == 1 &&
			testutil.ToFloat64(m.LapsCompleted) == 1 &&
			testutil.ToFloat64(m.RenderErrors) == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, 1500.0, testutil.ToFloat64(m.PlaybackOffset))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RunsCompleted))
}
