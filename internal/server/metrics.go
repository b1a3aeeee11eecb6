package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/castmill/castmill-sub005/internal/events"
)

// Metrics holds the Prometheus metrics of the device player.
type Metrics struct {
	TicksEmitted  prometheus.Counter
	LapsCompleted prometheus.Counter
	RunsCompleted prometheus.Counter
	RenderErrors  prometheus.Counter
	PlaylistSwaps prometheus.Counter

	PlaybackOffset prometheus.Gauge
}

// NewMetrics creates and registers all metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TicksEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "marquee_ticks_emitted_total",
			Help: "Playback ticks emitted since start",
		}),
		LapsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "marquee_laps_completed_total",
			Help: "Loop boundary wraparounds since start",
		}),
		RunsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "marquee_runs_completed_total",
			Help: "Non-looping playback runs completed",
		}),
		RenderErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "marquee_render_errors_total",
			Help: "Layers that failed to render and degraded to a blank frame",
		}),
		PlaylistSwaps: factory.NewCounter(prometheus.CounterOpts{
			Name: "marquee_playlist_swaps_total",
			Help: "Playlist documents hot-reloaded",
		}),
		PlaybackOffset: factory.NewGauge(prometheus.GaugeOpts{
			Name: "marquee_playback_offset_ms",
			Help: "Current playback offset in milliseconds",
		}),
	}
}

// Observe wires the metrics to the event bus.
func (m *Metrics) Observe(bus *events.Bus) *events.Subscription {
	return bus.Subscribe(events.EventFilter{}, func(event events.Event) {
		switch event.Type {
		case events.EventPlaybackTime:
			m.TicksEmitted.Inc()
			if data, ok := event.Payload.(events.PlaybackTimeData); ok {
				m.PlaybackOffset.Set(float64(data.Offset.Milliseconds()))
			}
		case events.EventPlaybackEnd:
			m.LapsCompleted.Inc()
		case events.EventPlaybackCompleted:
			m.RunsCompleted.Inc()
		case events.EventLayerError:
			m.RenderErrors.Inc()
		case events.EventPlaylistChanged:
			m.PlaylistSwaps.Inc()
		}
	})
}
