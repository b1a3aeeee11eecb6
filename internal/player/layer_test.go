package player

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castmill/castmill-sub005/internal/display"
	"github.com/castmill/castmill-sub005/internal/events"
)

func TestLayerDurationPrecedence(t *testing.T) {
	explicit := int64(1000)
	negative := int64(-50)
	fade := &TransitionDescriptor{Name: "fade", DurationMs: 1000}

	tests := []struct {
		name string
		desc ContentDescriptor
		want time.Duration
	}{
		{
			name: "explicit wins over widget duration",
			desc: ContentDescriptor{Widget: "stub", DurationMs: &explicit,
				Config: map[string]interface{}{"impl": &stubWidget{duration: ms(9000)}}},
			want: ms(1000),
		},
		{
			name: "widget duration plus slack plus transition",
			desc: ContentDescriptor{Widget: "stub", SlackMs: 500, Transition: fade,
				Config: map[string]interface{}{"impl": &stubWidget{duration: ms(2000)}}},
			want: ms(3500),
		},
		{
			name: "slack alone for durationless widgets",
			desc: ContentDescriptor{Widget: "stub", SlackMs: 500,
				Config: map[string]interface{}{"impl": &stubWidget{}}},
			want: ms(500),
		},
		{
			name: "negative explicit clamps to zero",
			desc: ContentDescriptor{Widget: "stub", DurationMs: &negative,
				Config: map[string]interface{}{"impl": &stubWidget{duration: ms(2000)}}},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := MaterializeLayer(tt.desc, LayerDeps{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, l.Duration())
		})
	}
}

func TestLayerStyleAppliesToSurface(t *testing.T) {
	opacity := 0.5
	explicit := int64(100)
	l, err := MaterializeLayer(ContentDescriptor{
		Name:       "styled",
		Widget:     "stub",
		DurationMs: &explicit,
		Style:      StyleDescriptor{Opacity: &opacity, Rotation: 90, ZIndex: 3},
		Config:     map[string]interface{}{"impl": &stubWidget{}},
	}, LayerDeps{})
	require.NoError(t, err)

	assert.Equal(t, 0.5, l.Surface().Opacity())
	assert.Equal(t, 90.0, l.Surface().Rotation())
	assert.Equal(t, 3, l.Surface().ZIndex())
}

func TestLayerPlayPanicsWithoutWidget(t *testing.T) {
	l, err := MaterializeLayer(ContentDescriptor{Name: "empty", Widget: "absent"}, LayerDeps{})
	require.NoError(t, err)

	assert.Panics(t, func() { l.Play(make(chan time.Duration)) })
}

func TestLayerPlayDrivesWidget(t *testing.T) {
	l, w := stubLayer(t, "clip", 1000, nil)

	ticks := make(chan time.Duration)
	done := make(chan error, 1)
	go func() { done <- l.Play(ticks)(context.Background()) }()

	ticks <- ms(10)
	ticks <- ms(20)
	close(ticks)

	require.NoError(t, <-done)
	assert.Equal(t, []time.Duration{ms(10), ms(20)}, w.recordedTicks())
	assert.Equal(t, ms(20), l.Offset())
	assert.Equal(t, StatusStopped, l.Status())
}

func TestLayerPlaySurvivesEarlyWidgetExit(t *testing.T) {
	w := &stubWidget{exitEarly: true}
	l, _ := stubLayer(t, "short", 1000, w)

	ticks := make(chan time.Duration)
	done := make(chan error, 1)
	go func() { done <- l.Play(ticks)(context.Background()) }()

	ticks <- ms(10)
	ticks <- ms(20)
	ticks <- ms(30)
	close(ticks)

	require.NoError(t, <-done)
	// The widget only saw the first tick; the layer kept tracking.
	assert.Equal(t, []time.Duration{ms(10)}, w.recordedTicks())
	assert.Equal(t, ms(30), l.Offset())
}

func TestLayerShowRendersFrame(t *testing.T) {
	l, w := stubLayer(t, "frame", 1000, nil)

	require.NoError(t, l.Show(ms(40))(context.Background()))
	assert.Equal(t, []time.Duration{ms(40)}, w.recordedShows())
	assert.Equal(t, ms(40), l.Offset())
}

func TestLayerShowFailureIsNotFatal(t *testing.T) {
	bus := events.NewBus()
	require.NoError(t, bus.Start())
	defer bus.Stop()

	reported := make(chan events.Event, 1)
	bus.Subscribe(events.EventFilter{Types: []events.EventType{events.EventLayerError}},
		func(event events.Event) { reported <- event })

	w := &stubWidget{showErr: errors.New("asset missing")}
	explicit := int64(1000)
	l, err := MaterializeLayer(ContentDescriptor{
		Name:       "broken",
		Widget:     "stub",
		DurationMs: &explicit,
		Config:     map[string]interface{}{"impl": w},
	}, LayerDeps{Bus: bus})
	require.NoError(t, err)

	// The show completes cleanly: one broken asset degrades to a blank
	// frame instead of halting the playlist.
	require.NoError(t, l.Show(0)(context.Background()))

	select {
	case event := <-reported:
		data, ok := event.Payload.(events.LayerErrorData)
		require.True(t, ok)
		assert.Equal(t, "broken", data.Layer)
		assert.Contains(t, data.Error, "asset missing")
	case <-time.After(time.Second):
		t.Fatal("no layer.error event published")
	}
}

func TestLayerShowCancelledContextPropagates(t *testing.T) {
	w := &stubWidget{showErr: errors.New("whatever")}
	l, _ := stubLayer(t, "cancelled", 1000, w)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, l.Show(0)(ctx), context.Canceled)
}

func TestLayerSeekClampsNegative(t *testing.T) {
	l, w := stubLayer(t, "clamp", 1000, nil)

	offset, duration := l.Seek(ms(-100))
	assert.Equal(t, time.Duration(0), offset)
	assert.Equal(t, ms(1000), duration)
	assert.Equal(t, []time.Duration{0}, w.recordedSeeks())
}

func TestLayerUnloadReleasesEverything(t *testing.T) {
	l, w := stubLayer(t, "release", 1000, nil)

	parent := display.NewSurface()
	parent.Attach(l.Surface())
	l.Seek(ms(300))

	l.Unload()

	assert.Nil(t, l.Surface().Parent())
	assert.Equal(t, time.Duration(0), l.Offset())
	assert.Equal(t, StatusNotReady, l.Status())
	assert.Equal(t, 1, w.unloadCount())
	// Unload rewinds the widget to zero for the next appearance.
	assert.Equal(t, time.Duration(0), w.recordedSeeks()[len(w.recordedSeeks())-1])
}
