package player

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castmill/castmill-sub005/internal/display"
)

func fadeLayer(t *testing.T, name string, durationMs, fadeMs int64) (*Layer, *stubWidget) {
	t.Helper()
	w := &stubWidget{}
	l, err := MaterializeLayer(ContentDescriptor{
		Name:       name,
		Widget:     "stub",
		DurationMs: &durationMs,
		Config:     map[string]interface{}{"impl": w},
		Transition: &TransitionDescriptor{Name: "fade", DurationMs: fadeMs},
	}, LayerDeps{})
	require.NoError(t, err)
	return l, w
}

func TestRendererShowAttachesAndReveals(t *testing.T) {
	root := display.NewSurface()
	r := NewRenderer(root)
	l, w := stubLayer(t, "first", 1000, nil)

	require.NoError(t, r.Show(l, ms(40))(context.Background()))

	assert.Same(t, r.Surface(), l.Surface().Parent())
	assert.True(t, l.Surface().Visible())
	assert.Same(t, l, r.Current())
	assert.Equal(t, []time.Duration{ms(40)}, w.recordedShows())
}

func TestRendererReShowIsOnlyAReseek(t *testing.T) {
	r := NewRenderer(nil)
	l, w := stubLayer(t, "same", 1000, nil)

	require.NoError(t, r.Show(l, 0)(context.Background()))
	require.NoError(t, r.Show(l, ms(250))(context.Background()))

	// One render, one extra seek, no duplicate attach.
	assert.Equal(t, []time.Duration{0}, w.recordedShows())
	assert.Contains(t, w.recordedSeeks(), ms(250))
	assert.Len(t, r.Surface().Children(), 1)
	assert.Equal(t, 0, w.unloadCount())
}

func TestRendererShowMidTransitionKeepsOutgoing(t *testing.T) {
	r := NewRenderer(nil)
	a, _ := stubLayer(t, "out", 1000, nil)
	b, _ := fadeLayer(t, "in", 1000, 500)

	require.NoError(t, r.Show(a, 0)(context.Background()))
	require.NoError(t, r.Show(b, ms(100))(context.Background()))

	// Inside the transition window both surfaces stay attached and the
	// effect sits at the seeked point.
	assert.Same(t, r.Surface(), a.Surface().Parent())
	assert.Same(t, r.Surface(), b.Surface().Parent())
	assert.InDelta(t, 0.2, b.Surface().Opacity(), 0.001)
	assert.InDelta(t, 0.8, a.Surface().Opacity(), 0.001)
	assert.Same(t, b, r.Current())
}

func TestRendererShowPastTransitionDropsOutgoing(t *testing.T) {
	r := NewRenderer(nil)
	a, wa := stubLayer(t, "out", 1000, nil)
	b, _ := fadeLayer(t, "in", 1000, 500)

	require.NoError(t, r.Show(a, 0)(context.Background()))
	require.NoError(t, r.Show(b, ms(600))(context.Background()))

	// Beyond the window the effect is fast-forwarded and the outgoing
	// layer is gone.
	assert.Nil(t, a.Surface().Parent())
	assert.Equal(t, 1, wa.unloadCount())
	assert.Equal(t, 1.0, b.Surface().Opacity())
}

func TestRendererPlaySameLayerSkipsReshow(t *testing.T) {
	r := NewRenderer(nil)
	l, w := stubLayer(t, "resume", 1000, nil)

	require.NoError(t, r.Show(l, 0)(context.Background()))

	ticks := make(chan time.Duration)
	done := make(chan error, 1)
	go func() { done <- r.Play(l, ticks, ms(300), 1)(context.Background()) }()

	ticks <- ms(300)
	close(ticks)
	require.NoError(t, <-done)

	assert.Equal(t, []time.Duration{0}, w.recordedShows())
	assert.Contains(t, w.recordedSeeks(), ms(300))
	assert.Equal(t, []time.Duration{ms(300)}, w.recordedTicks())
}

func TestRendererPlayPanicsForWidgetlessLayer(t *testing.T) {
	r := NewRenderer(nil)
	l, err := MaterializeLayer(ContentDescriptor{Name: "void", Widget: "absent"}, LayerDeps{})
	require.NoError(t, err)

	// The failure surfaces at construction, before any tick flows.
	assert.Panics(t, func() { r.Play(l, make(chan time.Duration), 0, 1) })
}

func TestRendererSeekDelegatesToCurrent(t *testing.T) {
	r := NewRenderer(nil)

	// No current layer: nothing to do, nothing to crash.
	r.Seek(ms(100))

	l, w := stubLayer(t, "target", 1000, nil)
	require.NoError(t, r.Show(l, 0)(context.Background()))
	r.Seek(ms(700))
	assert.Contains(t, w.recordedSeeks(), ms(700))
}

func TestRendererSetViewport(t *testing.T) {
	root := display.NewSurface()
	r := NewRenderer(root)

	r.SetViewport(Viewport{Left: 50, Top: 0, Width: 50, Height: 50})

	sx, sy := r.Surface().Scale()
	assert.Equal(t, 2.0, sx)
	assert.Equal(t, 2.0, sy)
	ox, oy := r.Surface().Offset()
	assert.Equal(t, -100.0, ox)
	assert.Equal(t, 0.0, oy)
	clip := r.Surface().Clip()
	require.NotNil(t, clip)
	assert.Equal(t, display.Rect{X: 50, Y: 0, Width: 50, Height: 50}, *clip)

	// Degenerate viewports reset to the identity mapping.
	r.SetViewport(Viewport{})
	sx, sy = r.Surface().Scale()
	assert.Equal(t, 1.0, sx)
	assert.Equal(t, 1.0, sy)
	assert.Nil(t, r.Surface().Clip())
}

func TestRendererClean(t *testing.T) {
	root := display.NewSurface()
	r := NewRenderer(root)
	l, w := stubLayer(t, "cleanup", 1000, nil)

	require.NoError(t, r.Show(l, 0)(context.Background()))
	r.Clean()

	assert.Nil(t, r.Current())
	assert.Nil(t, r.Surface().Parent())
	assert.Equal(t, 1, w.unloadCount())
}
