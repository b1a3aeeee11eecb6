package player

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/castmill/castmill-sub005/internal/widget"
)

func init() {
	widget.Register("stub", func(config map[string]interface{}, _ widget.Deps) (widget.Widget, error) {
		if w, ok := config["impl"].(widget.Widget); ok {
			return w, nil
		}
		return &stubWidget{}, nil
	})
	// Constructor that yields no widget at all, to exercise the
	// widgetless-layer failure mode.
	widget.Register("absent", func(map[string]interface{}, widget.Deps) (widget.Widget, error) {
		return nil, nil
	})
}

// stubWidget records every interaction so tests can assert how the
// engine drives its content.
type stubWidget struct {
	mu        sync.Mutex
	duration  time.Duration
	showErr   error
	exitEarly bool // Play returns right after the first tick

	ticks   []time.Duration
	shows   []time.Duration
	seeks   []time.Duration
	stops   int
	unloads int
}

func (w *stubWidget) Play(ctx context.Context, ticks <-chan time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case offset, ok := <-ticks:
			if !ok {
				return nil
			}
			w.mu.Lock()
			w.ticks = append(w.ticks, offset)
			early := w.exitEarly
			w.mu.Unlock()
			if early {
				return nil
			}
		}
	}
}

func (w *stubWidget) Seek(offset time.Duration) (time.Duration, time.Duration) {
	if offset < 0 {
		offset = 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seeks = append(w.seeks, offset)
	return offset, w.duration
}

func (w *stubWidget) Show(_ context.Context, offset time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.shows = append(w.shows, offset)
	return w.showErr
}

func (w *stubWidget) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stops++
}

func (w *stubWidget) Unload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unloads++
}

func (w *stubWidget) Duration() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.duration
}

func (w *stubWidget) setDuration(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.duration = d
}

func (w *stubWidget) recordedTicks() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]time.Duration(nil), w.ticks...)
}

func (w *stubWidget) recordedShows() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]time.Duration(nil), w.shows...)
}

func (w *stubWidget) recordedSeeks() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]time.Duration(nil), w.seeks...)
}

func (w *stubWidget) unloadCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.unloads
}

func ms(n int64) time.Duration { return time.Duration(n) * time.Millisecond }

// stubLayer materializes a layer with an explicit duration around w.
func stubLayer(t *testing.T, name string, durationMs int64, w *stubWidget) (*Layer, *stubWidget) {
	t.Helper()
	if w == nil {
		w = &stubWidget{}
	}
	l, err := MaterializeLayer(ContentDescriptor{
		Name:       name,
		Widget:     "stub",
		DurationMs: &durationMs,
		Config:     map[string]interface{}{"impl": w},
	}, LayerDeps{})
	require.NoError(t, err)
	return l, w
}

// stubPlaylist builds a playlist of stub layers with explicit durations.
func stubPlaylist(t *testing.T, name string, durationsMs ...int64) (*Playlist, []*stubWidget) {
	t.Helper()
	p := NewPlaylist(name)
	widgets := make([]*stubWidget, 0, len(durationsMs))
	for i, d := range durationsMs {
		l, w := stubLayer(t, name+"-"+string(rune('a'+i)), d, nil)
		p.Add(l, -1)
		widgets = append(widgets, w)
	}
	return p, widgets
}
