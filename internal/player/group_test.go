package player

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castmill/castmill-sub005/internal/widget"
)

func newGroup(t *testing.T, durationsMs ...int64) widget.Widget {
	t.Helper()

	items := make([]ContentDescriptor, 0, len(durationsMs))
	for i := range durationsMs {
		d := durationsMs[i]
		items = append(items, ContentDescriptor{
			Name:       "item",
			Widget:     "text",
			Config:     map[string]interface{}{"text": "hi"},
			DurationMs: &d,
		})
	}

	w, err := widget.New("group", map[string]interface{}{
		"playlist": PlaylistDescriptor{Name: "sub", Items: items},
	}, widget.Deps{})
	require.NoError(t, err)
	return w
}

func TestGroupDurationIsSubPlaylistTotal(t *testing.T) {
	g := newGroup(t, 1000, 500)
	assert.Equal(t, ms(1500), g.Duration())
}

func TestGroupSeekDelegates(t *testing.T) {
	g := newGroup(t, 1000, 500)
	offset, duration := g.Seek(ms(1200))
	assert.Equal(t, ms(1200), offset)
	assert.Equal(t, ms(1500), duration)
}

func TestGroupPlaysItsOwnSchedule(t *testing.T) {
	g := newGroup(t, 100, 100)

	ticks := make(chan time.Duration)
	done := make(chan error, 1)
	go func() { done <- g.Play(context.Background(), ticks) }()

	for _, offset := range []time.Duration{0, ms(50), ms(120), ms(180)} {
		ticks <- offset
	}
	close(ticks)
	assert.NoError(t, <-done)
}

func TestGroupRequiresPlaylist(t *testing.T) {
	_, err := widget.New("group", map[string]interface{}{}, widget.Deps{})
	assert.Error(t, err)
}

func TestGroupAcceptsRawWireConfig(t *testing.T) {
	g, err := widget.New("group", map[string]interface{}{
		"playlist": map[string]interface{}{
			"name": "wire",
			"items": []interface{}{
				map[string]interface{}{
					"name": "a", "widget": "text",
					"config":   map[string]interface{}{"text": "x"},
					"duration": float64(700),
				},
			},
		},
	}, widget.Deps{})
	require.NoError(t, err)
	assert.Equal(t, ms(700), g.Duration())
}
