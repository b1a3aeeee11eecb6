package player

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/castmill/castmill-sub005/internal/widget"
)

func init() {
	widget.Register("group", newGroupWidget)
}

// groupWidget wraps a whole sub-playlist as a single widget, so a
// playlist entry can itself be a playlist. The entry's explicit duration
// governs how long the group gets on the outer timeline; inside it the
// sub-playlist schedules its own layers.
type groupWidget struct {
	playlist *Playlist
	renderer *Renderer
}

func newGroupWidget(config map[string]interface{}, deps widget.Deps) (widget.Widget, error) {
	desc, err := groupDescriptor(config)
	if err != nil {
		return nil, err
	}

	sub, err := MaterializePlaylist(desc, LayerDeps{Resources: deps.Resources})
	if err != nil {
		return nil, fmt.Errorf("group %q: %w", desc.Name, err)
	}

	return &groupWidget{
		playlist: sub,
		renderer: NewRenderer(deps.Surface),
	}, nil
}

// groupDescriptor digs the nested playlist descriptor out of the widget
// config, accepting either the typed struct (internal materialization)
// or raw wire maps.
func groupDescriptor(config map[string]interface{}) (*PlaylistDescriptor, error) {
	raw, ok := config["playlist"]
	if !ok {
		return nil, fmt.Errorf("group widget requires a playlist")
	}

	switch v := raw.(type) {
	case PlaylistDescriptor:
		return &v, nil
	case *PlaylistDescriptor:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("group widget playlist: %w", err)
		}
		return ParsePlaylist(data)
	}
}

func (g *groupWidget) Play(ctx context.Context, ticks <-chan time.Duration) error {
	return g.playlist.Play(g.renderer, ticks, PlayOptions{})(ctx)
}

func (g *groupWidget) Seek(offset time.Duration) (time.Duration, time.Duration) {
	return g.playlist.Seek(offset)
}

func (g *groupWidget) Show(ctx context.Context, offset time.Duration) error {
	g.playlist.Seek(offset)
	return g.playlist.Show(g.renderer)(ctx)
}

func (g *groupWidget) Stop() {
	if current := g.renderer.Current(); current != nil {
		current.Stop()
	}
}

func (g *groupWidget) Unload() {
	g.renderer.Clean()
	g.playlist.Unload()
}

func (g *groupWidget) Duration() time.Duration {
	return g.playlist.Duration()
}
