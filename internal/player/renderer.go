package player

import (
	"context"
	"sync"
	"time"

	"github.com/castmill/castmill-sub005/internal/display"
	"github.com/castmill/castmill-sub005/internal/logger"
	"github.com/castmill/castmill-sub005/internal/transition"
)

// Viewport is a percentage-based sub-rectangle of the shared canvas,
// each field in [0, 100].
type Viewport struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Renderer owns one display surface for its lifetime and decides what is
// visible on it: exactly one layer, or transiently two while a transition
// is in flight. Layers are borrowed from the playlist, never owned.
type Renderer struct {
	mu      sync.Mutex
	surface *display.Surface
	current *Layer
	active  transition.Transition
	volume  float64
}

// NewRenderer creates a renderer attached under parent. Pass nil for a
// free-standing renderer (tests, offscreen).
func NewRenderer(parent *display.Surface) *Renderer {
	r := &Renderer{
		surface: display.NewSurface(),
		volume:  1,
	}
	if parent != nil {
		parent.Attach(r.surface)
	}
	return r
}

// Surface returns the renderer's own surface handle.
func (r *Renderer) Surface() *display.Surface { return r.surface }

// Current returns the currently shown layer, or nil.
func (r *Renderer) Current() *Layer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Volume returns the last applied playback volume.
func (r *Renderer) Volume() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.volume
}

// SetViewport maps a sub-rectangle of the shared canvas onto this
// renderer's surface: the region is scaled up to fill the surface and
// clipped, so several renderers can each crop a region of the same
// playlist for a video wall.
func (r *Renderer) SetViewport(v Viewport) {
	if v.Width <= 0 || v.Height <= 0 {
		r.surface.SetScale(1, 1)
		r.surface.SetOffset(0, 0)
		r.surface.ClearClip()
		return
	}

	sx := 100 / v.Width
	sy := 100 / v.Height
	r.surface.SetScale(sx, sy)
	r.surface.SetOffset(-v.Left*sx, -v.Top*sy)
	r.surface.SetClip(display.Rect{X: v.Left, Y: v.Top, Width: v.Width, Height: v.Height})
}

// Show returns the task that makes layer the visible one, rendered at
// offset. Showing the layer that is already on screen is a plain reseek:
// no re-attach, no transition. Otherwise the incoming layer is attached
// hidden, rendered, revealed, and the transition between outgoing and
// incoming is either run from offset (when still inside its window) or
// fast-forwarded, after which the outgoing layer is unloaded.
func (r *Renderer) Show(layer *Layer, offset time.Duration) Task {
	return func(ctx context.Context) error {
		r.mu.Lock()
		outgoing := r.current
		r.mu.Unlock()

		if outgoing == layer {
			layer.Seek(offset)
			return nil
		}

		r.prepare(outgoing, layer)

		if err := layer.Show(offset)(ctx); err != nil {
			return err
		}
		layer.Surface().SetVisible(true)

		active := r.swapTransition(outgoing, layer)
		if active != nil && offset < active.Duration() {
			// Mid-transition: both layers stay attached; the seek puts
			// the effect at the right point.
			active.Seek(offset)
		} else {
			if active != nil {
				active.Seek(active.Duration())
			}
			r.dropOutgoing(outgoing)
		}

		r.mu.Lock()
		r.current = layer
		r.mu.Unlock()
		return nil
	}
}

// Play returns the continuous-playback task for layer: render at offset
// like Show, then run the layer's content playback and the transition
// effect side by side. The task completes only when both are done, and
// only then is the outgoing layer unloaded and detached.
func (r *Renderer) Play(layer *Layer, ticks <-chan time.Duration, offset time.Duration, volume float64) Task {
	// Built eagerly so a widgetless layer fails fast, before any tick.
	content := layer.Play(ticks)

	return func(ctx context.Context) error {
		r.mu.Lock()
		outgoing := r.current
		r.volume = volume
		r.mu.Unlock()

		if outgoing == layer {
			layer.Seek(offset)
			return content(ctx)
		}

		r.prepare(outgoing, layer)

		if err := layer.Show(offset)(ctx); err != nil {
			return err
		}
		layer.Surface().SetVisible(true)

		active := r.swapTransition(outgoing, layer)

		r.mu.Lock()
		r.current = layer
		r.mu.Unlock()

		parts := []Task{content}
		if active != nil && offset < active.Duration() {
			parts = append(parts, func(ctx context.Context) error {
				return active.Run(ctx, offset)
			})
		} else if active != nil {
			active.Seek(active.Duration())
		}

		err := Join(parts...)(ctx)
		r.dropOutgoing(outgoing)
		return err
	}
}

// Seek delegates to the currently shown layer, if any.
func (r *Renderer) Seek(offset time.Duration) {
	if current := r.Current(); current != nil {
		current.Seek(offset)
	}
}

// Clean detaches the renderer's surface and unloads the current layer.
func (r *Renderer) Clean() {
	r.mu.Lock()
	current := r.current
	active := r.active
	r.current = nil
	r.active = nil
	r.mu.Unlock()

	if active != nil {
		active.Reset()
	}
	if current != nil {
		current.Unload()
	}
	r.surface.Detach()
}

// prepare stacks the outgoing layer above the incoming one and attaches
// the incoming surface hidden.
func (r *Renderer) prepare(outgoing, incoming *Layer) {
	if outgoing != nil {
		outgoing.Surface().SetZIndex(incoming.Surface().ZIndex() + 1)
	}
	incoming.Surface().SetVisible(false)
	r.surface.Attach(incoming.Surface())
}

// swapTransition installs the transition the incoming layer asks for. A
// different effect than the active one resets the old effect first; a new
// effect is initialized only when there is an outgoing layer to blend
// from.
func (r *Renderer) swapTransition(outgoing, incoming *Layer) transition.Transition {
	want := incoming.Transition()

	r.mu.Lock()
	active := r.active
	r.mu.Unlock()

	if active == want && want != nil {
		return active
	}

	if active != nil {
		active.Reset()
		active = nil
	}
	if want != nil && outgoing != nil {
		want.Init(outgoing.Surface(), incoming.Surface())
		active = want
	}

	r.mu.Lock()
	r.active = active
	r.mu.Unlock()
	return active
}

// dropOutgoing unloads and detaches the layer that just went off screen.
func (r *Renderer) dropOutgoing(outgoing *Layer) {
	if outgoing == nil {
		return
	}
	logger.Debug("releasing outgoing layer", "layer", outgoing.Name())
	outgoing.Unload()
}
