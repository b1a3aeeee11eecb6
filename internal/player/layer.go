package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/castmill/castmill-sub005/internal/display"
	"github.com/castmill/castmill-sub005/internal/events"
	"github.com/castmill/castmill-sub005/internal/logger"
	"github.com/castmill/castmill-sub005/internal/resources"
	"github.com/castmill/castmill-sub005/internal/transition"
	"github.com/castmill/castmill-sub005/internal/widget"
)

// Status tracks the lifecycle of a layer or playlist. Transitions are
// advisory: the player reads them for reporting, it does not gate on
// them.
type Status int

const (
	StatusNotReady Status = iota
	StatusLoading
	StatusReady
	StatusStarting
	StatusPlaying
	StatusStopping
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusNotReady:
		return "not-ready"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusStarting:
		return "starting"
	case StatusPlaying:
		return "playing"
	case StatusStopping:
		return "stopping"
	case StatusStopped:
		return "stopped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Layer is one playable entry of a playlist: a widget plus the surface it
// renders into, display metadata and a duration policy. The playlist that
// materialized a layer owns it; the renderer only borrows it while shown.
type Layer struct {
	mu sync.Mutex

	id         string
	name       string
	widgetKind string

	widget  widget.Widget
	surface *display.Surface

	opacity  float64
	rotation float64
	zIndex   int

	status  Status
	seeking bool
	offset  time.Duration

	explicit   *time.Duration
	slack      time.Duration
	transition transition.Transition

	bus *events.Bus
}

// LayerDeps carries the collaborators a layer materialization needs.
type LayerDeps struct {
	Resources *resources.Manager
	Bus       *events.Bus
}

// MaterializeLayer builds a layer from its descriptor. The layer creates
// and owns its surface; it is released again through Unload.
func MaterializeLayer(desc ContentDescriptor, deps LayerDeps) (*Layer, error) {
	l := &Layer{
		id:         uuid.NewString(),
		name:       desc.Name,
		widgetKind: desc.Widget,
		surface:    display.NewSurface(),
		opacity:    1,
		rotation:   desc.Style.Rotation,
		zIndex:     desc.Style.ZIndex,
		status:     StatusNotReady,
		explicit:   desc.Duration(),
		slack:      desc.Slack(),
		bus:        deps.Bus,
	}
	if desc.Style.Opacity != nil {
		l.opacity = *desc.Style.Opacity
	}
	l.surface.SetOpacity(l.opacity)
	l.surface.SetRotation(l.rotation)
	l.surface.SetZIndex(l.zIndex)

	kind := desc.Widget
	cfg := desc.Config
	if len(desc.Items) > 0 {
		// A nested playlist is wrapped as a single group entry.
		kind = "group"
		cfg = map[string]interface{}{"playlist": PlaylistDescriptor{Name: desc.Name, Items: desc.Items}}
	}

	w, err := widget.New(kind, cfg, widget.Deps{Surface: l.surface, Resources: deps.Resources})
	if err != nil {
		return nil, fmt.Errorf("failed to materialize %q: %w", desc.Name, err)
	}
	l.widget = w

	if desc.Transition != nil {
		t, err := transition.New(desc.Transition.Name, desc.Transition.Opts,
			time.Duration(desc.Transition.DurationMs)*time.Millisecond)
		if err != nil {
			return nil, fmt.Errorf("failed to materialize %q: %w", desc.Name, err)
		}
		l.transition = t
	}

	l.setStatus(StatusReady)
	return l, nil
}

// ID returns the layer identity.
func (l *Layer) ID() string { return l.id }

// Name returns the descriptor name.
func (l *Layer) Name() string { return l.name }

// Surface returns the layer's surface handle. The caller borrows it; the
// layer keeps ownership.
func (l *Layer) Surface() *display.Surface { return l.surface }

// Transition returns the transition the layer wants run when it comes on,
// or nil.
func (l *Layer) Transition() transition.Transition {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transition
}

// Status returns the lifecycle status.
func (l *Layer) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Offset returns the current layer-local playback offset.
func (l *Layer) Offset() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.offset
}

// Duration resolves the layer duration: an explicit descriptor duration
// wins; else an intrinsic widget duration plus slack and the transition
// window; else the slack alone. Never negative.
func (l *Layer) Duration() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.explicit != nil {
		return max(*l.explicit, 0)
	}

	var td time.Duration
	if l.transition != nil {
		td = l.transition.Duration()
	}
	if wd := l.widget.Duration(); wd > 0 {
		return max(wd+l.slack+td, 0)
	}
	return max(l.slack, 0)
}

// Play returns the task that plays the layer's content along a stream of
// layer-local offsets. The task completes when the stream closes. Calling
// Play on a layer without a widget is a construction bug and panics.
func (l *Layer) Play(ticks <-chan time.Duration) Task {
	if l.widget == nil {
		panic(fmt.Sprintf("layer %q has no widget to play", l.name))
	}

	return func(ctx context.Context) error {
		l.setStatus(StatusPlaying)
		defer l.setStatus(StatusStopped)

		inner := make(chan time.Duration)
		widgetDone := make(chan error, 1)
		go func() { widgetDone <- l.widget.Play(ctx, inner) }()

		var widgetErr error
		widgetRunning := true

		finish := func() error {
			if widgetRunning {
				close(inner)
				widgetErr = <-widgetDone
			}
			if errors.Is(widgetErr, context.Canceled) || errors.Is(widgetErr, context.DeadlineExceeded) {
				return ctx.Err()
			}
			return widgetErr
		}

		for {
			select {
			case <-ctx.Done():
				return finish()
			case offset, ok := <-ticks:
				if !ok {
					return finish()
				}
				l.mu.Lock()
				l.offset = offset
				l.mu.Unlock()
				l.publishOffset(offset)

				if !widgetRunning {
					continue
				}
				select {
				case inner <- offset:
				case err := <-widgetDone:
					// Widget content exhausted itself early (a group
					// shorter than its slot); keep tracking offsets
					// until the stream closes.
					widgetErr = err
					widgetRunning = false
				case <-ctx.Done():
					return finish()
				}
			}
		}
	}
}

// Seek moves the layer to a local offset and returns the offset together
// with the layer duration.
func (l *Layer) Seek(offset time.Duration) (time.Duration, time.Duration) {
	d := l.Duration()
	if offset < 0 {
		offset = 0
	}

	l.mu.Lock()
	l.seeking = true
	l.offset = offset
	l.mu.Unlock()

	if l.widget != nil {
		l.widget.Seek(offset)
	}

	l.mu.Lock()
	l.seeking = false
	l.mu.Unlock()

	return offset, d
}

// Show returns the task that renders the layer's frame at offset. A
// widget render failure is not a playback failure: it is logged, reported
// on the bus and the task still completes cleanly, so one broken asset
// degrades to a blank frame instead of halting the show.
func (l *Layer) Show(offset time.Duration) Task {
	return func(ctx context.Context) error {
		if l.widget == nil {
			return nil
		}

		l.setStatus(StatusStarting)
		err := l.widget.Show(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("layer failed to render", "layer", l.name, "widget", l.widgetKind, "error", err)
			if l.bus != nil {
				l.bus.Publish(events.NewLayerErrorEvent(l.name, events.LayerErrorData{
					Layer:  l.name,
					Widget: l.widgetKind,
					Error:  err.Error(),
				}))
			}
			return nil
		}

		l.mu.Lock()
		l.offset = offset
		l.mu.Unlock()
		return nil
	}
}

// Stop halts the widget without releasing anything.
func (l *Layer) Stop() {
	l.setStatus(StatusStopping)
	if l.widget != nil {
		l.widget.Stop()
	}
	l.setStatus(StatusStopped)
}

// Unload detaches the layer's surface and resets the widget to offset 0.
func (l *Layer) Unload() {
	if l.widget != nil {
		l.widget.Stop()
		l.widget.Unload()
		l.widget.Seek(0)
	}
	l.surface.Detach()

	l.mu.Lock()
	l.offset = 0
	l.status = StatusNotReady
	l.mu.Unlock()
}

func (l *Layer) setStatus(s Status) {
	l.mu.Lock()
	l.status = s
	l.mu.Unlock()
}

func (l *Layer) publishOffset(offset time.Duration) {
	if l.bus == nil {
		return
	}
	l.bus.Publish(events.NewLayerOffsetEvent(l.name, events.LayerOffsetData{
		Layer:  l.name,
		Offset: offset,
	}))
}
