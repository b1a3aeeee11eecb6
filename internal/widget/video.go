package widget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/castmill/castmill-sub005/internal/display"
	"github.com/castmill/castmill-sub005/internal/resources"
)

func init() {
	Register("video", newVideo)
}

// VideoContent is what a video widget renders into its surface. Position
// tracks the current decode offset so the platform decoder can follow.
type VideoContent struct {
	Path     string
	Position time.Duration
	Muted    bool
}

// videoWidget plays a clip with an intrinsic duration taken from the
// descriptor metadata (the management backend probes it upstream).
type videoWidget struct {
	mu        sync.Mutex
	src       string
	duration  time.Duration
	muted     bool
	surface   *display.Surface
	resources *resources.Manager
	offset    time.Duration
	resolved  string
	playing   bool
}

func newVideo(config map[string]interface{}, deps Deps) (Widget, error) {
	src := stringOption(config, "src")
	if src == "" {
		return nil, fmt.Errorf("video widget requires a src")
	}
	return &videoWidget{
		src:       src,
		duration:  durationOption(config, "duration"),
		muted:     config["muted"] == true,
		surface:   deps.Surface,
		resources: deps.Resources,
	}, nil
}

func (w *videoWidget) Play(ctx context.Context, ticks <-chan time.Duration) error {
	w.mu.Lock()
	w.playing = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.playing = false
		w.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case offset, ok := <-ticks:
			if !ok {
				return nil
			}
			w.mu.Lock()
			w.offset = w.clamp(offset)
			resolved := w.resolved
			w.mu.Unlock()
			if resolved != "" {
				w.surface.SetContent(VideoContent{Path: resolved, Position: w.offset, Muted: w.muted})
			}
		}
	}
}

func (w *videoWidget) Seek(offset time.Duration) (time.Duration, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.offset = w.clamp(offset)
	return w.offset, w.duration
}

func (w *videoWidget) Show(ctx context.Context, offset time.Duration) error {
	w.mu.Lock()
	resolved := w.resolved
	w.mu.Unlock()

	if resolved == "" {
		path, err := w.resources.Resolve(ctx, w.src)
		if err != nil {
			return fmt.Errorf("video %s: %w", w.src, err)
		}
		w.mu.Lock()
		w.resolved = path
		resolved = path
		w.mu.Unlock()
	}

	pos, _ := w.Seek(offset)
	w.surface.SetContent(VideoContent{Path: resolved, Position: pos, Muted: w.muted})
	return nil
}

func (w *videoWidget) Stop() {
	w.mu.Lock()
	w.playing = false
	w.mu.Unlock()
}

func (w *videoWidget) Unload() {
	w.mu.Lock()
	w.offset = 0
	w.mu.Unlock()
	w.surface.SetContent(nil)
}

func (w *videoWidget) Duration() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.duration
}

// clamp keeps offsets inside the clip. Callers hold w.mu.
func (w *videoWidget) clamp(offset time.Duration) time.Duration {
	if offset < 0 {
		return 0
	}
	if w.duration > 0 && offset > w.duration {
		return w.duration
	}
	return offset
}
