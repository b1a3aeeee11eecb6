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
	Register("image", newImage)
}

// ImageContent is what an image widget renders into its surface.
type ImageContent struct {
	Path string
	Size string // "contain", "cover" or "" for natural size
}

// imageWidget shows a single still image. It has no intrinsic duration;
// the layer's slack decides how long it stays up.
type imageWidget struct {
	mu        sync.Mutex
	src       string
	size      string
	surface   *display.Surface
	resources *resources.Manager
	offset    time.Duration
	resolved  string
}

func newImage(config map[string]interface{}, deps Deps) (Widget, error) {
	src := stringOption(config, "src")
	if src == "" {
		return nil, fmt.Errorf("image widget requires a src")
	}
	return &imageWidget{
		src:       src,
		size:      stringOption(config, "size"),
		surface:   deps.Surface,
		resources: deps.Resources,
	}, nil
}

func (w *imageWidget) Play(ctx context.Context, ticks <-chan time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case offset, ok := <-ticks:
			if !ok {
				return nil
			}
			w.mu.Lock()
			w.offset = offset
			w.mu.Unlock()
		}
	}
}

func (w *imageWidget) Seek(offset time.Duration) (time.Duration, time.Duration) {
	if offset < 0 {
		offset = 0
	}
	w.mu.Lock()
	w.offset = offset
	w.mu.Unlock()
	return offset, 0
}

func (w *imageWidget) Show(ctx context.Context, offset time.Duration) error {
	w.mu.Lock()
	resolved := w.resolved
	w.mu.Unlock()

	if resolved == "" {
		path, err := w.resources.Resolve(ctx, w.src)
		if err != nil {
			return fmt.Errorf("image %s: %w", w.src, err)
		}
		w.mu.Lock()
		w.resolved = path
		resolved = path
		w.mu.Unlock()
	}

	w.Seek(offset)
	w.surface.SetContent(ImageContent{Path: resolved, Size: w.size})
	return nil
}

func (w *imageWidget) Stop() {}

func (w *imageWidget) Unload() {
	w.mu.Lock()
	w.offset = 0
	w.mu.Unlock()
	w.surface.SetContent(nil)
}

func (w *imageWidget) Duration() time.Duration { return 0 }
