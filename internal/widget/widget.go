// Package widget defines the content units a layer can play and the
// registry that materializes them from their wire discriminator.
//
// A widget renders into the surface it is given but knows nothing about
// playlists, transitions or scheduling — the player drives it through
// Play/Seek/Show and the widget only has to keep its surface content in
// step with the offsets it is handed.
package widget

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/castmill/castmill-sub005/internal/display"
	"github.com/castmill/castmill-sub005/internal/resources"
)

// Widget is one playable content unit.
type Widget interface {
	// Play consumes ticks of widget-local offsets until the channel
	// closes, keeping the rendered content in step.
	Play(ctx context.Context, ticks <-chan time.Duration) error

	// Seek moves the widget to offset and returns the clamped offset
	// and the widget duration.
	Seek(offset time.Duration) (time.Duration, time.Duration)

	// Show renders the frame at offset. A failure here means the
	// content could not be produced (asset missing, bad config).
	Show(ctx context.Context, offset time.Duration) error

	// Stop halts playback without releasing anything.
	Stop()

	// Unload releases the widget's hold on its surface and resets it
	// to offset 0.
	Unload()

	// Duration returns the intrinsic duration, 0 when the widget has
	// none (still images, text).
	Duration() time.Duration
}

// Deps carries what constructors need to build a widget.
type Deps struct {
	Surface   *display.Surface
	Resources *resources.Manager
}

// Constructor builds a widget from its wire config.
type Constructor func(config map[string]interface{}, deps Deps) (Widget, error)

var (
	regMu    sync.RWMutex
	registry = make(map[string]Constructor)
)

// Register adds a widget constructor under its discriminator. Later
// registrations replace earlier ones.
func Register(kind string, ctor Constructor) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[kind] = ctor
}

// New materializes a widget of the given kind.
func New(kind string, config map[string]interface{}, deps Deps) (Widget, error) {
	regMu.RLock()
	ctor, ok := registry[kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown widget kind %q", kind)
	}
	return ctor(config, deps)
}

// Kinds lists the registered discriminators, sorted.
func Kinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// stringOption reads an optional string config field.
func stringOption(config map[string]interface{}, key string) string {
	if v, ok := config[key].(string); ok {
		return v
	}
	return ""
}

// durationOption reads an optional millisecond config field. JSON numbers
// arrive as float64; ints are accepted for hand-built configs.
func durationOption(config map[string]interface{}, key string) time.Duration {
	switch v := config[key].(type) {
	case float64:
		return time.Duration(v) * time.Millisecond
	case int:
		return time.Duration(v) * time.Millisecond
	case int64:
		return time.Duration(v) * time.Millisecond
	default:
		return 0
	}
}
