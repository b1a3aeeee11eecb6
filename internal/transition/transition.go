// Package transition provides the pluggable animated effects a renderer
// runs between an outgoing and an incoming layer, plus the registry that
// materializes them from their wire name.
package transition

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/castmill/castmill-sub005/internal/display"
)

// frameInterval is the animation step for transition effects.
const frameInterval = 16 * time.Millisecond

// Transition animates the swap between two surfaces. Init binds the
// surfaces, Run plays the effect from an offset to its end, Seek jumps to
// a point of the effect, Reset restores both surfaces and unbinds them.
type Transition interface {
	Init(outgoing, incoming *display.Surface)
	Run(ctx context.Context, offset time.Duration) error
	Seek(offset time.Duration)
	Reset()
	Duration() time.Duration
}

// Constructor builds a transition from its wire options.
type Constructor func(opts map[string]interface{}, duration time.Duration) (Transition, error)

var (
	regMu    sync.RWMutex
	registry = make(map[string]Constructor)
)

// Register adds a transition constructor under its discriminator.
func Register(name string, ctor Constructor) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = ctor
}

// New materializes a transition. A zero duration falls back to 1s.
func New(name string, opts map[string]interface{}, duration time.Duration) (Transition, error) {
	regMu.RLock()
	ctor, ok := registry[name]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown transition %q", name)
	}
	if duration <= 0 {
		duration = time.Second
	}
	return ctor(opts, duration)
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

// run drives a progress function from offset to duration on a frame
// ticker. Shared by the builtin effects.
func run(ctx context.Context, offset, duration time.Duration, step func(progress float64)) error {
	if offset >= duration {
		step(1)
		return nil
	}

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	start := time.Now().Add(-offset)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			elapsed := time.Since(start)
			if elapsed >= duration {
				step(1)
				return nil
			}
			step(float64(elapsed) / float64(duration))
		}
	}
}

func clampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
