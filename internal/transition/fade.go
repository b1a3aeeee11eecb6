package transition

import (
	"context"
	"sync"
	"time"

	"github.com/castmill/castmill-sub005/internal/display"
)

func init() {
	Register("fade", newFade)
}

// fade cross-fades the incoming surface over the outgoing one.
type fade struct {
	mu       sync.Mutex
	duration time.Duration
	out, in  *display.Surface
}

func newFade(_ map[string]interface{}, duration time.Duration) (Transition, error) {
	return &fade{duration: duration}, nil
}

func (f *fade) Init(outgoing, incoming *display.Surface) {
	f.mu.Lock()
	f.out, f.in = outgoing, incoming
	f.mu.Unlock()
	f.apply(0)
}

func (f *fade) Run(ctx context.Context, offset time.Duration) error {
	return run(ctx, offset, f.duration, f.apply)
}

func (f *fade) Seek(offset time.Duration) {
	if f.duration <= 0 {
		return
	}
	f.apply(float64(offset) / float64(f.duration))
}

func (f *fade) Reset() {
	f.mu.Lock()
	out, in := f.out, f.in
	f.out, f.in = nil, nil
	f.mu.Unlock()

	if out != nil {
		out.SetOpacity(1)
	}
	if in != nil {
		in.SetOpacity(1)
	}
}

func (f *fade) Duration() time.Duration { return f.duration }

func (f *fade) apply(progress float64) {
	progress = clampProgress(progress)

	f.mu.Lock()
	out, in := f.out, f.in
	f.mu.Unlock()

	if in != nil {
		in.SetOpacity(progress)
	}
	if out != nil {
		out.SetOpacity(1 - progress)
	}
}
