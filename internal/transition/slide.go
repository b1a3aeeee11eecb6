package transition

import (
	"context"
	"sync"
	"time"

	"github.com/castmill/castmill-sub005/internal/display"
)

func init() {
	Register("slide", newSlide)
}

// slide moves the incoming surface in from one edge. Offsets are in
// canvas percentage units, matching the viewport geometry.
type slide struct {
	mu       sync.Mutex
	duration time.Duration
	fromX    float64
	fromY    float64
	in       *display.Surface
}

func newSlide(opts map[string]interface{}, duration time.Duration) (Transition, error) {
	s := &slide{duration: duration, fromX: 100}
	switch opts["from"] {
	case "left":
		s.fromX, s.fromY = -100, 0
	case "top":
		s.fromX, s.fromY = 0, -100
	case "bottom":
		s.fromX, s.fromY = 0, 100
	default: // "right"
		s.fromX, s.fromY = 100, 0
	}
	return s, nil
}

func (s *slide) Init(_, incoming *display.Surface) {
	s.mu.Lock()
	s.in = incoming
	s.mu.Unlock()
	s.apply(0)
}

func (s *slide) Run(ctx context.Context, offset time.Duration) error {
	return run(ctx, offset, s.duration, s.apply)
}

func (s *slide) Seek(offset time.Duration) {
	if s.duration <= 0 {
		return
	}
	s.apply(float64(offset) / float64(s.duration))
}

func (s *slide) Reset() {
	s.mu.Lock()
	in := s.in
	s.in = nil
	s.mu.Unlock()

	if in != nil {
		in.SetOffset(0, 0)
	}
}

func (s *slide) Duration() time.Duration { return s.duration }

func (s *slide) apply(progress float64) {
	progress = clampProgress(progress)

	s.mu.Lock()
	in := s.in
	s.mu.Unlock()

	if in != nil {
		in.SetOffset(s.fromX*(1-progress), s.fromY*(1-progress))
	}
}
