package widget

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"text/template"
	"time"

	"github.com/castmill/castmill-sub005/internal/display"
)

func init() {
	Register("text", newText)
}

// TextContent is what a text widget renders into its surface.
type TextContent struct {
	Text string
}

// textWidget renders a templated text banner. Template data comes from
// the descriptor config under "data".
type textWidget struct {
	mu       sync.Mutex
	rendered string
	surface  *display.Surface
	offset   time.Duration
}

func newText(config map[string]interface{}, deps Deps) (Widget, error) {
	raw := stringOption(config, "text")
	if raw == "" {
		return nil, fmt.Errorf("text widget requires text")
	}

	tmpl, err := template.New("text").Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("text widget template: %w", err)
	}

	var buf bytes.Buffer
	data, _ := config["data"].(map[string]interface{})
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("text widget template: %w", err)
	}

	return &textWidget{
		rendered: buf.String(),
		surface:  deps.Surface,
	}, nil
}

func (w *textWidget) Play(ctx context.Context, ticks <-chan time.Duration) error {
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

func (w *textWidget) Seek(offset time.Duration) (time.Duration, time.Duration) {
	if offset < 0 {
		offset = 0
	}
	w.mu.Lock()
	w.offset = offset
	w.mu.Unlock()
	return offset, 0
}

func (w *textWidget) Show(_ context.Context, offset time.Duration) error {
	w.Seek(offset)
	w.surface.SetContent(TextContent{Text: w.rendered})
	return nil
}

func (w *textWidget) Stop() {}

func (w *textWidget) Unload() {
	w.mu.Lock()
	w.offset = 0
	w.mu.Unlock()
	w.surface.SetContent(nil)
}

func (w *textWidget) Duration() time.Duration { return 0 }
