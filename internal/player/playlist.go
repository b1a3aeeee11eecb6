package player

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/castmill/castmill-sub005/internal/logger"
)

// Entry is one row of a playlist offset table: the half-open global range
// [Start, End) a layer owns.
type Entry struct {
	Start    time.Duration
	End      time.Duration
	Duration time.Duration
	Layer    *Layer
}

// Location is the result of resolving a global offset to its owning
// layer.
type Location struct {
	Layer  *Layer
	Offset time.Duration // layer-local
	Index  int
	Table  []Entry
}

// PlayOptions controls a playlist run.
type PlayOptions struct {
	Loop   bool
	Volume float64
}

// Playlist is an ordered, durationed sequence of layers with a playback
// position. It exclusively owns its layers: they are materialized and
// unloaded only through it.
type Playlist struct {
	mu      sync.Mutex
	name    string
	layers  []*Layer
	time    time.Duration
	status  Status
	seeking bool
}

// NewPlaylist creates an empty playlist.
func NewPlaylist(name string) *Playlist {
	return &Playlist{name: name, status: StatusNotReady}
}

// MaterializePlaylist builds a playlist and all its layers in declared
// order.
func MaterializePlaylist(desc *PlaylistDescriptor, deps LayerDeps) (*Playlist, error) {
	p := NewPlaylist(desc.Name)
	p.setStatus(StatusLoading)
	for _, item := range desc.Items {
		l, err := MaterializeLayer(item, deps)
		if err != nil {
			p.Unload()
			return nil, err
		}
		p.Add(l, -1)
	}
	p.setStatus(StatusReady)
	return p, nil
}

// Name returns the playlist name.
func (p *Playlist) Name() string { return p.name }

// Layers returns the layers in declaration order.
func (p *Playlist) Layers() []*Layer {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Layer, len(p.layers))
	copy(out, p.layers)
	return out
}

// Time returns the current playback position.
func (p *Playlist) Time() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.time
}

// Status returns the lifecycle status.
func (p *Playlist) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Duration is the sum of the current layer durations.
func (p *Playlist) Duration() time.Duration {
	return lo.SumBy(p.Layers(), func(l *Layer) time.Duration { return l.Duration() })
}

// OffsetTable computes the cumulative [start, end) range per layer in
// declaration order. It is recomputed from live durations on every call:
// a widget whose duration changed after materialization is reflected in
// the next table, never in an earlier one.
func (p *Playlist) OffsetTable() []Entry {
	layers := p.Layers()
	table := make([]Entry, 0, len(layers))
	var cursor time.Duration
	for _, l := range layers {
		d := l.Duration()
		table = append(table, Entry{Start: cursor, End: cursor + d, Duration: d, Layer: l})
		cursor += d
	}
	return table
}

// FindLayer resolves a global offset to the unique layer whose range
// contains it. It misses only when the playlist is empty or the offset is
// outside [0, Duration()).
func (p *Playlist) FindLayer(offset time.Duration) (Location, bool) {
	return findInTable(p.OffsetTable(), offset)
}

func findInTable(table []Entry, offset time.Duration) (Location, bool) {
	for i, e := range table {
		if offset >= e.Start && offset < e.End {
			return Location{Layer: e.Layer, Offset: offset - e.Start, Index: i, Table: table}, true
		}
	}
	return Location{}, false
}

// Seek normalizes offset into [0, Duration()+1) by modulo, moves the
// playback position there and delegates a relative seek to the owning
// layer. Returns the normalized offset and the playlist duration.
func (p *Playlist) Seek(offset time.Duration) (time.Duration, time.Duration) {
	d := p.Duration()
	normalized := wrap(offset, d+1)

	p.mu.Lock()
	p.seeking = true
	p.time = normalized
	p.mu.Unlock()

	if loc, ok := p.FindLayer(normalized); ok {
		loc.Layer.Seek(loc.Offset)
	}

	p.mu.Lock()
	p.seeking = false
	p.mu.Unlock()

	return normalized, d
}

// Show returns the task that renders the frame owning the current
// playback position through the renderer. Used for pre-roll and for
// showing the right frame immediately after a seek.
func (p *Playlist) Show(r *Renderer) Task {
	loc, ok := p.FindLayer(p.Time())
	if !ok {
		return Noop()
	}
	return r.Show(loc.Layer, loc.Offset)
}

// Play returns the task that plays the playlist through the renderer,
// driven by a stream of global offsets (already wrapped modulo the
// playlist duration by the ticker). Layers play strictly sequentially;
// the first one starts at the relative offset owning the current
// position, every later one at 0. With Loop set, the composition repeats
// until the tick stream closes; without it, one pass completes the task.
//
// The task is cold: nothing happens until it runs.
func (p *Playlist) Play(r *Renderer, ticks <-chan time.Duration, opts PlayOptions) Task {
	return func(ctx context.Context) error {
		volume := opts.Volume
		if volume <= 0 {
			volume = 1
		}

		var pending *time.Duration
		for {
			// Recomputed per pass so duration changes surface at the
			// next lap.
			table := p.OffsetTable()
			if len(table) == 0 {
				return drain(ctx, ticks)
			}

			loc, ok := findInTable(table, p.Time())
			if !ok {
				// Position beyond the current total (a layer shrank
				// between passes): restart the lap from the top.
				p.setTime(0)
				if loc, ok = findInTable(table, 0); !ok {
					return drain(ctx, ticks)
				}
			}

			// Playback order: rotate at the current layer when looping
			// so the lap crosses the boundary without restarting at
			// index 0; otherwise play the tail and complete.
			count := len(table) - loc.Index
			if opts.Loop {
				count = len(table)
			}

			startOffset := loc.Offset
			for n := 0; n < count; n++ {
				entry := table[(loc.Index+n)%len(table)]

				next, closed, err := p.playEntry(ctx, r, ticks, entry, startOffset, pending, volume)
				if err != nil {
					return err
				}
				if closed {
					return nil
				}
				pending = next
				startOffset = 0
			}

			if !opts.Loop {
				return nil
			}
		}
	}
}

// playEntry shows one layer and feeds it the master ticks that fall into
// its window, translated to layer-local offsets. It returns the first
// tick that falls outside the window (owned by the next layer) or
// closed=true when the master stream ended.
func (p *Playlist) playEntry(ctx context.Context, r *Renderer, ticks <-chan time.Duration,
	entry Entry, startOffset time.Duration, pending *time.Duration, volume float64) (*time.Duration, bool, error) {

	sub := make(chan time.Duration)
	taskDone := make(chan error, 1)
	task := r.Play(entry.Layer, sub, startOffset, volume)
	go func() { taskDone <- task(ctx) }()

	var taskErr error
	taskRunning := true

	finish := func() error {
		if taskRunning {
			close(sub)
			taskErr = <-taskDone
			taskRunning = false
		}
		if taskErr != nil && ctx.Err() == nil {
			// Renderer playback errors are not fatal to the timeline.
			logger.Error("layer playback error", "layer", entry.Layer.Name(), "error", taskErr)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return nil
	}

	deliver := func(offset time.Duration) (bool, error) {
		p.setTime(offset)
		if offset < entry.Start || offset >= entry.End {
			return false, nil // belongs to another layer
		}
		if !taskRunning {
			return true, nil // layer gave up early; swallow its ticks
		}
		select {
		case sub <- offset - entry.Start:
			return true, nil
		case err := <-taskDone:
			taskErr = err
			taskRunning = false
			return true, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	if pending != nil {
		ok, err := deliver(*pending)
		if err != nil {
			finish()
			return nil, false, err
		}
		if !ok {
			// Still not ours: hand it to the next layer. Happens when a
			// duration change leaves a window empty.
			if err := finish(); err != nil {
				return nil, false, err
			}
			return pending, false, nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			finish()
			return nil, false, ctx.Err()
		case offset, ok := <-ticks:
			if !ok {
				if err := finish(); err != nil {
					return nil, false, err
				}
				return nil, true, nil
			}
			delivered, err := deliver(offset)
			if err != nil {
				finish()
				return nil, false, err
			}
			if !delivered {
				if err := finish(); err != nil {
					return nil, false, err
				}
				return &offset, false, nil
			}
		}
	}
}

// Add inserts a layer at index, or appends when index is out of range.
// Duplicate identities are the caller's responsibility.
func (p *Playlist) Add(l *Layer, index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.layers) {
		p.layers = append(p.layers, l)
		return
	}
	p.layers = append(p.layers[:index], append([]*Layer{l}, p.layers[index:]...)...)
}

// Remove drops a layer from the sequence. The layer is not unloaded.
func (p *Playlist) Remove(l *Layer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, candidate := range p.layers {
		if candidate == l {
			p.layers = append(p.layers[:i], p.layers[i+1:]...)
			return
		}
	}
}

// Unload unloads every owned layer.
func (p *Playlist) Unload() {
	for _, l := range p.Layers() {
		l.Unload()
	}
	p.mu.Lock()
	p.time = 0
	p.status = StatusNotReady
	p.mu.Unlock()
}

func (p *Playlist) setTime(t time.Duration) {
	p.mu.Lock()
	p.time = t
	p.mu.Unlock()
}

func (p *Playlist) setStatus(s Status) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

// Seeking reports whether a seek is in flight. Orthogonal to Status.
func (p *Playlist) Seeking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seeking
}

// drain consumes a tick stream until it closes so an empty playlist
// still honors the subscription contract.
func drain(ctx context.Context, ticks <-chan time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ticks:
			if !ok {
				return nil
			}
		}
	}
}
