package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/castmill/castmill-sub005/internal/events"
	"github.com/castmill/castmill-sub005/internal/logger"
)

// DefaultTickInterval is the tick period used when none is configured.
const DefaultTickInterval = 50 * time.Millisecond

// StartOptions controls a playback run.
type StartOptions struct {
	// Loop repeats the playlist until Stop.
	Loop bool

	// Synced treats Baseline as a shared wall-clock zero point: players
	// given the same baseline and playlist reach the same offset at the
	// same instant. Without it, playback resumes from the playlist's own
	// position.
	Synced bool

	// Baseline is the shared epoch for synced playback. Zero means now.
	Baseline time.Time

	// Volume for the run; zero means full.
	Volume float64
}

// Player is the top-level playback driver: it owns a playlist, a
// renderer and the drift-corrected ticker subscription, and publishes
// playback.* events while running. At most one run is active; Stop tears
// everything down synchronously.
type Player struct {
	mu       sync.Mutex
	playlist *Playlist
	renderer *Renderer
	bus      *events.Bus
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPlayer creates a player driving playlist into renderer. A nil bus
// disables event publishing.
func NewPlayer(playlist *Playlist, renderer *Renderer, bus *events.Bus, interval time.Duration) *Player {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Player{
		playlist: playlist,
		renderer: renderer,
		bus:      bus,
		interval: interval,
	}
}

// Playlist returns the driven playlist.
func (p *Player) Playlist() *Playlist { return p.playlist }

// Renderer returns the player's renderer.
func (p *Player) Renderer() *Renderer { return p.renderer }

// Playing reports whether a run is active.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Play starts playback. An already running player is stopped first.
func (p *Player) Play(opts StartOptions) error {
	duration := p.playlist.Duration()
	if duration <= 0 {
		return fmt.Errorf("playlist %q has no playable duration", p.playlist.Name())
	}

	p.Stop()

	baseline := opts.Baseline
	if baseline.IsZero() {
		baseline = time.Now()
	}

	var start time.Duration
	if opts.Synced {
		// The baseline is the shared zero point of the whole timeline.
		start = wrap(time.Since(baseline), duration)
		p.playlist.Seek(start)
	} else {
		start = p.playlist.Time()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	ticks := Tick(ctx, baseline, start, p.interval, duration)
	forward := make(chan time.Duration)

	playback := p.playlist.Play(p.renderer, forward, PlayOptions{Loop: opts.Loop, Volume: opts.Volume})

	p.publish(events.NewPlaybackStartedEvent(p.playlist.Name(), events.PlaybackStartedData{
		Playlist: p.playlist.Name(),
		Loop:     opts.Loop,
		Synced:   opts.Synced,
		Baseline: baseline,
		Offset:   start,
	}))

	go p.run(ctx, cancel, done, ticks, forward, playback, duration, opts.Loop)
	return nil
}

// Stop tears down the ticker and playback subscriptions synchronously.
// Safe to call when nothing is running.
func (p *Player) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.publish(events.NewPlaybackStoppedEvent(p.playlist.Name()))
}

// run pumps ticks into the playback task, publishing time events and
// detecting loop-boundary wraparounds along the way.
func (p *Player) run(ctx context.Context, cancel context.CancelFunc, done chan struct{},
	ticks <-chan time.Duration, forward chan time.Duration, playback Task, duration time.Duration, loop bool) {

	defer close(done)
	defer cancel()

	playbackDone := make(chan error, 1)
	go func() { playbackDone <- playback(ctx) }()

	var (
		prev    time.Duration = -1
		lap     int
		stopped bool
	)

	for !stopped {
		select {
		case <-ctx.Done():
			stopped = true
		case err := <-playbackDone:
			playbackDone = nil
			p.finishPlayback(err, loop)
			stopped = true
		case offset, ok := <-ticks:
			if !ok {
				stopped = true
				break
			}

			p.publish(events.NewPlaybackTimeEvent(p.playlist.Name(), events.PlaybackTimeData{
				Offset:   offset,
				Duration: duration,
			}))

			// A tick smaller than its predecessor means the master
			// stream wrapped: one lap ended.
			if prev >= 0 && offset < prev {
				lap++
				p.publish(events.NewPlaybackEndEvent(p.playlist.Name(), events.PlaybackEndData{Lap: lap}))
			}
			prev = offset

			select {
			case forward <- offset:
			case <-ctx.Done():
				stopped = true
			case err := <-playbackDone:
				playbackDone = nil
				p.finishPlayback(err, loop)
				stopped = true
			}
		}
	}

	close(forward)
	if playbackDone != nil {
		p.finishPlayback(<-playbackDone, loop)
	}
}

// finishPlayback logs run errors and publishes completion. Runtime
// errors are swallowed on purpose: a signage loop must not halt on an
// internal error.
func (p *Player) finishPlayback(err error, loop bool) {
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Error("playback ended with error", "playlist", p.playlist.Name(), "error", err)
		}
		return
	}
	if !loop {
		p.publish(events.NewPlaybackCompletedEvent(p.playlist.Name()))
	}
}

func (p *Player) publish(event events.Event) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(event)
}
