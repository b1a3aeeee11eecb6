package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/castmill/castmill-sub005/internal/config"
	"github.com/castmill/castmill-sub005/internal/display"
	"github.com/castmill/castmill-sub005/internal/events"
	"github.com/castmill/castmill-sub005/internal/logger"
	"github.com/castmill/castmill-sub005/internal/player"
	"github.com/castmill/castmill-sub005/internal/resources"
	"github.com/castmill/castmill-sub005/internal/server"
	"github.com/castmill/castmill-sub005/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load the playlist and start playback",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

// app owns the device shell: configuration, store, bus, asset cache and
// the current player. Hot reloads swap the player behind a mutex so the
// control server always talks to the live one.
type app struct {
	cfg    *config.Config
	bus    *events.Bus
	store  *store.Store
	assets *resources.Manager
	root   *display.Surface

	mu       sync.Mutex
	renderer *player.Renderer
	player   *player.Player
}

func run() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	level := hclog.LevelFromString(cfg.Logging.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	logger.Configure(&hclog.LoggerOptions{
		Name:       "marquee",
		Level:      level,
		Output:     os.Stderr,
		JSONFormat: cfg.Logging.JSON,
	})

	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	bus := events.NewBus()
	if err := bus.Start(); err != nil {
		return err
	}
	defer bus.Stop()

	a := &app{
		cfg:    cfg,
		bus:    bus,
		store:  st,
		assets: resources.NewManager(afero.NewOsFs(), cfg.Resources.CacheDir, resources.NewHTTPFetcher(nil)),
		root:   display.NewSurface(),
	}
	a.renderer = player.NewRenderer(a.root)

	document, err := a.loadDocument()
	if err != nil {
		return err
	}
	if err := a.swapPlaylist(document); err != nil {
		return err
	}

	// Resume where the device left off, unless synced playback will seek
	// to the shared baseline anyway.
	if !cfg.Playback.Synced {
		if pos, err := st.Position(); err == nil && pos > 0 {
			a.Playlist().Seek(pos)
		}
	}

	a.persistPosition()

	if err := a.Play(player.StartOptions{Loop: cfg.Playback.Loop, Synced: cfg.Playback.Synced}); err != nil {
		return err
	}

	var srv *server.Server
	if cfg.Server.Enabled {
		srv = server.New(cfg.Server, a, bus)
		if err := srv.Start(); err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Playback.WatchFile {
		go a.watch(ctx)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	a.Stop()
	a.store.SavePosition(a.Playlist().Time())

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("control server shutdown failed", "error", err)
		}
	}

	return nil
}

// loadDocument reads the playlist file, falling back to the last good
// document in the store when the file is missing or unreadable.
func (a *app) loadDocument() ([]byte, error) {
	document, err := os.ReadFile(a.cfg.Playback.PlaylistPath)
	if err == nil {
		return document, nil
	}

	logger.Warn("playlist file unreadable, trying stored document",
		"path", a.cfg.Playback.PlaylistPath, "error", err)

	stored, storeErr := a.store.Playlist()
	if storeErr != nil || stored == nil {
		return nil, fmt.Errorf("no playlist available: %w", err)
	}
	return stored, nil
}

// swapPlaylist replaces the current player with one built from document.
// The old playlist is fully unloaded first; a fresh renderer takes over
// the root surface. On success the document becomes the stored last good
// one and a playlist.changed event goes out.
func (a *app) swapPlaylist(document []byte) error {
	desc, err := player.ParsePlaylist(document)
	if err != nil {
		return fmt.Errorf("invalid playlist document: %w", err)
	}

	playlist, err := player.MaterializePlaylist(desc, player.LayerDeps{
		Resources: a.assets,
		Bus:       a.bus,
	})
	if err != nil {
		return fmt.Errorf("failed to materialize playlist: %w", err)
	}

	a.mu.Lock()
	old := a.player
	oldRenderer := a.renderer
	a.player = nil
	a.mu.Unlock()

	if old != nil {
		old.Stop()
		old.Playlist().Unload()
	}
	oldRenderer.Clean()

	renderer := player.NewRenderer(a.root)
	p := player.NewPlayer(playlist, renderer, a.bus, a.cfg.Playback.TickInterval)

	a.mu.Lock()
	a.renderer = renderer
	a.player = p
	a.mu.Unlock()

	if err := a.store.SavePlaylist(document); err != nil {
		logger.Warn("failed to persist playlist document", "error", err)
	}

	a.bus.Publish(events.NewPlaylistChangedEvent(playlist.Name(), events.PlaylistChangedData{
		Name:     playlist.Name(),
		Items:    len(playlist.Layers()),
		Duration: playlist.Duration(),
	}))

	logger.Info("playlist loaded", "name", playlist.Name(),
		"items", len(playlist.Layers()), "duration", playlist.Duration())
	return nil
}

// watch hot-reloads the playlist file. Editors and deploy tools replace
// files rather than write in place, so the watch is on the directory and
// events are debounced.
func (a *app) watch(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create file watcher", "error", err)
		return
	}
	defer watcher.Close()

	path := a.cfg.Playback.PlaylistPath
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		logger.Error("failed to watch playlist directory", "path", path, "error", err)
		return
	}

	var debounce *time.Timer
	reload := func() {
		document, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("playlist changed but unreadable, keeping current", "error", err)
			return
		}
		if err := a.swapPlaylist(document); err != nil {
			logger.Warn("playlist changed but invalid, keeping current", "error", err)
			return
		}
		// A reloaded show starts over from the top.
		if err := a.Play(player.StartOptions{
			Loop:   a.cfg.Playback.Loop,
			Synced: a.cfg.Playback.Synced,
		}); err != nil {
			logger.Error("failed to restart playback after reload", "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(250*time.Millisecond, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("file watcher error", "error", err)
		}
	}
}

// persistPosition saves the playback position a couple of times per
// second so a power-cycled device resumes close to where it was.
func (a *app) persistPosition() {
	var last time.Time
	a.bus.Subscribe(events.EventFilter{Types: []events.EventType{events.EventPlaybackTime}},
		func(event events.Event) {
			if time.Since(last) < 2*time.Second {
				return
			}
			last = time.Now()
			if data, ok := event.Payload.(events.PlaybackTimeData); ok {
				if err := a.store.SavePosition(data.Offset); err != nil {
					logger.Warn("failed to persist position", "error", err)
				}
			}
		})
}

// current returns the live player.
func (a *app) current() *player.Player {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.player
}

// Play implements server.Playback.
func (a *app) Play(opts player.StartOptions) error {
	p := a.current()
	if p == nil {
		return fmt.Errorf("no playlist loaded")
	}
	return p.Play(opts)
}

// Stop implements server.Playback.
func (a *app) Stop() {
	if p := a.current(); p != nil {
		p.Stop()
	}
}

// Playing implements server.Playback.
func (a *app) Playing() bool {
	p := a.current()
	return p != nil && p.Playing()
}

// Playlist implements server.Playback.
func (a *app) Playlist() *player.Playlist {
	if p := a.current(); p != nil {
		return p.Playlist()
	}
	return player.NewPlaylist("")
}
