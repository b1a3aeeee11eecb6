// Package server is the local control surface of the device player: a
// small gin API to inspect and drive playback, a websocket feed of bus
// events and a Prometheus endpoint. It talks to the engine only through
// its public operations, exactly like any other collaborator.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/castmill/castmill-sub005/internal/config"
	"github.com/castmill/castmill-sub005/internal/events"
	"github.com/castmill/castmill-sub005/internal/logger"
	"github.com/castmill/castmill-sub005/internal/player"
)

// Playback is the slice of the engine the control API needs.
type Playback interface {
	Play(opts player.StartOptions) error
	Stop()
	Playing() bool
	Playlist() *player.Playlist
}

// Server hosts the control API.
type Server struct {
	cfg      config.ServerConfig
	playback Playback
	bus      *events.Bus
	registry *prometheus.Registry
	metrics  *Metrics
	started  time.Time
	upgrader websocket.Upgrader
	http     *http.Server
}

// New creates the control server. The metrics subscription is installed
// immediately so events are counted even before Start.
func New(cfg config.ServerConfig, playback Playback, bus *events.Bus) *Server {
	s := &Server{
		cfg:      cfg,
		playback: playback,
		bus:      bus,
		registry: prometheus.NewRegistry(),
		started:  time.Now(),
		upgrader: websocket.Upgrader{
			// Local control surface; the device owns the network.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	if cfg.EnableMetrics {
		s.metrics = NewMetrics(s.registry)
		s.metrics.Observe(bus)
	}
	return s
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/playlist", s.handlePlaylist)
		api.POST("/playback/play", s.handlePlay)
		api.POST("/playback/stop", s.handleStop)
		api.POST("/playback/seek", s.handleSeek)
		api.GET("/events", s.handleEvents)
	}

	if s.cfg.EnableMetrics {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}

	return r
}

// Start begins serving in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.http = &http.Server{Addr: addr, Handler: s.Router()}

	go func() {
		logger.Info("control server listening", "addr", addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("control server failed", "error", err)
		}
	}()
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleStatus(c *gin.Context) {
	pl := s.playback.Playlist()

	status := gin.H{
		"playing":     s.playback.Playing(),
		"playlist":    pl.Name(),
		"position_ms": pl.Time().Milliseconds(),
		"duration_ms": pl.Duration().Milliseconds(),
		"status":      pl.Status().String(),
		"uptime_s":    int64(time.Since(s.started).Seconds()),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		status["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		status["mem_percent"] = vm.UsedPercent
	}

	c.JSON(http.StatusOK, status)
}

func (s *Server) handlePlaylist(c *gin.Context) {
	pl := s.playback.Playlist()

	items := make([]gin.H, 0, len(pl.Layers()))
	for _, entry := range pl.OffsetTable() {
		items = append(items, gin.H{
			"name":        entry.Layer.Name(),
			"start_ms":    entry.Start.Milliseconds(),
			"end_ms":      entry.End.Milliseconds(),
			"duration_ms": entry.Duration.Milliseconds(),
			"status":      entry.Layer.Status().String(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"name":        pl.Name(),
		"duration_ms": pl.Duration().Milliseconds(),
		"items":       items,
	})
}

type playRequest struct {
	Loop     bool   `json:"loop"`
	Synced   bool   `json:"synced"`
	Baseline string `json:"baseline,omitempty"` // RFC 3339
}

func (s *Server) handlePlay(c *gin.Context) {
	var req playRequest
	// An empty body means "play with defaults".
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := player.StartOptions{Loop: req.Loop, Synced: req.Synced}
	if req.Baseline != "" {
		baseline, err := time.Parse(time.RFC3339, req.Baseline)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid baseline: %v", err)})
			return
		}
		opts.Baseline = baseline
	}

	if err := s.playback.Play(opts); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"playing": true})
}

func (s *Server) handleStop(c *gin.Context) {
	s.playback.Stop()
	c.JSON(http.StatusOK, gin.H{"playing": false})
}

type seekRequest struct {
	OffsetMs int64 `json:"offset_ms"`
}

func (s *Server) handleSeek(c *gin.Context) {
	var req seekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	normalized, duration := s.playback.Playlist().Seek(time.Duration(req.OffsetMs) * time.Millisecond)
	c.JSON(http.StatusOK, gin.H{
		"offset_ms":   normalized.Milliseconds(),
		"duration_ms": duration.Milliseconds(),
	})
}

// handleEvents streams bus events over a websocket until the client goes
// away.
func (s *Server) handleEvents(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	feed := make(chan events.Event, 64)
	sub := s.bus.Subscribe(events.EventFilter{}, func(event events.Event) {
		select {
		case feed <- event:
		default:
			// Slow consumer: drop rather than stall the bus.
		}
	})
	defer s.bus.Unsubscribe(sub.ID)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case event := <-feed:
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}
