package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castmill/castmill-sub005/internal/config"
	"github.com/castmill/castmill-sub005/internal/events"
	"github.com/castmill/castmill-sub005/internal/player"
)

// fakePlayback implements Playback with a real playlist behind it.
type fakePlayback struct {
	playlist *player.Playlist
	playing  bool
	playErr  error
	lastOpts player.StartOptions
	stopped  int
}

func (f *fakePlayback) Play(opts player.StartOptions) error {
	if f.playErr != nil {
		return f.playErr
	}
	f.lastOpts = opts
	f.playing = true
	return nil
}

func (f *fakePlayback) Stop() {
	f.playing = false
	f.stopped++
}

func (f *fakePlayback) Playing() bool { return f.playing }

func (f *fakePlayback) Playlist() *player.Playlist { return f.playlist }

func textPlaylist(t *testing.T, name string, durationsMs ...int64) *player.Playlist {
	t.Helper()
	items := make([]player.ContentDescriptor, 0, len(durationsMs))
	for i := range durationsMs {
		d := durationsMs[i]
		items = append(items, player.ContentDescriptor{
			Name:       "item",
			Widget:     "text",
			Config:     map[string]interface{}{"text": "hi"},
			DurationMs: &d,
		})
	}
	p, err := player.MaterializePlaylist(&player.PlaylistDescriptor{Name: name, Items: items}, player.LayerDeps{})
	require.NoError(t, err)
	return p
}

func newTestServer(t *testing.T, playback Playback) *Server {
	t.Helper()
	cfg := config.Default().Server
	cfg.EnableMetrics = true
	return New(cfg, playback, events.NewBus())
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestStatusEndpoint(t *testing.T) {
	playback := &fakePlayback{playlist: textPlaylist(t, "lobby", 1000, 500), playing: true}
	s := newTestServer(t, playback)

	w := doJSON(t, s, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, true, status["playing"])
	assert.Equal(t, "lobby", status["playlist"])
	assert.EqualValues(t, 1500, status["duration_ms"])
}

func TestPlaylistEndpoint(t *testing.T) {
	playback := &fakePlayback{playlist: textPlaylist(t, "lobby", 1000, 500)}
	s := newTestServer(t, playback)

	w := doJSON(t, s, http.MethodGet, "/api/playlist", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Name       string `json:"name"`
		DurationMs int64  `json:"duration_ms"`
		Items      []struct {
			StartMs    int64 `json:"start_ms"`
			EndMs      int64 `json:"end_ms"`
			DurationMs int64 `json:"duration_ms"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "lobby", body.Name)
	assert.EqualValues(t, 1500, body.DurationMs)
	require.Len(t, body.Items, 2)
	assert.EqualValues(t, 1000, body.Items[1].StartMs)
	assert.EqualValues(t, 1500, body.Items[1].EndMs)
}

func TestPlayEndpoint(t *testing.T) {
	playback := &fakePlayback{playlist: textPlaylist(t, "lobby", 1000)}
	s := newTestServer(t, playback)

	w := doJSON(t, s, http.MethodPost, "/api/playback/play", map[string]interface{}{
		"loop":   true,
		"synced": true,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, playback.lastOpts.Loop)
	assert.True(t, playback.lastOpts.Synced)
}

func TestPlayEndpointEmptyBodyUsesDefaults(t *testing.T) {
	playback := &fakePlayback{playlist: textPlaylist(t, "lobby", 1000)}
	s := newTestServer(t, playback)

	w := doJSON(t, s, http.MethodPost, "/api/playback/play", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, playback.lastOpts.Loop)
}

func TestPlayEndpointWithBaseline(t *testing.T) {
	playback := &fakePlayback{playlist: textPlaylist(t, "lobby", 1000)}
	s := newTestServer(t, playback)

	baseline := time.Now().UTC().Truncate(time.Second)
	w := doJSON(t, s, http.MethodPost, "/api/playback/play", map[string]interface{}{
		"synced":   true,
		"baseline": baseline.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, baseline.Equal(playback.lastOpts.Baseline))
}

func TestPlayEndpointBadBaseline(t *testing.T) {
	playback := &fakePlayback{playlist: textPlaylist(t, "lobby", 1000)}
	s := newTestServer(t, playback)

	w := doJSON(t, s, http.MethodPost, "/api/playback/play", map[string]interface{}{
		"baseline": "yesterday-ish",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlayEndpointConflict(t *testing.T) {
	playback := &fakePlayback{
		playlist: textPlaylist(t, "lobby", 1000),
		playErr:  errors.New("no playable duration"),
	}
	s := newTestServer(t, playback)

	w := doJSON(t, s, http.MethodPost, "/api/playback/play", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStopEndpoint(t *testing.T) {
	playback := &fakePlayback{playlist: textPlaylist(t, "lobby", 1000), playing: true}
	s := newTestServer(t, playback)

	w := doJSON(t, s, http.MethodPost, "/api/playback/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, playback.stopped)
	assert.False(t, playback.playing)
}

func TestSeekEndpoint(t *testing.T) {
	playback := &fakePlayback{playlist: textPlaylist(t, "lobby", 1000, 500)}
	s := newTestServer(t, playback)

	w := doJSON(t, s, http.MethodPost, "/api/playback/seek", map[string]interface{}{
		"offset_ms": 1200,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		OffsetMs   int64 `json:"offset_ms"`
		DurationMs int64 `json:"duration_ms"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 1200, body.OffsetMs)
	assert.EqualValues(t, 1500, body.DurationMs)
	assert.Equal(t, 1200*time.Millisecond, playback.playlist.Time())
}

func TestMetricsEndpoint(t *testing.T) {
	playback := &fakePlayback{playlist: textPlaylist(t, "lobby", 1000)}
	s := newTestServer(t, playback)

	w := doJSON(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "marquee_ticks_emitted_total")
}

func TestMetricsDisabled(t *testing.T) {
	cfg := config.Default().Server
	cfg.EnableMetrics = false
	s := New(cfg, &fakePlayback{playlist: textPlaylist(t, "lobby", 1000)}, events.NewBus())

	w := doJSON(t, s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
