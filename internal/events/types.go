// Package events provides the in-process event bus for the player.
// Components publish typed playback events; the device shell subscribes
// to drive the websocket feed, metrics and the resume store.
package events

import (
	"time"
)

// EventType represents the type of event
type EventType string

// System-wide event types
const (
	// Playback events, emitted by the player engine
	EventPlaybackStarted   EventType = "playback.started"
	EventPlaybackTime      EventType = "playback.time"
	EventPlaybackEnd       EventType = "playback.end" // one per loop lap
	EventPlaybackCompleted EventType = "playback.completed"
	EventPlaybackStopped   EventType = "playback.stopped"

	// Layer events
	EventLayerOffset EventType = "layer.offset"
	EventLayerError  EventType = "layer.error"

	// Playlist events
	EventPlaylistChanged EventType = "playlist.changed"

	// System events
	EventSystemStarted EventType = "system.started"
	EventSystemStopped EventType = "system.stopped"
)

// Event represents a bus event. Payload carries the typed data struct
// matching the event type; the New* constructors keep the pairing honest.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Source    string      `json:"source"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// EventHandler represents a function that handles events
type EventHandler func(event Event)

// EventFilter selects which events a subscription receives. An empty
// filter matches everything.
type EventFilter struct {
	Types   []EventType `json:"types,omitempty"`
	Sources []string    `json:"sources,omitempty"`
}

// Subscription represents an event subscription
type Subscription struct {
	ID           string      `json:"id"`
	Filter       EventFilter `json:"filter"`
	Handler      EventHandler
	Created      time.Time `json:"created"`
	TriggerCount int64     `json:"trigger_count"`
}

// =============================================================================
// EVENT PAYLOADS
// =============================================================================

// PlaybackStartedData is the payload of playback.started
type PlaybackStartedData struct {
	Playlist string        `json:"playlist"`
	Loop     bool          `json:"loop"`
	Synced   bool          `json:"synced"`
	Baseline time.Time     `json:"baseline"`
	Offset   time.Duration `json:"offset_ms"`
}

// PlaybackTimeData is the payload of playback.time
type PlaybackTimeData struct {
	Offset   time.Duration `json:"offset_ms"`
	Duration time.Duration `json:"duration_ms"`
}

// PlaybackEndData is the payload of playback.end
type PlaybackEndData struct {
	Lap int `json:"lap"`
}

// LayerOffsetData is the payload of layer.offset
type LayerOffsetData struct {
	Layer  string        `json:"layer"`
	Offset time.Duration `json:"offset_ms"`
}

// LayerErrorData is the payload of layer.error
type LayerErrorData struct {
	Layer  string `json:"layer"`
	Widget string `json:"widget"`
	Error  string `json:"error"`
}

// PlaylistChangedData is the payload of playlist.changed
type PlaylistChangedData struct {
	Name     string        `json:"name"`
	Items    int           `json:"items"`
	Duration time.Duration `json:"duration_ms"`
}

// NewPlaybackStartedEvent builds a playback.started event.
func NewPlaybackStartedEvent(source string, data PlaybackStartedData) Event {
	return newEvent(EventPlaybackStarted, source, data)
}

// NewPlaybackTimeEvent builds a playback.time event.
func NewPlaybackTimeEvent(source string, data PlaybackTimeData) Event {
	return newEvent(EventPlaybackTime, source, data)
}

// NewPlaybackEndEvent builds a playback.end event.
func NewPlaybackEndEvent(source string, data PlaybackEndData) Event {
	return newEvent(EventPlaybackEnd, source, data)
}

// NewPlaybackCompletedEvent builds a playback.completed event.
func NewPlaybackCompletedEvent(source string) Event {
	return newEvent(EventPlaybackCompleted, source, nil)
}

// NewPlaybackStoppedEvent builds a playback.stopped event.
func NewPlaybackStoppedEvent(source string) Event {
	return newEvent(EventPlaybackStopped, source, nil)
}

// NewLayerOffsetEvent builds a layer.offset event.
func NewLayerOffsetEvent(source string, data LayerOffsetData) Event {
	return newEvent(EventLayerOffset, source, data)
}

// NewLayerErrorEvent builds a layer.error event.
func NewLayerErrorEvent(source string, data LayerErrorData) Event {
	return newEvent(EventLayerError, source, data)
}

// NewPlaylistChangedEvent builds a playlist.changed event.
func NewPlaylistChangedEvent(source string, data PlaylistChangedData) Event {
	return newEvent(EventPlaylistChanged, source, data)
}

func newEvent(t EventType, source string, payload interface{}) Event {
	return Event{
		Type:      t,
		Source:    source,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// MatchesFilter reports whether an event passes a subscription filter.
func MatchesFilter(event Event, filter EventFilter) bool {
	if len(filter.Types) > 0 {
		found := false
		for _, t := range filter.Types {
			if event.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filter.Sources) > 0 {
		found := false
		for _, s := range filter.Sources {
			if event.Source == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
