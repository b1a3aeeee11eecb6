package player

import (
	"encoding/json"
	"fmt"
	"time"
)

// PlaylistDescriptor is the wire document the management backend produces.
// The player treats it as opaque beyond structural field access: unknown
// fields are ignored, no schema validation happens here.
type PlaylistDescriptor struct {
	Name  string              `json:"name"`
	Items []ContentDescriptor `json:"items"`
}

// ContentDescriptor describes one playlist entry.
type ContentDescriptor struct {
	Name       string                 `json:"name"`
	Widget     string                 `json:"widget"`
	Config     map[string]interface{} `json:"config,omitempty"`
	Style      StyleDescriptor        `json:"style,omitempty"`
	DurationMs *int64                 `json:"duration,omitempty"`
	SlackMs    int64                  `json:"slack,omitempty"`
	Transition *TransitionDescriptor  `json:"transition,omitempty"`

	// Items nests a whole sub-playlist as a single entry. When set, the
	// entry is materialized as a group and Widget is ignored.
	Items []ContentDescriptor `json:"items,omitempty"`
}

// StyleDescriptor carries the visual properties of an entry.
type StyleDescriptor struct {
	Opacity  *float64 `json:"opacity,omitempty"`
	Rotation float64  `json:"rotation,omitempty"`
	ZIndex   int      `json:"zindex,omitempty"`
}

// TransitionDescriptor selects the effect run when the entry comes on.
type TransitionDescriptor struct {
	Name       string                 `json:"name"`
	DurationMs int64                  `json:"duration,omitempty"`
	Opts       map[string]interface{} `json:"opts,omitempty"`
}

// Duration returns the explicit entry duration, or nil.
func (d *ContentDescriptor) Duration() *time.Duration {
	if d.DurationMs == nil {
		return nil
	}
	v := time.Duration(*d.DurationMs) * time.Millisecond
	return &v
}

// Slack returns the extra display time of the entry.
func (d *ContentDescriptor) Slack() time.Duration {
	return time.Duration(d.SlackMs) * time.Millisecond
}

// ParsePlaylist decodes a playlist document.
func ParsePlaylist(data []byte) (*PlaylistDescriptor, error) {
	var desc PlaylistDescriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("failed to parse playlist document: %w", err)
	}
	return &desc, nil
}
