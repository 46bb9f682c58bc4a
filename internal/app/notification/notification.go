package notification

import (
	"fmt"
	"time"

	"github.com/osa030/voxbox/internal/domain/track"
)

// Type identifies what a notification carries.
type Type string

const (
	TypeStatus        Type = "status"         // transient status text
	TypeError         Type = "error"          // user-facing error text
	TypeNowPlaying    Type = "now_playing"    // a track was loaded
	TypePlaybackState Type = "playback_state" // playback session state changed
	TypeProgress      Type = "progress"       // progress sample
	TypeAlternatives  Type = "alternatives"   // other results of the initial search
	TypeQueue         Type = "queue"          // queue contents changed
)

// Progress is the progress payload.
type Progress struct {
	Elapsed    float64 `json:"elapsed"`
	Total      float64 `json:"total"`
	Percentage float64 `json:"percentage"`
	Display    string  `json:"display"`
	Seeking    bool    `json:"seeking,omitempty"`
}

// Notification is a single event for the presentation layer.
type Notification struct {
	Type        Type          `json:"type"`
	SequenceNo  uint64        `json:"sequenceNo"`
	Time        time.Time     `json:"time"`
	Message     string        `json:"message,omitempty"`
	Track       *track.Track  `json:"track,omitempty"`
	Tracks      []track.Track `json:"tracks,omitempty"`
	Position    int           `json:"position,omitempty"` // 1-based cursor position
	QueueLength int           `json:"queueLength,omitempty"`
	State       string        `json:"state,omitempty"`
	Progress    *Progress     `json:"progress,omitempty"`
}

// Status creates a status notification.
func Status(msg string) Notification {
	return Notification{Type: TypeStatus, Message: msg}
}

// Error creates an error notification.
func Error(msg string) Notification {
	return Notification{Type: TypeError, Message: msg}
}

// PositionText renders a 1-based position as "(n/m)".
func PositionText(position, length int) string {
	return fmt.Sprintf("(%d/%d)", position, length)
}

// Discard drops every notification.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Notification) {}
