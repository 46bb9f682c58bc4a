package radio

import (
	"context"

	"github.com/osa030/voxbox/internal/app/expansion"
	"github.com/osa030/voxbox/internal/app/notification"
	"github.com/osa030/voxbox/internal/domain/track"
)

// Status represents the radio state shown to the presentation layer.
type Status struct {
	SessionID     string                `json:"sessionId"`
	QueueState    string                `json:"queueState"`
	PlaybackState string                `json:"playbackState"`
	Cursor        int                   `json:"cursor"`
	QueueLength   int                   `json:"queueLength"`
	Position      string                `json:"position,omitempty"` // "(n/m)"
	Current       *track.Track          `json:"current,omitempty"`
	Queue         []track.Track         `json:"queue"`
	Utterance     string                `json:"utterance,omitempty"`
	Variations    []string              `json:"variations,omitempty"`
	Marker        string                `json:"marker,omitempty"` // curated keyword the utterance matched
	AutoContinue  bool                  `json:"autoContinue"`
	Progress      notification.Progress `json:"progress"`
	Subscribers   int                   `json:"subscribers"`
}

// GetStatus returns the current status.
func (m *Manager) GetStatus(ctx context.Context) (*Status, error) {
	var st *Status
	err := m.run(ctx, func() error {
		snap := m.controller.Snapshot()
		sample := m.session.Progress()

		st = &Status{
			SessionID:     m.id,
			QueueState:    snap.State.String(),
			PlaybackState: m.session.State().String(),
			Cursor:        snap.Cursor,
			QueueLength:   len(snap.Queue),
			Queue:         snap.Queue,
			AutoContinue:  snap.AutoPlay,
			Progress:      *sample.Notification().Progress,
		}
		if cur, ok := snap.Current(); ok {
			st.Current = &cur
			st.Position = notification.PositionText(snap.Cursor+1, len(snap.Queue))
		}
		if snap.Context != nil {
			st.Utterance = snap.Context.Utterance
			st.Variations = snap.Context.Variations
			st.Marker, _ = expansion.Matches(snap.Context.Utterance)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	st.Subscribers = m.notification.SubscriberCount()
	return st, nil
}
