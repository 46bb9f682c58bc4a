// Package radio composes the radio core: search, queue controller,
// playback session, progress tracking and notifications, all running on one
// cooperative loop. Its methods are the presentation layer's intents and the
// playback engine's event entry points, and are safe for concurrent use.
package radio

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voxbox/internal/app/expansion"
	"github.com/osa030/voxbox/internal/app/notification"
	"github.com/osa030/voxbox/internal/app/playback"
	"github.com/osa030/voxbox/internal/app/queue"
	"github.com/osa030/voxbox/internal/app/scheduler"
	"github.com/osa030/voxbox/internal/app/speech"
	"github.com/osa030/voxbox/internal/domain/track"
	"github.com/osa030/voxbox/internal/infra/config"
)

// ErrClosed is returned by intents once the manager is closed.
var ErrClosed = errors.New("radio is closed")

// Option configures a Manager.
type Option func(*Manager)

// WithScheduler runs the core on sched instead of an owned loop.
func WithScheduler(sched scheduler.Scheduler) Option {
	return func(m *Manager) { m.sched = sched }
}

// WithSearcher replaces the searcher built from configuration.
func WithSearcher(s queue.Searcher) Option {
	return func(m *Manager) { m.searcher = s }
}

// WithPicker sets the extension query picker.
func WithPicker(p *expansion.Picker) Option {
	return func(m *Manager) { m.picker = p }
}

// Manager manages one radio session.
type Manager struct {
	id     string
	config *config.Config

	sched scheduler.Scheduler
	loop  *scheduler.Loop // owned loop; nil when a scheduler was injected

	searcher     queue.Searcher
	picker       *expansion.Picker
	controller   *queue.Controller
	session      *playback.Session
	notification *notification.Manager

	closeSearch func() error
	started     atomic.Bool
	closeOnce   sync.Once
	closed      chan struct{}
}

// NewManager creates a radio driving engine.
func NewManager(ctx context.Context, cfg *config.Config, engine playback.Engine, opts ...Option) (*Manager, error) {
	m := &Manager{
		id:           uuid.New().String(),
		config:       cfg,
		notification: notification.NewManager(),
		closeSearch:  func() error { return nil },
		closed:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.sched == nil {
		m.loop = scheduler.NewLoop(0)
		m.sched = m.loop
	}
	if m.searcher == nil {
		orch, closeFn, err := NewSearcher(ctx, cfg)
		if err != nil {
			return nil, err
		}
		m.searcher = orch
		m.closeSearch = closeFn
	}
	if m.picker == nil {
		m.picker = expansion.NewPicker(nil, cfg.Queue.FreshnessTerms)
	}

	m.session = playback.NewSession(m.sched, engine,
		playback.ConfigFrom(cfg.Playback, cfg.Messages), m.notification)
	m.controller = queue.NewController(m.sched, m.searcher, m.session, m.picker, m.notification,
		queue.ConfigFrom(cfg.Queue, cfg.Messages))
	m.session.SetAdvanceFunc(func(reason playback.Reason) {
		zlog.Debug().Msgf("radio: track over: reason=%s", reason)
		m.controller.OnTrackEnded()
	})

	return m, nil
}

// Start runs the owned loop. It does nothing when a scheduler was injected.
func (m *Manager) Start() {
	if m.loop != nil && !m.started.Swap(true) {
		m.loop.Start()
	}
	zlog.Info().Msgf("radio: started: session=%s", m.id)
}

// ID returns the session id.
func (m *Manager) ID() string {
	return m.id
}

// Done is closed once the manager is closed.
func (m *Manager) Done() <-chan struct{} {
	return m.closed
}

// NotificationManager returns the notification manager.
func (m *Manager) NotificationManager() *notification.Manager {
	return m.notification
}

// Close stops every timer and search and releases resources.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		teardown := func() {
			m.controller.Close()
			m.session.Close()
		}
		if m.loop != nil && !m.started.Load() {
			teardown()
		} else {
			_ = m.sched.Do(context.Background(), teardown)
		}
		if m.loop != nil {
			m.loop.Close()
		}
		m.notification.Close()
		if err := m.closeSearch(); err != nil {
			zlog.Warn().Msgf("radio: close search: error=%v", err)
		}
		close(m.closed)
		zlog.Info().Msgf("radio: closed: session=%s", m.id)
	})
}

// run executes fn on the loop and returns its error.
func (m *Manager) run(ctx context.Context, fn func() error) error {
	select {
	case <-m.closed:
		return ErrClosed
	default:
	}
	var err error
	if e := m.sched.Do(ctx, func() { err = fn() }); e != nil {
		if errors.Is(e, scheduler.ErrLoopClosed) {
			return ErrClosed
		}
		return e
	}
	return err
}

// SubmitVoiceCommand starts a new search for text, replacing the queue.
func (m *Manager) SubmitVoiceCommand(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		m.notification.Publish(notification.Error(m.config.Messages.EmptyCommand))
		return queue.ErrEmptyUtterance
	}
	return m.run(ctx, func() error {
		return m.controller.OnNewCommand(text)
	})
}

// TogglePlayback pauses or resumes the current track.
func (m *Manager) TogglePlayback(ctx context.Context) error {
	return m.run(ctx, m.session.Toggle)
}

// SkipForward plays the next track, extending the queue at its end.
func (m *Manager) SkipForward(ctx context.Context) error {
	return m.run(ctx, func() error {
		m.controller.OnManualSkipForward()
		return nil
	})
}

// SkipBackward plays the previous track.
func (m *Manager) SkipBackward(ctx context.Context) error {
	return m.run(ctx, func() error {
		m.controller.OnManualSkipBackward()
		return nil
	})
}

// SeekTo seeks to a percentage of the current track.
func (m *Manager) SeekTo(ctx context.Context, pct float64) error {
	return m.run(ctx, func() error {
		return m.session.SeekTo(pct)
	})
}

// BeginSeek suspends progress updates while a seek control is dragged.
func (m *Manager) BeginSeek(ctx context.Context) error {
	return m.run(ctx, func() error {
		m.session.BeginSeek()
		return nil
	})
}

// UpdateSeek previews the dragged seek position.
func (m *Manager) UpdateSeek(ctx context.Context, pct float64) error {
	return m.run(ctx, func() error {
		m.session.UpdateSeek(pct)
		return nil
	})
}

// EndSeek seeks to the dragged position and resumes progress updates.
func (m *Manager) EndSeek(ctx context.Context) error {
	return m.run(ctx, m.session.EndSeek)
}

// SelectAlternative plays a track picked from the shown alternatives.
func (m *Manager) SelectAlternative(ctx context.Context, t track.Track) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return m.run(ctx, func() error {
		return m.controller.OnUserSelectsAlternative(t)
	})
}

// SetAutoContinue enables or disables automatic continuation.
func (m *Manager) SetAutoContinue(ctx context.Context, enabled bool) error {
	return m.run(ctx, func() error {
		m.controller.SetAutoContinue(enabled)
		return nil
	})
}

// HandleSpeechError reports a speech recognition failure to the user.
func (m *Manager) HandleSpeechError(code string) {
	msg, ok := speech.Message(code, m.config.Messages)
	if !ok {
		return
	}
	zlog.Debug().Msgf("radio: speech error: code=%s", code)
	m.notification.Publish(notification.Error(msg))
}

// EngineReady handles the engine's ready event.
func (m *Manager) EngineReady() {
	m.sched.Post(m.session.OnReady)
}

// EngineStateChanged handles an engine state change.
func (m *Manager) EngineStateChanged(s playback.EngineState) {
	m.sched.Post(func() { m.session.OnStateChange(s) })
}

// EngineError handles an engine error code.
func (m *Manager) EngineError(code int) {
	m.sched.Post(func() { m.session.OnError(code) })
}
