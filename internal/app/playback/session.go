package playback

import (
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voxbox/internal/app/notification"
	"github.com/osa030/voxbox/internal/app/progress"
	"github.com/osa030/voxbox/internal/app/scheduler"
	"github.com/osa030/voxbox/internal/domain/track"
	"github.com/osa030/voxbox/internal/infra/config"
)

// Errors
var (
	ErrNoTrack      = errors.New("no track loaded")
	ErrInvalidSeek  = errors.New("seek percentage must be between 0 and 100")
	ErrUnknownTotal = errors.New("track duration is not known yet")
)

// Engine is the external player. The session is its only user.
type Engine interface {
	Load(id string)
	Play()
	Pause()
	Seek(seconds float64)
	Elapsed() float64
	Total() float64
	State() EngineState
}

// Config holds session configuration.
type Config struct {
	WatchdogTimeout  time.Duration // Time a load may take before it counts as stuck
	StuckGrace       time.Duration // Delay between reporting a stuck load and advancing
	EndedDelay       time.Duration // Debounce before advancing after a track ended
	ErrorDelay       time.Duration // Delay before skipping a track the engine failed on
	ProgressInterval time.Duration // Progress sampling cadence
	Messages         config.MessagesConfig
}

// ConfigFrom converts loaded configuration.
func ConfigFrom(pc config.PlaybackConfig, msgs config.MessagesConfig) Config {
	return Config{
		WatchdogTimeout:  config.Ms(pc.WatchdogTimeoutMs),
		StuckGrace:       config.Ms(pc.StuckGraceMs),
		EndedDelay:       config.Ms(pc.EndedDelayMs),
		ErrorDelay:       config.Ms(pc.ErrorDelayMs),
		ProgressInterval: config.Ms(pc.ProgressIntervalMs),
		Messages:         msgs,
	}
}

// Session owns the engine and the state of the loaded track.
// Every method must be called on the scheduler's loop.
type Session struct {
	sched   scheduler.Scheduler
	engine  Engine
	config  Config
	notify  notification.Publisher
	tracker *progress.Tracker

	state   State
	current *track.Track

	watchdog scheduler.Handle
	advance  scheduler.Handle // pending advance; at most one per track

	onAdvance func(Reason)
}

// NewSession creates a playback session driving engine.
func NewSession(sched scheduler.Scheduler, engine Engine, cfg Config, notify notification.Publisher) *Session {
	if notify == nil {
		notify = notification.Discard
	}
	s := &Session{
		sched:     sched,
		engine:    engine,
		config:    cfg,
		notify:    notify,
		state:     StateIdle,
		onAdvance: func(Reason) {},
	}
	s.tracker = progress.NewTracker(sched, cfg.ProgressInterval, engine, func(sample progress.Sample) {
		s.notify.Publish(sample.Notification())
	})
	return s
}

// SetAdvanceFunc sets the callback run when the current track is over,
// failed or got stuck.
func (s *Session) SetAdvanceFunc(fn func(Reason)) {
	if fn == nil {
		fn = func(Reason) {}
	}
	s.onAdvance = fn
}

// Load disarms every timer of the previous track and loads t.
func (s *Session) Load(t track.Track) {
	s.disarm()
	s.tracker.Reset()

	s.current = &t
	s.setState(StateLoading)
	s.engine.Load(t.ID)

	if s.config.WatchdogTimeout > 0 {
		s.watchdog = s.sched.AfterFunc(s.config.WatchdogTimeout, s.onWatchdog)
	}
	zlog.Debug().Msgf("playback: loading: id=%s, title=%s", t.ID, t.Title)
}

// OnReady handles the engine's ready event by starting playback.
func (s *Session) OnReady() {
	if s.current == nil {
		return
	}
	if s.state == StateLoading {
		s.engine.Play()
	}
}

// OnStateChange handles an engine state change.
func (s *Session) OnStateChange(es EngineState) {
	if s.current == nil {
		zlog.Debug().Msgf("playback: state change without track ignored: state=%s", es)
		return
	}

	switch es {
	case EnginePlaying:
		s.watchdog = scheduler.Stop(s.watchdog)
		s.setState(StatePlaying)
		s.tracker.Start()
	case EnginePaused:
		if s.state == StateEnded || s.state == StateErrored {
			return
		}
		s.tracker.Stop()
		s.setState(StatePaused)
	case EngineEnded:
		if s.state == StateEnded {
			return
		}
		s.watchdog = scheduler.Stop(s.watchdog)
		s.tracker.Stop()
		s.setState(StateEnded)
		s.scheduleAdvance(s.config.EndedDelay, ReasonEnded)
	default:
		zlog.Debug().Msgf("playback: engine state: %s", es)
	}
}

// OnError handles an engine error. Errors are never fatal: the track is
// skipped after a short delay.
func (s *Session) OnError(code int) {
	if s.current == nil {
		return
	}
	kind := Classify(code)
	zlog.Warn().Msgf("playback: engine error: code=%d, id=%s", code, s.current.ID)

	s.watchdog = scheduler.Stop(s.watchdog)
	s.tracker.Stop()
	s.setState(StateErrored)
	s.notify.Publish(notification.Status(kind.Message(s.config.Messages)))
	s.scheduleAdvance(s.config.ErrorDelay, ReasonError)
}

func (s *Session) onWatchdog() {
	s.watchdog = nil
	if s.current == nil || s.state == StatePlaying || s.engine.State() == EnginePlaying {
		return
	}
	zlog.Info().Msgf("playback: load stuck, skipping: id=%s, timeout=%s", s.current.ID, s.config.WatchdogTimeout)
	s.notify.Publish(notification.Status(s.config.Messages.StuckLoad))
	s.scheduleAdvance(s.config.StuckGrace, ReasonStuck)
}

// scheduleAdvance arms the advance timer unless one is already pending.
func (s *Session) scheduleAdvance(d time.Duration, reason Reason) {
	if s.advance != nil {
		zlog.Debug().Msgf("playback: advance already pending, ignoring: reason=%s", reason)
		return
	}
	s.advance = s.sched.AfterFunc(d, func() {
		s.advance = nil
		zlog.Debug().Msgf("playback: advancing: reason=%s", reason)
		s.onAdvance(reason)
	})
}

// Toggle pauses a playing track and plays anything else.
func (s *Session) Toggle() error {
	if s.current == nil {
		return ErrNoTrack
	}
	if s.engine.State() == EnginePlaying {
		s.engine.Pause()
	} else {
		s.engine.Play()
	}
	return nil
}

// BeginSeek suspends progress sampling while the seek control is dragged.
func (s *Session) BeginSeek() {
	s.tracker.BeginSeek()
}

// UpdateSeek previews the pending seek position.
func (s *Session) UpdateSeek(pct float64) progress.Sample {
	return s.tracker.UpdateSeek(pct)
}

// EndSeek issues a single engine seek for the pending position.
func (s *Session) EndSeek() error {
	seconds, ok := s.tracker.EndSeek()
	if !ok {
		return ErrUnknownTotal
	}
	if s.current == nil {
		return ErrNoTrack
	}
	s.engine.Seek(seconds)
	return nil
}

// SeekTo seeks to a percentage of the track in one step.
func (s *Session) SeekTo(pct float64) error {
	if pct < 0 || pct > 100 {
		return ErrInvalidSeek
	}
	if s.current == nil {
		return ErrNoTrack
	}
	s.tracker.BeginSeek()
	s.tracker.UpdateSeek(pct)
	return s.EndSeek()
}

// State returns the session state.
func (s *Session) State() State {
	return s.state
}

// Current returns the loaded track.
func (s *Session) Current() (track.Track, bool) {
	if s.current == nil {
		return track.Track{}, false
	}
	return *s.current, true
}

// Progress returns the latest progress sample.
func (s *Session) Progress() progress.Sample {
	return s.tracker.Last()
}

// Close disarms every timer and returns to idle.
func (s *Session) Close() {
	s.disarm()
	s.tracker.Stop()
	s.current = nil
	s.state = StateIdle
}

func (s *Session) disarm() {
	s.watchdog = scheduler.Stop(s.watchdog)
	s.advance = scheduler.Stop(s.advance)
}

func (s *Session) setState(state State) {
	if s.state == state {
		return
	}
	zlog.Debug().Msgf("playback: state: %s -> %s", s.state, state)
	s.state = state
	s.notify.Publish(notification.Notification{
		Type:  notification.TypePlaybackState,
		State: state.String(),
		Track: s.current,
	})
}
