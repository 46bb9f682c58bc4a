package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voxbox/internal/app/expansion"
	"github.com/osa030/voxbox/internal/app/notification"
	"github.com/osa030/voxbox/internal/app/scheduler"
	"github.com/osa030/voxbox/internal/app/search"
	"github.com/osa030/voxbox/internal/domain/track"
	"github.com/osa030/voxbox/internal/infra/config"
)

// Errors
var (
	ErrEmptyUtterance = errors.New("voice command is empty")
	ErrClosed         = errors.New("queue controller closed")
)

// Searcher runs a search for a phrase.
type Searcher interface {
	Search(ctx context.Context, query string) (search.Result, error)
}

// Player loads a track. The playback session implements it.
type Player interface {
	Load(t track.Track)
}

// Config holds controller configuration.
type Config struct {
	ExtensionRetryDelay time.Duration // Retry delay after an extension found nothing new
	ExtensionErrorDelay time.Duration // Retry delay after an extension search failed
	AlternativesDelay   time.Duration // Delay before publishing the other initial results
	MaxExtensionRetries int           // 0 = retry forever
	MaxQueueSize        int           // 0 = unbounded
	Messages            config.MessagesConfig
}

// ConfigFrom converts loaded configuration.
func ConfigFrom(qc config.QueueConfig, msgs config.MessagesConfig) Config {
	return Config{
		ExtensionRetryDelay: config.Ms(qc.ExtensionRetryDelayMs),
		ExtensionErrorDelay: config.Ms(qc.ExtensionErrorDelayMs),
		AlternativesDelay:   config.Ms(qc.AlternativesDelayMs),
		MaxExtensionRetries: qc.MaxExtensionRetries,
		MaxQueueSize:        qc.MaxQueueSize,
		Messages:            msgs,
	}
}

// Snapshot is a copy of the controller state.
type Snapshot struct {
	State      State
	Queue      []track.Track
	Cursor     int
	Context    *QueryContext
	AutoPlay   bool
	Extensions int // extension attempts since the queue last grew
}

// Current returns the track under the cursor.
func (s Snapshot) Current() (track.Track, bool) {
	if s.Cursor < 0 || s.Cursor >= len(s.Queue) {
		return track.Track{}, false
	}
	return s.Queue[s.Cursor], true
}

// Controller is the queue state machine.
// Every method must be called on the scheduler's loop.
type Controller struct {
	sched    scheduler.Scheduler
	searcher Searcher
	player   Player
	notify   notification.Publisher
	picker   *expansion.Picker
	config   Config

	state    State
	queue    []track.Track
	cursor   int
	qctx     *QueryContext
	autoPlay bool

	// generation stamps every search; completions for an older one are dropped
	generation   uint64
	searchCtx    context.Context
	searchCancel context.CancelFunc

	// waiting is set while playback sits on the last entry and the next
	// extension result should start playing
	waiting    bool
	attempts   int
	retryTimer scheduler.Handle
	altTimer   scheduler.Handle
	closed     bool
}

// NewController creates a queue controller.
func NewController(sched scheduler.Scheduler, searcher Searcher, player Player, picker *expansion.Picker, notify notification.Publisher, cfg Config) *Controller {
	if notify == nil {
		notify = notification.Discard
	}
	if picker == nil {
		picker = expansion.NewPicker(nil, nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		sched:        sched,
		searcher:     searcher,
		player:       player,
		notify:       notify,
		picker:       picker,
		config:       cfg,
		state:        StateEmpty,
		cursor:       -1,
		autoPlay:     true,
		searchCtx:    ctx,
		searchCancel: cancel,
	}
}

// OnNewCommand discards the queue and query context and starts the initial
// search for utterance.
func (c *Controller) OnNewCommand(utterance string) error {
	if c.closed {
		return ErrClosed
	}
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		c.notify.Publish(notification.Error(c.config.Messages.EmptyCommand))
		return ErrEmptyUtterance
	}

	c.reset()
	c.autoPlay = true
	c.qctx = &QueryContext{
		Utterance:    utterance,
		Variations:   expansion.Expand(utterance),
		AutoContinue: true,
		Generation:   c.generation,
	}
	c.setState(StateSeeding)
	zlog.Info().Msgf("queue: new command: utterance=%q, variations=%d, generation=%d",
		utterance, len(c.qctx.Variations), c.generation)

	c.notify.Publish(notification.Status(c.config.Messages.Searching))
	c.notify.Publish(c.queueNotification())

	gen, ctx := c.generation, c.searchCtx
	var (
		res search.Result
		err error
	)
	c.sched.Go(func() {
		res, err = c.searcher.Search(ctx, utterance)
	}, func() {
		if err != nil {
			c.onInitialSearchFailed(gen, err)
			return
		}
		if res.Source == search.SourceFallback && gen == c.generation {
			c.notify.Publish(notification.Status(c.config.Messages.FallbackInUse))
		}
		c.OnInitialSearchComplete(gen, res.Tracks)
	})
	return nil
}

// OnInitialSearchComplete seeds the queue with the initial results of the
// command with generation gen.
func (c *Controller) OnInitialSearchComplete(gen uint64, tracks []track.Track) {
	if c.stale(gen) || c.state != StateSeeding {
		zlog.Debug().Msgf("queue: stale initial result dropped: generation=%d, current=%d", gen, c.generation)
		return
	}

	tracks = track.Unique(tracks, nil)
	if len(tracks) == 0 {
		zlog.Info().Msgf("queue: no results: utterance=%q", c.qctx.Utterance)
		c.setState(StateEmpty)
		c.notify.Publish(notification.Error(fmt.Sprintf(c.config.Messages.NoResults, c.qctx.Utterance)))
		return
	}

	c.queue = tracks
	c.cursor = 0
	c.setState(StatePlaying)
	c.notify.Publish(notification.Status(c.config.Messages.PlayingBest))
	c.notify.Publish(c.queueNotification())
	c.load()

	if len(tracks) > 1 {
		alternatives := append([]track.Track(nil), tracks[1:]...)
		c.altTimer = scheduler.Stop(c.altTimer)
		c.altTimer = c.sched.AfterFunc(c.config.AlternativesDelay, func() {
			c.altTimer = nil
			if c.stale(gen) {
				return
			}
			c.notify.Publish(notification.Notification{
				Type:   notification.TypeAlternatives,
				Tracks: alternatives,
			})
		})
	}
}

func (c *Controller) onInitialSearchFailed(gen uint64, err error) {
	if c.stale(gen) || c.state != StateSeeding {
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	zlog.Warn().Msgf("queue: initial search failed: utterance=%q, error=%v", c.qctx.Utterance, err)
	c.setState(StateEmpty)
	c.notify.Publish(notification.Error(c.config.Messages.SearchFailed))
}

// OnTrackEnded advances after the current track finished, failed or got
// stuck. It does nothing while auto-play is disabled.
func (c *Controller) OnTrackEnded() {
	if !c.autoPlay {
		zlog.Debug().Msg("queue: track ended, auto-play disabled")
		return
	}
	c.next()
}

// OnManualSkipForward advances on user request.
func (c *Controller) OnManualSkipForward() {
	c.next()
}

func (c *Controller) next() {
	if c.closed || len(c.queue) == 0 {
		return
	}
	if c.cursor < len(c.queue)-1 {
		c.cursor++
		c.waiting = false
		if c.state != StateExtending {
			c.setState(StatePlaying)
		}
		c.load()
		return
	}
	if c.state == StateExtending {
		zlog.Debug().Msg("queue: extension already running, waiting for results")
		c.waiting = true
		return
	}

	if c.qctx == nil || !c.qctx.AutoContinue {
		c.notify.Publish(notification.Status(c.config.Messages.NoMoreMusic))
		return
	}
	c.waiting = true
	c.startExtension()
}

// OnManualSkipBackward moves back one track. No-op at the first track.
func (c *Controller) OnManualSkipBackward() {
	if c.closed || c.cursor <= 0 || len(c.queue) == 0 {
		return
	}
	c.cursor--
	c.waiting = false
	if c.state != StateExtending {
		c.setState(StatePlaying)
	}
	c.load()
}

// OnUserSelectsAlternative plays t, appending it when it is not queued yet.
func (c *Controller) OnUserSelectsAlternative(t track.Track) error {
	if c.closed {
		return ErrClosed
	}
	if err := t.Validate(); err != nil {
		return err
	}

	c.waiting = false
	if idx := track.IndexOf(c.queue, t.ID); idx >= 0 {
		c.cursor = idx
	} else {
		c.queue = append(c.queue, t)
		c.cursor = len(c.queue) - 1
		c.notify.Publish(c.queueNotification())
	}
	if c.state != StateExtending {
		c.setState(StatePlaying)
	}
	c.load()
	return nil
}

// SetAutoContinue enables or disables automatic advancing and queue growth.
func (c *Controller) SetAutoContinue(enabled bool) {
	c.autoPlay = enabled
	if c.qctx != nil {
		c.qctx.AutoContinue = enabled
	}
	if !enabled && c.state == StateExtending {
		c.cancelExtension()
		c.setState(StatePlaying)
	}
	zlog.Info().Msgf("queue: auto-continue: %t", enabled)
}

func (c *Controller) startExtension() {
	c.attempts = 0
	c.setState(StateExtending)
	c.notify.Publish(notification.Status(c.config.Messages.SearchingMore))
	c.extend()
}

// extend issues one extension search with a fresh random pick.
func (c *Controller) extend() {
	c.retryTimer = nil
	if c.config.MaxQueueSize > 0 && len(c.queue) >= c.config.MaxQueueSize {
		c.stopExtension("queue size limit reached")
		return
	}
	if c.config.MaxExtensionRetries > 0 && c.attempts > c.config.MaxExtensionRetries {
		c.stopExtension("retry limit reached")
		return
	}
	c.attempts++

	query := c.picker.ExtensionQuery(c.qctx.Variations)
	gen, ctx := c.generation, c.searchCtx
	zlog.Debug().Msgf("queue: extension search: query=%q, attempt=%d", query, c.attempts)

	var (
		res search.Result
		err error
	)
	c.sched.Go(func() {
		res, err = c.searcher.Search(ctx, query)
	}, func() {
		c.onExtensionComplete(gen, query, res.Tracks, err)
	})
}

func (c *Controller) onExtensionComplete(gen uint64, query string, tracks []track.Track, err error) {
	if c.stale(gen) || c.state != StateExtending {
		zlog.Debug().Msgf("queue: stale extension result dropped: query=%q", query)
		return
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		zlog.Warn().Msgf("queue: extension search failed: query=%q, error=%v", query, err)
		c.retry(c.config.ExtensionErrorDelay)
		return
	}

	survivors := track.Unique(tracks, track.IDSet(c.queue))
	if room := c.config.MaxQueueSize - len(c.queue); c.config.MaxQueueSize > 0 && len(survivors) > room {
		survivors = survivors[:max(room, 0)]
	}
	if len(survivors) == 0 {
		zlog.Debug().Msgf("queue: extension found nothing new: query=%q, results=%d", query, len(tracks))
		c.retry(c.config.ExtensionRetryDelay)
		return
	}

	start := len(c.queue)
	c.queue = append(c.queue, survivors...)
	c.attempts = 0
	c.setState(StatePlaying)
	c.notify.Publish(c.queueNotification())
	zlog.Info().Msgf("queue: extended: added=%d, total=%d", len(survivors), len(c.queue))

	if c.waiting {
		c.waiting = false
		c.cursor = start
		c.load()
	}
}

func (c *Controller) retry(delay time.Duration) {
	gen := c.generation
	c.retryTimer = scheduler.Stop(c.retryTimer)
	c.retryTimer = c.sched.AfterFunc(delay, func() {
		if c.stale(gen) || c.state != StateExtending {
			return
		}
		c.extend()
	})
}

func (c *Controller) stopExtension(reason string) {
	zlog.Info().Msgf("queue: extension stopped: %s", reason)
	c.cancelExtension()
	c.setState(StatePlaying)
	c.notify.Publish(notification.Status(c.config.Messages.NoMoreMusic))
}

func (c *Controller) cancelExtension() {
	c.retryTimer = scheduler.Stop(c.retryTimer)
	c.attempts = 0
	c.waiting = false
}

// Snapshot returns a copy of the controller state.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		State:      c.state,
		Queue:      append([]track.Track(nil), c.queue...),
		Cursor:     c.cursor,
		AutoPlay:   c.autoPlay,
		Extensions: c.attempts,
	}
	if c.qctx != nil {
		qctx := *c.qctx
		qctx.Variations = append([]string(nil), c.qctx.Variations...)
		s.Context = &qctx
	}
	return s
}

// State returns the controller state.
func (c *Controller) State() State {
	return c.state
}

// Close cancels in-flight searches and pending timers.
func (c *Controller) Close() {
	c.reset()
	c.searchCancel()
	c.closed = true
}

// reset discards the queue, cancels every search and timer and starts a new
// generation.
func (c *Controller) reset() {
	c.searchCancel()
	c.searchCtx, c.searchCancel = context.WithCancel(context.Background())
	c.generation++
	c.cancelExtension()
	c.altTimer = scheduler.Stop(c.altTimer)
	c.queue = nil
	c.cursor = -1
	c.qctx = nil
	c.setState(StateEmpty)
}

func (c *Controller) stale(gen uint64) bool {
	return c.closed || gen != c.generation
}

func (c *Controller) load() {
	t := c.queue[c.cursor]
	zlog.Debug().Msgf("queue: load: cursor=%d, length=%d, id=%s", c.cursor, len(c.queue), t.ID)
	c.player.Load(t)
	c.notify.Publish(notification.Notification{
		Type:        notification.TypeNowPlaying,
		Message:     fmt.Sprintf(c.config.Messages.NowPlaying, t.Title),
		Track:       &t,
		Position:    c.cursor + 1,
		QueueLength: len(c.queue),
	})
}

func (c *Controller) queueNotification() notification.Notification {
	return notification.Notification{
		Type:        notification.TypeQueue,
		Tracks:      append([]track.Track(nil), c.queue...),
		Position:    c.cursor + 1,
		QueueLength: len(c.queue),
	}
}

func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	zlog.Debug().Msgf("queue: state: %s -> %s", c.state, s)
	c.state = s
}
