package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voxbox/internal/app/notification"
	"github.com/osa030/voxbox/internal/app/playback"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	peerBuffer     = 256
)

var errPeerClosed = errors.New("player disconnected")

// Operations sent to the player.
const (
	opLoad   = "load"
	opPlay   = "play"
	opPause  = "pause"
	opSeek   = "seek"
	opNotify = "notify"
)

// Events received from the player.
const (
	eventReady = "ready"
	eventState = "state"
	eventError = "error"
	eventTime  = "time"
)

type command struct {
	Op           string                     `json:"op"`
	VideoID      string                     `json:"videoId,omitempty"`
	Seconds      float64                    `json:"seconds,omitempty"`
	Notification *notification.Notification `json:"notification,omitempty"`
}

type event struct {
	Event   string  `json:"event"`
	State   string  `json:"state,omitempty"`
	Code    int     `json:"code,omitempty"`
	Elapsed float64 `json:"elapsed,omitempty"`
	Total   float64 `json:"total,omitempty"`
}

// EngineEvents receives the player's lifecycle events.
type EngineEvents interface {
	EngineReady()
	EngineStateChanged(playback.EngineState)
	EngineError(code int)
}

// Subscriber delivers notifications to a stream.
type Subscriber interface {
	Subscribe(notification.Stream) string
	Unsubscribe(id string)
}

// RemoteEngine is a playback engine running in a browser connected over a
// websocket. The most recent connection owns playback; earlier ones are
// closed. A load issued while no player is connected is replayed on connect.
type RemoteEngine struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	peer    *peer
	pending string // video id loaded while disconnected
	state   playback.EngineState
	elapsed float64
	total   float64

	events        EngineEvents
	notifications Subscriber
}

// NewRemoteEngine creates an engine accepting players from allowedOrigins.
// No origins allows any origin.
func NewRemoteEngine(allowedOrigins []string) *RemoteEngine {
	e := &RemoteEngine{state: playback.EngineUnstarted}
	e.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return len(allowedOrigins) == 0 || origin == "" || originAllowed(allowedOrigins, origin)
		},
	}
	return e
}

// Bind connects the engine to the radio. It must be called before serving.
func (e *RemoteEngine) Bind(events EngineEvents, notifications Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = events
	e.notifications = notifications
}

// Connected reports whether a player is connected.
func (e *RemoteEngine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.peer != nil
}

// Load implements playback.Engine.
func (e *RemoteEngine) Load(id string) {
	e.mu.Lock()
	e.state = playback.EngineUnstarted
	e.elapsed, e.total = 0, 0
	p := e.peer
	if p == nil {
		e.pending = id
	}
	e.mu.Unlock()

	if p == nil {
		zlog.Debug().Msgf("httpapi: no player connected, deferring load: video_id=%s", id)
		return
	}
	p.command(command{Op: opLoad, VideoID: id})
}

// Play implements playback.Engine.
func (e *RemoteEngine) Play() {
	e.send(command{Op: opPlay})
}

// Pause implements playback.Engine.
func (e *RemoteEngine) Pause() {
	e.send(command{Op: opPause})
}

// Seek implements playback.Engine.
func (e *RemoteEngine) Seek(seconds float64) {
	e.mu.Lock()
	e.elapsed = seconds
	e.mu.Unlock()
	e.send(command{Op: opSeek, Seconds: seconds})
}

// Elapsed implements playback.Engine.
func (e *RemoteEngine) Elapsed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.elapsed
}

// Total implements playback.Engine.
func (e *RemoteEngine) Total() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.total
}

// State implements playback.Engine.
func (e *RemoteEngine) State() playback.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *RemoteEngine) send(c command) {
	e.mu.Lock()
	p := e.peer
	e.mu.Unlock()
	if p != nil {
		p.command(c)
	}
}

// ServeHTTP upgrades the request and makes the connection the player.
func (e *RemoteEngine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Warn().Msgf("httpapi: ws upgrade: error=%v", err)
		return
	}

	p := &peer{
		engine: e,
		conn:   conn,
		send:   make(chan []byte, peerBuffer),
		done:   make(chan struct{}),
	}

	e.mu.Lock()
	subs := e.notifications
	e.mu.Unlock()
	// subscribe before publishing p; a replacing connection reads p.subscription
	if subs != nil {
		p.subscription = subs.Subscribe(p)
	}

	e.mu.Lock()
	prev := e.peer
	e.peer = p
	pending := e.pending
	e.pending = ""
	e.mu.Unlock()

	if prev != nil {
		zlog.Info().Msg("httpapi: player replaced by a new connection")
		prev.close()
	}
	zlog.Info().Msgf("httpapi: player connected: remote=%s", r.RemoteAddr)

	go p.writePump()
	if pending != "" {
		p.command(command{Op: opLoad, VideoID: pending})
	}
	go p.readPump()
}

// handle applies an event from p. Events from a replaced player are ignored.
func (e *RemoteEngine) handle(p *peer, ev event) {
	e.mu.Lock()
	if e.peer != p {
		e.mu.Unlock()
		return
	}
	events := e.events
	var state playback.EngineState
	switch ev.Event {
	case eventTime:
		e.elapsed = ev.Elapsed
		if ev.Total > 0 {
			e.total = ev.Total
		}
	case eventState:
		s, ok := playback.ParseEngineState(ev.State)
		if !ok {
			e.mu.Unlock()
			zlog.Debug().Msgf("httpapi: unknown player state: state=%q", ev.State)
			return
		}
		e.state = s
		state = s
	}
	e.mu.Unlock()

	if events == nil {
		return
	}
	switch ev.Event {
	case eventReady:
		events.EngineReady()
	case eventState:
		events.EngineStateChanged(state)
	case eventError:
		events.EngineError(ev.Code)
	case eventTime:
	default:
		zlog.Debug().Msgf("httpapi: unknown player event: event=%q", ev.Event)
	}
}

// detach forgets p if it still owns playback.
func (e *RemoteEngine) detach(p *peer) {
	e.mu.Lock()
	if e.peer == p {
		e.peer = nil
	}
	subs := e.notifications
	e.mu.Unlock()

	if subs != nil && p.subscription != "" {
		subs.Unsubscribe(p.subscription)
	}
}

// peer is one websocket connection.
type peer struct {
	engine       *RemoteEngine
	conn         *websocket.Conn
	send         chan []byte
	done         chan struct{}
	once         sync.Once
	subscription string
}

// Send implements notification.Stream. It blocks until the message is
// queued or the peer is gone.
func (p *peer) Send(n *notification.Notification) error {
	b, err := json.Marshal(command{Op: opNotify, Notification: n})
	if err != nil {
		return errors.Wrap(err, "failed to encode notification")
	}
	select {
	case p.send <- b:
		return nil
	case <-p.done:
		return errPeerClosed
	}
}

// command queues an engine operation without blocking.
func (p *peer) command(c command) {
	b, err := json.Marshal(c)
	if err != nil {
		zlog.Error().Msgf("httpapi: encode command: op=%s, error=%v", c.Op, err)
		return
	}
	select {
	case <-p.done:
	case p.send <- b:
	default:
		zlog.Warn().Msgf("httpapi: player queue full, dropping command: op=%s", c.Op)
	}
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		p.engine.detach(p)
		_ = p.conn.Close()
	})
}

func (p *peer) readPump() {
	defer p.close()

	p.conn.SetReadLimit(maxMessageSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var ev event
		if err := p.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zlog.Warn().Msgf("httpapi: player read: error=%v", err)
			}
			zlog.Info().Msg("httpapi: player disconnected")
			return
		}
		p.engine.handle(p, ev)
	}
}

func (p *peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.close()
	}()

	for {
		select {
		case <-p.done:
			_ = p.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case msg := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				zlog.Debug().Msgf("httpapi: player write: error=%v", err)
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
