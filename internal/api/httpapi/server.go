// Package httpapi exposes the radio over HTTP: a search proxy, the
// presentation layer's intents, and a websocket for the remote player.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voxbox/internal/app/playback"
	"github.com/osa030/voxbox/internal/app/queue"
	"github.com/osa030/voxbox/internal/app/radio"
	"github.com/osa030/voxbox/internal/app/search"
	"github.com/osa030/voxbox/internal/domain/track"
	"github.com/osa030/voxbox/internal/infra/catalog"
	"github.com/osa030/voxbox/internal/infra/config"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "voxbox"

// Radio is the set of intents the API forwards to the radio core.
type Radio interface {
	SubmitVoiceCommand(ctx context.Context, text string) error
	TogglePlayback(ctx context.Context) error
	SkipForward(ctx context.Context) error
	SkipBackward(ctx context.Context) error
	SeekTo(ctx context.Context, pct float64) error
	BeginSeek(ctx context.Context) error
	UpdateSeek(ctx context.Context, pct float64) error
	EndSeek(ctx context.Context) error
	SelectAlternative(ctx context.Context, t track.Track) error
	SetAutoContinue(ctx context.Context, enabled bool) error
	HandleSpeechError(code string)
	GetStatus(ctx context.Context) (*radio.Status, error)
}

// Server serves the HTTP API.
type Server struct {
	radio  Radio
	proxy  search.Provider // nil disables GET /search
	engine *RemoteEngine   // nil disables GET /ws
	cfg    config.ServerConfig
	proxyC config.ProxyConfig
	now    func() time.Time
}

// NewServer creates a server. proxy and engine are optional.
func NewServer(r Radio, proxy search.Provider, engine *RemoteEngine, server config.ServerConfig, proxyCfg config.ProxyConfig) *Server {
	return &Server{
		radio:  r,
		proxy:  proxy,
		engine: engine,
		cfg:    server,
		proxyC: proxyCfg,
		now:    time.Now,
	}
}

// Router creates the chi router with every route mounted.
func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors(s.cfg.AllowedOrigins))
	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)
	if s.proxy != nil {
		r.Get("/search", s.handleSearch)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)

		r.Group(func(r chi.Router) {
			r.Use(requireControlToken(s.cfg.ControlToken))
			r.Post("/commands", s.handleCommand)
			r.Post("/playback/toggle", s.handleToggle)
			r.Post("/playback/next", s.handleNext)
			r.Post("/playback/previous", s.handlePrevious)
			r.Post("/playback/seek", s.handleSeek)
			r.Post("/queue/select", s.handleSelect)
			r.Put("/queue/autocontinue", s.handleAutoContinue)
			r.Post("/speech/error", s.handleSpeechError)
		})
	})

	if s.engine != nil {
		r.With(requireControlToken(s.cfg.ControlToken)).Get("/ws", s.engine.ServeHTTP)
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   ServiceName,
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

// handleSearch serves the search proxy consumed by the proxy provider.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing query parameter"})
		return
	}

	tracks, err := s.proxy.Search(r.Context(), q+s.proxyC.QuerySuffix)
	if err != nil {
		zlog.Warn().Msgf("httpapi: search proxy failed: query=%q, error=%v", q, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "search failed",
			"message": err.Error(),
		})
		return
	}

	if limit := s.proxyC.ResultLimit; limit > 0 && len(tracks) > limit {
		tracks = tracks[:limit]
	}
	items := make([]catalog.Item, 0, len(tracks))
	for _, t := range tracks {
		items = append(items, catalog.FromTrack(t))
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, err := s.radio.GetStatus(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type commandRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if !decode(w, r, &req) {
		return
	}
	s.respond(w, s.radio.SubmitVoiceCommand(r.Context(), req.Text))
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.radio.TogglePlayback(r.Context()))
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.radio.SkipForward(r.Context()))
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.radio.SkipBackward(r.Context()))
}

// Seek phases; an empty phase seeks immediately.
const (
	seekBegin  = "begin"
	seekUpdate = "update"
	seekEnd    = "end"
)

type seekRequest struct {
	Percentage float64 `json:"percentage"`
	Phase      string  `json:"phase,omitempty"`
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if !decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	var err error
	switch req.Phase {
	case "":
		err = s.radio.SeekTo(ctx, req.Percentage)
	case seekBegin:
		err = s.radio.BeginSeek(ctx)
	case seekUpdate:
		err = s.radio.UpdateSeek(ctx, req.Percentage)
	case seekEnd:
		if err = s.radio.UpdateSeek(ctx, req.Percentage); err == nil {
			err = s.radio.EndSeek(ctx)
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown seek phase: " + req.Phase})
		return
	}
	s.respond(w, err)
}

type selectRequest struct {
	Track track.Track `json:"track"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !decode(w, r, &req) {
		return
	}
	s.respond(w, s.radio.SelectAlternative(r.Context(), req.Track))
}

type autoContinueRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleAutoContinue(w http.ResponseWriter, r *http.Request) {
	var req autoContinueRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "enabled is required"})
		return
	}
	s.respond(w, s.radio.SetAutoContinue(r.Context(), *req.Enabled))
}

type speechErrorRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleSpeechError(w http.ResponseWriter, r *http.Request) {
	var req speechErrorRequest
	if !decode(w, r, &req) {
		return
	}
	s.radio.HandleSpeechError(req.Code)
	writeJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

// respond writes 202 for an accepted intent or maps err to a status.
func (s *Server) respond(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

// statusOf maps core errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, queue.ErrEmptyUtterance),
		errors.Is(err, playback.ErrInvalidSeek),
		errors.Is(err, track.ErrInvalidTrack):
		return http.StatusBadRequest
	case errors.Is(err, playback.ErrNoTrack),
		errors.Is(err, playback.ErrUnknownTotal):
		return http.StatusConflict
	case errors.Is(err, radio.ErrClosed),
		errors.Is(err, queue.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		zlog.Error().Msgf("httpapi: request failed: error=%v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decode reads a JSON body into out and answers 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, out any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Debug().Msgf("httpapi: write response: error=%v", err)
	}
}
