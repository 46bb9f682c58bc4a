package httpapi

import (
	"crypto/subtle"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	zlog "github.com/rs/zerolog/log"
)

// ControlTokenHeader carries the control token.
const ControlTokenHeader = "X-Control-Token"

// requireControlToken rejects requests whose X-Control-Token does not match
// token. An empty token disables the check. Browsers cannot set headers on
// websocket upgrades, so the token is also accepted as the "token" query
// parameter.
func requireControlToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(ControlTokenHeader)
			if got == "" {
				got = r.URL.Query().Get("token")
			}
			if got == "" {
				zlog.Warn().Msgf("httpapi: control request rejected: path=%s, reason=missing token", r.URL.Path)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "control token required"})
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				zlog.Warn().Msgf("httpapi: control request rejected: path=%s, reason=invalid token", r.URL.Path)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid control token"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// cors allows the listed origins; "*" allows any origin. No origins means
// no CORS headers at all.
func cors(origins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(origins) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && originAllowed(origins, origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, "+ControlTokenHeader)
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(origins []string, origin string) bool {
	return slices.ContainsFunc(origins, func(o string) bool {
		return o == "*" || strings.EqualFold(o, origin)
	})
}

// requestLogger logs each request through zerolog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zlog.Debug().Msgf("httpapi: %s %s: status=%d, bytes=%d, duration=%s, request_id=%s",
			r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start),
			middleware.GetReqID(r.Context()))
	})
}
