package api

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/reclaim-app/reclaim/internal/apperr"
	"github.com/reclaim-app/reclaim/internal/logging"
)

// actorHeader identifies the caller for throttling; the remote address is the fallback
const actorHeader = "X-Actor-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogging(log *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

func recoverer(log *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					log.Error("handler panic", "path", r.URL.Path, "panic", fmt.Sprint(v))
					writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// throttled rejects batch triggers that exceed the caller's token bucket
func (s *Server) throttled(op string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Limiter != nil {
			actor := actorOf(r)
			if !s.deps.Limiter.Allow(actor) {
				s.writeError(w, apperr.RateLimited(op, "too many batch triggers from %s, try again later", actor))
				return
			}
		}
		next(w, r)
	}
}

func actorOf(r *http.Request) string {
	if id := r.Header.Get(actorHeader); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
