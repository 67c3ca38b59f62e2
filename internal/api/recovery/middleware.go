package recovery

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Middleware intercepts panics from downstream handlers, logs details, and
// returns HTTP 500. Completed requests are logged at debug level.
func Middleware(log zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			defer func() {
				if rec := recover(); rec != nil {
					log.Error().
						Interface("panic", rec).
						Str("method", r.Method).
						Str("url", r.URL.String()).
						Str("remote", r.RemoteAddr).
						Bytes("stack", debug.Stack()).
						Msg("panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"Internal Server Error","code":500}`))
					return
				}
				log.Debug().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Dur("elapsed", time.Since(start)).
					Msg("request served")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
