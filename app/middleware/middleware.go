package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"blogapi/app/auth"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// Logger attaches logger to every request context, tags the request with an
// id and writes one access log line per request.
func Logger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		h := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Stringer("url", r.URL).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("Request handled")
		})(next)
		h = hlog.RemoteAddrHandler("ip")(h)
		h = hlog.RequestIDHandler("req_id", "X-Request-Id")(h)
		return hlog.NewHandler(logger)(h)
	}
}

// Recoverer recovers from panics and logs the error
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				hlog.FromRequest(r).Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("Recovered from panic")
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ContentTypeJSON sets the Content-Type header to application/json
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// RequireAuth rejects requests a does not authenticate before they reach
// next. Missing or invalid credentials get 401, a refresh token presented
// as an access token gets 403.
func RequireAuth(a auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, err := a.Authenticate(r)
			if err != nil {
				hlog.FromRequest(r).Debug().Err(err).Msg("Request not authenticated")
				if errors.Is(err, auth.ErrWrongTokenType) {
					writeError(w, http.StatusForbidden, "token not valid for this request")
					return
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				if errors.Is(err, auth.ErrMissingToken) {
					writeError(w, http.StatusUnauthorized, auth.ErrMissingToken.Error())
					return
				}
				writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithSubject(r.Context(), subject)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
