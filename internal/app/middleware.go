package app

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/calibra-qa/calibra/internal/platform/httpx"
	"github.com/calibra-qa/calibra/internal/shared"
)

// Sessions loads the Redis session into the request context. Handlers that
// mutate the session commit it themselves.
func Sessions(sessions *shared.SessionManager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessions.Load(r.Context(), r)
			if err != nil {
				logger.Error("session load", slog.Any("error", err))
				httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "Session unavailable.")
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithSession(r.Context(), sess)))
		})
	}
}

// Authenticate resolves the session into a Caller. The caller's role comes
// from session state written at login; role changes invalidate the
// permission cache separately, and take full effect at the next sign-in.
func Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := strconv.ParseInt(sess.User(), 10, 64)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		caller := &shared.Caller{
			ID:    id,
			Email: sess.Get("email"),
			Role:  sess.Get("role"),
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithCaller(r.Context(), caller)))
	})
}

// RequireAuth rejects unauthenticated requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shared.CallerFromContext(r.Context()) == nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CSRF verifies the token header on state-changing requests.
func CSRF(csrf *shared.CSRFManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			sess := shared.SessionFromContext(r.Context())
			if err := csrf.VerifyToken(r.Context(), sess, r.Header.Get(shared.CSRFHeader)); err != nil {
				httpx.Forbidden(w, shared.UserSafeMessage(err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
