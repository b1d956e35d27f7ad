package access

import (
	"log/slog"
	"net/http"

	"github.com/calibra-qa/calibra/internal/platform/httpx"
	"github.com/calibra-qa/calibra/internal/shared"
)

// DecisionRecorder receives the outcome of middleware-level checks, for
// metrics.
type DecisionRecorder interface {
	PermissionDecision(resource string, allowed bool)
}

// Middleware wires access checks into HTTP handlers. Denies become 403; the
// resolver reason goes to the log, never to the client.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
	Recorder DecisionRecorder
}

// Require guards a route subtree behind a single resource check.
func (m Middleware) Require(resource string, ruleType RuleType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := shared.CallerFromContext(r.Context())
			if caller == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required.")
				return
			}
			result := m.Resolver.Check(r.Context(), caller.Email, caller.Role, resource, ruleType)
			if m.Recorder != nil {
				m.Recorder.PermissionDecision(resource, result.HasAccess)
			}
			if !result.HasAccess {
				if m.Logger != nil {
					m.Logger.Info("access denied",
						slog.String("email", caller.Email),
						slog.String("resource", resource),
						slog.String("rule_type", string(ruleType)),
						slog.String("reason", result.Reason))
				}
				httpx.Forbidden(w, "You do not have access to this resource.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny guards a route subtree; the caller needs at least one of the
// listed resources.
func (m Middleware) RequireAny(resources ...Resource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(resources) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			caller := shared.CallerFromContext(r.Context())
			if caller == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required.")
				return
			}
			if !m.Resolver.HasAny(r.Context(), caller.Email, caller.Role, resources) {
				httpx.Forbidden(w, "You do not have access to this resource.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
