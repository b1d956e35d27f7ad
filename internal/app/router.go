package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/calibra-qa/calibra/internal/access"
	"github.com/calibra-qa/calibra/internal/audits"
	"github.com/calibra-qa/calibra/internal/auth"
	"github.com/calibra-qa/calibra/internal/observability"
	"github.com/calibra-qa/calibra/internal/platform/httpx"
	"github.com/calibra-qa/calibra/internal/schedules"
	"github.com/calibra-qa/calibra/internal/scorecards"
	"github.com/calibra-qa/calibra/internal/shared"
	"github.com/calibra-qa/calibra/internal/users"
)

// Handlers collects the mountable feature handlers.
type Handlers struct {
	Auth       *auth.Handler
	Access     *access.Handler
	Audits     *audits.Handler
	Users      *users.Handler
	Scorecards *scorecards.Handler
	Schedules  *schedules.Handler
}

// NewRouter assembles the HTTP surface.
func NewRouter(cfg Config, logger *slog.Logger, sessions *shared.SessionManager, csrf *shared.CSRFManager, metrics *observability.Metrics, accessMW access.Middleware, handlers Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(httprate.LimitByIP(cfg.RateLimit, cfg.RateLimitWindow))
	r.Use(secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		IsDevelopment:      !cfg.IsProduction(),
	}).Handler)
	r.Use(metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Sessions(sessions, logger))
		r.Use(Authenticate)

		r.Route("/auth", func(r chi.Router) {
			handlers.Auth.MountRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth)
			r.Use(CSRF(csrf))

			r.Route("/access", func(r chi.Router) {
				handlers.Access.MountRoutes(r)
			})
			r.Route("/audits", func(r chi.Router) {
				r.Use(accessMW.Require("audits", access.RuleTypeAPIEndpoint))
				handlers.Audits.MountRoutes(r)
			})
			r.Route("/users", func(r chi.Router) {
				r.Use(accessMW.Require("user-management", access.RuleTypeAPIEndpoint))
				handlers.Users.MountRoutes(r)
			})
			r.Route("/scorecards", func(r chi.Router) {
				r.Use(accessMW.Require("scorecards", access.RuleTypeAPIEndpoint))
				handlers.Scorecards.MountRoutes(r)
			})
			r.Route("/schedules", func(r chi.Router) {
				r.Use(accessMW.Require("audit-schedules", access.RuleTypeAPIEndpoint))
				handlers.Schedules.MountRoutes(r)
			})
		})
	})

	return r
}
