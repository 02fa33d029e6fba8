package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/itchan-dev/mediadesk/frontend/internal/session"
	"github.com/itchan-dev/mediadesk/frontend/internal/setup"
	mw "github.com/itchan-dev/mediadesk/shared/middleware"
	"github.com/itchan-dev/mediadesk/shared/middleware/metrics"
	"github.com/itchan-dev/mediadesk/shared/middleware/ratelimiter"
)

const uiCSP = "default-src 'self'; img-src 'self' data: blob:; media-src 'self' blob:; connect-src 'self' ws: wss:; frame-ancestors 'none'"

func New(deps *setup.Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware("ui"))
	r.Use(mw.SecurityHeaders(deps.Public.UI.SecureCookies, uiCSP))

	h := deps.Handler
	commandLimit := mw.RateLimit(ratelimiter.PerMinute(30), mw.CookieOrIP(session.CookieName))

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/session", func(r chi.Router) {
		r.With(commandLimit).Post("/commands", h.SendCommand)
		r.Get("/transcript", h.Transcript)
		r.Get("/preview", h.GetPreview)
		r.Put("/preview", h.PutPreview)
		r.Get("/catalog", h.Catalog)
		r.Get("/events", h.Events)
		r.Delete("/", h.DeleteSession)
	})

	return r
}
