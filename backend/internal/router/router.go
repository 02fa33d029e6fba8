package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/itchan-dev/mediadesk/backend/internal/setup"
	mw "github.com/itchan-dev/mediadesk/shared/middleware"
	"github.com/itchan-dev/mediadesk/shared/middleware/metrics"
	"github.com/itchan-dev/mediadesk/shared/middleware/ratelimiter"
)

// New creates the media server router.
func New(deps *setup.Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware("media"))

	// setup CORS for the browser client
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.Public.Media.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Range"},
		ExposedHeaders: []string{"Content-Length", "Content-Range"},
		MaxAge:         300,
	}))

	// Media CSP: JSON and raw files only
	mediaCSP := "default-src 'none'; media-src 'self'; img-src 'self'; frame-ancestors 'none'"
	r.Use(mw.SecurityHeaders(false, mediaCSP))

	h := deps.Handler
	uploadLimit := mw.RateLimit(ratelimiter.PerMinute(60), mw.GetIP)
	chatLimit := mw.RateLimit(ratelimiter.PerMinute(30), mw.GetIP)

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/media", h.Media)
		r.With(uploadLimit).Post("/upload", h.Upload)
		r.With(uploadLimit).Post("/upload/temp", h.UploadTemp)

		for _, bucket := range []string{"videos", "photos", "audio", "temp", "thumbnails"} {
			r.Get("/"+bucket+"/{filename}", h.ServeFile(bucket))
		}
		r.Delete("/temp/{filename}", h.DeleteTemp)
		r.Delete("/temp", h.ClearTemp)

		r.With(chatLimit).Post("/chat", h.SendChat)
		r.Get("/chat", h.ChatHistory)
		r.Get("/chat/response", h.ChatResponse)
	})

	return r
}
