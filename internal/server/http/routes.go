package http

import (
	"net/http"

	"github.com/dmitrijs2005/fileshare/internal/logging"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the file API.
//
// Routes:
//
//	GET    /ping
//	POST   /api/files                 multipart "file" -> descriptor
//	GET    /api/files                 caller's descriptors
//	GET    /api/files/search?q=|tag=  matching ids
//	GET    /api/files/{id}            plaintext content
//	PUT    /api/files/{id}            multipart "file" -> descriptor
//	DELETE /api/files/{id}            descriptor
//	GET    /api/files/{id}/versions   descriptor and version history
//	POST   /api/files/{id}/tags       {"tags": [...]}
//
// Everything under /api requires a bearer token and is rate limited per user.
func NewRouter(h *FileHandler, secret []byte, limiter *RateLimiter, l logging.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(RequestLogging(l.With("module", "http_access")))

	r.Get("/ping", Ping)

	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(secret))
		r.Use(RateLimit(limiter))

		r.Route("/files", func(r chi.Router) {
			r.Post("/", h.Submit)
			r.Get("/", h.List)
			r.Get("/search", h.Search)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Fetch)
				r.Put("/", h.Update)
				r.Delete("/", h.Remove)
				r.Get("/versions", h.Versions)
				r.Post("/tags", h.Tag)
			})
		})
	})

	return r
}
