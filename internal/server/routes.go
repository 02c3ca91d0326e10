package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JCampos05/Backend-Taskeer/internal/components/api"
	"github.com/JCampos05/Backend-Taskeer/internal/components/identity"
)

// routes assembles the router. All endpoints live under an optional
// base path followed by /api.
func (s *Server) routes(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Route(s.cfg.BasePath+"/api", func(r chi.Router) {
		r.Get("/healthz", api.HealthHandler)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", deps.Identity.HandleRegister)
			r.Post("/login", deps.Identity.HandleLogin)
			r.Post("/logout", deps.Identity.HandleLogout)
		})

		r.Group(func(r chi.Router) {
			r.Use(identity.Middleware(deps.Sessions))
			deps.Sharing.Routes(r)
			deps.Notifications.Routes(r)
		})
	})

	return r
}
