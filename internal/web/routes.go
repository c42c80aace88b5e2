package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-recognizer/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	// Create handlers
	facesHandler := handlers.NewFacesHandler(s.store, s.config.RecognitionThreshold, s.config.MaxRequestBodySize, s.logger)
	usersHandler := handlers.NewUsersHandler(s.store, s.logger)

	s.router.Get("/", handlers.Root(s.version))
	s.router.Get("/health", handlers.HealthCheck)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/register", facesHandler.Register)
		r.Post("/recognize", facesHandler.Recognize)

		r.Get("/users", usersHandler.List)
		r.Get("/users/{id}", usersHandler.Get)
		r.Delete("/users/{id}", usersHandler.Delete)
	})
}
