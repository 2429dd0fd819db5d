package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Org-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Route("/testing-lab", func(r chi.Router) {
			r.Post("/evaluate-dry-run", h.HandleEvaluateDryRun)
			r.Post("/inject-event", h.HandleInjectEvent)
			r.Post("/simulate-time", h.HandleSimulateTime)
			r.Post("/reset", h.HandleLabReset)
		})

		r.Route("/playbooks", func(r chi.Router) {
			r.Get("/", h.HandleListPlaybooks)
			r.Post("/", h.HandleCreatePlaybook)
			r.Route("/{playbookId}", func(r chi.Router) {
				r.Get("/", h.HandleGetPlaybook)
				r.Put("/", h.HandleUpdatePlaybook)
				r.Delete("/", h.HandleDeletePlaybook)
			})
		})
	})

	return r
}
