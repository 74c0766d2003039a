package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", h.Health.HandleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/pipeline/run", h.RunPipeline)
		r.Post("/ingest", h.Ingest)

		r.Get("/segments", h.GetSegments)
		r.Get("/segments/{segment}/customers", h.GetSegmentCustomers)
		r.Get("/customers/{customerID}", h.GetCustomer)

		r.Get("/export/segments/{segment}", h.ExportSegment)
	})

	return r
}
