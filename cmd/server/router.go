package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/formsense/formsense-api/internal/api"
	apiMiddleware "github.com/formsense/formsense-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	extractHandler := api.NewExtractHandler(app.scheduler, app.limiter, app.logger)
	taskHandler := api.NewTaskHandler(app.scheduler, app.logger)
	webhookHandler := api.NewWebhookHandler(app.webhookProcessor, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		// Billing provider callbacks authenticate out of band
		r.Post("/webhooks/paddle", webhookHandler.HandlePaddleWebhook)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Post("/extract", extractHandler.SubmitBatch)
			r.Get("/tasks/{taskID}", taskHandler.GetTask)
		})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("OK"))
		if err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
