package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/groupbuy/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса совместных покупок.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			if h.issuer != nil {
				r.Post("/signup", h.Signup)
				r.Post("/login", h.Login)
			}

			r.With(h.authMiddleware.Middleware).Get("/me", h.Me)
		})

		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)
		r.Get("/groups/{productId}", h.GetPool)
		r.Get("/tiers", h.ListTiers)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/products", h.CreateProduct)
			r.Put("/products/{id}", h.UpdateProduct)
			r.Delete("/products/{id}", h.DeleteProduct)

			r.Get("/groups", h.ListPools)
			r.Post("/groups/{productId}/join", h.JoinPool)
			r.Post("/groups/{productId}/leave", h.LeavePool)

			r.Get("/cart", h.GetCart)
			r.Post("/cart", h.ReplaceCart)

			r.Get("/notifications", h.ListNotifications)
			r.Post("/notifications/{id}/read", h.MarkNotificationRead)

			r.Get("/analytics", h.GetAnalytics)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.WriteError(w, http.StatusNotFound, "not_found", "route not found", false)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", false)
	})

	return r
}
