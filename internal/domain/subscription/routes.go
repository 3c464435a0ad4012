package subscription

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns subscription routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/me", h.GetMe)
	r.Post("/", h.Create)
	r.Delete("/", h.Deactivate)
	r.Post("/pause", h.Pause)
	r.Post("/resume", h.Resume)
	r.Put("/auto-increase", h.SetAutoIncrease)
	r.Put("/auto-resume", h.SetAutoResume)

	return r
}
