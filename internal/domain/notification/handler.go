package notification

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/stacksave/stacksave-api/internal/middleware"
	"github.com/stacksave/stacksave-api/internal/pkg/response"
	"github.com/stacksave/stacksave-api/internal/pkg/validator"
)

// Handler handles notification HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates notification handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterDeviceRequest represents device token registration
type RegisterDeviceRequest struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"required,oneof=web android ios"`
}

// List handles GET /notifications
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	ns, err := h.service.List(r.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list notifications")
		response.InternalError(w)
		return
	}

	response.OK(w, ns)
}

// UnreadCount handles GET /notifications/unread-count
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	count, err := h.service.CountUnread(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to count unread notifications")
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]int{"unread": count})
}

// MarkRead handles POST /notifications/{id}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid notification ID")
		return
	}

	if err := h.service.MarkRead(r.Context(), id, userID); err != nil {
		log.Error().Err(err).Msg("Failed to mark notification read")
		response.InternalError(w)
		return
	}

	response.NoContent(w)
}

// MarkAllRead handles POST /notifications/read-all
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if err := h.service.MarkAllRead(r.Context(), userID); err != nil {
		log.Error().Err(err).Msg("Failed to mark notifications read")
		response.InternalError(w)
		return
	}

	response.NoContent(w)
}

// RegisterDevice handles POST /notifications/devices
func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	if err := h.service.RegisterDevice(r.Context(), userID, req.Token, req.Platform); err != nil {
		log.Error().Err(err).Msg("Failed to register device")
		response.InternalError(w)
		return
	}

	response.NoContent(w)
}

// Routes returns notification routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/", h.List)
	r.Get("/unread-count", h.UnreadCount)
	r.Post("/{id}/read", h.MarkRead)
	r.Post("/read-all", h.MarkAllRead)
	r.Post("/devices", h.RegisterDevice)

	return r
}
