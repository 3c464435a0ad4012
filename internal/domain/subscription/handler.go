package subscription

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/stacksave/stacksave-api/internal/middleware"
	"github.com/stacksave/stacksave-api/internal/pkg/response"
	"github.com/stacksave/stacksave-api/internal/pkg/validator"
)

// Handler handles subscription HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates subscription handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetMe handles GET /subscriptions/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "Missing session")
		return
	}

	sub, err := h.service.GetByUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "No subscription for this account")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, ResponseFromEntity(sub))
}

// Create handles POST /subscriptions
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "Missing session")
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	sub, err := h.service.Create(r.Context(), userID, req.WalletAddress, ToCents(req.DailyAmount))
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyExists):
			response.Conflict(w, "Wallet already has a subscription")
		case errors.Is(err, ErrInvalidAmount):
			response.BadRequest(w, "Daily amount must be positive")
		default:
			log.Error().Err(err).Msg("Failed to create subscription")
			response.InternalError(w)
		}
		return
	}

	response.Created(w, ResponseFromEntity(sub))
}

// Pause handles POST /subscriptions/pause
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	sub, err := h.service.ManualPause(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(w, "No subscription for this account")
		case errors.Is(err, ErrNotActive):
			response.Conflict(w, "Subscription is not active")
		default:
			log.Error().Err(err).Msg("Failed to pause subscription")
			response.InternalError(w)
		}
		return
	}

	response.OK(w, ResponseFromEntity(sub))
}

// Resume handles POST /subscriptions/resume
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	sub, err := h.service.ManualResume(r.Context(), userID)
	if err != nil {
		var shortfall *ShortfallError
		switch {
		case errors.As(err, &shortfall):
			response.ErrorWithDetails(w, http.StatusBadRequest, "INSUFFICIENT_BALANCE",
				"Wallet balance cannot cover the daily amount", map[string]string{
					"balance":  FormatAmount(shortfall.Balance),
					"required": FormatAmount(shortfall.Required),
				})
		case errors.Is(err, ErrNotFound):
			response.NotFound(w, "No subscription for this account")
		case errors.Is(err, ErrNotPaused):
			response.Conflict(w, "Subscription is not paused")
		case errors.Is(err, ErrBalanceUnavailable):
			response.Error(w, http.StatusServiceUnavailable, "BALANCE_UNAVAILABLE",
				"Could not verify wallet balance, try again shortly")
		default:
			log.Error().Err(err).Msg("Failed to resume subscription")
			response.InternalError(w)
		}
		return
	}

	response.OK(w, ResponseFromEntity(sub))
}

// Deactivate handles DELETE /subscriptions
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if err := h.service.Deactivate(r.Context(), userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "No subscription for this account")
			return
		}
		log.Error().Err(err).Msg("Failed to deactivate subscription")
		response.InternalError(w)
		return
	}

	response.NoContent(w)
}

// SetAutoIncrease handles PUT /subscriptions/auto-increase
func (h *Handler) SetAutoIncrease(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req AutoIncreaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	if err := h.service.SetAutoIncreaseRule(r.Context(), userID, req.Rule()); err != nil {
		switch {
		case errors.Is(err, ErrInvalidRule):
			response.ValidationError(w, map[string]string{
				"rule": "Enabled rules need a type and a positive amount",
			})
		case errors.Is(err, ErrNotFound):
			response.NotFound(w, "No subscription for this account")
		default:
			log.Error().Err(err).Msg("Failed to update auto-increase rule")
			response.InternalError(w)
		}
		return
	}

	response.NoContent(w)
}

// SetAutoResume handles PUT /subscriptions/auto-resume
func (h *Handler) SetAutoResume(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req AutoResumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if err := h.service.SetAutoResume(r.Context(), userID, req.Enabled); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "No subscription for this account")
			return
		}
		log.Error().Err(err).Msg("Failed to update auto-resume")
		response.InternalError(w)
		return
	}

	response.NoContent(w)
}
