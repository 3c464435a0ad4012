package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/stacksave/stacksave-api/internal/middleware"
	"github.com/stacksave/stacksave-api/internal/pkg/response"
	"github.com/stacksave/stacksave-api/internal/pkg/validator"
)

// Handler handles authentication HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates auth handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Challenge handles POST /auth/challenge
func (h *Handler) Challenge(w http.ResponseWriter, r *http.Request) {
	var req ChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	message, err := h.service.Challenge(r.Context(), req.WalletAddress)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue challenge")
		response.InternalError(w)
		return
	}

	response.OK(w, ChallengeResponse{Message: message})
}

// Verify handles POST /auth/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	user, token, err := h.service.Verify(r.Context(), req.WalletAddress, req.Signature)
	if err != nil {
		switch {
		case errors.Is(err, ErrChallengeNotFound):
			response.Unauthorized(w, "Challenge not found or expired, request a new one")
		case errors.Is(err, ErrInvalidSignature):
			response.Unauthorized(w, "Signature does not match wallet")
		default:
			log.Error().Err(err).Msg("Failed to verify signature")
			response.InternalError(w)
		}
		return
	}

	response.OK(w, VerifyResponse{AccessToken: token, User: user})
}

// Me handles GET /auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			response.NotFound(w, "User not found")
			return
		}
		log.Error().Err(err).Msg("Failed to load user")
		response.InternalError(w)
		return
	}

	response.OK(w, user)
}

// Routes returns auth routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/challenge", h.Challenge)
	r.Post("/verify", h.Verify)

	r.Group(func(pr chi.Router) {
		pr.Use(authMiddleware)
		pr.Get("/me", h.Me)
	})

	return r
}
