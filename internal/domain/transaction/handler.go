package transaction

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/stacksave/stacksave-api/internal/domain/subscription"
	"github.com/stacksave/stacksave-api/internal/middleware"
	"github.com/stacksave/stacksave-api/internal/pkg/response"
)

// Handler handles transaction history HTTP requests
type Handler struct {
	repo Repository
}

// NewHandler creates transaction handler
func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// Item represents a transaction in the API
type Item struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Amount       string    `json:"amount"`
	Status       string    `json:"status"`
	TxHash       string    `json:"tx_hash"`
	BlockNumber  int64     `json:"block_number,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// List handles GET /transactions
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
	offset := (page - 1) * limit

	txs, err := h.repo.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list transactions")
		response.InternalError(w)
		return
	}

	total, err := h.repo.CountByUser(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to count transactions")
		response.InternalError(w)
		return
	}

	items := make([]*Item, len(txs))
	for i, tx := range txs {
		item := &Item{
			ID:          tx.ID.String(),
			Type:        string(tx.Type),
			Amount:      subscription.FormatAmount(tx.Amount),
			Status:      string(tx.Status),
			TxHash:      tx.TxHash,
			BlockNumber: tx.BlockNumber,
			CreatedAt:   tx.CreatedAt,
		}
		if tx.ErrorMessage.Valid {
			item.ErrorMessage = tx.ErrorMessage.String
		}
		items[i] = item
	}

	response.WithMeta(w, items, response.Meta{
		Total:   total,
		Page:    page,
		Limit:   limit,
		HasNext: offset+len(items) < total,
	})
}

// Routes returns transaction routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/", h.List)
	return r
}
