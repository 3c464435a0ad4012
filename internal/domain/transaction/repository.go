package transaction

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines transaction data access. The table is append-only:
// there are no update methods on purpose.
type Repository interface {
	Append(ctx context.Context, tx *Transaction) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Transaction, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates transaction repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Append(ctx context.Context, tx *Transaction) error {
	query := `
		INSERT INTO transactions (
			id, subscription_id, user_id, type, amount, status,
			tx_hash, block_number, error_message, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`
	_, err := r.db.ExecContext(ctx, query,
		tx.ID, tx.SubscriptionID, tx.UserID, string(tx.Type), tx.Amount,
		string(tx.Status), tx.TxHash, tx.BlockNumber, tx.ErrorMessage, tx.CreatedAt,
	)
	return err
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Transaction, error) {
	var txs []*Transaction
	err := r.db.SelectContext(ctx, &txs, `
		SELECT * FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return txs, err
}

func (r *repository) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM transactions WHERE user_id = $1`, userID)
	return count, err
}
