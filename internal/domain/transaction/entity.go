package transaction

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Type represents the kind of ledger movement
type Type string

const (
	TypeDeduction  Type = "deduction"
	TypeDeposit    Type = "deposit"
	TypeWithdrawal Type = "withdrawal"
)

// Status represents the outcome of the attempt
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// FailedTxRef is the sentinel ledger reference recorded when no transaction
// reached the chain
const FailedTxRef = "0x0"

// Transaction is one immutable deduction attempt record. Amounts are in
// cents. Rows are appended exactly once per attempt and never mutated.
type Transaction struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	SubscriptionID uuid.UUID      `db:"subscription_id" json:"subscription_id"`
	UserID         uuid.UUID      `db:"user_id" json:"user_id"`
	Type           Type           `db:"type" json:"type"`
	Amount         int64          `db:"amount" json:"amount"`
	Status         Status         `db:"status" json:"status"`
	TxHash         string         `db:"tx_hash" json:"tx_hash"`
	BlockNumber    int64          `db:"block_number" json:"block_number"`
	ErrorMessage   sql.NullString `db:"error_message" json:"error_message,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}
