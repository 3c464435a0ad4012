package auth

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account keyed by its wallet address. Accounts are
// created implicitly on first successful signature verification.
type User struct {
	ID            uuid.UUID `db:"id" json:"id"`
	WalletAddress string    `db:"wallet_address" json:"wallet_address"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	LastLoginAt   time.Time `db:"last_login_at" json:"last_login_at"`
}
