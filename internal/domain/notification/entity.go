package notification

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Type represents notification type
type Type string

const (
	TypeDeductionSuccess Type = "deduction_success" // daily charge went through
	TypeDeductionFailed  Type = "deduction_failed"  // charge failed, streak reset
	TypeSmartPause       Type = "smart_pause"       // paused for low balance
	TypeAutoResume       Type = "auto_resume"       // balance recovered, resumed
	TypeAutoIncrease     Type = "auto_increase"     // daily amount escalated
	TypeRelayerLow       Type = "relayer_low"       // ops: relayer gas running out
)

// Notification represents a user notification
type Notification struct {
	ID        uuid.UUID      `db:"id" json:"id"`
	UserID    uuid.UUID      `db:"user_id" json:"user_id"`
	Type      Type           `db:"type" json:"type"`
	Title     string         `db:"title" json:"title"`
	Body      sql.NullString `db:"body" json:"body,omitempty"`
	Link      sql.NullString `db:"link" json:"link,omitempty"`
	IsRead    bool           `db:"is_read" json:"is_read"`
	ReadAt    sql.NullTime   `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// DeviceToken represents a push notification device token
type DeviceToken struct {
	ID       uuid.UUID `db:"id" json:"id"`
	UserID   uuid.UUID `db:"user_id" json:"user_id"`
	Token    string    `db:"token" json:"token"`
	Platform string    `db:"platform" json:"platform"` // web, android, ios
	IsActive bool      `db:"is_active" json:"is_active"`
}
