package subscription

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PauseReason explains why a subscription is paused
type PauseReason string

const (
	PauseReasonLowBalance PauseReason = "low_balance"
	PauseReasonManual     PauseReason = "manual"
)

// IncreaseType represents the auto-increase escalation mode
type IncreaseType string

const (
	IncreaseTypeFixed      IncreaseType = "fixed"
	IncreaseTypePercentage IncreaseType = "percentage"
)

// DefaultIncreaseIntervalDays is used when a rule has no interval set
const DefaultIncreaseIntervalDays = 30

// Streak tracks consecutive successful daily deductions. All mutation goes
// through Record, which keeps Best >= Current.
type Streak struct {
	Current int `db:"current_streak" json:"current"`
	Best    int `db:"best_streak" json:"best"`
}

// Record applies one deduction outcome. A failed deduction resets the
// current streak; the best streak is never reduced. Pausing is not an
// outcome and must not call Record.
func (s *Streak) Record(success bool) {
	if !success {
		s.Current = 0
		return
	}
	s.Current++
	if s.Current > s.Best {
		s.Best = s.Current
	}
}

// AutoIncreaseRule is the scheduled escalation of a subscription's daily
// amount. Amount is in currency units for fixed increases and percentage
// points for percentage increases. MaxAmount is in cents.
type AutoIncreaseRule struct {
	Enabled       bool          `db:"auto_increase_enabled" json:"enabled"`
	Type          IncreaseType  `db:"auto_increase_type" json:"type,omitempty"`
	Amount        float64       `db:"auto_increase_amount" json:"amount,omitempty"`
	IntervalDays  int           `db:"auto_increase_interval_days" json:"interval_days,omitempty"`
	MaxAmount     sql.NullInt64 `db:"auto_increase_max_amount" json:"max_amount,omitempty"`
	LastAppliedAt sql.NullTime  `db:"auto_increase_last_applied_at" json:"last_applied_at,omitempty"`
}

// Interval returns the effective escalation interval
func (r AutoIncreaseRule) Interval() int {
	if r.IntervalDays <= 0 {
		return DefaultIncreaseIntervalDays
	}
	return r.IntervalDays
}

// Subscription is one wallet's recurring daily-deduction configuration and
// state. Monetary amounts are stored in cents. isPaused and isActive are
// independent axes: only active and unpaused subscriptions are ever charged.
type Subscription struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	UserID        uuid.UUID      `db:"user_id" json:"user_id"`
	WalletAddress string         `db:"wallet_address" json:"wallet_address"`
	DailyAmount   int64          `db:"daily_amount" json:"daily_amount"`
	IsActive      bool           `db:"is_active" json:"is_active"`
	IsPaused      bool           `db:"is_paused" json:"is_paused"`
	PauseReason   sql.NullString `db:"pause_reason" json:"pause_reason,omitempty"`
	PausedAt      sql.NullTime   `db:"paused_at" json:"paused_at,omitempty"`

	AutoResumeEnabled bool `db:"auto_resume_enabled" json:"auto_resume_enabled"`

	Streak
	AutoIncreaseRule

	StartDate     time.Time    `db:"start_date" json:"start_date"`
	LastDeduction sql.NullTime `db:"last_deduction" json:"last_deduction,omitempty"`
	NextDeduction sql.NullTime `db:"next_deduction" json:"next_deduction,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Chargeable reports whether the subscription may be charged at all
func (s *Subscription) Chargeable() bool {
	return s.IsActive && !s.IsPaused
}

// PausedForLowBalance reports whether the smart-pause guard paused this
// subscription
func (s *Subscription) PausedForLowBalance() bool {
	return s.IsPaused && s.PauseReason.Valid && PauseReason(s.PauseReason.String) == PauseReasonLowBalance
}

// FormatAmount renders cents as a decimal string for user-facing messages
func FormatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
