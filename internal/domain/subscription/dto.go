package subscription

import (
	"database/sql"
	"math"
	"time"
)

// CreateRequest for POST /subscriptions
type CreateRequest struct {
	WalletAddress string  `json:"wallet_address" validate:"required,evm_address"`
	DailyAmount   float64 `json:"daily_amount" validate:"required,gt=0"`
}

// AutoIncreaseRequest for PUT /subscriptions/auto-increase
type AutoIncreaseRequest struct {
	Enabled      bool    `json:"enabled"`
	Type         string  `json:"type" validate:"omitempty,increase_type"`
	Amount       float64 `json:"amount" validate:"omitempty,gt=0"`
	IntervalDays int     `json:"interval_days" validate:"omitempty,gte=1,lte=365"`
	MaxAmount    float64 `json:"max_amount" validate:"omitempty,gt=0"`
}

// AutoResumeRequest for PUT /subscriptions/auto-resume
type AutoResumeRequest struct {
	Enabled bool `json:"enabled"`
}

// Rule converts the request into the stored rule
func (r *AutoIncreaseRequest) Rule() AutoIncreaseRule {
	rule := AutoIncreaseRule{
		Enabled:      r.Enabled,
		Type:         IncreaseType(r.Type),
		Amount:       r.Amount,
		IntervalDays: r.IntervalDays,
	}
	if r.MaxAmount > 0 {
		rule.MaxAmount = sql.NullInt64{Int64: ToCents(r.MaxAmount), Valid: true}
	}
	return rule
}

// ToCents converts a decimal currency amount to cents, rounding half-up
func ToCents(amount float64) int64 {
	return int64(math.Floor(amount*100 + 0.5))
}

// Response represents a subscription in the API
type Response struct {
	ID                string     `json:"id"`
	WalletAddress     string     `json:"wallet_address"`
	DailyAmount       string     `json:"daily_amount"`
	IsActive          bool       `json:"is_active"`
	IsPaused          bool       `json:"is_paused"`
	PauseReason       string     `json:"pause_reason,omitempty"`
	PausedAt          *time.Time `json:"paused_at,omitempty"`
	AutoResumeEnabled bool       `json:"auto_resume_enabled"`
	CurrentStreak     int        `json:"current_streak"`
	BestStreak        int        `json:"best_streak"`
	StartDate         time.Time  `json:"start_date"`
	LastDeduction     *time.Time `json:"last_deduction,omitempty"`
	NextDeduction     *time.Time `json:"next_deduction,omitempty"`
	AutoIncrease      *RuleDTO   `json:"auto_increase,omitempty"`
}

// RuleDTO represents the auto-increase rule in the API
type RuleDTO struct {
	Enabled       bool       `json:"enabled"`
	Type          string     `json:"type,omitempty"`
	Amount        float64    `json:"amount,omitempty"`
	IntervalDays  int        `json:"interval_days"`
	MaxAmount     string     `json:"max_amount,omitempty"`
	LastAppliedAt *time.Time `json:"last_applied_at,omitempty"`
}

// ResponseFromEntity converts a subscription to its API shape
func ResponseFromEntity(s *Subscription) *Response {
	resp := &Response{
		ID:                s.ID.String(),
		WalletAddress:     s.WalletAddress,
		DailyAmount:       FormatAmount(s.DailyAmount),
		IsActive:          s.IsActive,
		IsPaused:          s.IsPaused,
		AutoResumeEnabled: s.AutoResumeEnabled,
		CurrentStreak:     s.Streak.Current,
		BestStreak:        s.Streak.Best,
		StartDate:         s.StartDate,
	}

	if s.PauseReason.Valid {
		resp.PauseReason = s.PauseReason.String
	}
	if s.PausedAt.Valid {
		resp.PausedAt = &s.PausedAt.Time
	}
	if s.LastDeduction.Valid {
		resp.LastDeduction = &s.LastDeduction.Time
	}
	if s.NextDeduction.Valid {
		resp.NextDeduction = &s.NextDeduction.Time
	}

	if s.AutoIncreaseRule.Enabled {
		rule := &RuleDTO{
			Enabled:      true,
			Type:         string(s.AutoIncreaseRule.Type),
			Amount:       s.AutoIncreaseRule.Amount,
			IntervalDays: s.AutoIncreaseRule.Interval(),
		}
		if s.AutoIncreaseRule.MaxAmount.Valid {
			rule.MaxAmount = FormatAmount(s.AutoIncreaseRule.MaxAmount.Int64)
		}
		if s.AutoIncreaseRule.LastAppliedAt.Valid {
			rule.LastAppliedAt = &s.AutoIncreaseRule.LastAppliedAt.Time
		}
		resp.AutoIncrease = rule
	}

	return resp
}
