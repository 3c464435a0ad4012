package subscription

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Repository defines subscription data access. Every mutation is an atomic
// single-record update so that manual pause/resume from the API can race
// with the scheduled checks without read-modify-write hazards.
type Repository interface {
	Create(ctx context.Context, s *Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	GetByWallet(ctx context.Context, wallet string) (*Subscription, error)
	GetByUser(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	ListActiveUnpaused(ctx context.Context) ([]*Subscription, error)
	ListAutoIncreaseEnabled(ctx context.Context) ([]*Subscription, error)
	ListAutoResumeCandidates(ctx context.Context) ([]*Subscription, error)

	Pause(ctx context.Context, id uuid.UUID, reason PauseReason, at time.Time) error
	Resume(ctx context.Context, id uuid.UUID) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	SetAutoResume(ctx context.Context, id uuid.UUID, enabled bool) error
	SetAutoIncreaseRule(ctx context.Context, id uuid.UUID, rule AutoIncreaseRule) error
	ApplyIncrease(ctx context.Context, id uuid.UUID, newAmount int64, at time.Time) error

	RecordDeduction(ctx context.Context, id uuid.UUID, streak Streak, last, next time.Time) error
	RecordFailure(ctx context.Context, id uuid.UUID, streak Streak) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates subscription repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, s *Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id, user_id, wallet_address, daily_amount, is_active, is_paused,
			auto_resume_enabled, current_streak, best_streak,
			auto_increase_enabled, auto_increase_type, auto_increase_amount,
			auto_increase_interval_days, auto_increase_max_amount,
			start_date, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`
	var incType interface{}
	if s.AutoIncreaseRule.Type != "" {
		incType = string(s.AutoIncreaseRule.Type)
	}

	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.UserID, s.WalletAddress, s.DailyAmount, s.IsActive, s.IsPaused,
		s.AutoResumeEnabled, s.Streak.Current, s.Streak.Best,
		s.AutoIncreaseRule.Enabled, incType, s.AutoIncreaseRule.Amount,
		s.AutoIncreaseRule.IntervalDays, s.AutoIncreaseRule.MaxAmount,
		s.StartDate, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *repository) get(ctx context.Context, where string, arg interface{}) (*Subscription, error) {
	var s Subscription
	err := r.db.GetContext(ctx, &s, `SELECT * FROM subscriptions WHERE `+where, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	return r.get(ctx, `id = $1`, id)
}

func (r *repository) GetByWallet(ctx context.Context, wallet string) (*Subscription, error) {
	return r.get(ctx, `LOWER(wallet_address) = LOWER($1)`, wallet)
}

func (r *repository) GetByUser(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	return r.get(ctx, `user_id = $1`, userID)
}

func (r *repository) ListActiveUnpaused(ctx context.Context) ([]*Subscription, error) {
	var subs []*Subscription
	err := r.db.SelectContext(ctx, &subs, `
		SELECT * FROM subscriptions
		WHERE is_active AND NOT is_paused
		ORDER BY created_at
	`)
	return subs, err
}

func (r *repository) ListAutoIncreaseEnabled(ctx context.Context) ([]*Subscription, error) {
	var subs []*Subscription
	err := r.db.SelectContext(ctx, &subs, `
		SELECT * FROM subscriptions
		WHERE is_active AND NOT is_paused AND auto_increase_enabled
		ORDER BY created_at
	`)
	return subs, err
}

func (r *repository) ListAutoResumeCandidates(ctx context.Context) ([]*Subscription, error) {
	var subs []*Subscription
	err := r.db.SelectContext(ctx, &subs, `
		SELECT * FROM subscriptions
		WHERE is_active AND is_paused
		  AND pause_reason = $1
		  AND auto_resume_enabled
		ORDER BY paused_at
	`, string(PauseReasonLowBalance))
	return subs, err
}

func (r *repository) Pause(ctx context.Context, id uuid.UUID, reason PauseReason, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET is_paused = true, pause_reason = $2, paused_at = $3, updated_at = now()
		WHERE id = $1
	`, id, string(reason), at)
	return err
}

func (r *repository) Resume(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET is_paused = false, pause_reason = NULL, paused_at = NULL, updated_at = now()
		WHERE id = $1
	`, id)
	return err
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions SET is_active = $2, updated_at = now() WHERE id = $1
	`, id, active)
	return err
}

func (r *repository) SetAutoResume(ctx context.Context, id uuid.UUID, enabled bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions SET auto_resume_enabled = $2, updated_at = now() WHERE id = $1
	`, id, enabled)
	return err
}

func (r *repository) SetAutoIncreaseRule(ctx context.Context, id uuid.UUID, rule AutoIncreaseRule) error {
	var incType interface{}
	if rule.Type != "" {
		incType = string(rule.Type)
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET auto_increase_enabled = $2,
		    auto_increase_type = $3,
		    auto_increase_amount = $4,
		    auto_increase_interval_days = $5,
		    auto_increase_max_amount = $6,
		    updated_at = now()
		WHERE id = $1
	`, id, rule.Enabled, incType, rule.Amount, rule.IntervalDays, rule.MaxAmount)
	return err
}

func (r *repository) ApplyIncrease(ctx context.Context, id uuid.UUID, newAmount int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET daily_amount = $2, auto_increase_last_applied_at = $3, updated_at = now()
		WHERE id = $1
	`, id, newAmount, at)
	return err
}

func (r *repository) RecordDeduction(ctx context.Context, id uuid.UUID, streak Streak, last, next time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET current_streak = $2,
		    best_streak = GREATEST(best_streak, $3),
		    last_deduction = $4,
		    next_deduction = $5,
		    updated_at = now()
		WHERE id = $1
	`, id, streak.Current, streak.Best, last, next)
	return err
}

func (r *repository) RecordFailure(ctx context.Context, id uuid.UUID, streak Streak) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET current_streak = $2,
		    best_streak = GREATEST(best_streak, $3),
		    updated_at = now()
		WHERE id = $1
	`, id, streak.Current, streak.Best)
	return err
}
