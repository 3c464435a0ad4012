package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// BalanceOracle reads a wallet's current spendable balance in cents
type BalanceOracle interface {
	SpendableBalance(ctx context.Context, wallet string) (int64, error)
}

// Service handles subscription lifecycle triggered from the API surface.
// The scheduled deduction pipeline lives in the deduction package and talks
// to the same Repository.
type Service struct {
	repo   Repository
	oracle BalanceOracle
}

// NewService creates subscription service
func NewService(repo Repository, oracle BalanceOracle) *Service {
	return &Service{repo: repo, oracle: oracle}
}

// Create registers a subscription for a wallet. Called when the on-chain
// subscribe event for the wallet is observed.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, wallet string, dailyAmount int64) (*Subscription, error) {
	if dailyAmount <= 0 {
		return nil, ErrInvalidAmount
	}

	now := time.Now()
	sub := &Subscription{
		ID:                uuid.New(),
		UserID:            userID,
		WalletAddress:     wallet,
		DailyAmount:       dailyAmount,
		IsActive:          true,
		AutoResumeEnabled: true,
		StartDate:         now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// GetByUser returns the user's subscription
func (s *Service) GetByUser(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	return s.repo.GetByUser(ctx, userID)
}

// ManualPause pauses deductions at the user's request. Manual pauses are
// never auto-resumed.
func (s *Service) ManualPause(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	sub, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !sub.IsActive {
		return nil, ErrNotActive
	}

	if err := s.repo.Pause(ctx, sub.ID, PauseReasonManual, time.Now()); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, sub.ID)
}

// ManualResume resumes a paused subscription. The bar is the unbuffered
// daily amount: one day of funding is enough when the user asks explicitly.
// Returns ShortfallError with the figures when the wallet cannot cover it.
func (s *Service) ManualResume(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	sub, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !sub.IsPaused {
		return nil, ErrNotPaused
	}

	balance, err := s.oracle.SpendableBalance(ctx, sub.WalletAddress)
	if err != nil {
		// Manual resume never fails open: the user is waiting for an answer
		return nil, fmt.Errorf("%w: %v", ErrBalanceUnavailable, err)
	}

	if balance < sub.DailyAmount {
		return nil, &ShortfallError{Balance: balance, Required: sub.DailyAmount}
	}

	if err := s.repo.Resume(ctx, sub.ID); err != nil {
		return nil, err
	}

	log.Info().
		Str("wallet", sub.WalletAddress).
		Str("balance", FormatAmount(balance)).
		Msg("Subscription manually resumed")

	return s.repo.GetByID(ctx, sub.ID)
}

// Deactivate soft-deletes the subscription after the on-chain unsubscribe
func (s *Service) Deactivate(ctx context.Context, userID uuid.UUID) error {
	sub, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return err
	}
	return s.repo.SetActive(ctx, sub.ID, false)
}

// SetAutoResume toggles automatic resume for low-balance pauses
func (s *Service) SetAutoResume(ctx context.Context, userID uuid.UUID, enabled bool) error {
	sub, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return err
	}
	return s.repo.SetAutoResume(ctx, sub.ID, enabled)
}

// SetAutoIncreaseRule updates the escalation rule. Invalid rules are
// rejected here, at the write boundary, so the scheduled pass never sees an
// enabled rule without a type or positive amount.
func (s *Service) SetAutoIncreaseRule(ctx context.Context, userID uuid.UUID, rule AutoIncreaseRule) error {
	if rule.Enabled {
		if rule.Type != IncreaseTypeFixed && rule.Type != IncreaseTypePercentage {
			return ErrInvalidRule
		}
		if rule.Amount <= 0 {
			return ErrInvalidRule
		}
		if rule.MaxAmount.Valid && rule.MaxAmount.Int64 <= 0 {
			return ErrInvalidRule
		}
	}

	sub, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return err
	}
	return s.repo.SetAutoIncreaseRule(ctx, sub.ID, rule)
}
