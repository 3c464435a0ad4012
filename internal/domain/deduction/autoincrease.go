package deduction

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stacksave/stacksave-api/internal/domain/subscription"
)

// AutoIncreaseEngine escalates daily amounts on a per-subscription schedule.
// Runs before eligibility filtering so a same-day increase is reflected in
// that day's charge.
type AutoIncreaseEngine struct {
	subs     SubscriptionStore
	notifier Notifier
	now      func() time.Time
}

// NewAutoIncreaseEngine creates the engine
func NewAutoIncreaseEngine(subs SubscriptionStore, notifier Notifier) *AutoIncreaseEngine {
	return &AutoIncreaseEngine{subs: subs, notifier: notifier, now: time.Now}
}

// ShouldApply reports whether the rule's interval has elapsed. The anchor is
// the last application, or the subscription start when the rule has never
// fired. Day granularity is floor division of elapsed time, not calendar-day
// alignment.
func ShouldApply(s *subscription.Subscription, now time.Time) bool {
	anchor := s.StartDate
	if s.AutoIncreaseRule.LastAppliedAt.Valid {
		anchor = s.AutoIncreaseRule.LastAppliedAt.Time
	}
	elapsedDays := int(now.Sub(anchor).Hours() / 24)
	return elapsedDays >= s.AutoIncreaseRule.Interval()
}

// ComputeNewAmount returns the escalated daily amount in cents, clamped to
// the rule's cap when set. Returns the current amount unchanged when the
// subscription is already at cap, which callers treat as a no-op.
func ComputeNewAmount(s *subscription.Subscription) int64 {
	rule := s.AutoIncreaseRule
	current := s.DailyAmount

	var next int64
	switch rule.Type {
	case subscription.IncreaseTypeFixed:
		next = current + subscription.ToCents(rule.Amount)
	case subscription.IncreaseTypePercentage:
		next = int64(math.Floor(float64(current)*(1+rule.Amount/100) + 0.5))
	default:
		return current
	}

	if rule.MaxAmount.Valid && next > rule.MaxAmount.Int64 {
		next = rule.MaxAmount.Int64
	}
	return next
}

// Run applies due increases across all enabled subscriptions and returns the
// number actually escalated. A failure on one subscription never blocks the
// rest.
func (e *AutoIncreaseEngine) Run(ctx context.Context) (int, error) {
	subs, err := e.subs.ListAutoIncreaseEnabled(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list auto-increase subscriptions: %w", err)
	}

	now := e.now()
	increased := 0
	for _, s := range subs {
		if !ShouldApply(s, now) {
			continue
		}

		next := ComputeNewAmount(s)
		if next == s.DailyAmount {
			// Already at cap, nothing to write or announce
			continue
		}

		if err := e.subs.ApplyIncrease(ctx, s.ID, next, now); err != nil {
			log.Error().Err(err).
				Str("wallet", s.WalletAddress).
				Msg("Failed to apply auto-increase")
			continue
		}
		increased++

		log.Info().
			Str("wallet", s.WalletAddress).
			Str("old_amount", subscription.FormatAmount(s.DailyAmount)).
			Str("new_amount", subscription.FormatAmount(next)).
			Msg("Auto-increase applied")

		e.notifier.Notify(ctx, s.UserID, EventAutoIncrease,
			"Daily amount increased",
			fmt.Sprintf("Your daily savings went up from %s to %s as scheduled.",
				subscription.FormatAmount(s.DailyAmount), subscription.FormatAmount(next)),
			"/subscription")
	}

	return increased, nil
}
