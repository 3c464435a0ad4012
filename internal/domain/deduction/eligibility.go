package deduction

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/stacksave/stacksave-api/internal/domain/subscription"
)

// EligibilityFilter produces today's candidate list: active, unpaused, and
// chargeable per the ledger. The 24h-since-last-deduction rule is delegated
// to the ledger rather than recomputed from stored timestamps because the
// chain is authoritative for what has actually been charged.
type EligibilityFilter struct {
	subs   SubscriptionStore
	ledger Ledger
}

// NewEligibilityFilter creates the filter
func NewEligibilityFilter(subs SubscriptionStore, ledger Ledger) *EligibilityFilter {
	return &EligibilityFilter{subs: subs, ledger: ledger}
}

// Candidates returns the subscriptions the ledger will accept a charge for
// today. Read-only: nothing is mutated here. A ledger read error skips that
// wallet for the day rather than failing the run.
func (f *EligibilityFilter) Candidates(ctx context.Context) ([]*subscription.Subscription, error) {
	subs, err := f.subs.ListActiveUnpaused(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active subscriptions: %w", err)
	}

	eligible := make([]*subscription.Subscription, 0, len(subs))
	for _, s := range subs {
		ok, err := f.ledger.CanDeductToday(ctx, s.WalletAddress)
		if err != nil {
			log.Warn().Err(err).
				Str("wallet", s.WalletAddress).
				Msg("Eligibility check failed, skipping wallet for today")
			continue
		}
		if ok {
			eligible = append(eligible, s)
		}
	}
	return eligible, nil
}
