package deduction

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stacksave/stacksave-api/internal/domain/subscription"
	"github.com/stacksave/stacksave-api/internal/domain/transaction"
)

// SubscriptionStore is the slice of subscription persistence the deduction
// pipeline needs. subscription.Repository satisfies it.
type SubscriptionStore interface {
	ListActiveUnpaused(ctx context.Context) ([]*subscription.Subscription, error)
	ListAutoIncreaseEnabled(ctx context.Context) ([]*subscription.Subscription, error)
	ListAutoResumeCandidates(ctx context.Context) ([]*subscription.Subscription, error)

	Pause(ctx context.Context, id uuid.UUID, reason subscription.PauseReason, at time.Time) error
	Resume(ctx context.Context, id uuid.UUID) error
	ApplyIncrease(ctx context.Context, id uuid.UUID, newAmount int64, at time.Time) error

	RecordDeduction(ctx context.Context, id uuid.UUID, streak subscription.Streak, last, next time.Time) error
	RecordFailure(ctx context.Context, id uuid.UUID, streak subscription.Streak) error
}

// TransactionStore appends immutable deduction attempt records
type TransactionStore interface {
	Append(ctx context.Context, tx *transaction.Transaction) error
}

// Ledger is the authoritative on-chain execution surface. Batch calls are
// all-or-nothing: a batch either lands for every wallet or for none.
type Ledger interface {
	CanDeductToday(ctx context.Context, wallet string) (bool, error)
	ExecuteOne(ctx context.Context, wallet string) (txHash string, block uint64, err error)
	ExecuteBatch(ctx context.Context, wallets []string) (txHash string, block uint64, err error)
}

// BalanceOracle reads a wallet's spendable balance in cents
type BalanceOracle interface {
	SpendableBalance(ctx context.Context, wallet string) (int64, error)
}

// Notifier delivers user-facing messages. Best-effort: implementations
// swallow their own errors, the pipeline never checks delivery.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, event, title, body, link string)
}

// Notification event names handed to the Notifier
const (
	EventDeductionSuccess = "deduction_success"
	EventDeductionFailed  = "deduction_failed"
	EventSmartPause       = "smart_pause"
	EventAutoResume       = "auto_resume"
	EventAutoIncrease     = "auto_increase"
)

// RunLock guards scheduled entry points against overlapping runs.
// lock.Lease satisfies it.
type RunLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, string, error)
	Release(ctx context.Context, key, holder string) error
}
