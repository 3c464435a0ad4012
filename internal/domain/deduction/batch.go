package deduction

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/stacksave/stacksave-api/internal/domain/subscription"
	"github.com/stacksave/stacksave-api/internal/domain/transaction"
)

// BatchEngine drives the ledger in fixed-size groups. Each group is tried as
// a single batch call first; if the batch reverts, every member is retried
// individually so one bad wallet cannot take down its groupmates.
type BatchEngine struct {
	subs     SubscriptionStore
	txs      TransactionStore
	ledger   Ledger
	notifier Notifier

	batchSize int
	delay     time.Duration

	sleep func(time.Duration)
	now   func() time.Time
}

// NewBatchEngine creates the engine
func NewBatchEngine(subs SubscriptionStore, txs TransactionStore, ledger Ledger, notifier Notifier, batchSize int, delay time.Duration) *BatchEngine {
	if batchSize < 1 {
		batchSize = 1
	}
	return &BatchEngine{
		subs:      subs,
		txs:       txs,
		ledger:    ledger,
		notifier:  notifier,
		batchSize: batchSize,
		delay:     delay,
		sleep:     time.Sleep,
		now:       time.Now,
	}
}

// Run charges every subscription in the process list, group by group, and
// returns confirmed and failed counts. Groups run sequentially with a fixed
// delay between them to go easy on the RPC provider. Store write failures
// are logged per subscription and never abort the rest of the run.
func (e *BatchEngine) Run(ctx context.Context, list []*subscription.Subscription) (processed, failed int) {
	for start := 0; start < len(list); start += e.batchSize {
		if start > 0 {
			e.sleep(e.delay)
		}

		end := start + e.batchSize
		if end > len(list) {
			end = len(list)
		}
		group := list[start:end]

		wallets := make([]string, len(group))
		for i, s := range group {
			wallets[i] = s.WalletAddress
		}

		txHash, block, err := e.ledger.ExecuteBatch(ctx, wallets)
		if err == nil {
			for _, s := range group {
				e.confirm(ctx, s, txHash, block)
			}
			processed += len(group)
			continue
		}

		log.Warn().Err(err).
			Int("group_size", len(group)).
			Msg("Batch execution failed, falling back to individual charges")

		for _, s := range group {
			txHash, block, err := e.ledger.ExecuteOne(ctx, s.WalletAddress)
			if err != nil {
				e.fail(ctx, s, err)
				failed++
				continue
			}
			e.confirm(ctx, s, txHash, block)
			processed++
		}
	}

	return processed, failed
}

func (e *BatchEngine) confirm(ctx context.Context, s *subscription.Subscription, txHash string, block uint64) {
	now := e.now()

	streak := s.Streak
	streak.Record(true)

	if err := e.txs.Append(ctx, &transaction.Transaction{
		ID:             uuid.New(),
		SubscriptionID: s.ID,
		UserID:         s.UserID,
		Type:           transaction.TypeDeduction,
		Amount:         s.DailyAmount,
		Status:         transaction.StatusConfirmed,
		TxHash:         txHash,
		BlockNumber:    int64(block),
		CreatedAt:      now,
	}); err != nil {
		log.Error().Err(err).Str("wallet", s.WalletAddress).Msg("Failed to record confirmed transaction")
	}

	if err := e.subs.RecordDeduction(ctx, s.ID, streak, now, now.Add(24*time.Hour)); err != nil {
		log.Error().Err(err).Str("wallet", s.WalletAddress).Msg("Failed to record deduction on subscription")
	}

	log.Info().
		Str("wallet", s.WalletAddress).
		Str("amount", subscription.FormatAmount(s.DailyAmount)).
		Str("tx_hash", txHash).
		Int("streak", streak.Current).
		Msg("Deduction confirmed")

	body := fmt.Sprintf("Saved %s today.", subscription.FormatAmount(s.DailyAmount))
	if streak.Current > 1 {
		body = fmt.Sprintf("Saved %s today. That makes %d days in a row!",
			subscription.FormatAmount(s.DailyAmount), streak.Current)
	}
	e.notifier.Notify(ctx, s.UserID, EventDeductionSuccess, "Daily savings deducted", body, "/transactions")
}

func (e *BatchEngine) fail(ctx context.Context, s *subscription.Subscription, cause error) {
	now := e.now()

	streak := s.Streak
	streak.Record(false)

	if err := e.txs.Append(ctx, &transaction.Transaction{
		ID:             uuid.New(),
		SubscriptionID: s.ID,
		UserID:         s.UserID,
		Type:           transaction.TypeDeduction,
		Amount:         s.DailyAmount,
		Status:         transaction.StatusFailed,
		TxHash:         transaction.FailedTxRef,
		ErrorMessage:   sql.NullString{String: cause.Error(), Valid: true},
		CreatedAt:      now,
	}); err != nil {
		log.Error().Err(err).Str("wallet", s.WalletAddress).Msg("Failed to record failed transaction")
	}

	if err := e.subs.RecordFailure(ctx, s.ID, streak); err != nil {
		log.Error().Err(err).Str("wallet", s.WalletAddress).Msg("Failed to record failure on subscription")
	}

	log.Warn().Err(cause).
		Str("wallet", s.WalletAddress).
		Str("amount", subscription.FormatAmount(s.DailyAmount)).
		Msg("Deduction failed")

	e.notifier.Notify(ctx, s.UserID, EventDeductionFailed,
		"Daily deduction failed",
		fmt.Sprintf("We could not deduct %s today and your streak was reset. The charge will be retried tomorrow.",
			subscription.FormatAmount(s.DailyAmount)),
		"/transactions")
}
