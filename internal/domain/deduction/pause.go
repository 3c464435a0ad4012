package deduction

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stacksave/stacksave-api/internal/domain/subscription"
)

// PauseController is the smart-pause surface: the pre-charge guard pass that
// protects underfunded wallets from failed charges, and the auto-resume pass
// that lifts low-balance pauses once a wallet holds enough runway.
type PauseController struct {
	subs     SubscriptionStore
	oracle   BalanceOracle
	notifier Notifier
	guard    Guard

	// failOpen lets a wallet through to execution when its balance read
	// errors, so a transient oracle outage does not block healthy savers.
	// When false the wallet is skipped for the day instead. Neither mode
	// ever pauses on an oracle error.
	failOpen bool

	now func() time.Time
}

// NewPauseController creates the controller
func NewPauseController(subs SubscriptionStore, oracle BalanceOracle, notifier Notifier, guard Guard, failOpen bool) *PauseController {
	return &PauseController{
		subs:     subs,
		oracle:   oracle,
		notifier: notifier,
		guard:    guard,
		failOpen: failOpen,
		now:      time.Now,
	}
}

// GuardPass partitions candidates into a process list and a paused count.
// Underfunded wallets are paused LOW_BALANCE with the streak untouched:
// running out of funds is not a missed day. Returns the number of oracle
// read errors so the run summary can surface them.
func (c *PauseController) GuardPass(ctx context.Context, candidates []*subscription.Subscription) (process []*subscription.Subscription, paused, oracleErrors int) {
	process = make([]*subscription.Subscription, 0, len(candidates))

	for _, s := range candidates {
		balance, err := c.oracle.SpendableBalance(ctx, s.WalletAddress)
		if err != nil {
			oracleErrors++
			log.Warn().Err(err).
				Str("wallet", s.WalletAddress).
				Bool("fail_open", c.failOpen).
				Msg("Balance read failed during guard pass")
			if c.failOpen {
				process = append(process, s)
			}
			continue
		}

		d := c.guard.Evaluate(balance, s.DailyAmount)
		if !d.ShouldPause {
			process = append(process, s)
			continue
		}

		if err := c.subs.Pause(ctx, s.ID, subscription.PauseReasonLowBalance, c.now()); err != nil {
			log.Error().Err(err).
				Str("wallet", s.WalletAddress).
				Msg("Failed to pause underfunded subscription")
			continue
		}
		paused++

		log.Info().
			Str("wallet", s.WalletAddress).
			Str("balance", subscription.FormatAmount(d.Balance)).
			Str("required", subscription.FormatAmount(d.Required)).
			Msg("Subscription paused for low balance")

		c.notifier.Notify(ctx, s.UserID, EventSmartPause,
			"Savings paused",
			fmt.Sprintf("Your balance is %s but %s is needed to keep saving. Top up and we will resume automatically.",
				subscription.FormatAmount(d.Balance), subscription.FormatAmount(d.Required)),
			"/subscription")
	}

	return process, paused, oracleErrors
}

// ResumePass lifts low-balance pauses for wallets that now hold the full
// resume runway. The candidate set is snapshotted up front so a wallet
// resumed here is never re-evaluated by a guard pass in the same run.
// Oracle errors skip the wallet; resume never fails open.
func (c *PauseController) ResumePass(ctx context.Context) (int, error) {
	candidates, err := c.subs.ListAutoResumeCandidates(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list auto-resume candidates: %w", err)
	}

	resumed := 0
	for _, s := range candidates {
		balance, err := c.oracle.SpendableBalance(ctx, s.WalletAddress)
		if err != nil {
			log.Warn().Err(err).
				Str("wallet", s.WalletAddress).
				Msg("Balance read failed during resume pass")
			continue
		}

		if !c.guard.CanAutoResume(balance, s.DailyAmount) {
			continue
		}

		if err := c.subs.Resume(ctx, s.ID); err != nil {
			log.Error().Err(err).
				Str("wallet", s.WalletAddress).
				Msg("Failed to resume subscription")
			continue
		}
		resumed++

		log.Info().
			Str("wallet", s.WalletAddress).
			Str("balance", subscription.FormatAmount(balance)).
			Msg("Subscription auto-resumed")

		c.notifier.Notify(ctx, s.UserID, EventAutoResume,
			"Savings resumed",
			fmt.Sprintf("Your balance covers %d days of saving again. Daily deductions are back on.", c.guard.ResumeRunwayDays),
			"/subscription")
	}

	return resumed, nil
}
