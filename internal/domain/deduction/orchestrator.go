package deduction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrRunInProgress is returned when another run holds the lease
var ErrRunInProgress = errors.New("a run is already in progress")

// Lease keys for the scheduled entry points
const (
	leaseDailyRun     = "deduction:lease:daily"
	leaseResumeCheck  = "deduction:lease:auto_resume"
	leaseIncreasePass = "deduction:lease:auto_increase"
)

// Summary is the outcome of one daily run
type Summary struct {
	Processed    int `json:"processed"`
	Failed       int `json:"failed"`
	Paused       int `json:"paused"`
	Increased    int `json:"increased"`
	OracleErrors int `json:"oracle_errors"`
}

// Config tunes the deduction pipeline
type Config struct {
	BatchSize        int
	BatchDelay       time.Duration
	BufferPercent    int64
	ResumeRunwayDays int64
	OracleFailOpen   bool
	LeaseTTL         time.Duration
}

// Orchestrator sequences the daily pipeline: auto-increase, eligibility,
// guard pass, batch execution. Auto-resume and the increase pass are also
// exposed as independent leased entry points so they can run on their own
// cadence. Every entry point takes a Redis lease first; an overlapping
// trigger finds the lease held and backs off instead of double-charging.
type Orchestrator struct {
	increaser *AutoIncreaseEngine
	filter    *EligibilityFilter
	pauser    *PauseController
	engine    *BatchEngine

	lock     RunLock
	runs     RunStore
	leaseTTL time.Duration

	now func() time.Time
}

// NewOrchestrator wires the pipeline from its ports. runs may be nil when
// run history persistence is not wanted.
func NewOrchestrator(subs SubscriptionStore, txs TransactionStore, ledger Ledger, oracle BalanceOracle, notifier Notifier, lock RunLock, runs RunStore, cfg Config) *Orchestrator {
	guard := Guard{
		BufferPercent:    cfg.BufferPercent,
		ResumeRunwayDays: cfg.ResumeRunwayDays,
	}
	return &Orchestrator{
		increaser: NewAutoIncreaseEngine(subs, notifier),
		filter:    NewEligibilityFilter(subs, ledger),
		pauser:    NewPauseController(subs, oracle, notifier, guard, cfg.OracleFailOpen),
		engine:    NewBatchEngine(subs, txs, ledger, notifier, cfg.BatchSize, cfg.BatchDelay),
		lock:      lock,
		runs:      runs,
		leaseTTL:  cfg.LeaseTTL,
		now:       time.Now,
	}
}

// RunDailyDeduction executes one full daily pass and returns its summary.
// Returns ErrRunInProgress if a previous daily run still holds the lease.
func (o *Orchestrator) RunDailyDeduction(ctx context.Context) (*Summary, error) {
	release, err := o.acquire(ctx, leaseDailyRun)
	if err != nil {
		return nil, err
	}
	defer release()

	started := o.now()
	summary := &Summary{}

	increased, err := o.increaser.Run(ctx)
	if err != nil {
		// The daily charge still matters even when the increase pass
		// cannot list its candidates
		log.Error().Err(err).Msg("Auto-increase pass failed")
	}
	summary.Increased = increased

	candidates, err := o.filter.Candidates(ctx)
	if err != nil {
		return summary, fmt.Errorf("eligibility pass failed: %w", err)
	}

	process, paused, oracleErrors := o.pauser.GuardPass(ctx, candidates)
	summary.Paused = paused
	summary.OracleErrors = oracleErrors

	summary.Processed, summary.Failed = o.engine.Run(ctx, process)

	log.Info().
		Int("processed", summary.Processed).
		Int("failed", summary.Failed).
		Int("paused", summary.Paused).
		Int("increased", summary.Increased).
		Int("oracle_errors", summary.OracleErrors).
		Msg("Daily deduction run finished")

	o.record(ctx, &RunRecord{
		ID:           uuid.New(),
		Kind:         RunKindDaily,
		Processed:    summary.Processed,
		Failed:       summary.Failed,
		Paused:       summary.Paused,
		Increased:    summary.Increased,
		OracleErrors: summary.OracleErrors,
		StartedAt:    started,
		FinishedAt:   o.now(),
	})

	return summary, nil
}

// RunAutoResumeCheck lifts low-balance pauses for recovered wallets and
// returns how many were resumed.
func (o *Orchestrator) RunAutoResumeCheck(ctx context.Context) (int, error) {
	release, err := o.acquire(ctx, leaseResumeCheck)
	if err != nil {
		return 0, err
	}
	defer release()

	started := o.now()
	resumed, err := o.pauser.ResumePass(ctx)
	if err != nil {
		return 0, err
	}

	if resumed > 0 {
		log.Info().Int("resumed", resumed).Msg("Auto-resume check finished")
	}

	o.record(ctx, &RunRecord{
		ID:         uuid.New(),
		Kind:       RunKindAutoResume,
		Resumed:    resumed,
		StartedAt:  started,
		FinishedAt: o.now(),
	})

	return resumed, nil
}

// RunAutoIncreasePass applies due escalations outside a daily run and
// returns how many subscriptions were increased.
func (o *Orchestrator) RunAutoIncreasePass(ctx context.Context) (int, error) {
	release, err := o.acquire(ctx, leaseIncreasePass)
	if err != nil {
		return 0, err
	}
	defer release()

	started := o.now()
	increased, err := o.increaser.Run(ctx)
	if err != nil {
		return 0, err
	}

	o.record(ctx, &RunRecord{
		ID:         uuid.New(),
		Kind:       RunKindIncrease,
		Increased:  increased,
		StartedAt:  started,
		FinishedAt: o.now(),
	})

	return increased, nil
}

func (o *Orchestrator) acquire(ctx context.Context, key string) (func(), error) {
	ok, holder, err := o.lock.Acquire(ctx, key, o.leaseTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lease: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	return func() {
		if err := o.lock.Release(context.WithoutCancel(ctx), key, holder); err != nil {
			log.Error().Err(err).Str("lease", key).Msg("Failed to release run lease")
		}
	}, nil
}

// record persists the run outcome. Best-effort: history is operator
// convenience, not part of the correctness contract.
func (o *Orchestrator) record(ctx context.Context, rec *RunRecord) {
	if o.runs == nil {
		return
	}
	if err := o.runs.Record(ctx, rec); err != nil {
		log.Error().Err(err).Str("kind", rec.Kind).Msg("Failed to persist run record")
	}
}
