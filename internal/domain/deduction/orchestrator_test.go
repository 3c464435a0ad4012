package deduction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stacksave/stacksave-api/internal/domain/subscription"
	"github.com/stacksave/stacksave-api/internal/domain/transaction"
)

func testConfig() Config {
	return Config{
		BatchSize:        10,
		BatchDelay:       0,
		BufferPercent:    10,
		ResumeRunwayDays: 3,
		OracleFailOpen:   true,
		LeaseTTL:         30 * time.Minute,
	}
}

type orchestratorFixture struct {
	store    *fakeStore
	txs      *fakeTxStore
	ledger   *fakeLedger
	oracle   *fakeOracle
	notifier *fakeNotifier
	lock     *fakeLock
	orch     *Orchestrator
}

func newFixture(cfg Config, subs ...*subscription.Subscription) *orchestratorFixture {
	f := &orchestratorFixture{
		store:    newFakeStore(subs...),
		txs:      &fakeTxStore{},
		ledger:   &fakeLedger{},
		oracle:   &fakeOracle{balances: map[string]int64{}},
		notifier: &fakeNotifier{},
		lock:     &fakeLock{},
	}
	f.orch = NewOrchestrator(f.store, f.txs, f.ledger, f.oracle, f.notifier, f.lock, nil, cfg)
	f.orch.engine.sleep = func(time.Duration) {}
	return f
}

func TestDailyRunChargesFundedSubscription(t *testing.T) {
	sub := newTestSub("0xaaa", 1000)
	f := newFixture(testConfig(), sub)
	f.oracle.balances["0xaaa"] = 2000

	summary, err := f.orch.RunDailyDeduction(context.Background())
	if err != nil {
		t.Fatalf("RunDailyDeduction() error: %v", err)
	}

	if summary.Processed != 1 || summary.Failed != 0 || summary.Paused != 0 {
		t.Fatalf("summary = %+v, want 1 processed", summary)
	}
	if sub.Streak.Current != 1 {
		t.Errorf("streak = %d, want 1", sub.Streak.Current)
	}
	if len(f.txs.txs) != 1 {
		t.Fatalf("transactions = %d, want 1", len(f.txs.txs))
	}
	tx := f.txs.txs[0]
	if tx.Status != transaction.StatusConfirmed || tx.Amount != 1000 {
		t.Errorf("transaction = %s/%d, want confirmed/1000", tx.Status, tx.Amount)
	}
}

func TestDailyRunPausesUnderfundedSubscription(t *testing.T) {
	sub := newTestSub("0xaaa", 1000)
	sub.Streak = subscription.Streak{Current: 4, Best: 6}
	f := newFixture(testConfig(), sub)
	f.oracle.balances["0xaaa"] = 900 // below the 1100 buffered requirement

	summary, err := f.orch.RunDailyDeduction(context.Background())
	if err != nil {
		t.Fatalf("RunDailyDeduction() error: %v", err)
	}

	if summary.Paused != 1 || summary.Processed != 0 {
		t.Fatalf("summary = %+v, want 1 paused", summary)
	}
	if !sub.PausedForLowBalance() {
		t.Error("subscription should be paused for low balance")
	}
	if sub.Streak.Current != 4 || sub.Streak.Best != 6 {
		t.Errorf("streak = %d/%d, pausing must not touch it", sub.Streak.Current, sub.Streak.Best)
	}
	if len(f.txs.txs) != 0 {
		t.Errorf("transactions = %d, want none for a paused wallet", len(f.txs.txs))
	}
	if len(f.ledger.batchCalls) != 0 {
		t.Error("ledger must not be called for a paused wallet")
	}
	if got := f.notifier.events(); len(got) != 1 || got[0] != EventSmartPause {
		t.Errorf("notifications = %v, want one smart pause", got)
	}
}

func TestDailyRunSkipsLedgerIneligibleWallets(t *testing.T) {
	charged := newTestSub("0xaaa", 1000)
	tooSoon := newTestSub("0xbbb", 1000)
	f := newFixture(testConfig(), charged, tooSoon)
	f.oracle.balances["0xaaa"] = 5000
	f.oracle.balances["0xbbb"] = 5000
	f.ledger.cannotDeduct = map[string]bool{"0xbbb": true}

	summary, err := f.orch.RunDailyDeduction(context.Background())
	if err != nil {
		t.Fatalf("RunDailyDeduction() error: %v", err)
	}

	if summary.Processed != 1 {
		t.Fatalf("processed = %d, want only the eligible wallet", summary.Processed)
	}
	if tooSoon.Streak.Current != 0 || tooSoon.LastDeduction.Valid {
		t.Error("ineligible wallet must be untouched")
	}
}

func TestDailyRunLeaseBlocksOverlap(t *testing.T) {
	sub := newTestSub("0xaaa", 1000)
	f := newFixture(testConfig(), sub)
	f.oracle.balances["0xaaa"] = 2000
	f.lock.held = true

	_, err := f.orch.RunDailyDeduction(context.Background())
	if !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("err = %v, want ErrRunInProgress", err)
	}
	if len(f.ledger.batchCalls) != 0 {
		t.Error("no ledger work while another run holds the lease")
	}
}

func TestDailyRunReleasesLease(t *testing.T) {
	f := newFixture(testConfig())

	if _, err := f.orch.RunDailyDeduction(context.Background()); err != nil {
		t.Fatalf("RunDailyDeduction() error: %v", err)
	}
	if f.lock.releases != 1 {
		t.Errorf("releases = %d, want 1", f.lock.releases)
	}

	// Lease is free again for the next day
	if _, err := f.orch.RunDailyDeduction(context.Background()); err != nil {
		t.Fatalf("second run error: %v", err)
	}
}

func TestGuardPassFailOpenOnOracleError(t *testing.T) {
	sub := newTestSub("0xaaa", 1000)
	f := newFixture(testConfig(), sub)
	f.oracle.errs = map[string]error{"0xaaa": errors.New("rpc timeout")}

	summary, err := f.orch.RunDailyDeduction(context.Background())
	if err != nil {
		t.Fatalf("RunDailyDeduction() error: %v", err)
	}

	if summary.Processed != 1 {
		t.Errorf("processed = %d, fail-open should charge through an oracle error", summary.Processed)
	}
	if summary.OracleErrors != 1 {
		t.Errorf("oracle errors = %d, want 1", summary.OracleErrors)
	}
	if sub.IsPaused {
		t.Error("an oracle error must never pause")
	}
}

func TestGuardPassFailClosedSkipsWallet(t *testing.T) {
	cfg := testConfig()
	cfg.OracleFailOpen = false

	sub := newTestSub("0xaaa", 1000)
	f := newFixture(cfg, sub)
	f.oracle.errs = map[string]error{"0xaaa": errors.New("rpc timeout")}

	summary, err := f.orch.RunDailyDeduction(context.Background())
	if err != nil {
		t.Fatalf("RunDailyDeduction() error: %v", err)
	}

	if summary.Processed != 0 {
		t.Errorf("processed = %d, fail-closed should skip the wallet", summary.Processed)
	}
	if summary.OracleErrors != 1 {
		t.Errorf("oracle errors = %d, want 1", summary.OracleErrors)
	}
	if sub.IsPaused {
		t.Error("fail-closed skips, it does not pause")
	}
	if sub.Streak.Current != 0 {
		t.Error("skipped wallet must be untouched")
	}
}

func TestAutoResumeCheckHonorsRunway(t *testing.T) {
	recovered := newTestSub("0xaaa", 1000)
	stillShort := newTestSub("0xbbb", 1000)
	manual := newTestSub("0xccc", 1000)

	now := time.Now()
	for _, s := range []*subscription.Subscription{recovered, stillShort} {
		s.IsPaused = true
		s.PauseReason.String = string(subscription.PauseReasonLowBalance)
		s.PauseReason.Valid = true
		s.PausedAt.Time = now
		s.PausedAt.Valid = true
	}
	manual.IsPaused = true
	manual.PauseReason.String = string(subscription.PauseReasonManual)
	manual.PauseReason.Valid = true

	f := newFixture(testConfig(), recovered, stillShort, manual)
	f.oracle.balances["0xaaa"] = 3000 // exactly 3 days
	f.oracle.balances["0xbbb"] = 2990 // 2.99 days, stays paused
	f.oracle.balances["0xccc"] = 100000

	resumed, err := f.orch.RunAutoResumeCheck(context.Background())
	if err != nil {
		t.Fatalf("RunAutoResumeCheck() error: %v", err)
	}

	if resumed != 1 {
		t.Fatalf("resumed = %d, want 1", resumed)
	}
	if recovered.IsPaused {
		t.Error("recovered wallet should be resumed")
	}
	if !stillShort.IsPaused {
		t.Error("2.99-day wallet must stay paused")
	}
	if !manual.IsPaused {
		t.Error("manual pauses are never auto-resumed")
	}
	if got := f.notifier.events(); len(got) != 1 || got[0] != EventAutoResume {
		t.Errorf("notifications = %v, want one auto-resume", got)
	}
}

func TestAutoIncreasePassRunsBeforeCharging(t *testing.T) {
	// The escalated amount must be what gets charged the same day
	sub := newTestSub("0xaaa", 1000)
	sub.StartDate = time.Now().AddDate(0, 0, -30)
	sub.AutoIncreaseRule = subscription.AutoIncreaseRule{
		Enabled:      true,
		Type:         subscription.IncreaseTypePercentage,
		Amount:       5,
		IntervalDays: 30,
	}

	f := newFixture(testConfig(), sub)
	f.oracle.balances["0xaaa"] = 5000

	summary, err := f.orch.RunDailyDeduction(context.Background())
	if err != nil {
		t.Fatalf("RunDailyDeduction() error: %v", err)
	}

	if summary.Increased != 1 || summary.Processed != 1 {
		t.Fatalf("summary = %+v, want 1 increased and 1 processed", summary)
	}
	if len(f.txs.txs) != 1 {
		t.Fatalf("transactions = %d, want 1", len(f.txs.txs))
	}
	if f.txs.txs[0].Amount != 1050 {
		t.Errorf("charged amount = %d, want the post-increase 1050", f.txs.txs[0].Amount)
	}
}
