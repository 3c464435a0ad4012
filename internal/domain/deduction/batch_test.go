package deduction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stacksave/stacksave-api/internal/domain/subscription"
	"github.com/stacksave/stacksave-api/internal/domain/transaction"
)

func newBatchEngine(store *fakeStore, txs *fakeTxStore, ledger *fakeLedger, notifier *fakeNotifier, batchSize int) *BatchEngine {
	engine := NewBatchEngine(store, txs, ledger, notifier, batchSize, 2*time.Second)
	engine.sleep = func(time.Duration) {}
	return engine
}

func TestBatchRunWholeGroupSuccess(t *testing.T) {
	subs := []*subscription.Subscription{
		newTestSub("0xaaa", 1000),
		newTestSub("0xbbb", 2000),
		newTestSub("0xccc", 1500),
	}
	store := newFakeStore(subs...)
	txs := &fakeTxStore{}
	ledger := &fakeLedger{}
	notifier := &fakeNotifier{}

	engine := newBatchEngine(store, txs, ledger, notifier, 10)
	processed, failed := engine.Run(context.Background(), subs)

	if processed != 3 || failed != 0 {
		t.Fatalf("processed=%d failed=%d, want 3/0", processed, failed)
	}
	if len(ledger.batchCalls) != 1 {
		t.Fatalf("batch calls = %d, want 1", len(ledger.batchCalls))
	}
	if len(ledger.oneCalls) != 0 {
		t.Errorf("no individual calls expected, got %v", ledger.oneCalls)
	}

	for _, s := range subs {
		if s.Streak.Current != 1 || s.Streak.Best != 1 {
			t.Errorf("%s streak = %d/%d, want 1/1", s.WalletAddress, s.Streak.Current, s.Streak.Best)
		}
		if !s.LastDeduction.Valid || !s.NextDeduction.Valid {
			t.Errorf("%s deduction timestamps not set", s.WalletAddress)
		}
	}

	if len(txs.txs) != 3 {
		t.Fatalf("transactions = %d, want 3", len(txs.txs))
	}
	for _, tx := range txs.txs {
		if tx.Status != transaction.StatusConfirmed {
			t.Errorf("status = %s, want confirmed", tx.Status)
		}
		if tx.TxHash != "0xbatch" {
			t.Errorf("tx hash = %s, want shared batch hash", tx.TxHash)
		}
	}
}

func TestBatchRunFallbackMixedOutcomes(t *testing.T) {
	good1 := newTestSub("0xaaa", 1000)
	bad := newTestSub("0xbbb", 1000)
	good2 := newTestSub("0xccc", 1000)

	// The failing member had a streak going; the reset must not touch best
	bad.Streak = subscription.Streak{Current: 5, Best: 7}

	store := newFakeStore(good1, bad, good2)
	txs := &fakeTxStore{}
	ledger := &fakeLedger{
		batchErr: errors.New("execution reverted"),
		oneErr:   map[string]error{"0xbbb": errors.New("transfer amount exceeds allowance")},
	}
	notifier := &fakeNotifier{}

	engine := newBatchEngine(store, txs, ledger, notifier, 10)
	processed, failed := engine.Run(context.Background(), []*subscription.Subscription{good1, bad, good2})

	if processed != 2 || failed != 1 {
		t.Fatalf("processed=%d failed=%d, want 2/1", processed, failed)
	}
	if len(ledger.oneCalls) != 3 {
		t.Fatalf("individual calls = %d, want exactly one per group member", len(ledger.oneCalls))
	}

	if good1.Streak.Current != 1 || good2.Streak.Current != 1 {
		t.Error("successful members must gain a streak day")
	}
	if bad.Streak.Current != 0 {
		t.Errorf("failed member streak = %d, want reset to 0", bad.Streak.Current)
	}
	if bad.Streak.Best != 7 {
		t.Errorf("failed member best streak = %d, best is never reduced", bad.Streak.Best)
	}

	failedTxs := txs.byWallet(store, "0xbbb")
	if len(failedTxs) != 1 {
		t.Fatalf("failed member transactions = %d, want 1", len(failedTxs))
	}
	ftx := failedTxs[0]
	if ftx.Status != transaction.StatusFailed {
		t.Errorf("status = %s, want failed", ftx.Status)
	}
	if ftx.TxHash != transaction.FailedTxRef {
		t.Errorf("tx hash = %s, want sentinel %s", ftx.TxHash, transaction.FailedTxRef)
	}
	if !ftx.ErrorMessage.Valid || !strings.Contains(ftx.ErrorMessage.String, "allowance") {
		t.Errorf("error message not captured: %+v", ftx.ErrorMessage)
	}
}

func TestBatchRunGroupsSequentiallyWithDelay(t *testing.T) {
	var subs []*subscription.Subscription
	for i := 0; i < 25; i++ {
		subs = append(subs, newTestSub(fmt.Sprintf("0x%040d", i), 1000))
	}
	store := newFakeStore(subs...)
	txs := &fakeTxStore{}
	ledger := &fakeLedger{}
	notifier := &fakeNotifier{}

	var sleeps []time.Duration
	engine := NewBatchEngine(store, txs, ledger, notifier, 10, 2*time.Second)
	engine.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }

	processed, failed := engine.Run(context.Background(), subs)

	if processed != 25 || failed != 0 {
		t.Fatalf("processed=%d failed=%d, want 25/0", processed, failed)
	}
	if len(ledger.batchCalls) != 3 {
		t.Fatalf("batch calls = %d, want 3 groups of 10/10/5", len(ledger.batchCalls))
	}
	if got := len(ledger.batchCalls[2]); got != 5 {
		t.Errorf("last group size = %d, want 5", got)
	}
	// Delay between groups only, never after the last
	if len(sleeps) != 2 {
		t.Fatalf("sleeps = %d, want 2", len(sleeps))
	}
	for _, d := range sleeps {
		if d != 2*time.Second {
			t.Errorf("sleep = %v, want 2s", d)
		}
	}
}

func TestBatchNotificationsAreStreakAware(t *testing.T) {
	first := newTestSub("0xaaa", 1000)
	veteran := newTestSub("0xbbb", 1000)
	veteran.Streak = subscription.Streak{Current: 9, Best: 9}

	store := newFakeStore(first, veteran)
	txs := &fakeTxStore{}
	ledger := &fakeLedger{}
	notifier := &fakeNotifier{}

	engine := newBatchEngine(store, txs, ledger, notifier, 10)
	engine.Run(context.Background(), []*subscription.Subscription{first, veteran})

	if len(notifier.calls) != 2 {
		t.Fatalf("notifications = %d, want 2", len(notifier.calls))
	}

	var firstBody, veteranBody string
	for _, c := range notifier.calls {
		switch c.userID {
		case first.UserID:
			firstBody = c.body
		case veteran.UserID:
			veteranBody = c.body
		}
	}

	if strings.Contains(firstBody, "in a row") {
		t.Errorf("first-day message should not mention a streak: %q", firstBody)
	}
	if !strings.Contains(veteranBody, "10 days in a row") {
		t.Errorf("veteran message should mention the new streak: %q", veteranBody)
	}
}
