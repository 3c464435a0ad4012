package deduction

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stacksave/stacksave-api/internal/domain/subscription"
	"github.com/stacksave/stacksave-api/internal/domain/transaction"
)

type fakeStore struct {
	subs  map[uuid.UUID]*subscription.Subscription
	order []uuid.UUID
}

func newFakeStore(subs ...*subscription.Subscription) *fakeStore {
	s := &fakeStore{subs: make(map[uuid.UUID]*subscription.Subscription)}
	for _, sub := range subs {
		s.subs[sub.ID] = sub
		s.order = append(s.order, sub.ID)
	}
	return s
}

func (s *fakeStore) list(keep func(*subscription.Subscription) bool) []*subscription.Subscription {
	var out []*subscription.Subscription
	for _, id := range s.order {
		if sub := s.subs[id]; keep(sub) {
			out = append(out, sub)
		}
	}
	return out
}

func (s *fakeStore) ListActiveUnpaused(context.Context) ([]*subscription.Subscription, error) {
	return s.list(func(sub *subscription.Subscription) bool {
		return sub.IsActive && !sub.IsPaused
	}), nil
}

func (s *fakeStore) ListAutoIncreaseEnabled(context.Context) ([]*subscription.Subscription, error) {
	return s.list(func(sub *subscription.Subscription) bool {
		return sub.IsActive && !sub.IsPaused && sub.AutoIncreaseRule.Enabled
	}), nil
}

func (s *fakeStore) ListAutoResumeCandidates(context.Context) ([]*subscription.Subscription, error) {
	return s.list(func(sub *subscription.Subscription) bool {
		return sub.IsActive && sub.PausedForLowBalance() && sub.AutoResumeEnabled
	}), nil
}

func (s *fakeStore) Pause(_ context.Context, id uuid.UUID, reason subscription.PauseReason, at time.Time) error {
	sub := s.subs[id]
	sub.IsPaused = true
	sub.PauseReason.String = string(reason)
	sub.PauseReason.Valid = true
	sub.PausedAt.Time = at
	sub.PausedAt.Valid = true
	return nil
}

func (s *fakeStore) Resume(_ context.Context, id uuid.UUID) error {
	sub := s.subs[id]
	sub.IsPaused = false
	sub.PauseReason.Valid = false
	sub.PausedAt.Valid = false
	return nil
}

func (s *fakeStore) ApplyIncrease(_ context.Context, id uuid.UUID, newAmount int64, at time.Time) error {
	sub := s.subs[id]
	sub.DailyAmount = newAmount
	sub.AutoIncreaseRule.LastAppliedAt.Time = at
	sub.AutoIncreaseRule.LastAppliedAt.Valid = true
	return nil
}

func (s *fakeStore) RecordDeduction(_ context.Context, id uuid.UUID, streak subscription.Streak, last, next time.Time) error {
	sub := s.subs[id]
	sub.Streak.Current = streak.Current
	if streak.Best > sub.Streak.Best {
		sub.Streak.Best = streak.Best
	}
	sub.LastDeduction.Time = last
	sub.LastDeduction.Valid = true
	sub.NextDeduction.Time = next
	sub.NextDeduction.Valid = true
	return nil
}

func (s *fakeStore) RecordFailure(_ context.Context, id uuid.UUID, streak subscription.Streak) error {
	sub := s.subs[id]
	sub.Streak.Current = streak.Current
	if streak.Best > sub.Streak.Best {
		sub.Streak.Best = streak.Best
	}
	return nil
}

type fakeTxStore struct {
	txs []*transaction.Transaction
}

func (s *fakeTxStore) Append(_ context.Context, tx *transaction.Transaction) error {
	s.txs = append(s.txs, tx)
	return nil
}

func (s *fakeTxStore) byWallet(store *fakeStore, wallet string) []*transaction.Transaction {
	var out []*transaction.Transaction
	for _, tx := range s.txs {
		if sub, ok := store.subs[tx.SubscriptionID]; ok && sub.WalletAddress == wallet {
			out = append(out, tx)
		}
	}
	return out
}

type fakeLedger struct {
	cannotDeduct map[string]bool
	checkErr     map[string]error

	batchErr error
	oneErr   map[string]error

	batchCalls [][]string
	oneCalls   []string
}

func (l *fakeLedger) CanDeductToday(_ context.Context, wallet string) (bool, error) {
	if err := l.checkErr[wallet]; err != nil {
		return false, err
	}
	return !l.cannotDeduct[wallet], nil
}

func (l *fakeLedger) ExecuteOne(_ context.Context, wallet string) (string, uint64, error) {
	l.oneCalls = append(l.oneCalls, wallet)
	if err := l.oneErr[wallet]; err != nil {
		return "", 0, err
	}
	return "0xsingle", 101, nil
}

func (l *fakeLedger) ExecuteBatch(_ context.Context, wallets []string) (string, uint64, error) {
	l.batchCalls = append(l.batchCalls, wallets)
	if l.batchErr != nil {
		return "", 0, l.batchErr
	}
	return "0xbatch", 100, nil
}

type fakeOracle struct {
	balances map[string]int64
	errs     map[string]error
}

func (o *fakeOracle) SpendableBalance(_ context.Context, wallet string) (int64, error) {
	if err := o.errs[wallet]; err != nil {
		return 0, err
	}
	return o.balances[wallet], nil
}

type notifyCall struct {
	userID uuid.UUID
	event  string
	title  string
	body   string
}

type fakeNotifier struct {
	calls []notifyCall
}

func (n *fakeNotifier) Notify(_ context.Context, userID uuid.UUID, event, title, body, _ string) {
	n.calls = append(n.calls, notifyCall{userID: userID, event: event, title: title, body: body})
}

func (n *fakeNotifier) events() []string {
	out := make([]string, len(n.calls))
	for i, c := range n.calls {
		out[i] = c.event
	}
	return out
}

type fakeLock struct {
	held     bool
	acquires int
	releases int
}

func (l *fakeLock) Acquire(context.Context, string, time.Duration) (bool, string, error) {
	l.acquires++
	if l.held {
		return false, "", nil
	}
	l.held = true
	return true, "holder", nil
}

func (l *fakeLock) Release(context.Context, string, string) error {
	l.releases++
	l.held = false
	return nil
}

func newTestSub(wallet string, daily int64) *subscription.Subscription {
	now := time.Now()
	return &subscription.Subscription{
		ID:                uuid.New(),
		UserID:            uuid.New(),
		WalletAddress:     wallet,
		DailyAmount:       daily,
		IsActive:          true,
		AutoResumeEnabled: true,
		StartDate:         now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
