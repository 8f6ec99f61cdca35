package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunCancelsStalePurchases(t *testing.T) {
	purchases := &stalePurchaseStoreStub{
		stale:     []int64{1, 2, 3},
		cancelled: map[int64]bool{1: true, 2: true, 3: true},
		expired:   map[int64]int64{1: 1, 2: 0, 3: 1},
	}
	payments := &stalePaymentStoreStub{expired: 2}
	signal := &signalStub{}

	job := New(purchases, payments, signal, 24*time.Hour, nil)
	job.now = func() time.Time { return time.Date(2026, time.August, 2, 1, 0, 0, 0, time.UTC) }

	res, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.PurchasesCancelled != 3 {
		t.Fatalf("expected 3 cancellations, got %d", res.PurchasesCancelled)
	}
	if res.PaymentsExpired != 4 {
		t.Fatalf("expected 4 expired payments, got %d", res.PaymentsExpired)
	}
	if signal.calls != 1 {
		t.Fatalf("expected one invalidation, got %d", signal.calls)
	}

	wantCutoff := time.Date(2026, time.August, 1, 1, 0, 0, 0, time.UTC)
	if !purchases.gotCutoff.Equal(wantCutoff) {
		t.Fatalf("unexpected cutoff: %s", purchases.gotCutoff)
	}
}

func TestRunSkipsPurchasePaidMidSweep(t *testing.T) {
	purchases := &stalePurchaseStoreStub{
		stale:     []int64{1},
		cancelled: map[int64]bool{1: false},
		expired:   map[int64]int64{},
	}

	job := New(purchases, nil, nil, 24*time.Hour, nil)

	res, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.PurchasesCancelled != 0 {
		t.Fatalf("a purchase paid mid-sweep must not count as cancelled")
	}
}

func TestRunContinuesPastSingleFailure(t *testing.T) {
	purchases := &stalePurchaseStoreStub{
		stale:     []int64{1, 2},
		cancelled: map[int64]bool{2: true},
		expired:   map[int64]int64{},
		failFor:   map[int64]error{1: errors.New("lock timeout")},
	}

	job := New(purchases, nil, nil, 24*time.Hour, nil)

	res, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.PurchasesCancelled != 1 {
		t.Fatalf("sweep must continue past a failing purchase, got %d cancellations", res.PurchasesCancelled)
	}
}

func TestRunSkipsSignalWhenNothingChanged(t *testing.T) {
	purchases := &stalePurchaseStoreStub{}
	signal := &signalStub{}

	job := New(purchases, nil, signal, 0, nil)

	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if signal.calls != 0 {
		t.Fatalf("empty sweep must not invalidate the dashboard")
	}
}

type stalePurchaseStoreStub struct {
	stale     []int64
	cancelled map[int64]bool
	expired   map[int64]int64
	failFor   map[int64]error
	gotCutoff time.Time
}

func (s *stalePurchaseStoreStub) ListStalePendingIDs(_ context.Context, cutoff time.Time) ([]int64, error) {
	s.gotCutoff = cutoff
	return s.stale, nil
}

func (s *stalePurchaseStoreStub) CancelStale(_ context.Context, purchaseID int64, _ time.Time) (int64, bool, error) {
	if err := s.failFor[purchaseID]; err != nil {
		return 0, false, err
	}
	return s.expired[purchaseID], s.cancelled[purchaseID], nil
}

type stalePaymentStoreStub struct {
	expired int64
}

func (s *stalePaymentStoreStub) ExpireInitiatedOlderThan(_ context.Context, _ time.Time) (int64, error) {
	return s.expired, nil
}

type signalStub struct {
	calls int
}

func (s *signalStub) Invalidate(context.Context) error {
	s.calls++
	return nil
}
