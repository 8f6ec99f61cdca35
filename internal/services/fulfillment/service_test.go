package fulfillment

import (
	"context"
	"errors"
	"testing"

	pgrepo "github.com/Arnold003-blacko/etosha-backend-sub000/internal/repo/postgres"
)

func TestCreateDeliverableAbsorbsDuplicate(t *testing.T) {
	store := &deliverableStoreStub{err: pgrepo.ErrDeliverableExists}
	service := NewService(store, nil)

	if err := service.CreateDeliverable(context.Background(), 7, 10); err != nil {
		t.Fatalf("duplicate deliverable must be a no-op, got %v", err)
	}
}

func TestCreateDeliverableSurfacesStoreFailure(t *testing.T) {
	storeErr := errors.New("insert failed")
	store := &deliverableStoreStub{err: storeErr}
	service := NewService(store, nil)

	if err := service.CreateDeliverable(context.Background(), 7, 10); !errors.Is(err, storeErr) {
		t.Fatalf("expected store failure to surface, got %v", err)
	}
}

func TestCreateDeliverableRecords(t *testing.T) {
	store := &deliverableStoreStub{}
	service := NewService(store, nil)

	if err := service.CreateDeliverable(context.Background(), 7, 10); err != nil {
		t.Fatalf("create deliverable: %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("expected one store call, got %d", store.calls)
	}
}

type deliverableStoreStub struct {
	calls int
	err   error
}

func (s *deliverableStoreStub) CreateForPurchase(_ context.Context, purchaseID, memberID int64) (pgrepo.DeceasedRecord, error) {
	s.calls++
	if s.err != nil {
		return pgrepo.DeceasedRecord{}, s.err
	}
	return pgrepo.DeceasedRecord{ID: 1, PurchaseID: purchaseID, MemberID: memberID}, nil
}
