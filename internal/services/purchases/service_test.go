package purchases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/domain/enums"
	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/domain/rules"
	pgrepo "github.com/Arnold003-blacko/etosha-backend-sub000/internal/repo/postgres"
)

func TestInitiateUsesListPriceWithoutPlan(t *testing.T) {
	products := newProductStoreStub()
	products.add(pgrepo.ProductRecord{
		ID:        1,
		Category:  enums.ProductCategoryBurialPlot,
		ListPrice: decimal.RequireFromString("850.00"),
		Active:    true,
	})
	purchases := newPurchaseStoreStub()

	service := NewService(Dependencies{Products: products, Purchases: purchases})

	res, err := service.Initiate(context.Background(), 10, InitiateInput{
		ProductID: 1,
		Kind:      enums.PurchaseKindFuture,
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if !res.TotalAmount.Equal(decimal.RequireFromString("850.00")) {
		t.Fatalf("unexpected total: %s", res.TotalAmount)
	}
	if !res.Balance.Equal(res.TotalAmount) {
		t.Fatalf("balance must start equal to total, got %s", res.Balance)
	}
	if res.Status != enums.PurchaseStatusPendingPayment {
		t.Fatalf("unexpected status: %s", res.Status)
	}
}

func TestInitiateComputesPlanTotalFromAgeBracket(t *testing.T) {
	class := "standard"
	products := newProductStoreStub()
	products.add(pgrepo.ProductRecord{
		ID:           1,
		Category:     enums.ProductCategoryBurialPlot,
		PricingClass: &class,
		Active:       true,
	})

	plans := &planStoreStub{plans: map[int64]pgrepo.PlanRecord{
		5: {
			ID:     5,
			Months: 12,
			Prices: rules.PriceTable{
				{PricingClass: "standard", Bracket: rules.AgeBracketUnderSixty}: decimal.RequireFromString("10.00"),
				{PricingClass: "standard", Bracket: rules.AgeBracketSixtyPlus}:  decimal.RequireFromString("16.00"),
			},
		},
	}}
	purchases := newPurchaseStoreStub()

	service := NewService(Dependencies{Products: products, Plans: plans, Purchases: purchases})
	service.now = func() time.Time { return time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC) }

	planID := int64(5)
	dob := time.Date(1960, time.March, 10, 0, 0, 0, 0, time.UTC) // 66 at initiation

	res, err := service.Initiate(context.Background(), 10, InitiateInput{
		ProductID:   1,
		Kind:        enums.PurchaseKindFuture,
		PlanID:      &planID,
		DateOfBirth: &dob,
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if !res.TotalAmount.Equal(decimal.RequireFromString("192.00")) {
		t.Fatalf("unexpected plan total: %s", res.TotalAmount)
	}
}

func TestInitiateRejectsMissingPlanPricing(t *testing.T) {
	class := "premium"
	products := newProductStoreStub()
	products.add(pgrepo.ProductRecord{
		ID:           1,
		Category:     enums.ProductCategoryBurialPlot,
		PricingClass: &class,
		Active:       true,
	})
	plans := &planStoreStub{plans: map[int64]pgrepo.PlanRecord{
		5: {ID: 5, Months: 12, Prices: rules.PriceTable{}},
	}}
	purchases := newPurchaseStoreStub()

	service := NewService(Dependencies{Products: products, Plans: plans, Purchases: purchases})

	planID := int64(5)
	dob := time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC)

	_, err := service.Initiate(context.Background(), 10, InitiateInput{
		ProductID:   1,
		Kind:        enums.PurchaseKindFuture,
		PlanID:      &planID,
		DateOfBirth: &dob,
	})
	if !errors.Is(err, ErrPricingNotConfigured) {
		t.Fatalf("expected pricing-not-configured rejection, got %v", err)
	}
	if purchases.created != 0 {
		t.Fatalf("no purchase may be created on pricing failure")
	}
}

func TestInitiateRequiresDateOfBirthForPlans(t *testing.T) {
	class := "standard"
	products := newProductStoreStub()
	products.add(pgrepo.ProductRecord{ID: 1, PricingClass: &class, Active: true})
	plans := &planStoreStub{plans: map[int64]pgrepo.PlanRecord{5: {ID: 5, Months: 6}}}

	service := NewService(Dependencies{Products: products, Plans: plans, Purchases: newPurchaseStoreStub()})

	planID := int64(5)
	_, err := service.Initiate(context.Background(), 10, InitiateInput{
		ProductID: 1,
		Kind:      enums.PurchaseKindFuture,
		PlanID:    &planID,
	})
	if !errors.Is(err, ErrDateOfBirthRequired) {
		t.Fatalf("expected date-of-birth rejection, got %v", err)
	}
}

func TestInitiateRejectsInactiveProduct(t *testing.T) {
	products := newProductStoreStub()
	products.add(pgrepo.ProductRecord{ID: 1, ListPrice: decimal.RequireFromString("10.00"), Active: false})

	service := NewService(Dependencies{Products: products, Purchases: newPurchaseStoreStub()})

	_, err := service.Initiate(context.Background(), 10, InitiateInput{ProductID: 1, Kind: enums.PurchaseKindImmediate})
	if !errors.Is(err, ErrProductInactive) {
		t.Fatalf("expected inactive rejection, got %v", err)
	}
}

func TestInitiateRejectsCheckedOutService(t *testing.T) {
	products := newProductStoreStub()
	products.add(pgrepo.ProductRecord{
		ID:         1,
		Category:   enums.ProductCategoryService,
		ListPrice:  decimal.RequireFromString("40.00"),
		Active:     true,
		CheckedOut: true,
	})

	service := NewService(Dependencies{Products: products, Purchases: newPurchaseStoreStub()})

	_, err := service.Initiate(context.Background(), 10, InitiateInput{ProductID: 1, Kind: enums.PurchaseKindImmediate})
	if !errors.Is(err, ErrProductUnavailable) {
		t.Fatalf("expected unavailable rejection, got %v", err)
	}
}

type productStoreStub struct {
	products map[int64]pgrepo.ProductRecord
}

func newProductStoreStub() *productStoreStub {
	return &productStoreStub{products: map[int64]pgrepo.ProductRecord{}}
}

func (s *productStoreStub) add(rec pgrepo.ProductRecord) {
	s.products[rec.ID] = rec
}

func (s *productStoreStub) FindByID(_ context.Context, productID int64) (pgrepo.ProductRecord, error) {
	rec, ok := s.products[productID]
	if !ok {
		return pgrepo.ProductRecord{}, pgrepo.ErrProductNotFound
	}
	return rec, nil
}

type planStoreStub struct {
	plans map[int64]pgrepo.PlanRecord
}

func (s *planStoreStub) FindByID(_ context.Context, planID int64) (pgrepo.PlanRecord, error) {
	rec, ok := s.plans[planID]
	if !ok {
		return pgrepo.PlanRecord{}, pgrepo.ErrPlanNotFound
	}
	return rec, nil
}

type purchaseStoreStub struct {
	nextID  int64
	created int
}

func newPurchaseStoreStub() *purchaseStoreStub {
	return &purchaseStoreStub{nextID: 1}
}

func (s *purchaseStoreStub) Create(_ context.Context, in pgrepo.PurchaseCreateInput) (pgrepo.PurchaseRecord, error) {
	id := s.nextID
	s.nextID++
	s.created++
	now := time.Now().UTC()
	return pgrepo.PurchaseRecord{
		ID:          id,
		MemberID:    in.MemberID,
		ProductID:   in.ProductID,
		Kind:        in.Kind,
		PlanID:      in.PlanID,
		TotalAmount: in.TotalAmount,
		PaidAmount:  decimal.Zero,
		Balance:     in.TotalAmount,
		Status:      enums.PurchaseStatusPendingPayment,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
