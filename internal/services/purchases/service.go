package purchases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/domain/enums"
	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/domain/rules"
	pgrepo "github.com/Arnold003-blacko/etosha-backend-sub000/internal/repo/postgres"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrProductNotFound     = errors.New("product not found")
	ErrProductInactive     = errors.New("product is not active")
	ErrProductUnavailable  = errors.New("product is not available")
	ErrPlanNotFound        = errors.New("installment plan not found")
	ErrDateOfBirthRequired = errors.New("date of birth is required for plan purchases")

	// ErrPricingNotConfigured propagates as a rejected purchase, never as a
	// zero-amount one.
	ErrPricingNotConfigured = rules.ErrPricingNotConfigured
)

type ProductStore interface {
	FindByID(ctx context.Context, productID int64) (pgrepo.ProductRecord, error)
}

type PlanStore interface {
	FindByID(ctx context.Context, planID int64) (pgrepo.PlanRecord, error)
}

type PurchaseStore interface {
	Create(ctx context.Context, in pgrepo.PurchaseCreateInput) (pgrepo.PurchaseRecord, error)
}

type InvalidationSignal interface {
	Invalidate(ctx context.Context) error
}

type Service struct {
	products  ProductStore
	plans     PlanStore
	purchases PurchaseStore
	signal    InvalidationSignal
	logger    *zap.Logger
	now       func() time.Time
}

type Dependencies struct {
	Products  ProductStore
	Plans     PlanStore
	Purchases PurchaseStore
	Signal    InvalidationSignal
	Logger    *zap.Logger
}

type FulfillmentInput struct {
	DeceasedName   string
	DateOfDeath    *time.Time
	NextOfKin      string
	NextOfKinPhone string
	Notes          string
}

type InitiateInput struct {
	ProductID   int64
	Kind        enums.PurchaseKind
	PlanID      *int64
	DateOfBirth *time.Time
	Fulfillment *FulfillmentInput
}

type InitiateResult struct {
	PurchaseID  int64
	Kind        enums.PurchaseKind
	TotalAmount decimal.Decimal
	Balance     decimal.Decimal
	Status      enums.PurchaseStatus
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		products:  deps.Products,
		plans:     deps.Plans,
		purchases: deps.Purchases,
		signal:    deps.Signal,
		logger:    logger,
		now:       time.Now,
	}
}

// Initiate creates a purchase with a computed total and an unpaid balance.
// Plan-based totals resolve the monthly price from the payer's age at
// initiation time; non-plan purchases use the product list price.
func (s *Service) Initiate(ctx context.Context, memberID int64, in InitiateInput) (InitiateResult, error) {
	if memberID <= 0 || in.ProductID <= 0 {
		return InitiateResult{}, ErrValidation
	}
	if _, ok := enums.ParsePurchaseKind(string(in.Kind)); !ok {
		return InitiateResult{}, ErrValidation
	}
	if s.products == nil || s.purchases == nil {
		return InitiateResult{}, fmt.Errorf("purchase dependencies are not configured")
	}

	product, err := s.products.FindByID(ctx, in.ProductID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrProductNotFound) {
			return InitiateResult{}, ErrProductNotFound
		}
		return InitiateResult{}, err
	}
	if !product.Active {
		return InitiateResult{}, ErrProductInactive
	}

	isService := product.Category == enums.ProductCategoryService
	if isService && product.CheckedOut {
		return InitiateResult{}, ErrProductUnavailable
	}

	total, err := s.resolveTotal(ctx, product, in)
	if err != nil {
		return InitiateResult{}, err
	}

	createIn := pgrepo.PurchaseCreateInput{
		MemberID:        memberID,
		ProductID:       product.ID,
		Kind:            in.Kind,
		PlanID:          in.PlanID,
		TotalAmount:     total,
		CheckoutProduct: isService,
	}
	if in.Fulfillment != nil {
		createIn.Fulfillment = &pgrepo.FulfillmentDetails{
			DeceasedName:   in.Fulfillment.DeceasedName,
			DateOfDeath:    in.Fulfillment.DateOfDeath,
			NextOfKin:      in.Fulfillment.NextOfKin,
			NextOfKinPhone: in.Fulfillment.NextOfKinPhone,
			Notes:          in.Fulfillment.Notes,
		}
	}

	rec, err := s.purchases.Create(ctx, createIn)
	if err != nil {
		if errors.Is(err, pgrepo.ErrProductUnavailable) {
			return InitiateResult{}, ErrProductUnavailable
		}
		return InitiateResult{}, err
	}

	s.notifyDashboard(ctx)

	return InitiateResult{
		PurchaseID:  rec.ID,
		Kind:        rec.Kind,
		TotalAmount: rec.TotalAmount,
		Balance:     rec.Balance,
		Status:      rec.Status,
	}, nil
}

func (s *Service) resolveTotal(ctx context.Context, product pgrepo.ProductRecord, in InitiateInput) (decimal.Decimal, error) {
	if in.PlanID == nil {
		if !product.ListPrice.IsPositive() {
			return decimal.Zero, fmt.Errorf("product %d has no list price: %w", product.ID, ErrPricingNotConfigured)
		}
		return product.ListPrice, nil
	}

	if s.plans == nil {
		return decimal.Zero, fmt.Errorf("plan store is nil")
	}
	plan, err := s.plans.FindByID(ctx, *in.PlanID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPlanNotFound) {
			return decimal.Zero, ErrPlanNotFound
		}
		return decimal.Zero, err
	}
	if plan.Months <= 0 {
		return decimal.Zero, fmt.Errorf("plan %d has invalid month count: %w", plan.ID, ErrPricingNotConfigured)
	}
	if in.DateOfBirth == nil {
		return decimal.Zero, ErrDateOfBirthRequired
	}

	pricingClass := ""
	if product.PricingClass != nil {
		pricingClass = *product.PricingClass
	}

	age := rules.AgeAt(*in.DateOfBirth, s.now().UTC())
	monthly, err := rules.MonthlyPrice(plan.Prices, pricingClass, age)
	if err != nil {
		return decimal.Zero, err
	}

	return monthly.Mul(decimal.NewFromInt(int64(plan.Months))), nil
}

func (s *Service) notifyDashboard(ctx context.Context) {
	if s.signal == nil {
		return
	}
	if err := s.signal.Invalidate(ctx); err != nil {
		s.logger.Warn("dashboard invalidation failed", zap.Error(err))
	}
}
