package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/domain/enums"
	pgrepo "github.com/Arnold003-blacko/etosha-backend-sub000/internal/repo/postgres"
)

var (
	ErrValidation           = errors.New("validation error")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPurchaseNotFound     = errors.New("purchase not found")
	ErrAlreadyPaid          = errors.New("purchase is already fully paid")
	ErrCancelled            = errors.New("purchase is cancelled")
	ErrAmountExceedsBalance = errors.New("amount exceeds outstanding balance")
	ErrNotPaid              = errors.New("purchase is not fully paid")
	ErrForbidden            = errors.New("purchase belongs to another member")
	ErrAlreadyRedeemed      = errors.New("purchase has already been redeemed")
)

// Store is the single writer of purchase money fields. Every implementation
// must make the read-then-write of a payment's status and its terminal update
// one atomic unit.
type Store interface {
	FinalizeDeferred(ctx context.Context, paymentID string, mapped enums.PaymentStatus, now time.Time) (pgrepo.SettlementOutcome, error)
	ApplyImmediate(ctx context.Context, purchaseID, memberID int64, amount decimal.Decimal, method enums.PaymentMethod, now time.Time) (pgrepo.SettlementOutcome, error)
	RedeemFuture(ctx context.Context, purchaseID, memberID int64, now time.Time) (pgrepo.SettlementOutcome, error)
}

type ProductStore interface {
	FindByID(ctx context.Context, productID int64) (pgrepo.ProductRecord, error)
}

// Fulfillment creates the purchase's deliverable record. It is invoked after
// the settlement transaction committed; its failure never reverses money.
type Fulfillment interface {
	CreateDeliverable(ctx context.Context, purchaseID, memberID int64) error
}

type InvalidationSignal interface {
	Invalidate(ctx context.Context) error
}

type Service struct {
	store       Store
	products    ProductStore
	fulfillment Fulfillment
	signal      InvalidationSignal
	logger      *zap.Logger
	now         func() time.Time
}

type Dependencies struct {
	Store       Store
	Products    ProductStore
	Fulfillment Fulfillment
	Signal      InvalidationSignal
	Logger      *zap.Logger
}

type FinalizeResult struct {
	PaymentID      string
	PaymentStatus  enums.PaymentStatus
	PurchaseStatus enums.PurchaseStatus
	Balance        decimal.Decimal
	// Applied is true when this call performed the balance mutation.
	Applied bool
}

type ApplyResult struct {
	PaymentID      string
	PurchaseStatus enums.PurchaseStatus
	Balance        decimal.Decimal
	PaidAt         *time.Time
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		store:       deps.Store,
		products:    deps.Products,
		fulfillment: deps.Fulfillment,
		signal:      deps.Signal,
		logger:      logger,
		now:         time.Now,
	}
}

// MapGatewayStatus translates the gateway's status vocabulary into payment
// terms. The second return is false for statuses that are not yet actionable,
// in which case the payment stays INITIATED.
func MapGatewayStatus(raw string) (enums.PaymentStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "paid", "awaiting delivery", "delivered":
		return enums.PaymentStatusSuccess, true
	case "failed", "cancelled":
		return enums.PaymentStatusFailed, true
	case "expired":
		return enums.PaymentStatusExpired, true
	default:
		return enums.PaymentStatusInitiated, false
	}
}

// Finalize is the idempotent settlement entry point shared by polls and
// webhooks. Duplicate and out-of-order signals for the same payment are
// absorbed by the store's status guard; exactly one call performs the balance
// mutation.
func (s *Service) Finalize(ctx context.Context, paymentID, observedStatus string) (FinalizeResult, error) {
	if strings.TrimSpace(paymentID) == "" {
		return FinalizeResult{}, ErrValidation
	}
	if s.store == nil {
		return FinalizeResult{}, fmt.Errorf("settlement store is nil")
	}

	mapped, actionable := MapGatewayStatus(observedStatus)
	if !actionable {
		return FinalizeResult{
			PaymentID:     paymentID,
			PaymentStatus: enums.PaymentStatusInitiated,
		}, nil
	}

	out, err := s.store.FinalizeDeferred(ctx, paymentID, mapped, s.now().UTC())
	if err != nil {
		if errors.Is(err, pgrepo.ErrPaymentNotFound) {
			return FinalizeResult{}, ErrPaymentNotFound
		}
		return FinalizeResult{}, err
	}

	if out.Applied {
		s.notifyDashboard(ctx)
		if out.AutoRedeemed {
			s.deliver(ctx, out.Purchase)
		}
	}

	res := FinalizeResult{
		PaymentID:     out.Payment.ID,
		PaymentStatus: out.Payment.Status,
		Applied:       out.Applied,
	}
	if out.Purchase.ID != 0 {
		res.PurchaseStatus = out.Purchase.Status
		res.Balance = out.Purchase.Balance
	}
	return res, nil
}

// ApplyImmediate settles a cash/manual payment synchronously: the payment
// insert and the purchase update commit together or not at all.
func (s *Service) ApplyImmediate(ctx context.Context, purchaseID, memberID int64, amount decimal.Decimal, method enums.PaymentMethod) (ApplyResult, error) {
	if purchaseID <= 0 || memberID <= 0 || !amount.IsPositive() {
		return ApplyResult{}, ErrValidation
	}
	if s.store == nil {
		return ApplyResult{}, fmt.Errorf("settlement store is nil")
	}

	out, err := s.store.ApplyImmediate(ctx, purchaseID, memberID, amount, method, s.now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, pgrepo.ErrPurchaseNotFound):
			return ApplyResult{}, ErrPurchaseNotFound
		case errors.Is(err, pgrepo.ErrPurchaseAlreadyPaid):
			return ApplyResult{}, ErrAlreadyPaid
		case errors.Is(err, pgrepo.ErrPurchaseCancelled):
			return ApplyResult{}, ErrCancelled
		case errors.Is(err, pgrepo.ErrAmountExceedsBalance):
			return ApplyResult{}, ErrAmountExceedsBalance
		default:
			return ApplyResult{}, err
		}
	}

	s.notifyDashboard(ctx)
	if out.AutoRedeemed {
		s.deliver(ctx, out.Purchase)
	}

	return ApplyResult{
		PaymentID:      out.Payment.ID,
		PurchaseStatus: out.Purchase.Status,
		Balance:        out.Purchase.Balance,
		PaidAt:         out.Purchase.PaidAt,
	}, nil
}

// Redeem explicitly redeems a future-kind purchase. Double redemption is a
// rejection, not a silent no-op.
func (s *Service) Redeem(ctx context.Context, purchaseID, memberID int64) error {
	if purchaseID <= 0 || memberID <= 0 {
		return ErrValidation
	}
	if s.store == nil {
		return fmt.Errorf("settlement store is nil")
	}

	out, err := s.store.RedeemFuture(ctx, purchaseID, memberID, s.now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, pgrepo.ErrPurchaseNotFound):
			return ErrPurchaseNotFound
		case errors.Is(err, pgrepo.ErrPurchaseNotPaid):
			return ErrNotPaid
		case errors.Is(err, pgrepo.ErrPurchaseNotOwned):
			return ErrForbidden
		case errors.Is(err, pgrepo.ErrAlreadyRedeemed):
			return ErrAlreadyRedeemed
		default:
			return err
		}
	}

	s.deliver(ctx, out.Purchase)
	s.notifyDashboard(ctx)
	return nil
}

// deliver creates the deceased record for burial-plot purchases. The payment
// already committed, so failures here are logged as critical and absorbed.
func (s *Service) deliver(ctx context.Context, purchase pgrepo.PurchaseRecord) {
	if s.fulfillment == nil || s.products == nil {
		return
	}

	product, err := s.products.FindByID(ctx, purchase.ProductID)
	if err != nil {
		s.logger.Error("fulfillment lookup failed after settlement",
			zap.Int64("purchase_id", purchase.ID),
			zap.Int64("product_id", purchase.ProductID),
			zap.Error(err),
		)
		return
	}
	if product.Category != enums.ProductCategoryBurialPlot {
		return
	}

	if err := s.fulfillment.CreateDeliverable(ctx, purchase.ID, purchase.MemberID); err != nil {
		s.logger.Error("deliverable creation failed after settlement",
			zap.Int64("purchase_id", purchase.ID),
			zap.Int64("member_id", purchase.MemberID),
			zap.Error(err),
		)
	}
}

func (s *Service) notifyDashboard(ctx context.Context) {
	if s.signal == nil {
		return
	}
	if err := s.signal.Invalidate(ctx); err != nil {
		s.logger.Warn("dashboard invalidation failed", zap.Error(err))
	}
}
