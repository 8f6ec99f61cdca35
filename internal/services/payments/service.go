package payments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/domain/enums"
	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/infra/paynow"
	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/pkg/validate"
	pgrepo "github.com/Arnold003-blacko/etosha-backend-sub000/internal/repo/postgres"
	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/services/settlement"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrForbidden       = errors.New("purchase belongs to another member")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrInvalidPhone    = errors.New("phone number cannot receive a mobile push")

	// ErrPushCapExceeded rejects a mobile push above the per-transaction cap.
	// Callers should suggest paying in smaller amounts.
	ErrPushCapExceeded = errors.New("amount exceeds the mobile push per-transaction cap")

	ErrPurchaseNotFound     = settlement.ErrPurchaseNotFound
	ErrAlreadyPaid          = settlement.ErrAlreadyPaid
	ErrCancelled            = settlement.ErrCancelled
	ErrAmountExceedsBalance = settlement.ErrAmountExceedsBalance
)

const webhookSettleTimeout = 30 * time.Second

type PaymentStore interface {
	CreateInitiated(ctx context.Context, in pgrepo.DeferredCreateInput) (pgrepo.PaymentRecord, int64, error)
	FindByID(ctx context.Context, paymentID string) (pgrepo.PaymentRecord, error)
	FindByReference(ctx context.Context, reference string) (pgrepo.PaymentRecord, error)
}

type PurchaseStore interface {
	FindByID(ctx context.Context, purchaseID int64) (pgrepo.PurchaseRecord, error)
}

type MemberStore interface {
	FindByID(ctx context.Context, memberID int64) (pgrepo.MemberRecord, error)
}

// Gateway is the external payment gateway surface this service depends on.
// *paynow.Client satisfies it.
type Gateway interface {
	InitiateRedirect(ctx context.Context, reference string, amount decimal.Decimal, email string) (paynow.RedirectResponse, error)
	InitiateMobilePush(ctx context.Context, reference string, amount decimal.Decimal, phone, email string) (paynow.PushResponse, error)
	Poll(ctx context.Context, pollURL string) (paynow.PollResult, error)
	VerifyWebhook(rawBody string) (url.Values, bool)
}

// Settler finalizes gateway outcomes and applies immediate payments. It is
// the only path through which this service touches purchase balances.
type Settler interface {
	ApplyImmediate(ctx context.Context, purchaseID, memberID int64, amount decimal.Decimal, method enums.PaymentMethod) (settlement.ApplyResult, error)
	Finalize(ctx context.Context, paymentID, observedStatus string) (settlement.FinalizeResult, error)
}

type Service struct {
	payments  PaymentStore
	purchases PurchaseStore
	members   MemberStore
	gateway   Gateway
	settler   Settler
	logger    *zap.Logger
	pushCap   decimal.Decimal

	// async runs post-ack webhook settlement. Tests replace it to run inline.
	async func(fn func())
}

type Dependencies struct {
	Payments  PaymentStore
	Purchases PurchaseStore
	Members   MemberStore
	Gateway   Gateway
	Settler   Settler
	Logger    *zap.Logger
	// PushCap is the per-transaction ceiling for mobile push payments. Zero
	// disables the cap.
	PushCap decimal.Decimal
}

type ImmediateInput struct {
	Amount decimal.Decimal
	Method enums.PaymentMethod
}

type ImmediateResult struct {
	PaymentID      string
	PurchaseStatus enums.PurchaseStatus
	Balance        decimal.Decimal
	PaidAt         *time.Time
}

type DeferredInput struct {
	Amount decimal.Decimal
	Method enums.PaymentMethod
	Phone  string
}

type DeferredResult struct {
	PaymentID    string
	Reference    string
	RedirectURL  string
	PollURL      string
	Instructions string
	// Superseded counts prior INITIATED payments expired by this initiation.
	Superseded int64
}

type PollOutcome struct {
	PaymentStatus  enums.PaymentStatus
	PurchaseStatus enums.PurchaseStatus
	Balance        decimal.Decimal
	// Settled is true when this poll performed the balance mutation.
	Settled bool
	// Degraded is true when the gateway was unreachable and the persisted
	// status was returned instead.
	Degraded bool
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		payments:  deps.Payments,
		purchases: deps.Purchases,
		members:   deps.Members,
		gateway:   deps.Gateway,
		settler:   deps.Settler,
		logger:    logger,
		pushCap:   deps.PushCap,
		async:     func(fn func()) { go fn() },
	}
}

// RecordImmediate settles a cash or manual payment in one step.
func (s *Service) RecordImmediate(ctx context.Context, memberID, purchaseID int64, in ImmediateInput) (ImmediateResult, error) {
	if memberID <= 0 || purchaseID <= 0 || !in.Amount.IsPositive() {
		return ImmediateResult{}, ErrValidation
	}
	if in.Method == "" {
		in.Method = enums.PaymentMethodCash
	}
	if _, ok := enums.ParsePaymentMethod(string(in.Method)); !ok || in.Method.Deferred() {
		return ImmediateResult{}, ErrValidation
	}
	if s.settler == nil {
		return ImmediateResult{}, fmt.Errorf("settler is not configured")
	}

	if err := s.checkOwnership(ctx, purchaseID, memberID); err != nil {
		return ImmediateResult{}, err
	}

	res, err := s.settler.ApplyImmediate(ctx, purchaseID, memberID, in.Amount, in.Method)
	if err != nil {
		return ImmediateResult{}, err
	}

	return ImmediateResult{
		PaymentID:      res.PaymentID,
		PurchaseStatus: res.PurchaseStatus,
		Balance:        res.Balance,
		PaidAt:         res.PaidAt,
	}, nil
}

// InitiateDeferred starts a gateway payment. The gateway transaction is
// created first; the INITIATED row is only persisted once the gateway hands
// back a poll URL, so every stored payment is pollable.
func (s *Service) InitiateDeferred(ctx context.Context, memberID, purchaseID int64, in DeferredInput) (DeferredResult, error) {
	if memberID <= 0 || purchaseID <= 0 || !in.Amount.IsPositive() {
		return DeferredResult{}, ErrValidation
	}
	if _, ok := enums.ParsePaymentMethod(string(in.Method)); !ok || !in.Method.Deferred() {
		return DeferredResult{}, ErrValidation
	}
	if s.gateway == nil || s.payments == nil {
		return DeferredResult{}, fmt.Errorf("payment dependencies are not configured")
	}

	if err := s.checkOwnership(ctx, purchaseID, memberID); err != nil {
		return DeferredResult{}, err
	}

	if in.Method == enums.PaymentMethodEcocash {
		if !validate.EcocashPhone(in.Phone) {
			return DeferredResult{}, ErrInvalidPhone
		}
		if s.pushCap.IsPositive() && in.Amount.GreaterThan(s.pushCap) {
			return DeferredResult{}, ErrPushCapExceeded
		}
	}

	email := ""
	if s.members != nil {
		member, err := s.members.FindByID(ctx, memberID)
		if err == nil {
			email = member.Email
		} else {
			s.logger.Warn("member lookup failed, initiating without email",
				zap.Int64("member_id", memberID),
				zap.Error(err),
			)
		}
	}

	reference := uuid.NewString()
	result := DeferredResult{Reference: reference}

	switch in.Method {
	case enums.PaymentMethodEcocash:
		push, err := s.gateway.InitiateMobilePush(ctx, reference, in.Amount, in.Phone, email)
		if err != nil {
			return DeferredResult{}, err
		}
		result.PollURL = push.PollURL
		result.Instructions = push.Instructions
	default:
		redirect, err := s.gateway.InitiateRedirect(ctx, reference, in.Amount, email)
		if err != nil {
			return DeferredResult{}, err
		}
		result.PollURL = redirect.PollURL
		result.RedirectURL = redirect.RedirectURL
	}

	rec, superseded, err := s.payments.CreateInitiated(ctx, pgrepo.DeferredCreateInput{
		PurchaseID: purchaseID,
		MemberID:   memberID,
		Amount:     in.Amount,
		Method:     in.Method,
		Reference:  reference,
		PollURL:    result.PollURL,
	})
	if err != nil {
		s.logger.Warn("gateway transaction orphaned, payment row rejected",
			zap.String("reference", reference),
			zap.Int64("purchase_id", purchaseID),
			zap.Error(err),
		)
		return DeferredResult{}, err
	}

	result.PaymentID = rec.ID
	result.Superseded = superseded
	return result, nil
}

// Poll asks the gateway for the payment's current state and finalizes it.
// When the gateway is unreachable the persisted status is returned instead
// of an error.
func (s *Service) Poll(ctx context.Context, memberID int64, paymentID string) (PollOutcome, error) {
	if memberID <= 0 || strings.TrimSpace(paymentID) == "" {
		return PollOutcome{}, ErrValidation
	}
	if s.payments == nil || s.settler == nil {
		return PollOutcome{}, fmt.Errorf("payment dependencies are not configured")
	}

	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPaymentNotFound) {
			return PollOutcome{}, ErrPaymentNotFound
		}
		return PollOutcome{}, err
	}
	if payment.MemberID != memberID {
		return PollOutcome{}, ErrForbidden
	}

	if payment.Status.Final() {
		return s.snapshot(ctx, payment), nil
	}
	if s.gateway == nil || payment.PollURL == nil || strings.TrimSpace(*payment.PollURL) == "" {
		return s.snapshot(ctx, payment), nil
	}

	polled, err := s.gateway.Poll(ctx, *payment.PollURL)
	if err != nil {
		s.logger.Warn("gateway poll failed, returning persisted status",
			zap.String("payment_id", payment.ID),
			zap.Error(err),
		)
		out := s.snapshot(ctx, payment)
		out.Degraded = true
		return out, nil
	}

	res, err := s.settler.Finalize(ctx, payment.ID, polled.Status)
	if err != nil {
		return PollOutcome{}, err
	}

	out := PollOutcome{
		PaymentStatus:  res.PaymentStatus,
		PurchaseStatus: res.PurchaseStatus,
		Balance:        res.Balance,
		Settled:        res.Applied,
	}
	if out.PurchaseStatus == "" {
		snap := s.snapshot(ctx, payment)
		out.PurchaseStatus = snap.PurchaseStatus
		out.Balance = snap.Balance
	}
	return out, nil
}

// HandleWebhook verifies a gateway status callback and settles it off the
// request path. It never returns an error: bad callbacks are logged and
// dropped so the gateway always gets its ack.
func (s *Service) HandleWebhook(ctx context.Context, rawBody string) {
	if s.gateway == nil || s.payments == nil || s.settler == nil {
		s.logger.Error("webhook received before dependencies were configured")
		return
	}

	values, ok := s.gateway.VerifyWebhook(rawBody)
	if !ok {
		s.logger.Warn("webhook signature verification failed")
		return
	}

	reference := strings.TrimSpace(values.Get("reference"))
	status := values.Get("status")
	if reference == "" {
		s.logger.Warn("webhook without reference dropped")
		return
	}

	payment, err := s.payments.FindByReference(ctx, reference)
	if err != nil {
		s.logger.Warn("webhook for unknown payment reference",
			zap.String("reference", reference),
			zap.Error(err),
		)
		return
	}

	s.async(func() {
		settleCtx, cancel := context.WithTimeout(context.Background(), webhookSettleTimeout)
		defer cancel()

		res, err := s.settler.Finalize(settleCtx, payment.ID, status)
		if err != nil {
			s.logger.Error("webhook settlement failed",
				zap.String("payment_id", payment.ID),
				zap.String("gateway_status", status),
				zap.Error(err),
			)
			return
		}
		if res.Applied {
			s.logger.Info("webhook settled payment",
				zap.String("payment_id", payment.ID),
				zap.String("payment_status", string(res.PaymentStatus)),
			)
		}
	})
}

func (s *Service) checkOwnership(ctx context.Context, purchaseID, memberID int64) error {
	if s.purchases == nil {
		return fmt.Errorf("purchase store is nil")
	}

	purchase, err := s.purchases.FindByID(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPurchaseNotFound) {
			return ErrPurchaseNotFound
		}
		return err
	}
	if purchase.MemberID != memberID {
		return ErrForbidden
	}
	return nil
}

// snapshot builds a poll outcome from persisted state only.
func (s *Service) snapshot(ctx context.Context, payment pgrepo.PaymentRecord) PollOutcome {
	out := PollOutcome{PaymentStatus: payment.Status}
	if s.purchases == nil {
		return out
	}
	purchase, err := s.purchases.FindByID(ctx, payment.PurchaseID)
	if err != nil {
		s.logger.Warn("purchase lookup failed for poll snapshot",
			zap.Int64("purchase_id", payment.PurchaseID),
			zap.Error(err),
		)
		return out
	}
	out.PurchaseStatus = purchase.Status
	out.Balance = purchase.Balance
	return out
}
