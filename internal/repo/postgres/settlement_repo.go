package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/domain/enums"
	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/domain/rules"
)

var (
	ErrPurchaseCancelled    = errors.New("purchase is cancelled")
	ErrPurchaseAlreadyPaid  = errors.New("purchase is already fully paid")
	ErrPurchaseNotPaid      = errors.New("purchase is not fully paid")
	ErrPurchaseNotOwned     = errors.New("purchase belongs to another member")
	ErrAlreadyRedeemed      = errors.New("purchase has already been redeemed")
	ErrAmountExceedsBalance = errors.New("amount exceeds outstanding balance")
)

// SettlementRepo owns every mutation of a purchase's money fields. All three
// operations run read-then-write under FOR UPDATE row locks in one
// transaction, so two racing callers resolve to exactly one mutation.
type SettlementRepo struct {
	pool *pgxpool.Pool
}

type SettlementOutcome struct {
	Payment  PaymentRecord
	Purchase PurchaseRecord
	// Applied is true when the purchase balance was mutated.
	Applied bool
	// AlreadyFinal is true when the payment had already left INITIATED and
	// the call was absorbed as a no-op.
	AlreadyFinal bool
	// PurchaseCancelled is true when a success signal arrived for a
	// cancelled purchase and the payment was expired instead.
	PurchaseCancelled bool
	NewlyPaid         bool
	AutoRedeemed      bool
}

func NewSettlementRepo(pool *pgxpool.Pool) *SettlementRepo {
	return &SettlementRepo{pool: pool}
}

// FinalizeDeferred moves an INITIATED payment to the mapped terminal status
// and, on SUCCESS, applies its amount to the owning purchase. Calling it for
// a payment that already left INITIATED is a no-op.
func (r *SettlementRepo) FinalizeDeferred(ctx context.Context, paymentID string, mapped enums.PaymentStatus, now time.Time) (SettlementOutcome, error) {
	if r.pool == nil {
		return SettlementOutcome{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(paymentID) == "" {
		return SettlementOutcome{}, fmt.Errorf("invalid payment id")
	}
	if !mapped.Final() {
		return SettlementOutcome{}, fmt.Errorf("mapped status %s is not terminal", mapped)
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var out SettlementOutcome
	err := WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		payment, err := lockPayment(txCtx, tx, paymentID)
		if err != nil {
			return err
		}

		var purchase PurchaseRecord
		if rules.FinalizeNeedsPurchase(payment.Status, mapped) {
			purchase, err = lockPurchase(txCtx, tx, payment.PurchaseID)
			if err != nil {
				return err
			}
		}

		decision := rules.DecideFinalize(payment.Status, mapped, purchase.Status)

		if decision.AlreadyFinal {
			out = SettlementOutcome{Payment: payment, AlreadyFinal: true}
			return nil
		}

		var paidAt *time.Time
		if decision.Apply {
			ts := now.UTC()
			paidAt = &ts
		}
		updatedPayment, err := setPaymentStatus(txCtx, tx, payment.ID, decision.WriteStatus, paidAt)
		if err != nil {
			return err
		}

		if !decision.Apply {
			out = SettlementOutcome{
				Payment:           updatedPayment,
				Purchase:          purchase,
				PurchaseCancelled: decision.PurchaseCancelled,
			}
			return nil
		}

		updatedPurchase, change, err := applyToPurchase(txCtx, tx, purchase, payment.Amount, payment.MemberID, now)
		if err != nil {
			return err
		}

		out = SettlementOutcome{
			Payment:      updatedPayment,
			Purchase:     updatedPurchase,
			Applied:      true,
			NewlyPaid:    change.NewlyPaid,
			AutoRedeemed: updatedPurchase.RedeemedAt != nil && purchase.RedeemedAt == nil,
		}
		return nil
	})
	if err != nil {
		return SettlementOutcome{}, err
	}

	return out, nil
}

// ApplyImmediate records a cash/manual payment as SUCCESS and applies it to
// the purchase in the same transaction.
func (r *SettlementRepo) ApplyImmediate(ctx context.Context, purchaseID, memberID int64, amount decimal.Decimal, method enums.PaymentMethod, now time.Time) (SettlementOutcome, error) {
	if r.pool == nil {
		return SettlementOutcome{}, fmt.Errorf("postgres pool is nil")
	}
	if purchaseID <= 0 || memberID <= 0 || !amount.IsPositive() {
		return SettlementOutcome{}, fmt.Errorf("invalid immediate payment payload")
	}
	if method.Deferred() {
		return SettlementOutcome{}, fmt.Errorf("method %s is not an immediate method", method)
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var out SettlementOutcome
	err := WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		purchase, err := lockPurchase(txCtx, tx, purchaseID)
		if err != nil {
			return err
		}

		switch purchase.Status {
		case enums.PurchaseStatusCancelled:
			return ErrPurchaseCancelled
		case enums.PurchaseStatusPaid:
			return ErrPurchaseAlreadyPaid
		}
		if amount.GreaterThan(purchase.Balance) {
			return ErrAmountExceedsBalance
		}

		paidAt := now.UTC()
		payment, err := scanPayment(tx.QueryRow(txCtx, `
INSERT INTO payments (
	id,
	purchase_id,
	member_id,
	amount,
	method,
	status,
	reference,
	paid_at,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
RETURNING `+paymentColumns+`
`, uuid.NewString(), purchaseID, memberID, amount, method, enums.PaymentStatusSuccess, uuid.NewString(), paidAt))
		if err != nil {
			return fmt.Errorf("insert immediate payment: %w", err)
		}

		updatedPurchase, change, err := applyToPurchase(txCtx, tx, purchase, amount, memberID, now)
		if err != nil {
			return err
		}

		out = SettlementOutcome{
			Payment:      payment,
			Purchase:     updatedPurchase,
			Applied:      true,
			NewlyPaid:    change.NewlyPaid,
			AutoRedeemed: updatedPurchase.RedeemedAt != nil && purchase.RedeemedAt == nil,
		}
		return nil
	})
	if err != nil {
		return SettlementOutcome{}, err
	}

	return out, nil
}

// RedeemFuture marks a fully paid, unredeemed purchase as redeemed. A second
// attempt is rejected, not absorbed.
func (r *SettlementRepo) RedeemFuture(ctx context.Context, purchaseID, memberID int64, now time.Time) (SettlementOutcome, error) {
	if r.pool == nil {
		return SettlementOutcome{}, fmt.Errorf("postgres pool is nil")
	}
	if purchaseID <= 0 || memberID <= 0 {
		return SettlementOutcome{}, fmt.Errorf("invalid redemption payload")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var out SettlementOutcome
	err := WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		purchase, err := lockPurchase(txCtx, tx, purchaseID)
		if err != nil {
			return err
		}

		if purchase.MemberID != memberID {
			return ErrPurchaseNotOwned
		}
		if purchase.RedeemedAt != nil {
			return ErrAlreadyRedeemed
		}
		if purchase.Status != enums.PurchaseStatusPaid {
			return ErrPurchaseNotPaid
		}

		updated, err := scanPurchase(tx.QueryRow(txCtx, `
UPDATE purchases
SET redeemed_at = $2, redeemed_by = $3, updated_at = NOW()
WHERE id = $1
RETURNING `+purchaseColumns+`
`, purchaseID, now.UTC(), memberID))
		if err != nil {
			return fmt.Errorf("mark purchase redeemed: %w", err)
		}

		out = SettlementOutcome{Purchase: updated, AutoRedeemed: false}
		return nil
	})
	if err != nil {
		return SettlementOutcome{}, err
	}

	return out, nil
}

func lockPayment(ctx context.Context, tx pgx.Tx, paymentID string) (PaymentRecord, error) {
	rec, err := scanPayment(tx.QueryRow(ctx, `
SELECT `+paymentColumns+`
FROM payments
WHERE id = $1
FOR UPDATE
`, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PaymentRecord{}, ErrPaymentNotFound
		}
		return PaymentRecord{}, fmt.Errorf("lock payment: %w", err)
	}
	return rec, nil
}

func lockPurchase(ctx context.Context, tx pgx.Tx, purchaseID int64) (PurchaseRecord, error) {
	rec, err := scanPurchase(tx.QueryRow(ctx, `
SELECT `+purchaseColumns+`
FROM purchases
WHERE id = $1
FOR UPDATE
`, purchaseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRecord{}, ErrPurchaseNotFound
		}
		return PurchaseRecord{}, fmt.Errorf("lock purchase: %w", err)
	}
	return rec, nil
}

func setPaymentStatus(ctx context.Context, tx pgx.Tx, paymentID string, status enums.PaymentStatus, paidAt *time.Time) (PaymentRecord, error) {
	rec, err := scanPayment(tx.QueryRow(ctx, `
UPDATE payments
SET status = $2, paid_at = COALESCE($3, paid_at), updated_at = NOW()
WHERE id = $1
RETURNING `+paymentColumns+`
`, paymentID, status, paidAt))
	if err != nil {
		return PaymentRecord{}, fmt.Errorf("set payment status: %w", err)
	}
	return rec, nil
}

// applyToPurchase writes the recomputed money fields. Auto-redemption happens
// in the same UPDATE when the purchase just reached PAID, is immediate-kind
// and has not been redeemed before.
func applyToPurchase(ctx context.Context, tx pgx.Tx, purchase PurchaseRecord, amount decimal.Decimal, memberID int64, now time.Time) (PurchaseRecord, rules.BalanceChange, error) {
	change := rules.ApplyPayment(purchase.TotalAmount, purchase.PaidAmount, amount)

	var (
		paidAt     *time.Time
		redeemedAt *time.Time
		redeemedBy *int64
	)
	if change.NewlyPaid {
		ts := now.UTC()
		paidAt = &ts
		if purchase.Kind == enums.PurchaseKindImmediate && purchase.RedeemedAt == nil {
			redeemedAt = &ts
			redeemedBy = &memberID
		}
	}

	rec, err := scanPurchase(tx.QueryRow(ctx, `
UPDATE purchases
SET
	paid_amount = $2,
	balance = $3,
	status = $4,
	paid_at = COALESCE(paid_at, $5),
	completed_at = COALESCE(completed_at, $5),
	redeemed_at = COALESCE(redeemed_at, $6),
	redeemed_by = COALESCE(redeemed_by, $7),
	updated_at = NOW()
WHERE id = $1
RETURNING `+purchaseColumns+`
`, purchase.ID, change.PaidAmount, change.Balance, change.Status, paidAt, redeemedAt, redeemedBy))
	if err != nil {
		return PurchaseRecord{}, rules.BalanceChange{}, fmt.Errorf("apply payment to purchase: %w", err)
	}

	return rec, change, nil
}
