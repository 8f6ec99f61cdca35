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
)

var ErrPaymentNotFound = errors.New("payment not found")

type PaymentRepo struct {
	pool *pgxpool.Pool
}

type PaymentRecord struct {
	ID         string
	PurchaseID int64
	MemberID   int64
	Amount     decimal.Decimal
	Method     enums.PaymentMethod
	Status     enums.PaymentStatus
	Reference  string
	PollURL    *string
	PaidAt     *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type DeferredCreateInput struct {
	PurchaseID int64
	MemberID   int64
	Amount     decimal.Decimal
	Method     enums.PaymentMethod
	Reference  string
	PollURL    string
}

func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// CreateInitiated persists a new deferred payment. The purchase is locked and
// its balance re-checked inside the transaction, so the check is authoritative
// at commit time even when two initiations race. Any prior INITIATED payment
// on the purchase is expired first; its count is returned.
func (r *PaymentRepo) CreateInitiated(ctx context.Context, in DeferredCreateInput) (PaymentRecord, int64, error) {
	if r.pool == nil {
		return PaymentRecord{}, 0, fmt.Errorf("postgres pool is nil")
	}
	if in.PurchaseID <= 0 || in.MemberID <= 0 || !in.Amount.IsPositive() {
		return PaymentRecord{}, 0, fmt.Errorf("invalid deferred payment payload")
	}
	if strings.TrimSpace(in.Reference) == "" || !in.Method.Deferred() {
		return PaymentRecord{}, 0, fmt.Errorf("invalid deferred payment payload")
	}

	var (
		rec        PaymentRecord
		superseded int64
	)
	err := WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		purchase, err := scanPurchase(tx.QueryRow(txCtx, `
SELECT `+purchaseColumns+`
FROM purchases
WHERE id = $1
FOR UPDATE
`, in.PurchaseID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrPurchaseNotFound
			}
			return fmt.Errorf("lock purchase for deferred payment: %w", err)
		}

		switch purchase.Status {
		case enums.PurchaseStatusCancelled:
			return ErrPurchaseCancelled
		case enums.PurchaseStatusPaid:
			return ErrPurchaseAlreadyPaid
		}
		if in.Amount.GreaterThan(purchase.Balance) {
			return ErrAmountExceedsBalance
		}

		tag, err := tx.Exec(txCtx, `
UPDATE payments
SET status = $2, updated_at = NOW()
WHERE purchase_id = $1
  AND status = $3
`, in.PurchaseID, enums.PaymentStatusExpired, enums.PaymentStatusInitiated)
		if err != nil {
			return fmt.Errorf("expire superseded payments: %w", err)
		}
		superseded = tag.RowsAffected()

		row := tx.QueryRow(txCtx, `
INSERT INTO payments (
	id,
	purchase_id,
	member_id,
	amount,
	method,
	status,
	reference,
	poll_url,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
RETURNING `+paymentColumns+`
`, uuid.NewString(), in.PurchaseID, in.MemberID, in.Amount, in.Method, enums.PaymentStatusInitiated, in.Reference, in.PollURL)

		created, err := scanPayment(row)
		if err != nil {
			return fmt.Errorf("insert deferred payment: %w", err)
		}
		rec = created
		return nil
	})
	if err != nil {
		return PaymentRecord{}, 0, err
	}

	return rec, superseded, nil
}

func (r *PaymentRepo) FindByID(ctx context.Context, paymentID string) (PaymentRecord, error) {
	if r.pool == nil {
		return PaymentRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(paymentID) == "" {
		return PaymentRecord{}, fmt.Errorf("invalid payment id")
	}

	rec, err := scanPayment(r.pool.QueryRow(ctx, `
SELECT `+paymentColumns+`
FROM payments
WHERE id = $1
LIMIT 1
`, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PaymentRecord{}, ErrPaymentNotFound
		}
		return PaymentRecord{}, fmt.Errorf("find payment by id: %w", err)
	}

	return rec, nil
}

func (r *PaymentRepo) FindByReference(ctx context.Context, reference string) (PaymentRecord, error) {
	if r.pool == nil {
		return PaymentRecord{}, fmt.Errorf("postgres pool is nil")
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return PaymentRecord{}, fmt.Errorf("invalid payment reference")
	}

	rec, err := scanPayment(r.pool.QueryRow(ctx, `
SELECT `+paymentColumns+`
FROM payments
WHERE reference = $1
LIMIT 1
`, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PaymentRecord{}, ErrPaymentNotFound
		}
		return PaymentRecord{}, fmt.Errorf("find payment by reference: %w", err)
	}

	return rec, nil
}

// ExpireInitiatedOlderThan expires stale INITIATED payments regardless of
// their purchase's state. Settlement's status guard already treats these rows
// as stale, so this only touches payment rows, never purchase balances.
func (r *PaymentRepo) ExpireInitiatedOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE payments
SET status = $1, updated_at = NOW()
WHERE status = $2
  AND created_at < $3
`, enums.PaymentStatusExpired, enums.PaymentStatusInitiated, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("expire stale initiated payments: %w", err)
	}

	return tag.RowsAffected(), nil
}

const paymentColumns = `id, purchase_id, member_id, amount, method, status, reference, poll_url, paid_at, created_at, updated_at`

func scanPayment(row pgx.Row) (PaymentRecord, error) {
	var rec PaymentRecord
	if err := row.Scan(
		&rec.ID,
		&rec.PurchaseID,
		&rec.MemberID,
		&rec.Amount,
		&rec.Method,
		&rec.Status,
		&rec.Reference,
		&rec.PollURL,
		&rec.PaidAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return PaymentRecord{}, err
	}
	return rec, nil
}
