package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/domain/enums"
)

var (
	ErrPurchaseNotFound   = errors.New("purchase not found")
	ErrProductUnavailable = errors.New("product is not available for checkout")
)

type PurchaseRepo struct {
	pool *pgxpool.Pool
}

type PurchaseRecord struct {
	ID          int64
	MemberID    int64
	ProductID   int64
	Kind        enums.PurchaseKind
	PlanID      *int64
	TotalAmount decimal.Decimal
	PaidAmount  decimal.Decimal
	Balance     decimal.Decimal
	Status      enums.PurchaseStatus
	PaidAt      *time.Time
	CompletedAt *time.Time
	RedeemedAt  *time.Time
	RedeemedBy  *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FulfillmentDetails is deceased/next-of-kin data captured before payment
// completes. It is persisted alongside the purchase and consumed once by
// redemption.
type FulfillmentDetails struct {
	DeceasedName   string
	DateOfDeath    *time.Time
	NextOfKin      string
	NextOfKinPhone string
	Notes          string
}

type PurchaseCreateInput struct {
	MemberID    int64
	ProductID   int64
	Kind        enums.PurchaseKind
	PlanID      *int64
	TotalAmount decimal.Decimal
	// CheckoutProduct marks the product as checked out in the same
	// transaction; creation fails if another purchase got there first.
	CheckoutProduct bool
	Fulfillment     *FulfillmentDetails
}

func NewPurchaseRepo(pool *pgxpool.Pool) *PurchaseRepo {
	return &PurchaseRepo{pool: pool}
}

func (r *PurchaseRepo) Create(ctx context.Context, in PurchaseCreateInput) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if in.MemberID <= 0 || in.ProductID <= 0 || !in.TotalAmount.IsPositive() {
		return PurchaseRecord{}, fmt.Errorf("invalid purchase create payload")
	}

	var rec PurchaseRecord
	err := WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		if in.CheckoutProduct {
			tag, err := tx.Exec(txCtx, `
UPDATE products
SET checked_out = TRUE, updated_at = NOW()
WHERE id = $1
  AND active = TRUE
  AND checked_out = FALSE
`, in.ProductID)
			if err != nil {
				return fmt.Errorf("checkout product: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return ErrProductUnavailable
			}
		}

		row := tx.QueryRow(txCtx, `
INSERT INTO purchases (
	member_id,
	product_id,
	kind,
	plan_id,
	total_amount,
	paid_amount,
	balance,
	status,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, 0, $5, $6, NOW(), NOW())
RETURNING `+purchaseColumns+`
`, in.MemberID, in.ProductID, in.Kind, in.PlanID, in.TotalAmount, enums.PurchaseStatusPendingPayment)

		created, err := scanPurchase(row)
		if err != nil {
			return fmt.Errorf("insert purchase: %w", err)
		}
		rec = created

		if in.Fulfillment != nil {
			if _, err := tx.Exec(txCtx, `
INSERT INTO pending_fulfillments (
	purchase_id,
	deceased_name,
	date_of_death,
	next_of_kin,
	next_of_kin_phone,
	notes,
	created_at
) VALUES ($1, $2, $3, $4, $5, $6, NOW())
`, rec.ID, in.Fulfillment.DeceasedName, in.Fulfillment.DateOfDeath, in.Fulfillment.NextOfKin, in.Fulfillment.NextOfKinPhone, in.Fulfillment.Notes); err != nil {
				return fmt.Errorf("insert pending fulfillment: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return PurchaseRecord{}, err
	}

	return rec, nil
}

func (r *PurchaseRepo) FindByID(ctx context.Context, purchaseID int64) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if purchaseID <= 0 {
		return PurchaseRecord{}, fmt.Errorf("invalid purchase id")
	}

	rec, err := scanPurchase(r.pool.QueryRow(ctx, `
SELECT `+purchaseColumns+`
FROM purchases
WHERE id = $1
LIMIT 1
`, purchaseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRecord{}, ErrPurchaseNotFound
		}
		return PurchaseRecord{}, fmt.Errorf("find purchase by id: %w", err)
	}

	return rec, nil
}

// ListStalePendingIDs returns purchases still awaiting their first successful
// payment that were created before cutoff.
func (r *PurchaseRepo) ListStalePendingIDs(ctx context.Context, cutoff time.Time) ([]int64, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT p.id
FROM purchases p
WHERE p.status = $1
  AND p.created_at < $2
  AND NOT EXISTS (
	SELECT 1 FROM payments pay
	WHERE pay.purchase_id = p.id
	  AND pay.status = $3
  )
ORDER BY p.id
`, enums.PurchaseStatusPendingPayment, cutoff.UTC(), enums.PaymentStatusSuccess)
	if err != nil {
		return nil, fmt.Errorf("list stale pending purchases: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stale purchase id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale purchase ids: %w", err)
	}

	return ids, nil
}

// CancelStale expires the purchase's INITIATED payments and cancels the
// purchase, re-checking the stale conditions under a row lock so a settlement
// that raced ahead wins.
func (r *PurchaseRepo) CancelStale(ctx context.Context, purchaseID int64, cutoff time.Time) (int64, bool, error) {
	if r.pool == nil {
		return 0, false, fmt.Errorf("postgres pool is nil")
	}
	if purchaseID <= 0 {
		return 0, false, fmt.Errorf("invalid purchase id")
	}

	var (
		expired   int64
		cancelled bool
	)
	err := WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		rec, err := scanPurchase(tx.QueryRow(txCtx, `
SELECT `+purchaseColumns+`
FROM purchases
WHERE id = $1
FOR UPDATE
`, purchaseID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrPurchaseNotFound
			}
			return fmt.Errorf("lock purchase for cancellation: %w", err)
		}

		if rec.Status != enums.PurchaseStatusPendingPayment || !rec.CreatedAt.Before(cutoff) {
			return nil
		}
		if rec.PaidAmount.IsPositive() {
			return nil
		}

		tag, err := tx.Exec(txCtx, `
UPDATE payments
SET status = $2, updated_at = NOW()
WHERE purchase_id = $1
  AND status = $3
`, purchaseID, enums.PaymentStatusExpired, enums.PaymentStatusInitiated)
		if err != nil {
			return fmt.Errorf("expire initiated payments: %w", err)
		}
		expired = tag.RowsAffected()

		if _, err := tx.Exec(txCtx, `
UPDATE purchases
SET status = $2, updated_at = NOW()
WHERE id = $1
`, purchaseID, enums.PurchaseStatusCancelled); err != nil {
			return fmt.Errorf("cancel purchase: %w", err)
		}
		cancelled = true
		return nil
	})
	if err != nil {
		return 0, false, err
	}

	return expired, cancelled, nil
}

const purchaseColumns = `id, member_id, product_id, kind, plan_id, total_amount, paid_amount, balance, status, paid_at, completed_at, redeemed_at, redeemed_by, created_at, updated_at`

func scanPurchase(row pgx.Row) (PurchaseRecord, error) {
	var rec PurchaseRecord
	if err := row.Scan(
		&rec.ID,
		&rec.MemberID,
		&rec.ProductID,
		&rec.Kind,
		&rec.PlanID,
		&rec.TotalAmount,
		&rec.PaidAmount,
		&rec.Balance,
		&rec.Status,
		&rec.PaidAt,
		&rec.CompletedAt,
		&rec.RedeemedAt,
		&rec.RedeemedBy,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return PurchaseRecord{}, err
	}
	return rec, nil
}
