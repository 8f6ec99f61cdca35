package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrDeliverableExists = errors.New("deliverable already exists for purchase")

// DeceasedRepo persists the deliverable record created at redemption. The
// pending fulfillment row captured at purchase time is consumed (deleted) in
// the same transaction.
type DeceasedRepo struct {
	pool *pgxpool.Pool
}

type DeceasedRecord struct {
	ID             int64
	PurchaseID     int64
	MemberID       int64
	DeceasedName   string
	DateOfDeath    *time.Time
	NextOfKin      string
	NextOfKinPhone string
	Notes          string
	CreatedAt      time.Time
}

func NewDeceasedRepo(pool *pgxpool.Pool) *DeceasedRepo {
	return &DeceasedRepo{pool: pool}
}

// CreateForPurchase creates the burial record, folding in pending fulfillment
// data when present. A unique index on purchase_id backs the at-most-once
// guarantee.
func (r *DeceasedRepo) CreateForPurchase(ctx context.Context, purchaseID, memberID int64) (DeceasedRecord, error) {
	if r.pool == nil {
		return DeceasedRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if purchaseID <= 0 || memberID <= 0 {
		return DeceasedRecord{}, fmt.Errorf("invalid deliverable payload")
	}

	var rec DeceasedRecord
	err := WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		var pending FulfillmentDetails
		err := tx.QueryRow(txCtx, `
SELECT deceased_name, date_of_death, next_of_kin, next_of_kin_phone, notes
FROM pending_fulfillments
WHERE purchase_id = $1
FOR UPDATE
`, purchaseID).Scan(&pending.DeceasedName, &pending.DateOfDeath, &pending.NextOfKin, &pending.NextOfKinPhone, &pending.Notes)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("load pending fulfillment: %w", err)
		}

		row := tx.QueryRow(txCtx, `
INSERT INTO deceased_records (
	purchase_id,
	member_id,
	deceased_name,
	date_of_death,
	next_of_kin,
	next_of_kin_phone,
	notes,
	created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
RETURNING id, purchase_id, member_id, deceased_name, date_of_death, next_of_kin, next_of_kin_phone, notes, created_at
`, purchaseID, memberID, pending.DeceasedName, pending.DateOfDeath, pending.NextOfKin, pending.NextOfKinPhone, pending.Notes)

		if err := row.Scan(
			&rec.ID,
			&rec.PurchaseID,
			&rec.MemberID,
			&rec.DeceasedName,
			&rec.DateOfDeath,
			&rec.NextOfKin,
			&rec.NextOfKinPhone,
			&rec.Notes,
			&rec.CreatedAt,
		); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrDeliverableExists
			}
			return fmt.Errorf("insert deceased record: %w", err)
		}

		if _, err := tx.Exec(txCtx, `
DELETE FROM pending_fulfillments
WHERE purchase_id = $1
`, purchaseID); err != nil {
			return fmt.Errorf("consume pending fulfillment: %w", err)
		}

		return nil
	})
	if err != nil {
		return DeceasedRecord{}, err
	}

	return rec, nil
}
