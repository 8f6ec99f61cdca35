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

var ErrProductNotFound = errors.New("product not found")

type ProductRepo struct {
	pool *pgxpool.Pool
}

type ProductRecord struct {
	ID           int64
	Name         string
	Category     enums.ProductCategory
	PricingClass *string
	ListPrice    decimal.Decimal
	Active       bool
	CheckedOut   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func NewProductRepo(pool *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

func (r *ProductRepo) FindByID(ctx context.Context, productID int64) (ProductRecord, error) {
	if r.pool == nil {
		return ProductRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if productID <= 0 {
		return ProductRecord{}, fmt.Errorf("invalid product id")
	}

	var rec ProductRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, name, category, pricing_class, list_price, active, checked_out, created_at, updated_at
FROM products
WHERE id = $1
LIMIT 1
`, productID).Scan(
		&rec.ID,
		&rec.Name,
		&rec.Category,
		&rec.PricingClass,
		&rec.ListPrice,
		&rec.Active,
		&rec.CheckedOut,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductRecord{}, ErrProductNotFound
		}
		return ProductRecord{}, fmt.Errorf("find product by id: %w", err)
	}

	return rec, nil
}
