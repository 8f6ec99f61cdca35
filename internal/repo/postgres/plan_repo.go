package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/domain/rules"
)

var (
	ErrPlanNotFound = errors.New("installment plan not found")
)

type PlanRepo struct {
	pool *pgxpool.Pool
}

type PlanRecord struct {
	ID        int64
	Name      string
	Months    int
	Prices    rules.PriceTable
	CreatedAt time.Time
}

func NewPlanRepo(pool *pgxpool.Pool) *PlanRepo {
	return &PlanRepo{pool: pool}
}

// FindByID loads the plan together with its full price table. Every pricing
// class present in the table must carry a positive price for both age
// brackets; a half-configured class fails the load rather than surfacing as
// a per-request pricing miss. A plan with no price rows at all is still
// returned and rejected later by the pricing resolver.
func (r *PlanRepo) FindByID(ctx context.Context, planID int64) (PlanRecord, error) {
	if r.pool == nil {
		return PlanRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if planID <= 0 {
		return PlanRecord{}, fmt.Errorf("invalid plan id")
	}

	var rec PlanRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, name, months, created_at
FROM plans
WHERE id = $1
LIMIT 1
`, planID).Scan(&rec.ID, &rec.Name, &rec.Months, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PlanRecord{}, ErrPlanNotFound
		}
		return PlanRecord{}, fmt.Errorf("find plan by id: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
SELECT pricing_class, age_bracket, monthly_price
FROM plan_prices
WHERE plan_id = $1
`, planID)
	if err != nil {
		return PlanRecord{}, fmt.Errorf("load plan prices: %w", err)
	}
	defer rows.Close()

	rec.Prices = rules.PriceTable{}
	seen := map[string]struct{}{}
	classes := []string{}
	for rows.Next() {
		var (
			class   string
			bracket string
			price   decimal.Decimal
		)
		if err := rows.Scan(&class, &bracket, &price); err != nil {
			return PlanRecord{}, fmt.Errorf("scan plan price row: %w", err)
		}
		rec.Prices[rules.PriceKey{PricingClass: class, Bracket: rules.AgeBracket(bracket)}] = price
		if _, ok := seen[class]; !ok {
			seen[class] = struct{}{}
			classes = append(classes, class)
		}
	}
	if err := rows.Err(); err != nil {
		return PlanRecord{}, fmt.Errorf("iterate plan price rows: %w", err)
	}

	if err := rec.Prices.Validate(classes); err != nil {
		return PlanRecord{}, fmt.Errorf("plan %d price table: %w", planID, err)
	}

	return rec, nil
}
