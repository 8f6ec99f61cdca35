package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrMemberNotFound = errors.New("member not found")

type MemberRepo struct {
	pool *pgxpool.Pool
}

type MemberRecord struct {
	ID        int64
	FullName  string
	Email     string
	Phone     string
	Active    bool
	CreatedAt time.Time
}

func NewMemberRepo(pool *pgxpool.Pool) *MemberRepo {
	return &MemberRepo{pool: pool}
}

func (r *MemberRepo) FindByID(ctx context.Context, memberID int64) (MemberRecord, error) {
	if r.pool == nil {
		return MemberRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if memberID <= 0 {
		return MemberRecord{}, fmt.Errorf("invalid member id")
	}

	var rec MemberRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, full_name, email, phone, active, created_at
FROM members
WHERE id = $1
LIMIT 1
`, memberID).Scan(&rec.ID, &rec.FullName, &rec.Email, &rec.Phone, &rec.Active, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MemberRecord{}, ErrMemberNotFound
		}
		return MemberRecord{}, fmt.Errorf("find member by id: %w", err)
	}

	return rec, nil
}
