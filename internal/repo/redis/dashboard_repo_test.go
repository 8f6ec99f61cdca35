package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestInvalidateDropsCachedAggregates(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	ctx := context.Background()
	if err := client.Set(ctx, DashboardSummaryKey, `{"collected":"100.00"}`, 0).Err(); err != nil {
		t.Fatalf("seed summary key: %v", err)
	}
	if err := client.Set(ctx, DashboardCollectionsDailyKey, `[]`, 0).Err(); err != nil {
		t.Fatalf("seed daily key: %v", err)
	}

	repo := NewDashboardRepo(client)
	if err := repo.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	if mr.Exists(DashboardSummaryKey) {
		t.Fatalf("expected summary key to be dropped")
	}
	if mr.Exists(DashboardCollectionsDailyKey) {
		t.Fatalf("expected daily key to be dropped")
	}
}

func TestInvalidateFailsWithoutClient(t *testing.T) {
	repo := NewDashboardRepo(nil)
	if err := repo.Invalidate(context.Background()); err == nil {
		t.Fatalf("expected error with nil client")
	}
}

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return mr, client
}
