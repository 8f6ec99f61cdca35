package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	DashboardSummaryKey          = "dashboard:summary"
	DashboardCollectionsDailyKey = "dashboard:collections:daily"
	DashboardInvalidateChannel   = "dashboard:invalidate"
)

// DashboardRepo is the fire-and-forget invalidation signal for the real-time
// dashboard read-models. It drops cached aggregates and publishes a refresh
// event; subscribers recompute on their own schedule.
type DashboardRepo struct {
	client *goredis.Client
	now    func() time.Time
}

func NewDashboardRepo(client *goredis.Client) *DashboardRepo {
	return &DashboardRepo{
		client: client,
		now:    time.Now,
	}
}

func (r *DashboardRepo) Invalidate(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, DashboardSummaryKey, DashboardCollectionsDailyKey)
	pipe.Publish(ctx, DashboardInvalidateChannel, strconv.FormatInt(r.now().UTC().UnixMilli(), 10))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("invalidate dashboard caches: %w", err)
	}

	return nil
}
