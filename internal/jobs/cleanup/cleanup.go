package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultMaxPendingAge = 24 * time.Hour

type StalePurchaseStore interface {
	ListStalePendingIDs(ctx context.Context, cutoff time.Time) ([]int64, error)
	CancelStale(ctx context.Context, purchaseID int64, cutoff time.Time) (int64, bool, error)
}

type StalePaymentStore interface {
	ExpireInitiatedOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type InvalidationSignal interface {
	Invalidate(ctx context.Context) error
}

// Job sweeps purchases that never received a successful payment and expires
// the gateway sessions they left behind. Each purchase is re-checked under
// its own lock, so a payment landing mid-sweep wins over the cancellation.
type Job struct {
	purchases     StalePurchaseStore
	payments      StalePaymentStore
	signal        InvalidationSignal
	maxPendingAge time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

type SweepResult struct {
	PurchasesCancelled int
	PaymentsExpired    int64
}

func New(
	purchases StalePurchaseStore,
	payments StalePaymentStore,
	signal InvalidationSignal,
	maxPendingAge time.Duration,
	logger *zap.Logger,
) *Job {
	if maxPendingAge <= 0 {
		maxPendingAge = defaultMaxPendingAge
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		purchases:     purchases,
		payments:      payments,
		signal:        signal,
		maxPendingAge: maxPendingAge,
		now:           time.Now,
		logger:        logger,
	}
}

func (j *Job) Run(ctx context.Context) (SweepResult, error) {
	if j.purchases == nil {
		return SweepResult{}, fmt.Errorf("stale purchase store is nil")
	}

	cutoff := j.now().UTC().Add(-j.maxPendingAge)
	var result SweepResult

	ids, err := j.purchases.ListStalePendingIDs(ctx, cutoff)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list stale purchases: %w", err)
	}

	for _, id := range ids {
		expired, cancelled, err := j.purchases.CancelStale(ctx, id, cutoff)
		if err != nil {
			j.logger.Warn("failed to cancel stale purchase", zap.Int64("purchase_id", id), zap.Error(err))
			continue
		}
		result.PaymentsExpired += expired
		if cancelled {
			result.PurchasesCancelled++
		}
	}

	if j.payments != nil {
		expired, err := j.payments.ExpireInitiatedOlderThan(ctx, cutoff)
		if err != nil {
			j.logger.Warn("failed to expire stale payment sessions", zap.Error(err))
		} else {
			result.PaymentsExpired += expired
		}
	}

	if result.PurchasesCancelled > 0 || result.PaymentsExpired > 0 {
		j.logger.Info("cleanup sweep completed",
			zap.Int("purchases_cancelled", result.PurchasesCancelled),
			zap.Int64("payments_expired", result.PaymentsExpired),
		)
		if j.signal != nil {
			if err := j.signal.Invalidate(ctx); err != nil {
				j.logger.Warn("dashboard invalidation failed", zap.Error(err))
			}
		}
	}

	return result, nil
}
