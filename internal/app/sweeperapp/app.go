package sweeperapp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/config"
	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/jobs/cleanup"
	pgrepo "github.com/Arnold003-blacko/etosha-backend-sub000/internal/repo/postgres"
	redrepo "github.com/Arnold003-blacko/etosha-backend-sub000/internal/repo/redis"
)

// App runs the stale-purchase sweeper as a standalone process, separate from
// the API so a slow sweep never competes with request traffic.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	postgres *pgxpool.Pool
	redis    *goredis.Client
	job      *cleanup.Job
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("init postgres for sweeper: %w", err)
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	dashboardRepo := redrepo.NewDashboardRepo(redisClient)

	purchaseRepo := pgrepo.NewPurchaseRepo(pool)
	paymentRepo := pgrepo.NewPaymentRepo(pool)
	job := cleanup.New(purchaseRepo, paymentRepo, dashboardRepo, cfg.Cleanup.MaxPendingAge, logger)

	return &App{
		cfg:      cfg,
		logger:   logger,
		postgres: pool,
		redis:    redisClient,
		job:      job,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("sweeper started",
		zap.Duration("interval", a.interval()),
		zap.Duration("max_pending_age", a.cfg.Cleanup.MaxPendingAge),
	)

	if err := a.sweep(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(a.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("sweeper stopped")
			return nil
		case <-ticker.C:
			if err := a.sweep(ctx); err != nil {
				return err
			}
		}
	}
}

func (a *App) Close() {
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

func (a *App) sweep(ctx context.Context) error {
	result, err := a.job.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("cleanup sweep: %w", err)
	}

	a.logger.Debug("sweep finished",
		zap.Int("purchases_cancelled", result.PurchasesCancelled),
		zap.Int64("payments_expired", result.PaymentsExpired),
	)
	return nil
}

func (a *App) interval() time.Duration {
	if a.cfg.Cleanup.Interval > 0 {
		return a.cfg.Cleanup.Interval
	}
	return time.Hour
}
