package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/config"
	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/infra/httpclient"
	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/infra/paynow"
	pgrepo "github.com/Arnold003-blacko/etosha-backend-sub000/internal/repo/postgres"
	redrepo "github.com/Arnold003-blacko/etosha-backend-sub000/internal/repo/redis"
	authsvc "github.com/Arnold003-blacko/etosha-backend-sub000/internal/services/auth"
	fulfillmentsvc "github.com/Arnold003-blacko/etosha-backend-sub000/internal/services/fulfillment"
	paymentsvc "github.com/Arnold003-blacko/etosha-backend-sub000/internal/services/payments"
	purchasesvc "github.com/Arnold003-blacko/etosha-backend-sub000/internal/services/purchases"
	settlementsvc "github.com/Arnold003-blacko/etosha-backend-sub000/internal/services/settlement"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	dashboardRepo := redrepo.NewDashboardRepo(redisClient)

	productRepo := pgrepo.NewProductRepo(pool)
	planRepo := pgrepo.NewPlanRepo(pool)
	memberRepo := pgrepo.NewMemberRepo(pool)
	purchaseRepo := pgrepo.NewPurchaseRepo(pool)
	paymentRepo := pgrepo.NewPaymentRepo(pool)
	settlementRepo := pgrepo.NewSettlementRepo(pool)
	deceasedRepo := pgrepo.NewDeceasedRepo(pool)

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	authService := authsvc.NewService(jwtManager)

	var gateway *paynow.Client
	if g, err := paynow.NewClient(paynow.Config{
		BaseURL:        cfg.Paynow.BaseURL,
		IntegrationID:  cfg.Paynow.IntegrationID,
		IntegrationKey: cfg.Paynow.IntegrationKey,
		ReturnURL:      cfg.Paynow.ReturnURL,
		ResultURL:      cfg.Paynow.ResultURL,
	}, httpclient.New(cfg.Paynow.Timeout)); err != nil {
		log.Warn("gateway init failed, deferred payments unavailable", zap.Error(err))
	} else {
		gateway = g
	}

	pushCap := decimal.Zero
	if cfg.Paynow.EcocashCap != "" {
		parsed, err := decimal.NewFromString(cfg.Paynow.EcocashCap)
		if err != nil {
			return nil, fmt.Errorf("parse ecocash cap %q: %w", cfg.Paynow.EcocashCap, err)
		}
		pushCap = parsed
	}

	fulfillmentService := fulfillmentsvc.NewService(deceasedRepo, log)
	settlementService := settlementsvc.NewService(settlementsvc.Dependencies{
		Store:       settlementRepo,
		Products:    productRepo,
		Fulfillment: fulfillmentService,
		Signal:      dashboardRepo,
		Logger:      log,
	})
	purchaseService := purchasesvc.NewService(purchasesvc.Dependencies{
		Products:  productRepo,
		Plans:     planRepo,
		Purchases: purchaseRepo,
		Signal:    dashboardRepo,
		Logger:    log,
	})
	paymentDeps := paymentsvc.Dependencies{
		Payments:  paymentRepo,
		Purchases: purchaseRepo,
		Members:   memberRepo,
		Settler:   settlementService,
		Logger:    log,
		PushCap:   pushCap,
	}
	if gateway != nil {
		paymentDeps.Gateway = gateway
	}
	paymentService := paymentsvc.NewService(paymentDeps)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	RegisterRoutes(r, Dependencies{
		AuthService:       authService,
		PurchaseService:   purchaseService,
		PaymentService:    paymentService,
		SettlementService: settlementService,
		Logger:            log,
		Config:            cfg,
	})

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
