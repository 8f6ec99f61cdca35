package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/app/sweeperapp"
	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/config"
	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/infra/logger"
)

func main() {
	cfgPath := os.Getenv("APP_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := sweeperapp.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("create sweeper app", zap.Error(err))
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil {
		log.Fatal("sweeper failed", zap.Error(err))
	}
}
