package main

import (
	"context"
	"flag"

	"shopfront/internal/config"
	"shopfront/internal/db"
	"shopfront/internal/logging"
	"shopfront/internal/migrate"

	"go.uber.org/zap"
)

func main() {
	down := flag.Bool("down", false, "revert every migration instead of applying them")
	flag.Parse()

	cfg := config.FromEnv()
	logger, err := logging.New(cfg.LogLevel, "shopfront-migrate")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, cfg.PoolOptions())
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	if *down {
		if err := migrate.Down(ctx, pool); err != nil {
			logger.Fatal("revert migrations", zap.Error(err))
		}
		logger.Info("migrations reverted")
		return
	}

	if err := migrate.Apply(ctx, pool, logger); err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}
	logger.Info("migrations applied")
}
