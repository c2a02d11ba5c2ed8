package main

import (
	"context"

	"shopfront/internal/config"
	"shopfront/internal/db"
	"shopfront/internal/logging"
	cartrepo "shopfront/internal/repository/cart"
	itemrepo "shopfront/internal/repository/item"
	tokenrepo "shopfront/internal/repository/token"
	userrepo "shopfront/internal/repository/user"
	"shopfront/internal/seed"
	catalogsvc "shopfront/internal/service/catalog"
	usersvc "shopfront/internal/service/user"

	"go.uber.org/zap"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New(cfg.LogLevel, "shopfront-seed")
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

	catalog := catalogsvc.New(itemrepo.NewPostgres(pool, logger), nil, logger)
	users := usersvc.New(
		userrepo.NewPostgres(pool, logger),
		cartrepo.NewPostgres(pool, logger),
		tokenrepo.NewPostgres(pool),
		db.NewTxManager(pool),
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
		logger,
	)

	if err := seed.Apply(ctx, catalog, users, logger); err != nil {
		logger.Fatal("seed apply", zap.Error(err))
	}
	logger.Info("seed applied")
}
