package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopfront/internal/cache"
	"shopfront/internal/config"
	"shopfront/internal/db"
	"shopfront/internal/events"
	"shopfront/internal/httpserver"
	"shopfront/internal/logging"
	"shopfront/internal/metrics"
	"shopfront/internal/observability"
	cartrepo "shopfront/internal/repository/cart"
	favoriterepo "shopfront/internal/repository/favorite"
	itemrepo "shopfront/internal/repository/item"
	orderrepo "shopfront/internal/repository/order"
	outboxrepo "shopfront/internal/repository/outbox"
	tokenrepo "shopfront/internal/repository/token"
	userrepo "shopfront/internal/repository/user"
	cartsvc "shopfront/internal/service/cart"
	catalogsvc "shopfront/internal/service/catalog"
	favoritesvc "shopfront/internal/service/favorite"
	inventorysvc "shopfront/internal/service/inventory"
	ordersvc "shopfront/internal/service/order"
	usersvc "shopfront/internal/service/user"

	"go.uber.org/zap"
)

const tokenPurgeInterval = 15 * time.Minute

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New(cfg.LogLevel, "shopfront-api")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTLPEndpoint, "shopfront-api")
	if err != nil {
		logger.Fatal("init tracing", zap.Error(err))
	}

	dbpool, err := db.Connect(ctx, cfg.DBConnString, cfg.PoolOptions())
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer dbpool.Close()

	catalogCache := catalogCacheFromConfig(ctx, cfg, logger)
	m := metrics.New()
	txm := db.NewTxManager(dbpool)

	itemRepo := itemrepo.NewPostgres(dbpool, logger)
	userRepo := userrepo.NewPostgres(dbpool, logger)
	cartRepo := cartrepo.NewPostgres(dbpool, logger)
	orderRepo := orderrepo.NewPostgres(dbpool, logger)
	outboxRepo := outboxrepo.NewPostgres(dbpool)

	userService := usersvc.New(userRepo, cartRepo, tokenrepo.NewPostgres(dbpool), txm, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, logger)
	catalogService := catalogsvc.New(itemRepo, catalogCache, logger)
	inventoryService := inventorysvc.New(itemRepo, txm, catalogService, m, logger)
	orderService := ordersvc.New(ordersvc.Deps{
		Orders:  orderRepo,
		Items:   itemRepo,
		Carts:   cartRepo,
		Users:   userRepo,
		Stock:   inventoryService,
		Outbox:  outboxRepo,
		Tx:      txm,
		Metrics: m,
		Catalog: catalogService,
	}, logger)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		UserSvc:      userService,
		CatalogSvc:   catalogService,
		InventorySvc: inventoryService,
		CartSvc:      cartsvc.New(cartRepo, itemRepo, txm, logger),
		OrderSvc:     orderService,
		FavoriteSvc:  favoritesvc.New(favoriterepo.NewPostgres(dbpool)),
		Metrics:      m,
		CORSOrigins:  cfg.CORSAllowedOrigins,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	relayDone := make(chan struct{})
	if writer := events.NewWriter(cfg.KafkaBrokers, cfg.OrderEventsTopic); writer != nil {
		relay := events.NewRelay(outboxRepo, writer, cfg.OrderEventsTopic, cfg.OutboxPollInterval, logger)
		go func() {
			defer close(relayDone)
			_ = relay.Run(ctx)
		}()
	} else {
		close(relayDone)
		logger.Info("KAFKA_BROKERS not set, order events stay in the outbox")
	}

	go purgeTokens(ctx, userService, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
	select {
	case <-relayDone:
	case <-shutdownCtx.Done():
		logger.Warn("outbox relay did not stop in time")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("flush traces", zap.Error(err))
	}
}

func catalogCacheFromConfig(ctx context.Context, cfg config.Config, logger *zap.Logger) cache.Cache {
	if cfg.RedisURL == "" {
		return cache.Noop{}
	}
	rc, err := cache.NewRedis(ctx, cfg.RedisURL, cfg.CatalogCacheTTL)
	if err != nil {
		logger.Warn("redis unavailable, catalog cache disabled", zap.Error(err))
		return cache.Noop{}
	}
	return rc
}

func purgeTokens(ctx context.Context, users *usersvc.Service, logger *zap.Logger) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := users.PurgeExpiredTokens(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("purge expired tokens", zap.Error(err))
			}
		}
	}
}
