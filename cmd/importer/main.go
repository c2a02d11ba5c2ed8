package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"shopfront/internal/config"
	"shopfront/internal/db"
	"shopfront/internal/importer"
	"shopfront/internal/logging"
	itemrepo "shopfront/internal/repository/item"
	catalogsvc "shopfront/internal/service/catalog"

	"go.uber.org/zap"
)

func main() {
	var filePath string
	flag.StringVar(&filePath, "file", "", "Path to catalog CSV (name,price,stock_quantity,image_url)")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	logger, err := logging.New(cfg.LogLevel, "shopfront-importer")
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

	f, err := os.Open(filePath)
	if err != nil {
		logger.Fatal("open file", zap.Error(err))
	}
	defer f.Close()

	catalog := catalogsvc.New(itemrepo.NewPostgres(pool, logger), nil, logger)
	imp := importer.NewCSVImporter(f, catalog)

	start := time.Now()
	count, err := imp.Run(ctx)
	if err != nil {
		logger.Fatal("import failed", zap.Int("imported", count), zap.Error(err))
	}

	fmt.Printf("Imported %d items in %s\n", count, time.Since(start).Truncate(time.Millisecond))
}
