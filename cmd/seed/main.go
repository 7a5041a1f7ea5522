package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/waste3d/cardvault-api/config"
	"github.com/waste3d/cardvault-api/internal/infrastructure/cache"
	"github.com/waste3d/cardvault-api/internal/infrastructure/catalog"
	"github.com/waste3d/cardvault-api/internal/infrastructure/database"
	"github.com/waste3d/cardvault-api/internal/infrastructure/repository"
	"github.com/waste3d/cardvault-api/internal/platform/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	path := flag.String("file", "catalog.yaml", "catalog file (.yaml, .yml or .toml)")
	flag.Parse()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	zl := logger.New(cfg.AppEnv, cfg.LogLevel)
	defer func() { _ = zl.Sync() }()

	items, err := catalog.Load(*path)
	if err != nil {
		zl.Fatal("catalog rejected", zap.String("file", *path), zap.Error(err))
	}

	db, err := database.Open(cfg)
	if err != nil {
		zl.Fatal("failed to connect to DB", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		zl.Fatal("failed to migrate DB", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := repository.NewStore(db).Collectibles.Upsert(ctx, items); err != nil {
		zl.Fatal("upsert failed", zap.Error(err))
	}
	zl.Info("catalog seeded", zap.String("file", *path), zap.Int("cards", len(items)))

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rdb.Close()
	if err := cache.NewCatalogCache(rdb, cfg.CatalogCacheTTL).Invalidate(ctx); err != nil {
		zl.Warn("catalog cache not invalidated, it expires on its own", zap.Duration("ttl", cfg.CatalogCacheTTL), zap.Error(err))
	}
}
