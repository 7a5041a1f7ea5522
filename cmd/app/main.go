package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/waste3d/cardvault-api/config"
	"github.com/waste3d/cardvault-api/internal/application/usecase"
	"github.com/waste3d/cardvault-api/internal/infrastructure/cache"
	"github.com/waste3d/cardvault-api/internal/infrastructure/database"
	"github.com/waste3d/cardvault-api/internal/infrastructure/repository"
	"github.com/waste3d/cardvault-api/internal/infrastructure/security"
	"github.com/waste3d/cardvault-api/internal/middleware"
	"github.com/waste3d/cardvault-api/internal/platform/logger"
	"github.com/waste3d/cardvault-api/internal/scheduler"
	grpc_server "github.com/waste3d/cardvault-api/internal/transport/grpc"
	handlers "github.com/waste3d/cardvault-api/internal/transport/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// 1. Конфиг и логгер
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	zl := logger.New(cfg.AppEnv, cfg.LogLevel)
	defer func() { _ = zl.Sync() }()
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 2. База данных
	db, err := database.Open(cfg)
	if err != nil {
		zl.Fatal("failed to connect to DB", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		zl.Fatal("failed to migrate DB", zap.Error(err))
	}
	store := repository.NewStore(db)

	// 3. Redis: кэш каталога и лимитер. Без redis сервис работает, только медленнее.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rdb.Close()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 2*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		zl.Warn("redis unavailable, cache and rate limit degraded", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	cancelPing()

	// 4. Use case и транспорт
	discovery := usecase.NewDiscoveryUseCase(store, zl,
		usecase.WithCatalogCache(cache.NewCatalogCache(rdb, cfg.CatalogCacheTTL)),
	)

	var discoverLimit gin.HandlerFunc
	if cfg.DiscoverRateLimit > 0 {
		discoverLimit = middleware.NewRateLimiter(rdb, zl).Limit("discover", cfg.DiscoverRateLimit, time.Minute)
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		Discovery:      handlers.NewDiscoveryHandler(discovery),
		Auth:           middleware.AuthMiddleware(security.NewTokenValidator(cfg.JWTSecret)),
		DiscoverLimit:  discoverLimit,
		Store:          store,
		AllowedOrigins: cfg.Origins(),
		Log:            zl,
	})
	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 5. gRPC health
	health := grpc_server.NewHealthServer(store, zl)
	grpcServer := health.NewServer()
	lis, err := net.Listen("tcp", cfg.GRPCPort)
	if err != nil {
		zl.Fatal("failed to listen", zap.String("addr", cfg.GRPCPort), zap.Error(err))
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go health.Watch(watchCtx, 15*time.Second)

	// 6. Еженедельный сброс счётчиков
	cron, err := scheduler.New(cfg.WeeklyResetSpec, discovery, zl)
	if err != nil {
		zl.Fatal("invalid WEEKLY_RESET_SPEC", zap.String("spec", cfg.WeeklyResetSpec), zap.Error(err))
	}
	cron.Start()
	zl.Info("weekly reset scheduled", zap.Time("next", cron.Next()))

	go func() {
		zl.Info("gRPC health is running", zap.String("addr", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			zl.Fatal("gRPC serve failed", zap.Error(err))
		}
	}()
	go func() {
		zl.Info("HTTP API is running", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("HTTP serve failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	zl.Info("shutting down")
	stopWatch()
	health.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zl.Error("HTTP shutdown", zap.Error(err))
	}
	cron.Stop(ctx)
	grpcServer.GracefulStop()
}
