package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/adapter/handler"
	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/adapter/storage"
	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/classifier"
	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/config"
	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/core/service"
	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/port"
)

func main() {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	if err := run(logger); err != nil {
		level.Error(logger).Log("msg", "server stopped", "err", err, "detail", classifier.Message(err))
		os.Exit(1)
	}
}

func run(logger log.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(os.Getenv("FARMACIA_CONFIG"))
	if err != nil {
		return err
	}

	// Initialize the relational store
	provider, err := storage.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer provider.Close()

	adapter, err := storage.NewSQLAdapter(provider, cfg.Store.SuggestRoutine)
	if err != nil {
		return err
	}
	if err := adapter.Migrate(ctx); err != nil {
		return err
	}
	name, err := adapter.Ping(ctx)
	if err != nil {
		return err
	}
	level.Info(logger).Log("msg", "connected to store", "driver", cfg.Store.Driver, "database", name)

	// Redis is optional; without it requests are not deduplicated
	var idem port.IdempotencyStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 20,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		idem = storage.NewRedisAdapter(rdb)
		level.Info(logger).Log("msg", "connected to redis", "addr", cfg.RedisAddr)
	} else {
		level.Warn(logger).Log("msg", "redis not configured, idempotency disabled")
	}

	catalog := service.NewCatalogService(adapter, adapter, logger)
	orders := service.NewOrderService(adapter, idem, logger)
	auth := service.NewAuthService(adapter, cfg.AuthSecret, cfg.TokenTTL, logger)

	// gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.AuthInterceptor(auth)))
	handler.RegisterInventoryServer(grpcServer, handler.NewGRPCHandler(catalog, orders, auth, logger))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}
	go func() {
		level.Info(logger).Log("msg", "gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			level.Error(logger).Log("msg", "gRPC server error", "err", err)
		}
	}()

	// HTTP server
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewHTTPHandler(catalog, orders, auth, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		level.Info(logger).Log("msg", "HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			level.Error(logger).Log("msg", "HTTP server error", "err", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	level.Info(logger).Log("msg", "shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	level.Info(logger).Log("msg", "HTTP server stopped")

	grpcServer.GracefulStop()
	level.Info(logger).Log("msg", "gRPC server stopped")
	return nil
}
