package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codecommunity/internal/auth"
	"codecommunity/internal/config"
	"codecommunity/internal/db"
	"codecommunity/internal/handlers"
	"codecommunity/internal/logger"
	"codecommunity/internal/metrics"
	"codecommunity/internal/router"
	"codecommunity/internal/services"
	"codecommunity/internal/storage"
	"codecommunity/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}
	cfg := config.Load()

	zlog, err := logger.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zlog.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := openStorage(cfg, zlog)
	if err != nil {
		zlog.Fatal("Failed to open storage", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}

	if cfg.SeedSampleData {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := services.SeedSampleData(ctx, store, zlog); err != nil {
			zlog.Error("Failed to seed sample data", zap.Error(err))
		}
		cancel()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	tagCache, err := utils.NewCache(256)
	if err != nil {
		zlog.Fatal("Failed to create tag cache", zap.Error(err))
	}

	// 初始化异步浏览量服务
	views := services.NewViewRecorder(store, zlog, cfg.ViewFlushInterval)
	views.Start()

	deps := &handlers.Deps{
		Store:    store,
		Tokens:   auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL),
		Log:      zlog,
		Metrics:  metrics.New(reg),
		Views:    views,
		TagCache: tagCache,
	}

	tagSync := services.NewTagSyncTask(store, zlog, deps.InvalidateTags)
	if err := tagSync.Start(cfg.TagReconcileSpec); err != nil {
		zlog.Fatal("Invalid tag reconcile schedule", zap.String("spec", cfg.TagReconcileSpec), zap.Error(err))
	}

	r := router.New(router.Options{
		SessionSecret: cfg.SessionSecret,
		CORSOrigins:   cfg.CORSOrigins,
		Secure:        cfg.IsProduction(),
	}, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("CodeCommunity server starting", zap.String("port", cfg.Port), zap.String("storage", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Error("Server forced to shutdown", zap.Error(err))
	}

	select {
	case <-tagSync.Stop().Done():
	case <-ctx.Done():
		zlog.Warn("Tag reconciliation still running at shutdown")
	}
	views.Stop()
	zlog.Info("Server exited")
}

func openStorage(cfg *config.Config, zlog *zap.Logger) (storage.Storage, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		return storage.NewMemStorage(), nil
	case config.DriverPostgres:
		conn, err := db.Open(cfg.DatabaseURL, zlog)
		if err != nil {
			return nil, err
		}
		return storage.NewGormStorage(conn), nil
	default:
		return nil, errors.New("unknown STORAGE_DRIVER " + cfg.StorageDriver)
	}
}
