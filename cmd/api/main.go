package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/cache"
	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/hub"
	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/refresh"
	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/registry"
	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/repository"
	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/server"
	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/trigger"
	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/upstream"
	"github.com/shubham-shewale/price-world-cache/pkg/config"
	"github.com/shubham-shewale/price-world-cache/pkg/models"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	repo := repository.NewRedisStore(rdb)
	if err := repo.Ping(ctx); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	feed := upstream.NewClient(cfg.Upstream.BootstrapURL, cfg.Upstream.PriceBaseURL, logger,
		upstream.WithTimeout(cfg.Upstream.Timeout),
		upstream.WithUserAgent(cfg.Upstream.UserAgent),
	)

	// Dependency Injection: one store, shared by the refresh side, the HTTP side and the hub
	store := cache.NewStore()
	wsHub := hub.NewHub(store, logger)
	store.OnReplace(wsHub.Publish)

	prices := refresh.NewPricePipeline(feed, repo, logger)
	worlds := refresh.NewWorldPipeline(repo, logger)

	bootCtx, cancelBoot := context.WithTimeout(ctx, cfg.Refresh.Timeout)
	err = refresh.Bootstrap(bootCtx, store, logger, prices, worlds)
	cancelBoot()
	if err != nil {
		logger.Fatal("Bootstrap failed, refusing to serve an empty cache", zap.Error(err))
	}

	var source repository.TriggerSource = repo
	if cfg.Trigger.Backend == config.TriggerBackendKafka {
		source = trigger.NewKafkaSource(cfg.Kafka.Brokers, logger)
	}

	listeners := []*refresh.Listener{
		refresh.NewListener(prices, store.Prices(), source, cfg.Trigger.Channel(models.DomainPrices), cfg.Refresh.Timeout, logger),
		refresh.NewListener(worlds, store.Worlds(), source, cfg.Trigger.Channel(models.DomainWorlds), cfg.Refresh.Timeout, logger),
	}
	listenersDone := make(chan struct{})
	go func() {
		refresh.RunAll(ctx, logger, listeners...)
		close(listenersDone)
	}()

	if cfg.App.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Handler:           server.NewRouter(store, wsHub, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.App.Port)
	if err != nil {
		logger.Fatal("Failed to bind HTTP listener", zap.String("port", cfg.App.Port), zap.Error(err))
	}

	go func() {
		logger.Info("Server Started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	if cfg.Registry.Enabled {
		registrar := registry.NewRegistrar(registry.Config{
			Key:         cfg.Registry.Key,
			Role:        cfg.Registry.Role,
			IPLookupURL: cfg.Registry.IPLookupURL,
			PublicIP:    cfg.Registry.PublicIP,
		}, feed, repo, logger)
		if _, err := registrar.Register(ctx); err != nil {
			logger.Fatal("Failed to register server", zap.Error(err))
		}
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	<-listenersDone

	if err := repo.Close(); err != nil {
		logger.Error("Error closing Redis", zap.Error(err))
	}
	logger.Info("Shutdown Complete")
}
