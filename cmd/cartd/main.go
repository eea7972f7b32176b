package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"google.golang.org/grpc"

	cartapp "github.com/dwikikusuma/fakenft-cart/internal/cart/app"
	cartgrpc "github.com/dwikikusuma/fakenft-cart/internal/cart/grpc"
	"github.com/dwikikusuma/fakenft-cart/internal/cart/httpapi"
	"github.com/dwikikusuma/fakenft-cart/internal/cart/infra/events"
	"github.com/dwikikusuma/fakenft-cart/internal/cart/infra/nftapi"
	cartpg "github.com/dwikikusuma/fakenft-cart/internal/cart/infra/postgres"

	"github.com/dwikikusuma/fakenft-cart/pkg/config"
	"github.com/dwikikusuma/fakenft-cart/pkg/logger"
	"github.com/dwikikusuma/fakenft-cart/pkg/postgres"
	"github.com/dwikikusuma/fakenft-cart/pkg/shutdown"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{Service: "cartd", Env: cfg.AppEnv, Level: cfg.LogLevel, AddSource: true})

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	svc, closeSvc, err := newCartService(ctx, cfg, log)
	if err != nil {
		log.Error("cart service init failed", slog.Any("err", err), slog.String("backend", cfg.CartBackend))
		os.Exit(1)
	}
	defer closeSvc()

	pub, err := newPublisher(ctx, cfg)
	if err != nil {
		log.Error("event publisher init failed", slog.Any("err", err), slog.String("sink", cfg.EventsSink))
		os.Exit(1)
	}
	defer pub.Close()

	agg := cartapp.NewAggregator(svc, cartapp.WithLogger(log))
	hub := httpapi.NewHub(agg, log)
	agg.Subscribe(hub)
	evObs := events.NewObserver(agg, pub, log)
	agg.Subscribe(evObs)
	agg.Subscribe(cartapp.ObserverFuncs{
		ContentsChanged: func() {
			cart := agg.Snapshot()
			log.Info("cart changed", slog.Int("items", cart.ItemCount), slog.String("total", cart.FormatTotal()))
		},
		Error: func(err error) {
			log.Warn("cart operation failed", slog.Any("err", err))
		},
	})
	agg.LoadItemsAsync(ctx)

	if cfg.AppEnv == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), cors.Default(), httpapi.RequestLogger(log))
	httpapi.NewHandler(agg, hub, log).Register(router)

	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	server := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcAddr := fmt.Sprintf(":%d", cfg.GRPCPort)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Error("listen failed", slog.Any("err", err), slog.String("addr", grpcAddr))
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	cartgrpc.RegisterCartServer(grpcServer, cartgrpc.NewServer(agg))

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("http server starting", slog.String("addr", httpAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", slog.Any("err", err))
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("grpc starting", slog.String("addr", grpcAddr))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("grpc serve error", slog.Any("err", err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown requested")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()

	if err := server.Shutdown(stopCtx); err != nil {
		log.Error("http shutdown error", slog.Any("err", err))
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopCtx.Done():
		log.Warn("graceful stop timeout, forcing stop")
		grpcServer.Stop()
	case <-stopped:
	}

	agg.Close()
	agg.Wait()
	evObs.Close()
	wg.Wait()
	log.Info("bye")
}

func newCartService(ctx context.Context, cfg config.Config, log *slog.Logger) (cartapp.CartService, func(), error) {
	switch cfg.CartBackend {
	case "nftapi":
		client, err := nftapi.NewClient(nftapi.Config{
			BaseURL:       cfg.NFTAPIBaseURL,
			Token:         cfg.NFTAPIToken,
			OrderID:       cfg.NFTOrderID,
			Timeout:       cfg.NFTAPITimeout,
			MaxConcurrent: cfg.NFTAPIConcurrency,
			Logger:        log,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil

	case "postgres":
		db, err := postgres.Open(postgres.Config{
			Host: cfg.PostgresHost,
			Port: cfg.PostgresPort,
			User: cfg.PostgresUser,
			Pass: cfg.PostgresPass,
			DB:   cfg.PostgresDB,
		})
		if err != nil {
			return nil, nil, err
		}
		store := cartpg.NewCartStore(db, cfg.NFTOrderID)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, func() { _ = db.Close() }, nil

	default:
		return nil, nil, errors.Errorf("unknown cart backend %q", cfg.CartBackend)
	}
}

func newPublisher(ctx context.Context, cfg config.Config) (events.Publisher, error) {
	switch cfg.EventsSink {
	case "", "none":
		return events.Nop{}, nil
	case "redis":
		return events.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisChannel)
	case "amqp":
		return events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	default:
		return nil, errors.Errorf("unknown events sink %q", cfg.EventsSink)
	}
}
