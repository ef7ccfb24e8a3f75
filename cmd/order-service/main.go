package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ordermgmt/ordercore/internal/cache"
	"github.com/ordermgmt/ordercore/internal/httpx"
	"github.com/ordermgmt/ordercore/internal/outbox"
	"github.com/ordermgmt/ordercore/internal/repository"
	"github.com/ordermgmt/ordercore/internal/service"
	"github.com/ordermgmt/ordercore/pkg/contracts"
	"github.com/ordermgmt/ordercore/pkg/kafka"
	"github.com/ordermgmt/ordercore/pkg/metrics"
	"github.com/ordermgmt/ordercore/pkg/telemetry"
)

type config struct {
	databaseURL  string
	httpAddr     string
	redisAddr    string
	kafkaBrokers string
}

func loadConfig() (config, error) {
	cfg := config{
		databaseURL:  os.Getenv("DATABASE_URL"),
		httpAddr:     os.Getenv("HTTP_ADDR"),
		redisAddr:    os.Getenv("REDIS_ADDR"),
		kafkaBrokers: os.Getenv("KAFKA_BROKERS"),
	}
	if cfg.databaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}
	if cfg.httpAddr == "" {
		cfg.httpAddr = ":8080"
	}
	return cfg, nil
}

func main() {
	telemetry.InitLogger()

	if err := run(); err != nil {
		slog.Error("service exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := repository.NewPool(ctx, cfg.databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	m := metrics.NewOrderMetrics()

	var c cache.Cache
	if cfg.redisAddr != "" {
		c = cache.NewRedisCache(cfg.redisAddr, "ordercore")
	}

	orders := service.NewOrderService(pool, c, m)
	payments := service.NewPaymentService(pool, service.SimulatedGateway{}, c, m)

	// The relay only runs when brokers are configured; events still
	// accumulate in the outbox either way.
	if client := kafka.NewClient(cfg.kafkaBrokers); client.Enabled() {
		writer := client.NewWriter(contracts.TopicOrderEvents)
		defer writer.Close()

		relay := outbox.NewRelay(pool, writer)
		go relay.Run(ctx)
	}

	handler := httpx.NewHandler(orders, payments)
	router := httpx.NewRouter(handler, pool, m)

	server := &http.Server{
		Addr:              cfg.httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", cfg.httpAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("shutting down")
	return server.Shutdown(shutdownCtx)
}
