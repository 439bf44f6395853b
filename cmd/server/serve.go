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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/iliyamo/storefront/internal/config"
	"github.com/iliyamo/storefront/internal/handler"
	"github.com/iliyamo/storefront/internal/logging"
	"github.com/iliyamo/storefront/internal/middleware"
	"github.com/iliyamo/storefront/internal/payment"
	"github.com/iliyamo/storefront/internal/queue"
	"github.com/iliyamo/storefront/internal/router"
	"github.com/iliyamo/storefront/internal/service"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default \":\" + PORT)")
	return cmd
}

func runServe(parent context.Context, addr string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(contextOrBackground(parent), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, closeStore, err := openUserStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	auth := service.NewAuthService(users, service.AuthConfigFrom(cfg), log)
	if _, err := auth.SeedDefaultAdmin(ctx); err != nil {
		return err
	}

	// Redis is optional: without it the limiter passes through and
	// checkout runs without de-duplication.
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	var events service.EventPublisher = queue.NopPublisher{}
	if cfg.RabbitURL != "" {
		events = queue.NewPublisher(cfg.RabbitURL, log)
	}

	processor := payment.NewBreakerProcessor(
		payment.NewStripeProcessor(cfg.StripeSecretKey, log),
		payment.BreakerSettings{MaxFailures: uint32(cfg.BreakerMaxFailures), OpenTimeout: cfg.BreakerOpenTimeout},
		log,
	)

	opts := []service.CheckoutOption{service.WithEvents(events)}
	if rdb != nil {
		opts = append(opts, service.WithIdempotency(service.NewRedisIdempotencyStore(rdb)))
	}
	checkout := service.NewCheckoutService(processor, users, service.CheckoutConfigFrom(cfg), log, opts...)
	receipts := service.NewReceiptService(processor, cfg.PaymentTimeout, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(log))

	router.RegisterRoutes(e)
	router.RegisterStorefront(e, router.Deps{
		Auth:      handler.NewAuthHandler(auth, log),
		Checkout:  handler.NewCheckoutHandler(checkout, receipts, log),
		JWTSecret: cfg.JWTSecret,
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
	})

	if addr == "" {
		addr = ":" + cfg.Port
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", slog.String("addr", addr), slog.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", slog.Any("err", err))
	}
	// Let in-flight checkout events reach the broker before exiting.
	checkout.Wait()
	return nil
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
