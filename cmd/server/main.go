package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hollandm/idunn/internal"
	"github.com/hollandm/idunn/internal/cart"
	"github.com/hollandm/idunn/internal/commerce"
	"github.com/hollandm/idunn/internal/events"
	"github.com/hollandm/idunn/internal/handler"
	"github.com/hollandm/idunn/internal/middleware"
	"github.com/hollandm/idunn/internal/order"
	"github.com/hollandm/idunn/internal/payment"
	"github.com/hollandm/idunn/internal/rewards"
	"github.com/hollandm/idunn/internal/router"
	"github.com/hollandm/idunn/internal/telemetry"
	"github.com/hollandm/idunn/internal/wishlist"
)

func run() error {
	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize business metrics
	telemetry.InitBusinessMetrics("idunn")

	// Commerce backend client
	logger.Info("Initializing commerce client...", "base_url", cfg.Commerce.BaseURL)
	client, err := commerce.NewHTTPClient(commerce.HTTPConfig{
		BaseURL: cfg.Commerce.BaseURL,
		APIKey:  cfg.Commerce.APIKey,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize commerce client: %w", err)
	}

	// Event publisher; disabled unless a NATS URL is configured
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATS.URL != "" {
		logger.Info("Connecting to NATS...", "url", cfg.NATS.URL)
		nc, err := events.NewNATSPublisher(cfg.NATS.URL, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nc.Close()
		publisher = nc
	}

	// Initialize services
	carts := cart.NewReconciler(client, logger)
	rewardsService := rewards.NewService(client, logger)
	wishlistService := wishlist.NewService(client, logger)
	materializer := order.NewMaterializer(client, publisher, logger)

	// Initialize Stripe payment gateway
	logger.Info("Initializing Stripe payment gateway...")
	gateway, err := payment.NewStripeGateway(payment.StripeConfig{
		APIKey:        cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Stripe gateway: %w", err)
	}

	payments := payment.NewHandler(gateway, materializer, publisher, cfg.Pricing.Currency, logger)

	srv := handler.NewServer(handler.ServerConfig{
		Logger:    logger,
		Carts:     carts,
		Rewards:   rewardsService,
		Wishlists: wishlistService,
		Payments:  payments,
		Gateway:   gateway,
		TaxRate:   cfg.Pricing.TaxRate,
	})

	rt := router.New(
		middleware.RequestID,
		middleware.WithRequestLogger(logger),
	)

	// Metrics endpoint; protect via firewall in production
	rt.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		promhttp.Handler().ServeHTTP(w, req)
	})

	// Health check endpoint
	rt.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	srv.Routes(rt)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("Starting checkout engine", "address", addr, "env", cfg.Env)

	if err := http.ListenAndServe(addr, rt); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
