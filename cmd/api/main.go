package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hungerdash/hungerdash-backend/api/routes"
	"github.com/hungerdash/hungerdash-backend/internal/cart"
	"github.com/hungerdash/hungerdash-backend/internal/catalog"
	"github.com/hungerdash/hungerdash-backend/internal/checkout"
	"github.com/hungerdash/hungerdash-backend/internal/coupons"
	"github.com/hungerdash/hungerdash-backend/internal/delivery"
	"github.com/hungerdash/hungerdash-backend/internal/orders"
	"github.com/hungerdash/hungerdash-backend/internal/payments"
	"github.com/hungerdash/hungerdash-backend/internal/pricing"
	"github.com/hungerdash/hungerdash-backend/pkg/config"
	"github.com/hungerdash/hungerdash-backend/pkg/db"
	"github.com/hungerdash/hungerdash-backend/pkg/gateway"
	"github.com/hungerdash/hungerdash-backend/pkg/instance"
	"github.com/hungerdash/hungerdash-backend/pkg/logger"
	"github.com/hungerdash/hungerdash-backend/pkg/metrics"
	"github.com/hungerdash/hungerdash-backend/pkg/migrate"
	"github.com/hungerdash/hungerdash-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gatewayClient, err := gateway.NewClient(context.Background(), cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap payment gateway", err)
		os.Exit(1)
	}

	gdb := dbClient.DB()
	catalogRepo := catalog.NewRepository(gdb)
	cartRepo := cart.NewRepository(gdb)
	couponsRepo := coupons.NewRepository(gdb)
	deliveryRepo := delivery.NewRepository(gdb)
	ordersRepo := orders.NewRepository(gdb)
	paymentsRepo := payments.NewRepository(gdb)

	engine := pricing.NewEngine(pricing.Defaults{
		DeliveryFee:           cfg.Checkout.DefaultDeliveryFeeAmount(),
		FreeDeliveryThreshold: cfg.Checkout.FreeDeliveryThresholdAmount(),
	})

	couponsService, err := coupons.NewService(couponsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create coupons service", err)
		os.Exit(1)
	}

	deliveryService, err := delivery.NewService(deliveryRepo, engine)
	if err != nil {
		logg.Error(context.Background(), "failed to create delivery service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cartRepo, catalogRepo, couponsService, cfg.Checkout.CartAbandonAfter)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	reconciler, err := payments.NewReconciler(
		paymentsRepo,
		ordersRepo,
		couponsService,
		cartService,
		dbClient,
		logg,
		metrics.NewReconciliationMetrics(prometheus.DefaultRegisterer),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment reconciler", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(
		paymentsRepo,
		ordersRepo,
		gatewayClient,
		reconciler,
		cfg.Checkout,
		cfg.Gateway,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(ordersRepo, dbClient, paymentsService)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(
		catalogRepo,
		couponsService,
		deliveryService,
		cartRepo,
		cartService,
		ordersRepo,
		engine,
		dbClient,
		cfg.Checkout,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"instance":    instance.GetID(),
		"gateway_env": gatewayClient.Environment(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			gatewayClient,
			cartService,
			checkoutService,
			ordersService,
			paymentsService,
			couponsService,
			deliveryService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
