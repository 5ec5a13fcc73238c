package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/automart/settlement/internal/catalog"
	"github.com/automart/settlement/internal/discount"
	"github.com/automart/settlement/internal/gateway"
	"github.com/automart/settlement/internal/logger"
	"github.com/automart/settlement/internal/notification"
	"github.com/automart/settlement/internal/order"
	"github.com/automart/settlement/internal/payment"
	"github.com/automart/settlement/internal/refund"
	"github.com/automart/settlement/internal/router"
	storage "github.com/automart/settlement/internal/storage/postgres"
	"github.com/automart/settlement/internal/wallet"
)

func main() {
	if err := run(); err != nil {
		panic(err)
	}
}

func run() error {
	cfg, err := NewConfig()
	if err != nil {
		log.Fatal(err)
	}
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := storage.NewPostgresStorage(cfg.DatabaseConnection)
	if err != nil {
		log.Fatalf("Failed to initialize Postgres storage: %v", err)
	}
	if err := store.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Warning: failed to close storage: %v", err)
		}
	}()

	feePercent, err := decimal.NewFromString(cfg.FeePercent)
	if err != nil {
		log.Fatalf("Invalid platform fee percent %q: %v", cfg.FeePercent, err)
	}

	var notifier notification.Notifier = notification.Noop{}
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		kafka, err := notification.NewKafkaNotifier(brokers, cfg.KafkaTopic)
		if err != nil {
			log.Fatalf("Failed to connect Kafka producer: %v", err)
		}
		defer func() {
			if err := kafka.Close(); err != nil {
				log.Printf("Warning: failed to close Kafka producer: %v", err)
			}
		}()
		notifier = kafka
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
	}

	httpClient := &http.Client{Timeout: cfg.GatewayTimeout}

	cat := &catalog.HTTPCatalogClient{
		Client:  httpClient,
		BaseURL: cfg.CatalogAddress,
	}
	gw := &gateway.HTTPClient{
		Client: httpClient,
		Config: gateway.Config{
			APIURL:        cfg.GatewayAPIURL,
			ValidationURL: cfg.GatewayValidationURL,
			StoreID:       cfg.GatewayStoreID,
			StorePassword: cfg.GatewayStorePassword,
			SuccessURL:    cfg.GatewaySuccessURL,
			FailURL:       cfg.GatewayFailURL,
			CancelURL:     cfg.GatewayCancelURL,
		},
	}

	orderSvc := order.NewService(store, cat, notifier)
	orderHandler := order.NewHandler(orderSvc)

	paymentSvc := payment.NewService(store, gw, notifier, feePercent)
	paymentHandler := payment.NewHandler(paymentSvc)

	refundSvc := refund.NewService(store, notifier)
	refundHandler := refund.NewHandler(refundSvc)

	walletSvc := wallet.NewService(store)
	walletHandler := wallet.NewHandler(walletSvc, cfg.DefaultCurrency)

	discountSvc := discount.NewService(store)
	discountHandler := discount.NewHandler(discountSvc, cfg.DefaultCurrency)

	r := router.NewRouter(
		orderHandler,
		paymentHandler,
		refundHandler,
		walletHandler,
		discountHandler,
		[]byte(cfg.JWTSecret),
		rdb,
		cfg.CallbackLimit,
		cfg.CallbackWindow,
	)

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
	return nil
}
