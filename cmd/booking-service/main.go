package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/booking/api"
	bookingdb "ms-booking/internal/booking/db"
	"ms-booking/internal/config"
	"ms-booking/internal/coupon"
	"ms-booking/internal/idempotency"
	"ms-booking/internal/inventory"
	kafkawrap "ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/payment"
	"ms-booking/internal/qr"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}
	cfg := config.Load()
	appLogger := logger.NewLogger()
	defer appLogger.Close()

	// --- PostgreSQL Setup ---
	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN))
	sqldb := sql.OpenDB(connector)
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	defer sqldb.Close()

	if err := sqldb.Ping(); err != nil {
		appLogger.Fatal("DATABASE", "Failed to connect to Postgres: "+err.Error())
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())

	for name, migrate := range map[string]func(context.Context, *bun.DB) error{
		"events":   inventory.Migrate,
		"coupons":  coupon.Migrate,
		"bookings": bookingdb.Migrate,
	} {
		if err := migrate(ctx, bunDB); err != nil {
			appLogger.Fatal("DATABASE", "Migration failed for "+name+": "+err.Error())
		}
	}

	// --- Redis Setup ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		appLogger.Fatal("REDIS", "Failed to connect to Redis: "+err.Error())
	}

	// --- Collaborators ---
	payment.InitStripe(cfg.Stripe.SecretKey)
	gateway := payment.NewStripeGateway(appLogger)
	qrGen := qr.NewGenerator(cfg.Booking.QRSecret)

	var publisher booking.EventPublisher
	if cfg.Kafka.Enabled {
		if err := kafkawrap.EnsureTopicExists(cfg.Kafka.Brokers, cfg.Kafka.Topic); err != nil {
			appLogger.Warn("KAFKA", "Topic setup failed, continuing: "+err.Error())
		}
		publisher = kafkawrap.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, qrGen, appLogger)
	} else {
		appLogger.Warn("KAFKA", "Kafka disabled, booking events will not be published")
	}

	// --- Engine wiring ---
	inv := inventory.New(bunDB, appLogger)
	ledger := coupon.NewLedger(bunDB, appLogger)
	idemStore := idempotency.NewStore(redisClient, cfg.Booking.IdempotencyTTL, appLogger)
	service := booking.NewBookingService(
		&bookingdb.DB{Bun: bunDB},
		inv,
		ledger,
		gateway,
		publisher,
		idemStore,
		cfg.Booking.Currency,
		cfg.Booking.PaymentTimeout,
		appLogger,
	)
	handler := api.NewHandler(service, appLogger)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(api.RequestLogger(appLogger))
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware())
		handler.Routes(r)
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		appLogger.Info("SERVER", "Booking engine running on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("SERVER", "HTTP server error: "+err.Error())
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("SERVER", "Shutdown signal received, cleaning up")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		appLogger.Fatal("SERVER", "Server forced to shutdown: "+err.Error())
	}
	appLogger.Info("SERVER", "Server exited gracefully")
}
