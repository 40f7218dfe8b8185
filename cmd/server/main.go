package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/trailpaws/service-reservation/internal/application"
	"github.com/trailpaws/service-reservation/internal/config"
	"github.com/trailpaws/service-reservation/internal/events"
	"github.com/trailpaws/service-reservation/internal/handler"
	"github.com/trailpaws/service-reservation/internal/middleware"
	"github.com/trailpaws/service-reservation/internal/payments"
	"github.com/trailpaws/service-reservation/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg.AppEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-reservation", zap.String("port", cfg.Port))

	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(
			&repository.SlotModel{},
			&repository.BookingModel{},
			&repository.IdempotencyModel{},
			&repository.CancellationModel{},
			&repository.QuotationModel{},
		); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	}

	stripe.Key = cfg.Stripe.SecretKey
	gateway := payments.NewStripeGateway()

	producer := events.NewProducer(cfg.KafkaBrokers, log)
	defer func() { _ = producer.Close() }()

	slotRepo := repository.NewGormSlotRepository(db)
	bookingRepo := repository.NewGormBookingRepository(db)
	ledgerRepo := repository.NewGormLedgerRepository(db)
	cancellationRepo := repository.NewGormCancellationRepository(db)
	quotationRepo := repository.NewGormQuotationRepository(db)

	bookingService := application.NewBookingService(bookingRepo, slotRepo, ledgerRepo, producer, log)
	reconcileService := application.NewReconcileService(bookingRepo, quotationRepo, bookingService, producer, log)
	cancellationService := application.NewCancellationService(cancellationRepo, bookingRepo, gateway, producer, log)
	checkoutService := application.NewCheckoutService(slotRepo, quotationRepo, bookingRepo, gateway, log)
	slotService := application.NewSlotService(slotRepo, log)
	sweepService := application.NewSweepService(bookingRepo, producer, log)

	// Scheduled sweep: confirmed bookings whose end date has passed converge
	// to completed without anyone calling the API.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.SweepCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := sweepService.CompleteExpiredBookings(ctx, time.Time{}); err != nil {
			log.Error("scheduled sweep failed", zap.Error(err))
		}
	}); err != nil {
		log.Fatal("invalid sweep schedule", zap.String("cron", cfg.SweepCron), zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.Use(middleware.RequestID())

	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "service-reservation"})
	})

	handler.NewBookingHandler(bookingService).RegisterRoutes(&router.RouterGroup, cfg.JWTSecret)
	handler.NewCheckoutHandler(checkoutService).RegisterRoutes(&router.RouterGroup)
	handler.NewWebhookHandler(reconcileService, cfg.Stripe.WebhookSecret, log).RegisterRoutes(&router.RouterGroup)
	handler.NewCancellationHandler(cancellationService).RegisterRoutes(&router.RouterGroup, cfg.JWTSecret)
	handler.NewSlotHandler(slotService).RegisterRoutes(&router.RouterGroup, cfg.JWTSecret)
	handler.NewAdminHandler(bookingService, sweepService).RegisterRoutes(&router.RouterGroup, cfg.JWTSecret)

	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-reservation...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("service-reservation stopped")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
