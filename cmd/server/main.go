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
	"go.uber.org/zap"

	"github.com/shuttlehq/service-reservation/internal/application"
	"github.com/shuttlehq/service-reservation/internal/auth"
	"github.com/shuttlehq/service-reservation/internal/config"
	"github.com/shuttlehq/service-reservation/internal/database"
	"github.com/shuttlehq/service-reservation/internal/events"
	"github.com/shuttlehq/service-reservation/internal/handler"
	"github.com/shuttlehq/service-reservation/internal/health"
	"github.com/shuttlehq/service-reservation/internal/logger"
	"github.com/shuttlehq/service-reservation/internal/metrics"
	"github.com/shuttlehq/service-reservation/internal/middleware"
	"github.com/shuttlehq/service-reservation/internal/repository"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, "service-reservation")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-reservation",
		zap.String("port", cfg.Port),
	)

	// Connect to database
	db, err := database.Connect(cfg.DBConfig.DSN(), log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(
			&repository.LocationModel{},
			&repository.TemplateModel{},
			&repository.SegmentModel{},
			&repository.OccurrenceModel{},
			&repository.SegmentInstanceModel{},
			&repository.ReservationModel{},
		); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DBConfig.URL(), "migrations", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWTConfig.Secret, 15*time.Minute)

	// Initialize Kafka producer
	producer := events.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = producer.Close() }()

	// Initialize metrics
	collector := metrics.NewCollector()

	// Initialize repositories and the ledger
	locationRepo := repository.NewGormLocationRepository(db)
	templateRepo := repository.NewGormTemplateRepository(db)
	occurrenceRepo := repository.NewGormOccurrenceRepository(db)
	reservationRepo := repository.NewGormReservationRepository(db)
	ledger := repository.NewGormLedger(db, collector)

	// Initialize application services
	reservationService := application.NewReservationService(
		reservationRepo,
		occurrenceRepo,
		templateRepo,
		ledger,
		producer,
		collector,
		log,
	)
	tripService := application.NewTripService(
		locationRepo,
		templateRepo,
		occurrenceRepo,
		ledger,
		reservationService,
		collector,
		log,
	)
	progressService := application.NewProgressService(occurrenceRepo, ledger, log)

	// Initialize and start the scheduling event consumer in a goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	groupID := cfg.KafkaConfig.GroupPrefix + "reservation-service"
	schedulingConsumer := events.NewSchedulingEventConsumer(
		cfg.KafkaConfig.Brokers,
		groupID,
		tripService,
		log,
	)
	defer func() { _ = schedulingConsumer.Close() }()

	go func() {
		log.Info("starting scheduling event consumer")
		if err := schedulingConsumer.Start(ctx); err != nil && err != context.Canceled {
			log.Error("scheduling event consumer error", zap.Error(err))
		}
	}()

	// Initialize HTTP handlers
	reservationHandler := handler.NewReservationHandler(reservationService)
	tripHandler := handler.NewTripHandler(tripService)
	progressHandler := handler.NewProgressHandler(progressService)
	adminHandler := handler.NewAdminReservationHandler(reservationService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check and metrics routes
	healthHandler := health.NewHandler(db, "service-reservation")
	healthHandler.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(collector.Handler()))

	// Register routes
	reservationHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	tripHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	progressHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	adminHandler.RegisterRoutes(&router.RouterGroup, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-reservation...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-reservation stopped")
}
