package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/rail-booking-backend/internal/config"
	"github.com/smarttransit/rail-booking-backend/internal/database"
	"github.com/smarttransit/rail-booking-backend/internal/handlers"
	"github.com/smarttransit/rail-booking-backend/internal/middleware"
	"github.com/smarttransit/rail-booking-backend/internal/services"
	"github.com/smarttransit/rail-booking-backend/pkg/jwt"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting rail booking backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.WithField("driver", db.DriverName()).Info("Database connection established")

	if err := database.Migrate(context.Background(), db); err != nil {
		logger.Fatalf("Failed to apply schema: %v", err)
	}

	rules, err := services.BookingRulesFromConfig(cfg.Booking)
	if err != nil {
		logger.Fatalf("Invalid booking configuration: %v", err)
	}

	// Optional collaborators
	opts := []services.Option{}

	redisClient, err := database.NewRedisClient(cfg.Redis)
	switch {
	case err != nil:
		logger.WithError(err).Warn("Redis unavailable, falling back to in-process locks")
	case redisClient != nil:
		defer redisClient.Close()
		opts = append(opts, services.WithLocker(services.NewRedisLocker(redisClient)))
		logger.WithField("addr", cfg.Redis.Addr).Info("Using redis for distributed locks")
	default:
		logger.Info("Redis not configured, using in-process locks")
	}

	if cfg.AMQP.URL != "" {
		publisher, err := services.NewAMQPEventPublisher(cfg.AMQP.URL, cfg.AMQP.Queue)
		if err != nil {
			logger.WithError(err).Warn("RabbitMQ unavailable, order events disabled")
		} else {
			defer publisher.Close()
			opts = append(opts, services.WithEventPublisher(publisher))
			logger.WithField("queue", cfg.AMQP.Queue).Info("Publishing order events")
		}
	}

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
	ledger := services.NewSeatLedger(db, services.NewSegmentResolver())
	bookingService := services.NewBookingService(db, ledger, rules, logger, opts...)
	lifecycleService := services.NewOrderLifecycleService(db, ledger, rules, logger, opts...)
	cleanupService := services.NewCleanupService(db, lifecycleService,
		services.CleanupScheduleFromConfig(cfg.Cleanup), rules.Location, logger, opts...)
	materializer := services.NewSeatMaterializer(db, rules.Location, logger, opts...)

	if cfg.Cleanup.Enabled {
		cleanupService.KeepMaterialized(materializer, cfg.Cleanup.MaterializeAheadDays)
		if err := cleanupService.Start(); err != nil {
			logger.Fatalf("Failed to start cleanup scheduler: %v", err)
		}
		defer cleanupService.Stop()
		logger.WithField("days_ahead", cfg.Cleanup.MaterializeAheadDays).Info("✓ Cleanup scheduler started")
	}

	// Initialize handlers
	availabilityHandler := handlers.NewAvailabilityHandler(ledger, logger)
	orderHandler := handlers.NewOrderHandler(bookingService, lifecycleService, logger)
	adminHandler := handlers.NewAdminHandler(cleanupService, logger)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthCheckHandler(db))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(jwtService, logger))
	{
		v1.GET("/availability", availabilityHandler.GetAvailability)

		orders := v1.Group("/orders")
		{
			orders.POST("", middleware.RestrictUnpaidBooking(lifecycleService, logger), orderHandler.CreateBooking)
			orders.POST("/pending", middleware.RestrictUnpaidBooking(lifecycleService, logger), orderHandler.CreatePendingOrder)
			orders.GET("", orderHandler.ListOrders)
			orders.GET("/:id", orderHandler.GetOrder)
			orders.GET("/:id/time-remaining", orderHandler.TimeRemaining)
			orders.POST("/:id/confirm", orderHandler.ConfirmPendingOrder)
			orders.POST("/:id/pay", orderHandler.ConfirmPayment)
			orders.POST("/:id/cancel", orderHandler.CancelOrder)
		}

		v1.GET("/cancellations/today", orderHandler.CancellationsToday)

		admin := v1.Group("/admin")
		admin.Use(middleware.RequireRole("admin"))
		{
			admin.POST("/cleanup/run", adminHandler.RunCleanup)
			admin.GET("/cleanup/last", adminHandler.LastCleanup)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
