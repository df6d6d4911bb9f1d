package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/tripmart/marketplace-backend/internal/cache"
	"github.com/tripmart/marketplace-backend/internal/config"
	"github.com/tripmart/marketplace-backend/internal/database"
	"github.com/tripmart/marketplace-backend/internal/handlers"
	"github.com/tripmart/marketplace-backend/internal/middleware"
	"github.com/tripmart/marketplace-backend/internal/services"
	"github.com/tripmart/marketplace-backend/pkg/jwt"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)

	logrus.Info("Starting TripMart marketplace backend")
	logrus.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logrus.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logrus.SetLevel(logLevel)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Money goes over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	if err := handlers.RegisterValidators(); err != nil {
		logrus.Fatalf("Failed to register validators: %v", err)
	}

	// Initialize database connection
	logrus.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logrus.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		logrus.Info("Running database migrations...")
		if err := database.RunMigrations(db.DB.DB, cfg.Database.MigrationsPath); err != nil {
			logrus.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Redis is optional at runtime; availability falls back to the database
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	availabilityCache := cache.NewRedisCache(redisClient, cfg.Redis.AvailabilityTTL)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := availabilityCache.Ping(pingCtx); err != nil {
		logrus.WithError(err).Warn("Redis unreachable, availability will be read from the database")
	} else {
		logrus.Info("Redis connection established")
	}
	cancelPing()

	// Initialize services
	logrus.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, time.Hour)
	auditService := services.NewAuditService(database.NewAuditRepository(db), cfg.Security.EnableAuditLog)

	serviceRepository := database.NewServiceRepository(db)
	catalogService := services.NewCatalogService(serviceRepository)
	availabilityService := services.NewAvailabilityService(
		serviceRepository,
		database.NewBookingRepository(db),
		availabilityCache,
		cfg.Pricing.BookedRangePreview,
		cfg.Pricing.MaxStayDays,
	)
	couponService := services.NewCouponService(database.NewCouponRepository(db))
	bookingService := services.NewBookingService(db, availabilityService, auditService, cfg.Pricing.PlatformFee)
	orderService := services.NewOrderService(db, auditService, cfg.Pricing.DeliveryCharge, cfg.Pricing.Currency)

	rateLimitService := services.NewRateLimitService(
		cfg.RateLimit.Requests,
		time.Duration(cfg.RateLimit.WindowSeconds)*time.Second,
		cfg.RateLimit.Burst,
	)
	rateLimitService.StartJanitor(time.Minute)
	defer rateLimitService.Stop()

	cronService := services.NewCronService(db)
	if cfg.Cron.Enabled {
		if err := cronService.Start(); err != nil {
			logrus.Fatalf("Failed to start cron service: %v", err)
		}
	}
	logrus.Info("Services initialized")

	// Initialize handlers
	catalogHandler := handlers.NewCatalogHandler(catalogService, availabilityService, couponService, auditService)
	bookingHandler := handlers.NewBookingHandler(bookingService, auditService, cfg.Pricing.MaxStayDays)
	orderHandler := handlers.NewOrderHandler(orderService, auditService)
	adminHandler := handlers.NewAdminHandler(cronService)
	healthHandler := handlers.NewHealthHandler(db, handlers.PingerFunc(availabilityCache.Ping))

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Security.EnableRequestLog {
		router.Use(middleware.RequestLogger())
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Retry-After", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthHandler.Health)

	v1 := router.Group("/api/v1")
	{
		public := v1.Group("", middleware.RateLimit(rateLimitService))
		{
			public.GET("/services/:type/:id", catalogHandler.GetService)
			public.GET("/availability", catalogHandler.CheckAvailability)
			public.POST("/coupons/validate", catalogHandler.ValidateCoupon)
		}

		protected := v1.Group("", middleware.AuthMiddleware(jwtService), middleware.RateLimit(rateLimitService))
		{
			protected.POST("/bookings", bookingHandler.CreateBooking)
			protected.GET("/bookings/:id", bookingHandler.GetBooking)
			protected.POST("/bookings/:id/cancel", bookingHandler.CancelBooking)

			protected.POST("/orders", orderHandler.CreateOrder)
			protected.GET("/orders/:id", orderHandler.GetOrder)
		}

		admin := v1.Group("/admin", middleware.AuthMiddleware(jwtService), middleware.RequireRole("admin"))
		{
			admin.GET("/cron/status", adminHandler.GetCronStatus)
			admin.POST("/cron/:job/run", adminHandler.RunCronJob)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logrus.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	if cfg.Cron.Enabled {
		cronService.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited successfully")
}
