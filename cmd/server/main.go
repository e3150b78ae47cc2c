package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/noakmilo/qventory-relist/internal/api/handlers"
	"github.com/noakmilo/qventory-relist/internal/api/routes"
	"github.com/noakmilo/qventory-relist/internal/config"
	"github.com/noakmilo/qventory-relist/internal/repository"
	"github.com/noakmilo/qventory-relist/internal/services/marketplace"
	"github.com/noakmilo/qventory-relist/internal/services/relist"
	"github.com/noakmilo/qventory-relist/pkg/postgres"
	"github.com/noakmilo/qventory-relist/pkg/ratelimit"
	"github.com/noakmilo/qventory-relist/pkg/redis"
)

func main() {
	ctxCancel, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	logrusLevel, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.WithError(err).Fatal("Failed to parse log level")
	}

	logger.SetLevel(logrusLevel)

	// Set Gin mode based on environment
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Setup CORS
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize Redis client")
	}

	// Initialize repositories
	ruleRepo := repository.NewRelistRuleRepository(db.DB)
	historyRepo := repository.NewRelistHistoryRepository(db.DB)
	inventoryRepo := repository.NewInventoryRepository(db.DB)
	userRepo := repository.NewUserRepository(db.DB)
	unitOfWork := repository.NewUnitOfWork(db.DB)

	// Reset claims left behind by a crash or unclean shutdown.
	if released, err := ruleRepo.ReleaseAll(ctxCancel); err != nil {
		logger.WithError(err).Fatal("Failed to reset stale relist claims")
	} else if released > 0 {
		logger.WithField("count", released).Warn("Reset relist rules left in_progress by a previous run")
	}

	// Initialize marketplace collaborators
	marketplaceLimiter := ratelimit.NewMarketplaceRateLimiter(&cfg.Marketplace, logger)
	marketplaceLimiter.StartCleanupExpired(ctxCancel)
	tokenCache := marketplace.NewTokenCache(&cfg.Marketplace, logger, redisClient, userRepo)
	listingAPI := marketplace.NewClient(&cfg.Marketplace, logger, tokenCache, marketplaceLimiter)
	inventoryQuery := marketplace.NewInventoryQuery(inventoryRepo)

	// Initialize relist engine and scheduler
	pool := relist.NewWorkerPool(cfg.Relist.Workers, logger)
	safety := relist.NewSafetyPipeline(inventoryQuery, logger)
	engine := relist.NewEngine(&cfg.Relist, logger, ruleRepo, historyRepo, unitOfWork, listingAPI, inventoryQuery, safety, pool)
	scheduler := relist.NewScheduler(&cfg.Relist, logger, ruleRepo, engine, pool)
	relistService := relist.NewRelistService(&cfg.Relist, logger, ruleRepo, historyRepo, scheduler)

	trigger := relist.NewPeriodicTrigger(&cfg.Relist, logger, scheduler, ctxCancel)
	if err := trigger.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to start relist periodic trigger")
	}

	// Initialize handlers
	relistHandler := handlers.NewRelistHandler(relistService, logger)

	// Setup routes
	routes.SetupRoutes(router, relistHandler)

	// Create HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	cancel()

	trigger.Stop()
	marketplaceLimiter.StopCleanupExpired()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer drainCancel()
	pool.Stop(drainCtx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	} else {
		logger.Info("HTTP server shutdown completed successfully")
	}

	logger.Info("Server exited")
}
