package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-backend/config"
	"marketplace-backend/database"
	"marketplace-backend/mailer"
	"marketplace-backend/middleware"
	"marketplace-backend/routes"
	"marketplace-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load environment variables
	if err := config.LoadEnv(); err != nil {
		log.Fatal().Err(err).Msg("Error loading .env file")
	}

	// Validate critical environment variables
	if err := config.ValidateEnv(); err != nil {
		log.Fatal().Err(err).Msg("Environment validation failed")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := utils.NewLogger(cfg.App.Env, cfg.App.LogLevel)

	// Initialize database
	db, err := database.Connect(cfg.DB, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}

	// Run migrations
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	if cfg.App.Env == "development" {
		if err := database.SeedDefaultCategories(db); err != nil {
			logger.Warn().Err(err).Msg("Could not seed default categories")
		}
	}

	if cfg.App.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestLogger(logger), gin.Recovery())

	origins := cfg.HTTP.AllowedOrigins()
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
		logger.Warn().Msg("No CORS origins configured, defaulting to http://localhost:3000")
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.ServiceKeyHeader},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
	}))

	limiterCtx, stopLimiter := context.WithCancel(context.Background())
	limiter := middleware.NewRateLimiter(limiterCtx, cfg.HTTP.RateLimit, time.Duration(cfg.HTTP.RateWindowSecs)*time.Second)

	mail := mailer.New(cfg.SMTP, logger)

	// Setup routes
	routes.SetupRoutes(r, routes.Deps{
		DB:       db,
		Config:   cfg,
		Notifier: mail,
		Limiter:  limiter,
		Log:      logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server in a goroutine
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	stopLimiter()

	// Let queued emails finish before the process exits
	mail.Wait()

	// Close database connection
	sqlDB, err := db.DB()
	if err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing database connection")
		} else {
			logger.Info().Msg("Database connection closed")
		}
	}

	logger.Info().Msg("Server exited gracefully")
}
