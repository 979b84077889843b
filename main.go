package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/user-api/internal/api"
	"github.com/isdelr/user-api/internal/auth"
	"github.com/isdelr/user-api/internal/config"
	"github.com/isdelr/user-api/internal/database"
	"github.com/isdelr/user-api/internal/logger"
	"github.com/isdelr/user-api/internal/monitoring"
	"github.com/isdelr/user-api/internal/repository"
	"github.com/isdelr/user-api/internal/services"
	"github.com/isdelr/user-api/internal/websocket"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal().Err(err).Msg("Failed to read .env file")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Init(cfg.LogLevel, cfg.IsProduction())

	// Set up database
	ctx := context.Background()
	db, err := database.New(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("Failed to initialize database")
	}

	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	eventService := services.NewEventService(db, hub)
	userRepo := repository.NewUserRepository(db.DB, db.Dialect)
	userService := services.NewUserService(userRepo, services.WithEvents(eventService))
	tokens := auth.NewTokenManager(cfg.JWTSecret)

	// Set up and run the store health monitor
	healthMonitor, err := monitoring.NewHealthMonitor(db, eventService, cfg.HealthCheckSchedule)
	if err != nil {
		_ = db.Close()
		log.Fatal().Err(err).Msg("Failed to initialize health monitor")
	}
	healthMonitor.Run()

	// Set up router
	router := api.NewRouter(api.Dependencies{
		UserService:  userService,
		EventService: eventService,
		Tokens:       tokens,
		Hub:          hub,
		Health:       healthMonitor,
		FrontendURL:  cfg.FrontendURL,
		SecureCookie: cfg.IsProduction(),
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("env", cfg.AppEnv).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	healthMonitor.Stop()
	hub.Stop()

	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close database")
	}

	log.Info().Msg("Server exiting")
}
