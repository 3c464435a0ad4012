package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/stacksave/stacksave-api/internal/config"
	"github.com/stacksave/stacksave-api/internal/domain/auth"
	"github.com/stacksave/stacksave-api/internal/domain/notification"
	"github.com/stacksave/stacksave-api/internal/domain/subscription"
	"github.com/stacksave/stacksave-api/internal/domain/transaction"
	"github.com/stacksave/stacksave-api/internal/middleware"
	"github.com/stacksave/stacksave-api/internal/pkg/database"
	"github.com/stacksave/stacksave-api/internal/pkg/jwt"
	"github.com/stacksave/stacksave-api/internal/pkg/ledger"
	"github.com/stacksave/stacksave-api/internal/pkg/logger"
	"github.com/stacksave/stacksave-api/internal/pkg/push"
	"github.com/stacksave/stacksave-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()

	logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
	})

	log.Info().Str("env", cfg.Env).Msg("Starting StackSave API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(rdb)

	chain, err := ledger.New(ledger.Config{
		RPCURL:            cfg.ChainRPCURL,
		ChainID:           cfg.ChainID,
		VaultContract:     cfg.VaultContract,
		TokenContract:     cfg.TokenContract,
		TokenDecimals:     cfg.TokenDecimals,
		RelayerPrivateKey: cfg.RelayerPrivateKey,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up chain client")
	}

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	var pusher notification.Pusher
	if cfg.FCMServerKey != "" {
		pusher = push.NewFCMClient(push.FCMConfig{
			ServerKey: cfg.FCMServerKey,
			ProjectID: cfg.FCMProjectID,
		})
	} else {
		log.Warn().Msg("FCM not configured, push delivery disabled")
	}

	// Repositories
	userRepo := auth.NewRepository(db)
	subRepo := subscription.NewRepository(db)
	txRepo := transaction.NewRepository(db)
	notifRepo := notification.NewRepository(db)
	tokenRepo := notification.NewDeviceTokenRepository(db)

	// Services
	authService := auth.NewService(userRepo, rdb, jwtService)
	subService := subscription.NewService(subRepo, chain)
	notifService := notification.NewService(notifRepo, tokenRepo, pusher)

	// Handlers
	authHandler := auth.NewHandler(authService)
	subHandler := subscription.NewHandler(subService)
	txHandler := transaction.NewHandler(txRepo)
	notifHandler := notification.NewHandler(notifService)

	authMiddleware := middleware.Auth(jwtService)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		response.OK(w, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/auth", authHandler.Routes(authMiddleware))
		r.Mount("/subscriptions", subHandler.Routes(authMiddleware))
		r.Mount("/transactions", txHandler.Routes(authMiddleware))
		r.Mount("/notifications", notifHandler.Routes(authMiddleware))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown")
	}

	log.Info().Msg("Server stopped")
}
