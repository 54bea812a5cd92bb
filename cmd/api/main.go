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

	"github.com/go-api-assets/internal/config"
	"github.com/go-api-assets/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-api-assets/internal/infrastructure/jwt"
	"github.com/go-api-assets/internal/infrastructure/memory"
	redisinfra "github.com/go-api-assets/internal/infrastructure/redis"
	"github.com/go-api-assets/internal/infrastructure/smtp"
	"github.com/go-api-assets/internal/pkg/logger"
	transporthttp "github.com/go-api-assets/internal/transport/http"
	"github.com/go-api-assets/internal/transport/http/handler"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.IsDevelopment(), cfg.AppEnv, cfg.LogLevel)
	if envErr != nil {
		log.Info().Msg("no .env file found, reading from environment")
	}
	if cfg.Asset.ExposeSecret && !cfg.IsDevelopment() {
		log.Warn().Str("env", cfg.AppEnv).Msg("ASSET_EXPOSE_SECRET is on outside development, one-time codes are returned to callers")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := redisinfra.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("redis unavailable")
	}
	defer rdb.Close()
	cache := redisinfra.NewCache(rdb)

	access, err := jwtinfra.NewProvider(cfg.JWT.AccessSecret, cfg.JWT.AccessExpiresIn)
	if err != nil {
		log.Fatal().Err(err).Msg("access token provider")
	}
	refresh, err := jwtinfra.NewProvider(cfg.JWT.RefreshSecret, cfg.JWT.RefreshExpiresIn)
	if err != nil {
		log.Fatal().Err(err).Msg("refresh token provider")
	}

	deps := &transporthttp.Deps{
		Cache:         cache,
		Mailer:        smtp.NewMailer(cfg.SMTP),
		AccessTokens:  access,
		RefreshTokens: refresh,
		Pingers:       map[string]handler.Pinger{"redis": cache},
	}

	switch cfg.StoreDriver {
	case "dynamo":
		dynamoClient, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("dynamodb client")
		}
		// Creates the tables if they don't exist.
		dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)
		assets := dynamo.NewAssetRepo(dynamoClient, cfg.DynamoTables.Assets)
		deps.AssetRepo = assets
		deps.UserRepo = dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)
		deps.Pingers["dynamodb"] = assets
	case "memory":
		log.Warn().Msg("memory store selected, data is lost on restart")
		deps.AssetRepo = memory.NewAssetStore()
		deps.UserRepo = memory.NewUserStore()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(ctx, cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.AppPort).Str("env", cfg.AppEnv).Str("store", cfg.StoreDriver).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
		return
	}
	log.Info().Msg("server stopped")
}
