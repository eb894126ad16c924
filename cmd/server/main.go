package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	authapi "github.com/pixelvault/authgate/api/echo"
	rediscache "github.com/pixelvault/authgate/cache/redis"
	"github.com/pixelvault/authgate/config"
	"github.com/pixelvault/authgate/internal/alert"
	"github.com/pixelvault/authgate/internal/wallet"
	"github.com/pixelvault/authgate/mongodb"
	"github.com/pixelvault/authgate/services"
	"github.com/pixelvault/authgate/tracing"
)

const revocationCleanupInterval = 6 * time.Hour

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("mongo_db", cfg.MongoDBName).
		Str("redis_addr", cfg.RedisAddr).
		Bool("production", cfg.Production).
		Msg("Starting authgate server")

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize TracerProvider")
	}

	ctx := context.Background()
	if err := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize MongoDB connection")
	}
	db := mongodb.GetDB()

	redisClient := goredis.NewClient(&goredis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// The guard fails open without the cache, so a cold Redis is a
		// warning at startup rather than a fatal.
		log.Warn().Err(err).Msg("Redis unreachable at startup, abuse guard will fail open")
	}

	// Repositories
	nonceRepo := mongodb.NewNonceRepository(db)
	revocationRepo := mongodb.NewRevocationRepository(db)
	csrfRepo := mongodb.NewCSRFRepository(db)
	ipListRepo := mongodb.NewIPListRepository(db)
	abuseAuditRepo := mongodb.NewAbuseAuditRepository(db)

	// Services
	signer := services.NewTokenSigner()
	signer.AddKeySigner(cfg.JWTSecretKey)

	revocations := services.NewRevocationService(revocationRepo)
	tokens := services.NewTokenService(signer, revocations, cfg.TokenIssuer, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())
	nonces := services.NewNonceService(nonceRepo, mongodb.Ping)
	csrf := services.NewCSRFService(csrfRepo)

	var alertSink alert.Sink = alert.NopSink{}
	if cfg.AlertWebhookURL != "" {
		alertSink = alert.NewWebhookSink(cfg.AlertWebhookURL)
	}
	counters := rediscache.NewCounterCache(redisClient, "authgate")
	guard := services.NewAbuseGuard(counters, ipListRepo, abuseAuditRepo, alertSink, services.BindIP)
	defer guard.Stop()

	// HTTP edge
	cookies := authapi.NewCookieManager(cfg.CookiePolicy(), cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())
	mw := authapi.NewAuthMiddleware(tokens, csrf, guard, cookies)
	api := authapi.NewAuthAPI(nonces, tokens, csrf, wallet.NewEd25519Verifier(), cookies, mongodb.Ping)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	api.RegisterRoutes(e, mw)

	// Example mutating endpoint exercising the full edge composition.
	e.POST("/profile", func(c echo.Context) error {
		principal, _ := authapi.PrincipalFrom(c)
		return c.JSON(http.StatusOK, map[string]any{"success": true, "principal": principal.ID})
	}, mw.RateLimit("profile", 60, 30), mw.RequireAuth(), mw.RequireCSRF())

	// Out-of-band registry maintenance.
	cleanupCtx, cancelCleanup := context.WithCancel(ctx)
	go runRevocationCleanup(cleanupCtx, revocations, cfg.RevocationCleanupDays)

	go func() {
		if err := e.Start(":" + cfg.HTTPPort); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down")

	cancelCleanup()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("TracerProvider shutdown failed")
	}
	if err := redisClient.Close(); err != nil {
		log.Error().Err(err).Msg("Redis client close failed")
	}
	mongodb.CloseMongoDB(shutdownCtx)
}

// runRevocationCleanup periodically prunes registry entries whose tokens
// could no longer be replayed anyway.
func runRevocationCleanup(ctx context.Context, revocations *services.RevocationService, olderThanDays int) {
	ticker := time.NewTicker(revocationCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := revocations.CleanupExpired(ctx, olderThanDays); err != nil {
				log.Error().Err(err).Msg("revocation cleanup run failed")
			}
		}
	}
}
