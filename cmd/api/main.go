package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"github.com/ourway/auth/internal/api"
	"github.com/ourway/auth/internal/audit"
	"github.com/ourway/auth/internal/config"
	"github.com/ourway/auth/internal/crypto"
	"github.com/ourway/auth/internal/engine"
	"github.com/ourway/auth/internal/storage"
	"github.com/ourway/auth/internal/token"
	"github.com/ourway/auth/pkg/logger"
)

// Exit codes: 0 clean shutdown, 1 configuration error, 2 store unreachable.
const (
	exitConfigError = 1
	exitStoreError  = 2
)

func main() {
	// Local .env files are a dev convenience; in production the platform
	// injects real environment variables and these loads are no-ops.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Setup("development").Error("config_load_failed", "error", err)
		os.Exit(exitConfigError)
	}

	log := logger.Setup(cfg.Env)
	log.Info("application_startup", "env", cfg.Env, "encryption_enabled", cfg.EnableEncryption)
	if cfg.JWTSecretIsDev {
		log.Warn("jwt_secret_missing", "details", "using_dev_secret")
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 1.0,
			Environment:      cfg.Env,
		}); err != nil {
			log.Error("sentry_init_failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			log.Info("sentry_initialized")
		}
	}

	ctx := context.Background()
	pool, err := storage.NewPostgres(ctx, cfg.DatabaseURL, storage.PoolSettings{
		MaxConns: cfg.PoolMaxConns,
		MinConns: cfg.PoolMinConns,
		Schema:   cfg.DatabaseSchema,
	})
	if err != nil {
		log.Error("database_connect_failed", "error", err)
		os.Exit(exitStoreError)
	}
	defer pool.Close()
	log.Info("database_connected", "max_conns", cfg.PoolMaxConns)

	cipher := crypto.NewFieldCipher(cfg.EncryptionKey, cfg.EnableEncryption, log)
	queries := storage.New(pool, cipher)
	eng := engine.New(pool, queries)
	recorder := audit.NewDBRecorder(queries, log)
	issuer := token.NewIssuer(cfg.JWTSecret, token.DefaultTTL)

	server := api.NewServer(pool, queries, eng, recorder, issuer, cfg)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server.Router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server_listening", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("server_startup_failed", "error", err)
		os.Exit(exitConfigError)

	case sig := <-shutdown:
		log.Info("shutdown_signal_received", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful_shutdown_failed", "error", err)
			if err := srv.Close(); err != nil {
				log.Error("server_force_close_failed", "error", err)
			}
		}

		pool.Close()
		log.Info("server_shutdown_complete")
	}
}
