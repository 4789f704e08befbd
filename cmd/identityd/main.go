// Command identityd runs the token issuance service: registration, login,
// refresh rotation, logout, and password management over HTTP.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/cartstack/identity"
	"github.com/cartstack/identity/middleware"
	"github.com/cartstack/identity/password"
	"github.com/cartstack/identity/postgres"
	"github.com/cartstack/identity/verify"
)

type config struct {
	Addr string `env:"IDENTITY_ADDR" envDefault:":8080"`

	DatabaseDSN string `env:"IDENTITY_DATABASE_DSN,required"`

	RedisAddr     string `env:"IDENTITY_REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword string `env:"IDENTITY_REDIS_PASSWORD"`
	RedisDB       int    `env:"IDENTITY_REDIS_DB" envDefault:"0"`

	Secret             string   `env:"IDENTITY_JWT_SECRET,required"`
	ExtraVerifySecrets []string `env:"IDENTITY_JWT_EXTRA_SECRETS" envSeparator:","`
	Issuer             string   `env:"IDENTITY_JWT_ISSUER" envDefault:"identityd"`

	AccessTTL  time.Duration `env:"IDENTITY_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL time.Duration `env:"IDENTITY_REFRESH_TTL" envDefault:"168h"`

	ShutdownTimeout time.Duration `env:"IDENTITY_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("identityd exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// Local development convenience; absence of a .env file is normal.
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return err
	}
	if err := postgres.RunMigrations(ctx, db); err != nil {
		return err
	}
	logger.Info("database ready")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}
	logger.Info("redis ready", "addr", cfg.RedisAddr)

	hasher, err := password.NewArgon2(password.DefaultParams())
	if err != nil {
		return err
	}

	engineCfg := identity.DefaultConfig()
	engineCfg.Secret = cfg.Secret
	engineCfg.ExtraVerifySecrets = cfg.ExtraVerifySecrets
	engineCfg.Issuer = cfg.Issuer
	engineCfg.AccessTTL = cfg.AccessTTL
	engineCfg.RefreshTTL = cfg.RefreshTTL

	engine, err := identity.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithCredentialStore(postgres.NewStore(db)).
		WithHasher(hasher).
		WithAuditSink(identity.NewJSONWriterSink(os.Stdout)).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	verifier, err := verify.NewVerifier(verify.Config{
		Secrets: append([]string{cfg.Secret}, cfg.ExtraVerifySecrets...),
		Issuer:  cfg.Issuer,
	})
	if err != nil {
		return err
	}

	api := &apiServer{engine: engine, logger: logger}

	router := mux.NewRouter()
	router.Use(clientIPMiddleware)

	router.HandleFunc("/auth/register", api.register).Methods(http.MethodPost)
	router.HandleFunc("/auth/login", api.login).Methods(http.MethodPost)
	router.HandleFunc("/auth/refresh-token", api.refresh).Methods(http.MethodPost)
	router.HandleFunc("/auth/logout", api.logout).Methods(http.MethodPost)
	router.HandleFunc("/healthz", api.health).Methods(http.MethodGet)

	protected := router.PathPrefix("/auth").Subrouter()
	protected.Use(middleware.Guard(verifier))
	protected.HandleFunc("/me", api.currentUser).Methods(http.MethodGet)
	protected.HandleFunc("/change-password", api.changePassword).Methods(http.MethodPost)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
