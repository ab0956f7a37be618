package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/go-api-accounts/internal/application/account"
	"github.com/go-api-accounts/internal/application/auth"
	"github.com/go-api-accounts/internal/application/notification"
	"github.com/go-api-accounts/internal/config"
	"github.com/go-api-accounts/internal/domain"
	"github.com/go-api-accounts/internal/infrastructure/console"
	"github.com/go-api-accounts/internal/infrastructure/dynamo"
	"github.com/go-api-accounts/internal/infrastructure/hash"
	jwtinfra "github.com/go-api-accounts/internal/infrastructure/jwt"
	"github.com/go-api-accounts/internal/infrastructure/limiter"
	"github.com/go-api-accounts/internal/infrastructure/smtp"
	"github.com/go-api-accounts/internal/infrastructure/sns"
	"github.com/go-api-accounts/internal/infrastructure/sqlstore"
	"github.com/go-api-accounts/internal/logger"
	"github.com/go-api-accounts/internal/metrics"
	transporthttp "github.com/go-api-accounts/internal/transport/http"
)

// accountStore is satisfied by both the SQL and the DynamoDB backends.
type accountStore interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	ListByPhone(ctx context.Context, phone string) ([]*domain.Account, error)
	InsertAccount(ctx context.Context, a *domain.Account) error
	UpdateVerificationStatus(ctx context.Context, accountID string, ch domain.Channel, at time.Time) error
	InsertCode(ctx context.Context, c *domain.OneTimeCode) error
	LatestCode(ctx context.Context, accountID string, ch domain.Channel) (*domain.OneTimeCode, error)
	ConsumeCode(ctx context.Context, c *domain.OneTimeCode, at time.Time) error
}

type attemptLimiter interface {
	Hit(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	log := logger.Setup(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	attempts, closeLimiter := newLimiter(ctx, cfg, log)
	defer closeLimiter()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(reg)

	emailSender, smsSender, err := newSenders(ctx, cfg, log)
	if err != nil {
		return err
	}
	gateway := notification.NewGateway(notification.GatewayDeps{
		Email:   emailSender,
		SMS:     smsSender,
		Timeout: cfg.NotifyTimeout,
		Metrics: rec,
	})

	hasher, err := hash.NewHasher(cfg.BcryptCost, cfg.HashConcurrency)
	if err != nil {
		return fmt.Errorf("hasher: %w", err)
	}
	tokens, err := jwtinfra.NewProvider(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpiry)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	authSvc := auth.NewService(auth.ServiceDeps{
		Accounts: store,
		Codes:    store,
		Hasher:   hasher,
		Tokens:   tokens,
		Notifier: gateway,
		Limiter:  attempts,
		Metrics:  rec,
		Policy: auth.Policy{
			TokenTTL:             cfg.JWTExpiry,
			CodeTTL:              cfg.OTPTTL,
			ResendInterval:       cfg.OTPResendInterval,
			StoreTimeout:         cfg.StoreTimeout,
			RequireVerifiedLogin: cfg.RequireVerifiedLogin,
		},
	})
	accountSvc := account.NewService(account.ServiceDeps{Accounts: store, StoreTimeout: cfg.StoreTimeout})

	router := transporthttp.NewRouter(ctx, cfg, &transporthttp.Deps{
		Auth:     authSvc,
		Accounts: accountSvc,
		Tokens:   tokens,
		Logger:   log,
		Metrics:  rec,
		Gatherer: reg,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.AppPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (accountStore, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres, config.DriverSQLite:
		dsn := cfg.DatabaseURL
		if cfg.StoreDriver == config.DriverSQLite {
			dsn = cfg.SQLitePath
		}
		st, err := sqlstore.Open(ctx, cfg.StoreDriver, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
		}
		return st, func() { _ = st.Close() }, nil
	case config.DriverDynamo:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("dynamo client: %w", err)
		}
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		return dynamo.NewStore(client, cfg.DynamoTables), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// newLimiter prefers Redis so attempt counts are shared across instances, and
// falls back to process memory when Redis is unset or unreachable.
func newLimiter(ctx context.Context, cfg *config.Config, log *slog.Logger) (attemptLimiter, func()) {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		err := client.Ping(pingCtx).Err()
		if err == nil {
			log.Info("attempt limiter using redis", "addr", cfg.RedisAddr)
			return limiter.NewRedis(client, cfg.OTPMaxAttempts, cfg.OTPAttemptWindow), func() { _ = client.Close() }
		}
		log.Warn("redis unreachable, using in-memory attempt limiter", "addr", cfg.RedisAddr, "err", err)
		_ = client.Close()
	}
	mem := limiter.NewMemory(cfg.OTPMaxAttempts, cfg.OTPAttemptWindow)
	go mem.Run(ctx, time.Minute)
	return mem, func() {}
}

func newSenders(ctx context.Context, cfg *config.Config, log *slog.Logger) (notification.EmailSender, notification.SMSSender, error) {
	var email notification.EmailSender = console.NewEmailSender(log)
	if cfg.EmailDriver == "smtp" {
		email = smtp.NewMailer(cfg)
	}

	var sms notification.SMSSender = console.NewSMSSender(log)
	if cfg.SMSDriver == "sns" {
		sender, err := sns.NewSender(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("sns sender: %w", err)
		}
		sms = sender
	}
	return email, sms, nil
}
