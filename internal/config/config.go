package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverDynamo   = "dynamo"
)

// Config holds all runtime configuration loaded from environment variables.
// It is read once at startup and never mutated afterwards.
type Config struct {
	AppPort         string        `env:"PORT" envDefault:"5000"`
	AppEnv          string        `env:"APP_ENV" envDefault:"development"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	AllowedOrigins  []string      `env:"CORS_ORIGIN" envDefault:"*" envSeparator:","`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// JWTSecret has no default: the process refuses to start without one.
	JWTSecret string        `env:"JWT_SECRET,required,notEmpty"`
	JWTIssuer string        `env:"JWT_ISSUER"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" envDefault:"2160h"`

	BcryptCost      int `env:"BCRYPT_COST" envDefault:"10"`
	HashConcurrency int `env:"HASH_CONCURRENCY" envDefault:"0"` // 0 = 2 x GOMAXPROCS

	OTPTTL               time.Duration `env:"OTP_TTL" envDefault:"10m"`
	OTPResendInterval    time.Duration `env:"OTP_RESEND_INTERVAL" envDefault:"60s"`
	OTPMaxAttempts       int           `env:"OTP_MAX_ATTEMPTS" envDefault:"5"`
	OTPAttemptWindow     time.Duration `env:"OTP_ATTEMPT_WINDOW" envDefault:"1h"`
	RequireVerifiedLogin bool          `env:"REQUIRE_VERIFIED_LOGIN" envDefault:"false"`

	StoreDriver  string        `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL  string        `env:"DATABASE_URL"`
	SQLitePath   string        `env:"SQLITE_PATH" envDefault:"./accounts.db"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	AWSRegion      string       `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSEndpointURL string       `env:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string       `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string       `env:"AWS_SECRET_ACCESS_KEY"`
	DynamoTables   DynamoTables `envPrefix:"DYNAMO_TABLE_"`

	NotifyTimeout time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"10s"`
	EmailDriver   string        `env:"EMAIL_DRIVER" envDefault:"console"` // smtp | console
	SMTPHost      string        `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort      int           `env:"SMTP_PORT" envDefault:"1025"`
	SMTPFrom      string        `env:"SMTP_FROM" envDefault:"noreply@example.com"`
	SMTPUsername  string        `env:"SMTP_USERNAME"`
	SMTPPassword  string        `env:"SMTP_PASSWORD"`
	SMSDriver     string        `env:"SMS_DRIVER" envDefault:"console"` // sns | console
	SNSRegion     string        `env:"SNS_REGION" envDefault:"us-east-1"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"10"`
	// TrustProxy takes the client address from X-Forwarded-For and
	// X-Real-Ip. Enable only behind a proxy that overwrites them.
	TrustProxy bool `env:"TRUST_PROXY" envDefault:"false"`
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Accounts      string `env:"ACCOUNTS" envDefault:"accounts"`
	AccountEmails string `env:"ACCOUNT_EMAILS" envDefault:"account_emails"`
	OneTimeCodes  string `env:"ONE_TIME_CODES" envDefault:"one_time_codes"`
}

// Load reads all configuration from environment variables and checks
// the settings each driver depends on.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", DriverPostgres)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER=%s", DriverSQLite)
		}
	case DriverDynamo:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.EmailDriver {
	case "smtp", "console":
	default:
		return fmt.Errorf("unknown EMAIL_DRIVER %q", c.EmailDriver)
	}
	switch c.SMSDriver {
	case "sns", "console":
	default:
		return fmt.Errorf("unknown SMS_DRIVER %q", c.SMSDriver)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	if c.OTPTTL <= 0 || c.JWTExpiry <= 0 {
		return fmt.Errorf("OTP_TTL and JWT_EXPIRY must be positive")
	}
	return nil
}
