package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	pkgconfig "github.com/vidtube/backend/pkg/config"
	"github.com/vidtube/backend/pkg/database"
)

const (
	defaultAccessSecret  = "change-this-access-secret"
	defaultRefreshSecret = "change-this-refresh-secret"
	minSecretLength      = 32
)

// Config holds all configuration for the vidtube backend.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"vidtube"`

	// HTTP server
	HTTPPort          int           `env:"PORT" envDefault:"8000"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	MaxUploadBytes    int64         `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	UploadTmpDir      string        `env:"UPLOAD_TMP_DIR" envDefault:""`
	TrustProxyHeaders bool          `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	// PostgreSQL
	PostgresHost   string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort   int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser   string        `env:"POSTGRES_USER" envDefault:"vidtube"`
	PostgresPass   string        `env:"POSTGRES_PASSWORD" envDefault:"vidtube_secret"`
	PostgresDB     string        `env:"POSTGRES_DB" envDefault:"vidtube"`
	PostgresSSL    string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns     int32         `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns     int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBQueryTimeout time.Duration `env:"DB_QUERY_TIMEOUT" envDefault:"5s"`
	// Zero disables slow query logging.
	DBSlowQueryThreshold time.Duration `env:"DB_SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Tokens
	AccessTokenSecret  string        `env:"ACCESS_TOKEN_SECRET" envDefault:"change-this-access-secret"`
	AccessTokenExpiry  time.Duration `env:"ACCESS_TOKEN_EXPIRY" envDefault:"1h"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN_SECRET" envDefault:"change-this-refresh-secret"`
	RefreshTokenExpiry time.Duration `env:"REFRESH_TOKEN_EXPIRY" envDefault:"240h"`
	BcryptCost         int           `env:"BCRYPT_COST" envDefault:"10"`

	// Cookies
	CookieSecure   bool   `env:"COOKIE_SECURE" envDefault:"true"`
	CookieDomain   string `env:"COOKIE_DOMAIN" envDefault:""`
	CookieSameSite string `env:"COOKIE_SAMESITE" envDefault:"lax"`

	// Media storage
	StorageDriver     string        `env:"STORAGE_DRIVER" envDefault:"s3"`
	S3Endpoint        string        `env:"S3_ENDPOINT" envDefault:"http://localhost:9000"`
	S3Region          string        `env:"S3_REGION" envDefault:"us-east-1"`
	S3Bucket          string        `env:"S3_BUCKET" envDefault:"vidtube-media"`
	S3AccessKeyID     string        `env:"S3_ACCESS_KEY_ID" envDefault:"minioadmin"`
	S3SecretAccessKey string        `env:"S3_SECRET_ACCESS_KEY" envDefault:"minioadmin"`
	S3PublicURL       string        `env:"S3_PUBLIC_URL" envDefault:""`
	S3UsePathStyle    bool          `env:"S3_USE_PATH_STYLE" envDefault:"true"`
	StorageTimeout    time.Duration `env:"STORAGE_TIMEOUT" envDefault:"30s"`

	// Kafka
	KafkaEnabled         bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers         []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	WatchConsumerEnabled bool     `env:"WATCH_CONSUMER_ENABLED" envDefault:"true"`
	WatchConsumerGroup   string   `env:"WATCH_CONSUMER_GROUP" envDefault:"vidtube-watch-history"`

	// Auth rate limiting
	AuthRateLimitRPS   float64 `env:"AUTH_RATE_LIMIT_RPS" envDefault:"5"`
	AuthRateLimitBurst int     `env:"AUTH_RATE_LIMIT_BURST" envDefault:"10"`

	// Observability
	OTELEnabled    bool     `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELInsecure   bool     `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	OTELSampleRate float64  `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
	PprofEnabled   bool     `env:"PPROF_ENABLED" envDefault:"false"`
	PprofAllowlist []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ORIGIN" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load vidtube config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.HTTPPort))
	}

	if c.AccessTokenSecret == "" || c.RefreshTokenSecret == "" {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must be set"))
	} else if c.AccessTokenSecret == c.RefreshTokenSecret {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ"))
	}

	// Outside development, require explicitly set, strong secrets.
	if !c.IsDevelopment() {
		errs = append(errs, checkSecret("ACCESS_TOKEN_SECRET", c.AccessTokenSecret, defaultAccessSecret, c.Environment))
		errs = append(errs, checkSecret("REFRESH_TOKEN_SECRET", c.RefreshTokenSecret, defaultRefreshSecret, c.Environment))
	}

	for name, d := range map[string]time.Duration{
		"ACCESS_TOKEN_EXPIRY":  c.AccessTokenExpiry,
		"REFRESH_TOKEN_EXPIRY": c.RefreshTokenExpiry,
		"DB_QUERY_TIMEOUT":     c.DBQueryTimeout,
		"STORAGE_TIMEOUT":      c.StorageTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.RefreshTokenExpiry <= c.AccessTokenExpiry {
		errs = append(errs, errors.New("REFRESH_TOKEN_EXPIRY must be longer than ACCESS_TOKEN_EXPIRY"))
	}

	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost))
	}

	switch strings.ToLower(c.CookieSameSite) {
	case "lax", "strict", "none":
	default:
		errs = append(errs, fmt.Errorf("COOKIE_SAMESITE must be lax, strict or none, got %q", c.CookieSameSite))
	}

	switch c.StorageDriver {
	case "s3", "memory":
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be s3 or memory, got %q", c.StorageDriver))
	}

	if c.AuthRateLimitRPS <= 0 || c.AuthRateLimitBurst < 1 {
		errs = append(errs, errors.New("AUTH_RATE_LIMIT_RPS and AUTH_RATE_LIMIT_BURST must be positive"))
	}

	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS must be set when KAFKA_ENABLED is true"))
	}

	return errors.Join(errs...)
}

func checkSecret(name, value, placeholder, env string) error {
	if value == placeholder {
		return fmt.Errorf("%s must be explicitly set via environment variable in %q mode", name, env)
	}
	if len(value) < minSecretLength {
		return fmt.Errorf("%s must be at least %d characters long, got %d", name, minSecretLength, len(value))
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Postgres returns the pool configuration for the database package.
func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPass
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSL
	pg.MaxConns = c.DBMaxConns
	pg.MinConns = c.DBMinConns
	return pg
}
