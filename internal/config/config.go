package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string
	BaseURL  string

	DBDriver string
	DBDSN    string

	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	SessionSecret string
	SessionName   string

	UploadDir     string
	StorageDriver string
	S3Endpoint    string
	S3Region      string
	S3Bucket      string
	S3AccessKey   string
	S3SecretKey   string

	RedisAddr     string
	RedisPassword string

	LogLevel string

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	EnableOTelHTTP            bool
	GracefulShutdownTimeout   time.Duration
	LoginAbuseFreeAttempts    int
	LoginAbuseBaseDelay       time.Duration
	LoginAbuseMaxDelay        time.Duration
	LoginAbuseResetWindow     time.Duration
	AuthRateLimitPerMinute    int
	RequestBodyLimitBytes     int64
}

// Load reads configuration from the environment, after sourcing an optional
// .env file. Missing values fall back to development defaults; secrets have
// no default and fail validation when absent.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		BaseURL:  getEnv("BASE_URL", "http://localhost:8080"),

		DBDriver: getEnv("DB_DRIVER", "sqlite"),
		DBDSN:    getEnv("DB_DSN", "file:healthtrack.db"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTIssuer: getEnv("JWT_ISSUER", "healthtrack"),
		TokenTTL:  getDuration("TOKEN_TTL", 2*time.Hour),

		SessionSecret: os.Getenv("SESSION_SECRET"),
		SessionName:   getEnv("SESSION_NAME", "healthtrack_session"),

		UploadDir:     getEnv("UPLOAD_DIR", "./uploads"),
		StorageDriver: getEnv("STORAGE_DRIVER", "local"),
		S3Endpoint:    os.Getenv("S3_ENDPOINT"),
		S3Region:      getEnv("S3_REGION", "us-east-1"),
		S3Bucket:      os.Getenv("S3_BUCKET"),
		S3AccessKey:   os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:   os.Getenv("S3_SECRET_KEY"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "healthtrack"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", "development"),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELMetricsEnabled:       getBool("OTEL_METRICS_ENABLED", false),
		OTELTracingEnabled:       getBool("OTEL_TRACING_ENABLED", false),
		OTELLogsEnabled:          getBool("OTEL_LOGS_ENABLED", false),
		EnableOTelHTTP:           getBool("OTEL_HTTP_ENABLED", false),

		GracefulShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		LoginAbuseFreeAttempts: getInt("LOGIN_ABUSE_FREE_ATTEMPTS", 3),
		LoginAbuseBaseDelay:    getDuration("LOGIN_ABUSE_BASE_DELAY", 2*time.Second),
		LoginAbuseMaxDelay:     getDuration("LOGIN_ABUSE_MAX_DELAY", 5*time.Minute),
		LoginAbuseResetWindow:  getDuration("LOGIN_ABUSE_RESET_WINDOW", 15*time.Minute),

		AuthRateLimitPerMinute: getInt("AUTH_RATE_LIMIT_RPM", 30),
		RequestBodyLimitBytes:  int64(getInt("REQUEST_BODY_LIMIT_BYTES", 6<<20)),
	}

	if err := cfg.validate(); err != nil {
		recordConfigValidationEvent(context.Background(), cfg.OTELEnvironment, "failure", classifyConfigError(err))
		return nil, err
	}
	recordConfigValidationEvent(context.Background(), cfg.OTELEnvironment, "success", "none")
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("validate config: JWT_SECRET is required"))
	} else if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("validate config: JWT_SECRET must be at least 32 bytes"))
	}
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("validate config: SESSION_SECRET is required"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("validate config: TOKEN_TTL must be positive"))
	}
	switch c.StorageDriver {
	case "local":
	case "s3":
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("validate config: S3_BUCKET is required for s3 storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("validate config: unknown STORAGE_DRIVER %q", c.StorageDriver))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
