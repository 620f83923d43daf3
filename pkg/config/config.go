package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Rate limit backends.
const (
	RateLimitBackendPostgres = "postgres"
	RateLimitBackendRedis    = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Workflow  WorkflowConfig
	RateLimit RateLimitConfig
	Passes    PassConfig
	OTP       OTPConfig
	Cache     CacheConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// WorkflowConfig holds the escalation policy knobs for the permission
// state machine. Injected at construction, never read ambiently.
type WorkflowConfig struct {
	EscalationThresholdDays int
	SensitiveCategories     []string
}

// RateLimitConfig tunes the per-actor sliding window admission control.
type RateLimitConfig struct {
	Window  time.Duration
	Ceiling int
	Backend string
}

// PassConfig governs gate-pass issuance: PDF storage, signed download
// URLs and the verification token boundary consumed by the guard app.
type PassConfig struct {
	StorageDir       string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	VerifySecret     string
	VerifyIssuer     string
	ClientAPIKey     string
	VerificationBase string
	WorkerRetries    int
}

// OTPConfig controls email OTP sign-in codes.
type OTPConfig struct {
	TTL    time.Duration
	Length int
}

// CacheConfig tunes the Redis-backed review-queue cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Workflow = WorkflowConfig{
		EscalationThresholdDays: v.GetInt("ESCALATION_THRESHOLD_DAYS"),
		SensitiveCategories:     splitAndTrim(v.GetString("SENSITIVE_CATEGORIES")),
	}

	cfg.RateLimit = RateLimitConfig{
		Window:  parseDuration(v.GetString("RATE_LIMIT_WINDOW"), time.Minute),
		Ceiling: v.GetInt("RATE_LIMIT_CEILING"),
		Backend: strings.ToLower(v.GetString("RATE_LIMIT_BACKEND")),
	}

	cfg.Passes = PassConfig{
		StorageDir:       v.GetString("PASSES_STORAGE_DIR"),
		SignedURLSecret:  v.GetString("PASSES_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("PASSES_SIGNED_URL_TTL"), 24*time.Hour),
		VerifySecret:     v.GetString("PASS_VERIFY_SECRET"),
		VerifyIssuer:     v.GetString("PASS_VERIFY_ISSUER"),
		ClientAPIKey:     v.GetString("PASS_CLIENT_API_KEY"),
		VerificationBase: v.GetString("PASS_VERIFICATION_BASE_URL"),
		WorkerRetries:    v.GetInt("PASSES_WORKER_RETRIES"),
	}

	cfg.OTP = OTPConfig{
		TTL:    parseDuration(v.GetString("OTP_TTL"), 10*time.Minute),
		Length: v.GetInt("OTP_LENGTH"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_REVIEW_CACHE"),
		TTL:     parseDuration(v.GetString("REVIEW_CACHE_TTL"), time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "unipass")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ESCALATION_THRESHOLD_DAYS", 2)
	v.SetDefault("SENSITIVE_CATEGORIES", "Medical,On-Duty,Symposium")

	v.SetDefault("RATE_LIMIT_WINDOW", "60s")
	v.SetDefault("RATE_LIMIT_CEILING", 10)
	v.SetDefault("RATE_LIMIT_BACKEND", RateLimitBackendPostgres)

	v.SetDefault("PASSES_STORAGE_DIR", "./passes")
	v.SetDefault("PASSES_SIGNED_URL_SECRET", "dev_passes_secret")
	v.SetDefault("PASSES_SIGNED_URL_TTL", "24h")
	v.SetDefault("PASS_VERIFY_SECRET", "dev_verify_secret")
	v.SetDefault("PASS_VERIFY_ISSUER", "mvgr-unipass-secure")
	v.SetDefault("PASS_CLIENT_API_KEY", "dev_client_key")
	v.SetDefault("PASS_VERIFICATION_BASE_URL", "https://unipass.example.edu/checker")
	v.SetDefault("PASSES_WORKER_RETRIES", 3)

	v.SetDefault("OTP_TTL", "10m")
	v.SetDefault("OTP_LENGTH", 6)

	v.SetDefault("ENABLE_REVIEW_CACHE", false)
	v.SetDefault("REVIEW_CACHE_TTL", "1m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
