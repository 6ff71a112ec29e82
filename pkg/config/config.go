package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// MaxBcryptCost bounds BCRYPT_COST; higher costs stall every login.
const MaxBcryptCost = 14

const (
	devObfuscationSecret = "dev_obfuscation_secret"
	devSignedURLSecret   = "dev_assets_secret"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Obfuscation ObfuscationConfig
	Assets      AssetsConfig
	CORS        CORSConfig
	Log         LogConfig
	Metrics     MetricsConfig
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
	QueryTimeout time.Duration
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// AuthConfig controls bearer token sessions and password hashing.
type AuthConfig struct {
	TokenTTL         time.Duration
	TokenLength      int
	MaxIssueAttempts int
	ReaperSchedule   string
	BcryptCost       int
}

// ObfuscationConfig holds the process-wide secret for external identifiers.
type ObfuscationConfig struct {
	Secret string
}

// AssetsConfig bounds uploads and configures signed content links.
type AssetsConfig struct {
	MaxContentBytes int64
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
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
		QueryTimeout: parseDuration(v.GetString("DB_QUERY_TIMEOUT"), 5*time.Second),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Auth = AuthConfig{
		TokenTTL:         parseDuration(v.GetString("TOKEN_TTL"), 7*24*time.Hour),
		TokenLength:      v.GetInt("TOKEN_LENGTH"),
		MaxIssueAttempts: v.GetInt("TOKEN_MAX_ISSUE_ATTEMPTS"),
		ReaperSchedule:   v.GetString("TOKEN_REAPER_SCHEDULE"),
		BcryptCost:       v.GetInt("BCRYPT_COST"),
	}

	cfg.Obfuscation = ObfuscationConfig{Secret: v.GetString("ID_OBFUSCATION_SECRET")}

	maxContent := v.GetInt64("ASSETS_MAX_CONTENT_BYTES")
	if maxContent <= 0 {
		maxContent = 64 * 1024 * 1024
	}
	cfg.Assets = AssetsConfig{
		MaxContentBytes: maxContent,
		SignedURLSecret: v.GetString("ASSETS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("ASSETS_SIGNED_URL_TTL"), 15*time.Minute),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Obfuscation.Secret == "" {
		return errors.New("ID_OBFUSCATION_SECRET must not be empty")
	}
	if c.Auth.BcryptCost > MaxBcryptCost {
		return fmt.Errorf("BCRYPT_COST must be at most %d, got %d", MaxBcryptCost, c.Auth.BcryptCost)
	}
	if c.Assets.SignedURLSecret == "" {
		return errors.New("ASSETS_SIGNED_URL_SECRET must not be empty")
	}
	if c.Env == EnvProduction {
		if c.Obfuscation.Secret == devObfuscationSecret {
			return errors.New("ID_OBFUSCATION_SECRET must be set in production")
		}
		if c.Assets.SignedURLSecret == devSignedURLSecret {
			return errors.New("ASSETS_SIGNED_URL_SECRET must be set in production")
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "annotatron")
	v.SetDefault("DB_PASSWORD", "annotatron")
	v.SetDefault("DB_NAME", "annotatron")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_QUERY_TIMEOUT", "5s")
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("TOKEN_TTL", "168h")
	v.SetDefault("TOKEN_LENGTH", 32)
	v.SetDefault("TOKEN_MAX_ISSUE_ATTEMPTS", 10)
	v.SetDefault("TOKEN_REAPER_SCHEDULE", "")
	v.SetDefault("BCRYPT_COST", 10)

	v.SetDefault("ID_OBFUSCATION_SECRET", devObfuscationSecret)

	v.SetDefault("ASSETS_MAX_CONTENT_BYTES", 64*1024*1024)
	v.SetDefault("ASSETS_SIGNED_URL_SECRET", devSignedURLSecret)
	v.SetDefault("ASSETS_SIGNED_URL_TTL", "15m")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ENABLE_METRICS", true)
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
