package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	// DefaultEventStartTime is used whenever an event has no explicit time of day.
	DefaultEventStartTime = "10:00"
)

type Config struct {
	Env           string
	Port          int
	APIPrefix     string
	StorageDriver string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Events       EventsConfig
	Cache        CacheConfig
	Media        MediaConfig
	Certificates CertificatesConfig
	Exports      ExportsConfig
	Metrics      MetricsConfig
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
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EventsConfig holds the scheduling rules shared by registration and attendance.
type EventsConfig struct {
	Timezone         string
	DefaultStartTime string
	AttendanceWindow time.Duration
	QRTokenTTL       time.Duration
	FrontendURL      string
}

// Location resolves the configured timezone, falling back to UTC.
func (c EventsConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CacheConfig toggles the Redis read-through cache for event reads.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// MediaConfig configures the local media store for images and certificates.
type MediaConfig struct {
	StorageDir        string
	PublicBaseURL     string
	MaxImageSizeBytes int64
	ImageMaxDimension int
}

// CertificatesConfig tunes certificate rendering and the async issuance queue.
type CertificatesConfig struct {
	Organizer  string
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// ExportsConfig controls attendance roster exports.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

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

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.StorageDriver = strings.ToLower(v.GetString("STORAGE_DRIVER"))

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
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Events = EventsConfig{
		Timezone:         v.GetString("EVENTS_TIMEZONE"),
		DefaultStartTime: v.GetString("EVENTS_DEFAULT_START_TIME"),
		AttendanceWindow: parseDuration(v.GetString("ATTENDANCE_WINDOW"), 2*time.Hour),
		QRTokenTTL:       parseDuration(v.GetString("QR_TOKEN_TTL"), 10*time.Minute),
		FrontendURL:      strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),
	}
	if cfg.Events.DefaultStartTime == "" {
		cfg.Events.DefaultStartTime = DefaultEventStartTime
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_EVENT_CACHE"),
		TTL:     parseDuration(v.GetString("EVENT_CACHE_TTL"), time.Minute),
	}

	maxImageSize := v.GetInt64("MEDIA_MAX_IMAGE_SIZE")
	if maxImageSize <= 0 {
		maxImageSize = 5 * 1024 * 1024
	}
	cfg.Media = MediaConfig{
		StorageDir:        v.GetString("MEDIA_STORAGE_DIR"),
		PublicBaseURL:     strings.TrimRight(v.GetString("MEDIA_PUBLIC_BASE_URL"), "/"),
		MaxImageSizeBytes: maxImageSize,
		ImageMaxDimension: v.GetInt("MEDIA_IMAGE_MAX_DIMENSION"),
	}

	cfg.Certificates = CertificatesConfig{
		Organizer:  v.GetString("CERTIFICATE_ORGANIZER"),
		Workers:    v.GetInt("CERTIFICATE_WORKERS"),
		Retries:    v.GetInt("CERTIFICATE_RETRIES"),
		RetryDelay: parseDuration(v.GetString("CERTIFICATE_RETRY_DELAY"), 30*time.Second),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), time.Hour),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 4000)
	v.SetDefault("API_PREFIX", "/api")
	v.SetDefault("STORAGE_DRIVER", StorageDriverPostgres)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "campus_events")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "campus-events")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("EVENTS_TIMEZONE", "UTC")
	v.SetDefault("EVENTS_DEFAULT_START_TIME", DefaultEventStartTime)
	v.SetDefault("ATTENDANCE_WINDOW", "2h")
	v.SetDefault("QR_TOKEN_TTL", "10m")
	v.SetDefault("FRONTEND_URL", "")

	v.SetDefault("ENABLE_EVENT_CACHE", false)
	v.SetDefault("EVENT_CACHE_TTL", "1m")

	v.SetDefault("MEDIA_STORAGE_DIR", "./media")
	v.SetDefault("MEDIA_PUBLIC_BASE_URL", "http://localhost:4000/media")
	v.SetDefault("MEDIA_MAX_IMAGE_SIZE", 5*1024*1024)
	v.SetDefault("MEDIA_IMAGE_MAX_DIMENSION", 1600)

	v.SetDefault("CERTIFICATE_ORGANIZER", "Society")
	v.SetDefault("CERTIFICATE_WORKERS", 1)
	v.SetDefault("CERTIFICATE_RETRIES", 3)
	v.SetDefault("CERTIFICATE_RETRY_DELAY", "30s")

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "1h")

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
