package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration for the API process and its background
// job runners.
type Config struct {
	Env             string
	LogLevel        string
	HTTPPort        string
	UploadDir       string
	StaticDir       string
	MaxUploadBytes  int64
	PreviewWidth    int
	PollInterval    time.Duration
	UpstreamTimeout time.Duration
	JanitorInterval time.Duration
	Retention       time.Duration
	WSWriteTimeout  time.Duration
	ShutdownTimeout time.Duration

	// Optional Redis snapshot mirror. Disabled when RedisAddr is empty.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	MirrorTTL     time.Duration

	// Optional Postgres transition audit. Disabled when empty.
	AuditPostgresDSN string

	// Optional S3 destination for uploaded reference images.
	UploadS3Bucket    string
	UploadS3Region    string
	UploadS3Endpoint  string
	UploadS3PathStyle bool
}

// Load reads configuration from environment variables, after merging a local
// .env file when one exists, with defaults suitable for local development.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:               getEnv("APP_ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", ""),
		HTTPPort:          getEnv("HTTP_PORT", "5211"),
		UploadDir:         getEnv("UPLOAD_DIR", "uploads"),
		StaticDir:         getEnv("STATIC_DIR", "static"),
		MaxUploadBytes:    getEnvInt64("MAX_UPLOAD_BYTES", 20*1024*1024),
		PreviewWidth:      getEnvInt("PREVIEW_WIDTH", 320),
		PollInterval:      getEnvDuration("POLL_INTERVAL", 20*time.Second),
		UpstreamTimeout:   getEnvDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		JanitorInterval:   getEnvDuration("JANITOR_INTERVAL", 5*time.Minute),
		Retention:         getEnvDuration("RETENTION", time.Hour),
		WSWriteTimeout:    getEnvDuration("WS_WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout:   getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		MirrorTTL:         getEnvDuration("MIRROR_TTL", time.Hour),
		AuditPostgresDSN:  getEnv("AUDIT_POSTGRES_DSN", ""),
		UploadS3Bucket:    getEnv("UPLOAD_S3_BUCKET", ""),
		UploadS3Region:    getEnv("UPLOAD_S3_REGION", "us-east-1"),
		UploadS3Endpoint:  getEnv("UPLOAD_S3_ENDPOINT", ""),
		UploadS3PathStyle: getEnvBool("UPLOAD_S3_PATH_STYLE", false),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
