package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envProduction = "production"

// Config holds application level configuration loaded from environment variables.
type Config struct {
	Env         string
	ServerPort  string
	BaseURL     string
	AuthSecret  string
	SwaggerHost string

	DatabasePath string
	StorageDir   string
	PublicDir    string

	SessionExpiry            time.Duration
	SessionUpdateAge         time.Duration
	RequireEmailVerification bool

	SMTPHost               string
	SMTPPort               int
	SMTPUser               string
	SMTPPassword           string
	SMTPFrom               string
	SMTPInsecureSkipVerify bool

	GoogleClientID     string
	GoogleClientSecret string

	RedisAddr string
	RedisDB   int
	RedisPass string

	RateLimitMax    int
	RateLimitWindow time.Duration
	// TrustProxy takes the client IP from X-Forwarded-For. Enable only
	// behind a reverse proxy that overwrites the header.
	TrustProxy bool

	ImageWorkers int
}

// Load builds Config from environment with sensible defaults. Outside of
// production a .env file in the working directory is read first.
func Load() *Config {
	env := getEnv("APP_ENV", "development")
	if env != envProduction {
		_ = godotenv.Load()
		env = getEnv("APP_ENV", "development")
	}

	dbPath := "./sqlite.db"
	if env == envProduction {
		dbPath = "/app/data/sqlite.db"
	}

	return &Config{
		Env:         env,
		ServerPort:  getEnv("PORT", "3000"),
		BaseURL:     strings.TrimRight(getEnv("BASE_URL", "http://localhost:3000"), "/"),
		AuthSecret:  getEnv("AUTH_SECRET", "change-me"),
		SwaggerHost: os.Getenv("SWAGGER_HOST"),

		DatabasePath: getEnv("DATABASE_PATH", dbPath),
		StorageDir:   getEnv("STORAGE_DIR", "./storage"),
		PublicDir:    getEnv("PUBLIC_DIR", "./public"),

		SessionExpiry:            getEnvDuration("SESSION_EXPIRY", 30*24*time.Hour),
		SessionUpdateAge:         getEnvDuration("SESSION_UPDATE_AGE", 24*time.Hour),
		RequireEmailVerification: getEnvBool("REQUIRE_EMAIL_VERIFICATION", false),

		SMTPHost:               os.Getenv("SMTP_HOST"),
		SMTPPort:               getEnvInt("SMTP_PORT", 587),
		SMTPUser:               os.Getenv("SMTP_USER"),
		SMTPPassword:           os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:               getEnv("SMTP_FROM", "Auth <no-reply@localhost>"),
		SMTPInsecureSkipVerify: getEnvBool("SMTP_INSECURE_SKIP_VERIFY", false),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),

		RedisAddr: os.Getenv("REDIS_ADDR"),
		RedisDB:   getEnvInt("REDIS_DB", 0),
		RedisPass: os.Getenv("REDIS_PASSWORD"),

		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 100),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		TrustProxy:      getEnvBool("TRUST_PROXY", false),

		ImageWorkers: getEnvInt("IMAGE_WORKERS", runtime.NumCPU()),
	}
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == envProduction
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
