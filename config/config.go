package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Dosada05/tournify/storage"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int
	LogLevel     slog.Level

	CORSAllowedOrigins []string
	// PaymentWebhookSecret authenticates gateway callbacks. Empty disables the callback route.
	PaymentWebhookSecret string

	RegistrationSweepInterval time.Duration
	// BracketSeed makes bracket shuffles reproducible when set.
	BracketSeed *int64

	R2 storage.CloudflareR2UploaderConfig
}

// ArchiveEnabled reports whether finished brackets are uploaded to R2.
func (c *Config) ArchiveEnabled() bool {
	return c.R2.IsComplete()
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	portStr := os.Getenv("SERVER_PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	level, err := parseLogLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return nil, err
	}

	interval := time.Minute
	if raw := os.Getenv("REGISTRATION_SWEEP_INTERVAL"); raw != "" {
		interval, err = time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid REGISTRATION_SWEEP_INTERVAL: %w", err)
		}
		if interval <= 0 {
			return nil, fmt.Errorf("REGISTRATION_SWEEP_INTERVAL must be positive, got %s", raw)
		}
	}

	var seed *int64
	if raw := os.Getenv("BRACKET_SEED"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid BRACKET_SEED: %w", err)
		}
		seed = &v
	}

	r2 := storage.CloudflareR2UploaderConfig{
		AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		BucketName:      os.Getenv("R2_BUCKET_NAME"),
		PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
	}
	if r2.IsPartial() {
		return nil, fmt.Errorf("R2 archive configuration is incomplete: set all R2_* variables or none")
	}

	cfg := &Config{
		DatabaseURL:               dbURL,
		JWTSecretKey:              jwtKey,
		ServerPort:                port,
		LogLevel:                  level,
		CORSAllowedOrigins:        splitList(os.Getenv("CORS_ALLOWED_ORIGINS"), []string{"*"}),
		PaymentWebhookSecret:      os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		RegistrationSweepInterval: interval,
		BracketSeed:               seed,
		R2:                        r2,
	}

	return cfg, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q", raw)
}

func splitList(raw string, def []string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
