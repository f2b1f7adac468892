package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

const devSecret = "dev-secret-change-in-production"

// Config is the API server configuration, read from the environment.
type Config struct {
	Port               string
	Env                string
	DatabaseDSN        string
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	UploadDir          string
	PublicURL          string
	MaxPhotos          int
	MaxPhotoBytes      int64
	AuthRateLimit      float64
	AuthRateBurst      int
}

// Load reads the configuration. In production a JWT secret must be provided.
func Load() Config {
	cfg := Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		DatabaseDSN:        getEnv("DATABASE_DSN", "root:password@tcp(127.0.0.1:3306)/matchmate?parseTime=true"),
		JWTSecret:          getEnv("JWT_SECRET", devSecret),
		AccessTokenExpiry:  getDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
		RefreshTokenExpiry: getDuration("REFRESH_TOKEN_EXPIRY", 30*24*time.Hour),
		UploadDir:          getEnv("UPLOAD_DIR", "./uploads"),
		PublicURL:          getEnv("PUBLIC_URL", ""),
		MaxPhotos:          getInt("MAX_PHOTOS", 6),
		MaxPhotoBytes:      int64(getInt("MAX_PHOTO_BYTES", 5<<20)),
		AuthRateLimit:      getFloat("AUTH_RATE_LIMIT", 5),
		AuthRateBurst:      getInt("AUTH_RATE_BURST", 10),
	}

	if cfg.Env == "production" && cfg.JWTSecret == devSecret {
		slog.Error("JWT_SECRET must be set in production environment")
		os.Exit(1)
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid number, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return f
}
