package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the transit service
type Config struct {
	// HTTP
	Port           string
	AllowedOrigins []string

	// Storage
	DatabasePath string // SQLite file, used when DatabaseURL is empty
	DatabaseURL  string // Postgres DSN for the preference/session store

	// Upstream APIs
	RoutesAPIURL string
	GPSAPIURL    string
	AuthAPIURL   string
	HTTPTimeout  time.Duration

	// Real-time polling
	GPSPollInterval   time.Duration
	RetentionDuration time.Duration

	// Public catalog endpoints
	CatalogCacheTTL time.Duration

	// Mounted screens with no viewer and no events are unmounted after this
	ScreenIdleTimeout time.Duration
}

// FileConfig is the optional YAML overlay pointed to by CONFIG_FILE.
// Zero values leave the environment-derived setting untouched.
type FileConfig struct {
	Port           int      `yaml:"port" validate:"omitempty,gt=0"`
	AllowedOrigins []string `yaml:"allowedOrigins" validate:"omitempty,dive,url"`
	RoutesAPIURL   string   `yaml:"routesApiURL" validate:"omitempty,url"`
	GPSAPIURL      string   `yaml:"gpsApiURL" validate:"omitempty,url"`
	AuthAPIURL     string   `yaml:"authApiURL" validate:"omitempty,url"`
	PollIntervalMS int      `yaml:"pollIntervalMS" validate:"gte=0"`
	RetentionHours int      `yaml:"retentionHours" validate:"gte=0"`
}

// Load reads configuration from .env files, environment variables and the
// optional YAML overlay, with sensible defaults.
func Load() (*Config, error) {
	// Base .env first, then .env.local overrides it for local development
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	cfg := &Config{
		Port:           getEnv("PORT", "8081"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:8081", "http://localhost:19006"}),

		DatabasePath: getEnv("SQLITE_DATABASE", "data/transit.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		RoutesAPIURL: getEnv("ROUTES_API_URL", "https://miniweb-omega.vercel.app/api"),
		GPSAPIURL:    getEnv("GPS_API_URL", "https://transporte-pearl.vercel.app/api"),
		AuthAPIURL:   getEnv("AUTH_API_URL", "https://miniweb-omega.vercel.app/api/auth"),
		HTTPTimeout:  time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 10)) * time.Second,

		GPSPollInterval:   time.Duration(getEnvInt("GPS_POLL_INTERVAL_MS", 5000)) * time.Millisecond,
		RetentionDuration: time.Duration(getEnvInt("RETENTION_HOURS", 1)) * time.Hour,

		CatalogCacheTTL: time.Duration(getEnvInt("CATALOG_CACHE_SECONDS", 60)) * time.Second,

		ScreenIdleTimeout: time.Duration(getEnvInt("SCREEN_IDLE_SECONDS", 120)) * time.Second,
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// applyFile overlays a YAML config file on top of cfg.
func (cfg *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := validator.New().Struct(fc); err != nil {
		return fmt.Errorf("invalid config file %s: %w", path, err)
	}

	if fc.Port != 0 {
		cfg.Port = strconv.Itoa(fc.Port)
	}
	if len(fc.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = fc.AllowedOrigins
	}
	if fc.RoutesAPIURL != "" {
		cfg.RoutesAPIURL = fc.RoutesAPIURL
	}
	if fc.GPSAPIURL != "" {
		cfg.GPSAPIURL = fc.GPSAPIURL
	}
	if fc.AuthAPIURL != "" {
		cfg.AuthAPIURL = fc.AuthAPIURL
	}
	if fc.PollIntervalMS > 0 {
		cfg.GPSPollInterval = time.Duration(fc.PollIntervalMS) * time.Millisecond
	}
	if fc.RetentionHours > 0 {
		cfg.RetentionDuration = time.Duration(fc.RetentionHours) * time.Hour
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
