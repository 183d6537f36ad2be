package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	API      APIConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Auth     AuthConfig
}

// APIConfig configures the storefront client core.
type APIConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables throttling
	RateBurst int
}

type ServerConfig struct {
	Port          string
	Env           string
	StorageDriver string // postgres or memory
	CORSOrigins   []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret       string
	AccessExpiry int // in minutes
}

// AuthConfig holds the limits applied to the /auth endpoints.
type AuthConfig struct {
	RateLimit        int // requests per window per client
	RateWindow       time.Duration
	VerificationTTL  time.Duration
	PasswordResetTTL time.Duration
}

func Load() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("API_BASE_URL", "http://localhost:8080")
	viper.SetDefault("API_TIMEOUT_SECONDS", 30)
	viper.SetDefault("API_RATE_LIMIT", 0)
	viper.SetDefault("API_RATE_BURST", 5)
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("STORAGE_DRIVER", "postgres")
	viper.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("JWT_ACCESS_EXPIRY", 60)
	viper.SetDefault("AUTH_RATE_LIMIT", 20)
	viper.SetDefault("AUTH_RATE_WINDOW_SECONDS", 60)
	viper.SetDefault("AUTH_VERIFICATION_TTL_HOURS", 24)
	viper.SetDefault("AUTH_RESET_TTL_MINUTES", 30)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		API: APIConfig{
			BaseURL:   viper.GetString("API_BASE_URL"),
			Timeout:   time.Duration(viper.GetInt("API_TIMEOUT_SECONDS")) * time.Second,
			RateLimit: viper.GetFloat64("API_RATE_LIMIT"),
			RateBurst: viper.GetInt("API_RATE_BURST"),
		},
		Server: ServerConfig{
			Port:          viper.GetString("SERVER_PORT"),
			Env:           viper.GetString("SERVER_ENV"),
			StorageDriver: viper.GetString("STORAGE_DRIVER"),
			CORSOrigins:   splitList(viper.GetString("CORS_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:       viper.GetString("JWT_SECRET"),
			AccessExpiry: viper.GetInt("JWT_ACCESS_EXPIRY"),
		},
		Auth: AuthConfig{
			RateLimit:        viper.GetInt("AUTH_RATE_LIMIT"),
			RateWindow:       time.Duration(viper.GetInt("AUTH_RATE_WINDOW_SECONDS")) * time.Second,
			VerificationTTL:  time.Duration(viper.GetInt("AUTH_VERIFICATION_TTL_HOURS")) * time.Hour,
			PasswordResetTTL: time.Duration(viper.GetInt("AUTH_RESET_TTL_MINUTES")) * time.Minute,
		},
	}
}

// DSN returns the postgres connection string.
func (c DatabaseConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.Database +
		"?sslmode=disable&search_path=" + c.Schema
}

// Addr returns the redis address.
func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
