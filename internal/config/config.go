package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Tesseract-Nexus/go-shared/secrets"

	"catalog-sync-service/internal/clients"
)

const defaultAPIVersion = "2025-10"

// Config holds all configuration for the catalog sync service
type Config struct {
	// Server
	Port        string
	Environment string

	// Database
	DatabaseURL string

	// Redis (optional: location cache, distributed sync lock, webhook dedupe)
	RedisURL string

	// NATS (optional: product lifecycle events)
	NATSURL string

	// GCP
	GCPProjectID             string
	ShopifyCredentialsSecret string

	// Remote store
	Shopify ShopifyConfig

	// Sync Settings
	SyncBatchSize  int
	SyncMaxRetries int
	SyncRetryDelay time.Duration
	SyncTimeout    time.Duration

	// Request handling
	WriteTimeout       time.Duration
	MaxUploadSize      int64
	CORSAllowedOrigins []string
}

// ShopifyConfig is the explicit remote-store configuration handed to the catalog client.
type ShopifyConfig struct {
	ShopDomain    string
	AccessToken   string
	APIVersion    string
	WebhookSecret string

	// BaseURL overrides https://{ShopDomain}; used against fake servers.
	BaseURL string

	RequestsPerSecond float64
	Timeout           time.Duration

	// DefaultLocationID is the representative location for inventory writes and mirror quantities.
	DefaultLocationID int64
}

// Validate fails when the domain or token is missing.
func (c ShopifyConfig) Validate() error {
	if strings.TrimSpace(c.ShopDomain) == "" {
		return &clients.ConfigError{Field: "SHOPIFY_STORE"}
	}
	if strings.TrimSpace(c.AccessToken) == "" {
		return &clients.ConfigError{Field: "SHOPIFY_ACCESS_TOKEN"}
	}
	return nil
}

// StoreURL returns the origin all Admin API paths are resolved against.
func (c ShopifyConfig) StoreURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return "https://" + NormalizeShopDomain(c.ShopDomain)
}

// Version returns the configured Admin API version or the default one.
func (c ShopifyConfig) Version() string {
	if c.APIVersion == "" {
		return defaultAPIVersion
	}
	return c.APIVersion
}

// NormalizeShopDomain accepts "store", "store.myshopify.com" or a full URL.
func NormalizeShopDomain(domain string) string {
	d := strings.TrimSpace(domain)
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimRight(d, "/")
	if d != "" && !strings.Contains(d, ".") {
		d += ".myshopify.com"
	}
	return d
}

// Load loads configuration from environment variables
func Load() *Config {
	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL == "" {
		dbHost := getEnv("DB_HOST", "localhost")
		dbPort := getEnv("DB_PORT", "5432")
		dbUser := getEnv("DB_USER", "postgres")
		dbPassword := secrets.GetDBPassword()
		dbName := getEnv("DB_NAME", "catalog_sync")
		dbSSLMode := getEnv("DB_SSLMODE", "disable")

		databaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			dbUser, dbPassword, dbHost, dbPort, dbName, dbSSLMode)
	}

	config := &Config{
		Port:        getEnv("PORT", "8099"),
		Environment: getEnv("ENVIRONMENT", "development"),
		DatabaseURL: databaseURL,
		RedisURL:    getEnv("REDIS_URL", ""),
		NATSURL:     getEnv("NATS_URL", ""),

		// GCP
		GCPProjectID:             getEnv("GCP_PROJECT_ID", ""),
		ShopifyCredentialsSecret: getEnv("SHOPIFY_CREDENTIALS_SECRET", ""),

		Shopify: ShopifyConfig{
			ShopDomain:        getEnv("SHOPIFY_STORE", ""),
			AccessToken:       getEnv("SHOPIFY_ACCESS_TOKEN", ""),
			APIVersion:        getEnv("SHOPIFY_API_VERSION", defaultAPIVersion),
			WebhookSecret:     getEnv("SHOPIFY_WEBHOOK_SECRET", ""),
			RequestsPerSecond: getEnvAsFloat("SHOPIFY_RATE_LIMIT", 2),
			Timeout:           getEnvAsDuration("SHOPIFY_TIMEOUT", 30*time.Second),
			DefaultLocationID: getEnvAsInt64("SHOPIFY_LOCATION_ID", 0),
		},

		// Sync Settings
		SyncBatchSize:  getEnvAsInt("SYNC_BATCH_SIZE", 100),
		SyncMaxRetries: getEnvAsInt("SYNC_MAX_RETRIES", 3),
		SyncRetryDelay: getEnvAsDuration("SYNC_RETRY_DELAY", 2*time.Second),
		SyncTimeout:    getEnvAsDuration("SYNC_TIMEOUT", 30*time.Minute),

		WriteTimeout:       getEnvAsDuration("WRITE_TIMEOUT", 5*time.Minute),
		MaxUploadSize:      getEnvAsInt64("MAX_UPLOAD_SIZE", 512<<20),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:4200"}),
	}

	if config.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	if config.GCPProjectID == "" {
		log.Println("Warning: GCP_PROJECT_ID not set, Shopify credentials must come from the environment")
	}

	return config
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
