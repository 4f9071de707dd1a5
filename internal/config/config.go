package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Environment string
	Database    DatabaseConfig
	Redis       RedisConfig
	Supplier    ShopifyConfig
	Retailer    ShopifyConfig
	Sync        SyncConfig
	LogLevel    string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ShopifyConfig struct {
	ShopDomain  string
	AccessToken string
}

type SyncConfig struct {
	BulkPollInterval time.Duration
	BulkMaxWait      time.Duration
	ImportWorkers    int
	HealthTTL        time.Duration
	ActivityMaxCount int
	ActivityMaxAge   time.Duration
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("BULK_POLL_INTERVAL", "2s")
	viper.SetDefault("BULK_MAX_WAIT", "5m")
	viper.SetDefault("IMPORT_WORKERS", "4")
	viper.SetDefault("HEALTH_CACHE_TTL", "60s")
	viper.SetDefault("ACTIVITY_MAX_COUNT", "100")
	viper.SetDefault("ACTIVITY_MAX_AGE", "720h")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if .env doesn't exist, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "8080"),
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		Database: DatabaseConfig{
			Host:     getEnvOrViper("DB_HOST", "localhost"),
			Port:     getEnvOrViper("DB_PORT", "5432"),
			User:     getEnvOrViper("DB_USER", "postgres"),
			Password: getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrViper("DB_NAME", "syncengine"),
			SSLMode:  getEnvOrViper("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrViper("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrViper("REDIS_PASSWORD", ""),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Supplier: ShopifyConfig{
			ShopDomain:  getEnvOrViper("SUPPLIER_SHOP_DOMAIN", ""),
			AccessToken: getEnvOrViper("SUPPLIER_ACCESS_TOKEN", ""),
		},
		Retailer: ShopifyConfig{
			ShopDomain:  getEnvOrViper("RETAILER_SHOP_DOMAIN", ""),
			AccessToken: getEnvOrViper("RETAILER_ACCESS_TOKEN", ""),
		},
		Sync: SyncConfig{
			BulkPollInterval: viper.GetDuration("BULK_POLL_INTERVAL"),
			BulkMaxWait:      viper.GetDuration("BULK_MAX_WAIT"),
			ImportWorkers:    viper.GetInt("IMPORT_WORKERS"),
			HealthTTL:        viper.GetDuration("HEALTH_CACHE_TTL"),
			ActivityMaxCount: viper.GetInt("ACTIVITY_MAX_COUNT"),
			ActivityMaxAge:   viper.GetDuration("ACTIVITY_MAX_AGE"),
		},
		LogLevel: getEnvOrViper("LOG_LEVEL", "info"),
	}

	// Validate required fields
	if cfg.Retailer.ShopDomain == "" {
		return nil, fmt.Errorf("RETAILER_SHOP_DOMAIN is required")
	}
	if cfg.Retailer.AccessToken == "" {
		return nil, fmt.Errorf("RETAILER_ACCESS_TOKEN is required")
	}
	if cfg.Sync.ImportWorkers < 1 {
		cfg.Sync.ImportWorkers = 1
	}

	return cfg, nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}
