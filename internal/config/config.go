// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
	StoreSQLite    = "sqlite"
)

// Config holds all configuration for the application.
type Config struct {
	// Server Configuration
	GinMode       string        `mapstructure:"GIN_MODE"`
	ServerHost    string        `mapstructure:"SERVER_HOST"`
	ServerPort    string        `mapstructure:"SERVER_PORT"`
	ServerTimeout time.Duration `mapstructure:"SERVER_TIMEOUT_SECONDS"`
	CORSOrigins   []string      `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// Store Configuration
	StoreBackend  string `mapstructure:"STORE_BACKEND"`
	TxMaxAttempts int    `mapstructure:"TX_MAX_ATTEMPTS"`
	SQLitePath    string `mapstructure:"SQLITE_PATH"`

	// Database Configuration (postgres backend)
	DBHost            string        `mapstructure:"DB_HOST"`
	DBPort            string        `mapstructure:"DB_PORT"`
	DBUser            string        `mapstructure:"DB_USER"`
	DBPassword        string        `mapstructure:"DB_PASSWORD"`
	DBName            string        `mapstructure:"DB_NAME"`
	DBSSLMode         string        `mapstructure:"DB_SSL_MODE"`
	DBTimezone        string        `mapstructure:"DB_TIMEZONE"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	DBSource          string        `mapstructure:"DB_SOURCE"`

	// Logging Configuration
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// Coordination
	DefaultLat float64 `mapstructure:"DEFAULT_LAT"`
	DefaultLng float64 `mapstructure:"DEFAULT_LNG"`

	// Cron Jobs
	RequestExpiryHours       int    `mapstructure:"REQUEST_EXPIRY_HOURS"`
	RequestExpiryJobSchedule string `mapstructure:"REQUEST_EXPIRY_JOB_SCHEDULE"`

	// Firebase Configuration
	FirebaseServiceAccountKeyPath string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_KEY_PATH"`
	FirebaseProjectID             string `mapstructure:"FIREBASE_PROJECT_ID"`

	// Elasticsearch Configuration. An empty URL disables the search index.
	ElasticsearchURL   string `mapstructure:"ELASTICSEARCH_URL"`
	ElasticsearchIndex string `mapstructure:"ELASTICSEARCH_USERS_INDEX"`
}

// RequestExpiry returns how long a request may stay pending.
func (c *Config) RequestExpiry() time.Duration {
	return time.Duration(c.RequestExpiryHours) * time.Hour
}

// Load attempts to load configuration from a .env file (if present) and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	v := viper.New()

	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_TIMEOUT_SECONDS", 30)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")

	v.SetDefault("STORE_BACKEND", StoreFirestore)
	v.SetDefault("TX_MAX_ATTEMPTS", 5)
	v.SetDefault("SQLITE_PATH", "lifelink.db")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "lifelink_db")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_TIMEZONE", "UTC")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 60)
	v.SetDefault("DB_SOURCE", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	// Bengaluru city centre; used when a client cannot resolve its position.
	v.SetDefault("DEFAULT_LAT", 12.9716)
	v.SetDefault("DEFAULT_LNG", 77.5946)

	v.SetDefault("REQUEST_EXPIRY_HOURS", 72)
	v.SetDefault("REQUEST_EXPIRY_JOB_SCHEDULE", "@hourly")

	v.SetDefault("FIREBASE_PROJECT_ID", "")
	v.SetDefault("FIREBASE_SERVICE_ACCOUNT_KEY_PATH", "")

	v.SetDefault("ELASTICSEARCH_URL", "")
	v.SetDefault("ELASTICSEARCH_USERS_INDEX", "users")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	cfg.ServerTimeout = time.Duration(v.GetInt("SERVER_TIMEOUT_SECONDS")) * time.Second
	cfg.DBConnMaxLifetime = time.Duration(v.GetInt("DB_CONN_MAX_LIFETIME_MINUTES")) * time.Minute
	cfg.CORSOrigins = splitList(v.GetString("CORS_ALLOWED_ORIGINS"))

	// An explicit DB_SOURCE wins over the individual DB_* parameters.
	if strings.TrimSpace(cfg.DBSource) == "" {
		cfg.DBSource = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
			cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode, cfg.DBTimezone)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreFirestore, StorePostgres, StoreSQLite:
	default:
		return fmt.Errorf("STORE_BACKEND must be one of %s, %s, %s; got %q", StoreFirestore, StorePostgres, StoreSQLite, c.StoreBackend)
	}
	if c.TxMaxAttempts < 1 {
		return fmt.Errorf("TX_MAX_ATTEMPTS must be at least 1, got %d", c.TxMaxAttempts)
	}
	if c.RequestExpiryHours < 1 {
		return fmt.Errorf("REQUEST_EXPIRY_HOURS must be at least 1, got %d", c.RequestExpiryHours)
	}

	// The identity provider is always Firebase, whatever the store backend.
	if strings.TrimSpace(c.FirebaseServiceAccountKeyPath) == "" {
		return fmt.Errorf("FATAL: FIREBASE_SERVICE_ACCOUNT_KEY_PATH is not set. This is required for Firebase Admin SDK initialization")
	}
	if _, err := os.Stat(c.FirebaseServiceAccountKeyPath); os.IsNotExist(err) {
		return fmt.Errorf("FATAL: Firebase service account key file specified in FIREBASE_SERVICE_ACCOUNT_KEY_PATH (%s) not found", c.FirebaseServiceAccountKeyPath)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
