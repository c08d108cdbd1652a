// Package config provides configuration management using Viper
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Database types
const (
	SQLiteDatabase = "sqlite"
)

// Geolocation providers
const (
	GeoProviderIPAPI   = "ipapi"
	GeoProviderGeoLite = "geolite"
	GeoProviderNone    = "none"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	PrivateKey  string   `mapstructure:"privatekey"`

	// File paths
	DatabasePath          string `mapstructure:"storagepath"`
	DatabaseName          string `mapstructure:"-"` // Derived from other settings
	PublicDirectory       string `mapstructure:"publicdir"`
	PublicAssetsUrlPrefix string `mapstructure:"publicassetsurlprefix"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseType         string `mapstructure:"dbtype"`
	DatabaseMaxOpenConns int    `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int    `mapstructure:"dbmaxidleconns"`

	// Geolocation settings
	GeoProvider          string `mapstructure:"geoprovider"`
	GeoAPIURL            string `mapstructure:"geoapiurl"`
	GeoTimeoutSeconds    int    `mapstructure:"geotimeoutseconds"`
	GeoCacheTTLMinutes   int    `mapstructure:"geocachettlminutes"`
	GeoDBPath            string `mapstructure:"geodbpath"`
	GeoDBCheckIntervalMn int    `mapstructure:"geodbcheckintervalminutes"`

	// Visit tracking settings
	UniquenessWindowHours int  `mapstructure:"uniquenesswindowhours"`
	StrictUniqueness      bool `mapstructure:"strictuniqueness"`

	// Job scheduling settings
	JobIntervalSeconds int `mapstructure:"jobintervalseconds"`

	// Data retention settings. Zero keeps visits forever.
	VisitRetentionDays int `mapstructure:"visitretentiondays"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		// A missing .env file is the normal case outside local development.
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Printf("config: failed to load .env file: %v", err)
		}

		v := viper.New()

		v.SetDefault("appname", "tracklet")
		v.SetDefault("appport", "8080")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("privatekey", "88888888888888888888888888888888")
		v.SetDefault("storagepath", "storage")
		v.SetDefault("publicdir", "web")
		v.SetDefault("publicassetsurlprefix", "/")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbtype", SQLiteDatabase)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("geoprovider", GeoProviderIPAPI)
		v.SetDefault("geoapiurl", "http://ip-api.com/json/")
		v.SetDefault("geotimeoutseconds", 5)
		v.SetDefault("geocachettlminutes", 60)
		v.SetDefault("geodbpath", "storage/GeoLite2-Country.mmdb")
		v.SetDefault("geodbcheckintervalminutes", 60)
		v.SetDefault("uniquenesswindowhours", 24)
		v.SetDefault("strictuniqueness", false)
		v.SetDefault("jobintervalseconds", 86400)
		v.SetDefault("visitretentiondays", 0)

		v.BindEnv("appname", "TRACKLET_APP_NAME")
		v.BindEnv("appport", "TRACKLET_APP_PORT")
		v.BindEnv("environment", "TRACKLET_ENV")
		v.BindEnv("loglevel", "TRACKLET_LOG_LEVEL")
		v.BindEnv("privatekey", "TRACKLET_PRIVATE_KEY")
		v.BindEnv("storagepath", "TRACKLET_STORAGE_PATH")
		v.BindEnv("publicdir", "TRACKLET_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "TRACKLET_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("logsdir", "TRACKLET_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "TRACKLET_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "TRACKLET_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "TRACKLET_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbtype", "TRACKLET_DB_TYPE")
		v.BindEnv("dbmaxopenconns", "TRACKLET_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "TRACKLET_DB_MAX_IDLE_CONNS")
		v.BindEnv("geoprovider", "TRACKLET_GEO_PROVIDER")
		v.BindEnv("geoapiurl", "TRACKLET_GEO_API_URL")
		v.BindEnv("geotimeoutseconds", "TRACKLET_GEO_TIMEOUT_SECONDS")
		v.BindEnv("geocachettlminutes", "TRACKLET_GEO_CACHE_TTL_MINUTES")
		v.BindEnv("geodbpath", "TRACKLET_GEO_DB_PATH")
		v.BindEnv("geodbcheckintervalminutes", "TRACKLET_GEO_DB_CHECK_INTERVAL_MINUTES")
		v.BindEnv("uniquenesswindowhours", "TRACKLET_UNIQUENESS_WINDOW_HOURS")
		v.BindEnv("strictuniqueness", "TRACKLET_STRICT_UNIQUENESS")
		v.BindEnv("jobintervalseconds", "TRACKLET_JOB_INTERVAL_SECONDS")
		v.BindEnv("visitretentiondays", "TRACKLET_VISIT_RETENTION_DAYS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()

		defaultKey := "88888888888888888888888888888888"
		if cfg.PrivateKey == "" {
			log.Fatal("Private key is required")
		}
		if cfg.IsProduction() && cfg.PrivateKey == defaultKey {
			log.Fatal("Production requires a unique TRACKLET_PRIVATE_KEY (cannot use default)")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validDBTypes := map[string]bool{
		SQLiteDatabase: true,
	}
	if !validDBTypes[c.DatabaseType] {
		return fmt.Errorf("invalid database type: %s", c.DatabaseType)
	}

	validGeoProviders := map[string]bool{
		GeoProviderIPAPI:   true,
		GeoProviderGeoLite: true,
		GeoProviderNone:    true,
	}
	if !validGeoProviders[c.GeoProvider] {
		return fmt.Errorf("invalid geo provider: %s", c.GeoProvider)
	}

	if c.UniquenessWindowHours <= 0 {
		return fmt.Errorf("uniqueness window must be positive, got %d hours", c.UniquenessWindowHours)
	}
	if c.VisitRetentionDays < 0 {
		return fmt.Errorf("visit retention days cannot be negative: %d", c.VisitRetentionDays)
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// UniquenessWindow is the trailing span in which a repeat fingerprint is not a new unique visit.
func (c *Config) UniquenessWindow() time.Duration {
	return time.Duration(c.UniquenessWindowHours) * time.Hour
}

// GeoTimeout bounds a single upstream geolocation request.
func (c *Config) GeoTimeout() time.Duration {
	if c.GeoTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.GeoTimeoutSeconds) * time.Second
}

// GeoCacheTTL returns how long resolved countries are kept in memory.
func (c *Config) GeoCacheTTL() time.Duration {
	return time.Duration(c.GeoCacheTTLMinutes) * time.Minute
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return c.PublicAssetsUrlPrefix
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the session encryption key (implements cartridge.FactoryConfig interface).
func (c *Config) GetSessionSecret() string {
	return c.PrivateKey
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment.
// Tests use a single connection, everything else allows concurrent dashboard reads.
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
