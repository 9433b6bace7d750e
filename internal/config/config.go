package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Storage  StorageConfig
	Facebook FacebookConfig
	Source   SourceConfig
	Poster   PosterConfig
	Server   ServerConfig
	Log      LogConfig
}

// StorageConfig holds storage-related configuration
type StorageConfig struct {
	Type          string // "file", "dynamodb", "mongodb", "postgresql", "redis"
	LastBatchFile string
	StatusFile    string
	Region        string // For AWS DynamoDB
	TableName     string
	Endpoint      string // Custom endpoint for local testing
	MongoDBURI    string
	MongoDatabase string
	PostgresURI   string
	RedisURL      string
}

// FacebookConfig holds the Graph API credentials for the page
type FacebookConfig struct {
	PageID      string
	AccessToken string
	GraphURL    string
	Timeout     time.Duration
}

// SourceConfig holds the arrests feed configuration
type SourceConfig struct {
	APIEndpoint string
	Timeout     time.Duration
}

// PosterConfig holds posting behaviour
type PosterConfig struct {
	BookingURLBase string
	PostDelay      time.Duration
	MaxPosts       int
	PostTime       string        // HH:MM, local time
	Interval       time.Duration // overrides PostTime when > 0
	RunOnStart     bool
	DryRun         bool
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port    int
	Enabled bool
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string // "json" or "text"
	File   string
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	timeout := getEnvDuration("API_TIMEOUT", 15*time.Second)

	cfg := &Config{
		Storage: StorageConfig{
			Type:          getEnv("STORAGE_TYPE", "file"),
			LastBatchFile: getEnv("LAST_BATCH_FILE", "last_batch.csv"),
			StatusFile:    getEnv("STATUS_FILE", "last_run.json"),
			Region:        getEnv("AWS_REGION", "us-west-2"),
			TableName:     getEnv("TABLE_NAME", "facebook_poster_state"),
			Endpoint:      getEnv("DYNAMODB_ENDPOINT", ""), // For local DynamoDB
			MongoDBURI:    getEnv("MONGODB_URI", ""),
			MongoDatabase: getEnv("MONGODB_DATABASE", "facebook_poster"),
			PostgresURI:   getEnv("POSTGRES_URI", ""),
			RedisURL:      getEnv("REDIS_URL", ""),
		},
		Facebook: FacebookConfig{
			PageID:      getEnv("FACEBOOK_PAGE_ID", ""),
			AccessToken: getEnv("FACEBOOK_PAGE_ACCESS_TOKEN", ""),
			GraphURL:    strings.TrimRight(getEnv("FACEBOOK_GRAPH_URL", "https://graph.facebook.com/v24.0"), "/"),
			Timeout:     timeout,
		},
		Source: SourceConfig{
			APIEndpoint: getEnv("ARRESTS_API_URL", ""),
			Timeout:     timeout,
		},
		Poster: PosterConfig{
			BookingURLBase: getEnv("BOOKING_URL_BASE", ""),
			PostDelay:      getEnvDuration("POST_DELAY", 2*time.Second),
			MaxPosts:       getEnvInt("MAX_POSTS", 20),
			PostTime:       getEnv("POST_TIME", "09:00"),
			Interval:       getEnvDuration("POST_INTERVAL", 0),
			RunOnStart:     getEnvBool("RUN_ON_START", false),
			DryRun:         getEnvBool("DRY_RUN", false),
		},
		Server: ServerConfig{
			Port:    getEnvInt("SERVER_PORT", 8080),
			Enabled: getEnvBool("SERVER_ENABLED", true),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", "facebook_poster.log"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required settings are present and well formed
func (c *Config) Validate() error {
	var missing []string
	if c.Facebook.PageID == "" {
		missing = append(missing, "FACEBOOK_PAGE_ID")
	}
	if c.Facebook.AccessToken == "" {
		missing = append(missing, "FACEBOOK_PAGE_ACCESS_TOKEN")
	}
	if c.Source.APIEndpoint == "" {
		missing = append(missing, "ARRESTS_API_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Poster.Interval <= 0 {
		if _, _, err := ParsePostTime(c.Poster.PostTime); err != nil {
			return err
		}
	}
	if c.Poster.PostDelay < 0 {
		return errors.New("POST_DELAY must not be negative")
	}

	return nil
}

// ParsePostTime splits an HH:MM daily post time into hour and minute
func ParsePostTime(value string) (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid POST_TIME %q, expected HH:MM", value)
	}
	return t.Hour(), t.Minute(), nil
}

// MarshalJSON renders the configuration with secrets redacted
func (c Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"StorageType":    c.Storage.Type,
		"LastBatchFile":  c.Storage.LastBatchFile,
		"TableName":      c.Storage.TableName,
		"MongoDBURI":     redact(c.Storage.MongoDBURI),
		"PostgresURI":    redact(c.Storage.PostgresURI),
		"RedisURL":       redact(c.Storage.RedisURL),
		"PageID":         c.Facebook.PageID,
		"AccessToken":    redact(c.Facebook.AccessToken),
		"GraphURL":       c.Facebook.GraphURL,
		"APIEndpoint":    redactQuery(c.Source.APIEndpoint),
		"APITimeout":     c.Source.Timeout.String(),
		"BookingURLBase": c.Poster.BookingURLBase,
		"PostDelay":      c.Poster.PostDelay.String(),
		"MaxPosts":       c.Poster.MaxPosts,
		"PostTime":       c.Poster.PostTime,
		"Interval":       c.Poster.Interval.String(),
		"DryRun":         c.Poster.DryRun,
		"ServerPort":     c.Server.Port,
		"LogLevel":       c.Log.Level,
	})
}

// redactQuery keeps the scheme, host and path of a URL and masks its query
// string and user info, which may carry API keys.
func redactQuery(value string) string {
	u, err := url.Parse(value)
	if err != nil {
		return redact(value)
	}
	if u.User != nil {
		u.User = url.User("xxxxx")
	}
	if u.RawQuery != "" {
		u.RawQuery = "xxxxx"
	}
	u.Fragment = ""
	return u.String()
}

func redact(value string) string {
	if value == "" {
		return ""
	}
	return "xxxxx"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
