package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// Server settings
	ServerPort      string        `json:"server_port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	Debug           bool          `json:"debug"`
	Environment     string        `json:"environment"`

	Log       LogConfig       `json:"log"`
	Database  DatabaseConfig  `json:"database"`
	YouTube   YouTubeConfig   `json:"youtube"`
	Ingestion IngestionConfig `json:"ingestion"`
	Spaces    SpacesConfig    `json:"spaces"`
}

type LogConfig struct {
	Dir    string `json:"dir"`
	Level  string `json:"level"`
	Format string `json:"format"`
}

type DatabaseConfig struct {
	Driver             string        `json:"driver"`
	Path               string        `json:"path"`
	URL                string        `json:"-"`
	MaxConnections     int           `json:"max_connections"`
	MaxIdleConnections int           `json:"max_idle_connections"`
	ConnMaxLifetime    time.Duration `json:"conn_max_lifetime"`
}

type YouTubeConfig struct {
	APIKey         string        `json:"-"`
	BaseURL        string        `json:"base_url"`
	RegionCode     string        `json:"region_code"`
	RequestTimeout time.Duration `json:"request_timeout"`
	MaxRetries     int           `json:"max_retries"`
	RetryBackoff   time.Duration `json:"retry_backoff"`
}

type IngestionConfig struct {
	Enabled      bool          `json:"enabled"`
	Interval     time.Duration `json:"interval"`
	// CallDelay is the minimum gap between two search API calls.
	CallDelay    time.Duration `json:"call_delay"`
	MinPerGenre  int           `json:"min_per_genre"`
	SeedQueries  []string      `json:"seed_queries"`
	SeedPageSize int           `json:"seed_page_size"`
	SeedPause    time.Duration `json:"seed_pause"`
	GenreQueries []string      `json:"genre_queries"`
	MaxPerCall   int           `json:"max_per_call"`
	PageSize     int           `json:"page_size"`
	RunOnStartup bool          `json:"run_on_startup"`

	// TriggerInterval is the minimum gap between manual run requests.
	TriggerInterval time.Duration `json:"trigger_interval"`
}

type SpacesConfig struct {
	Enabled   bool   `json:"enabled"`
	AccessKey string `json:"-"`
	SecretKey string `json:"-"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	Bucket    string `json:"bucket"`
}

// MaxSearchPageSize is the largest maxResults the search API accepts.
const MaxSearchPageSize = 50

var (
	DefaultSeedQueries = []string{
		"Nigerian movies 2023",
		"Nollywood latest movies",
		"Nigerian TV shows",
	}
	DefaultGenreQueries = []string{
		"Nigerian %s movie",
		"Nollywood %s movies",
	}
)

// Load reads configuration from the environment, after loading an optional
// .env file from the working directory.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("Failed to load .env file")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		Debug:           getEnvAsBool("DEBUG", false),
		Environment:     env,

		Log: LogConfig{
			Dir:    getEnv("LOG_DIR", "./logs"),
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", defaultLogFormat(env)),
		},

		Database: DatabaseConfig{
			Driver:             strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			Path:               getEnv("DB_PATH", "./data/catalog.db"),
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DB_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},

		YouTube: YouTubeConfig{
			APIKey:         strings.TrimSpace(getEnv("YOUTUBE_API_KEY", "")),
			BaseURL:        getEnv("YOUTUBE_BASE_URL", "https://www.googleapis.com/youtube/v3"),
			RegionCode:     getEnv("YOUTUBE_REGION_CODE", ""),
			RequestTimeout: getEnvAsDuration("YOUTUBE_REQUEST_TIMEOUT", 15*time.Second),
			MaxRetries:     getEnvAsInt("YOUTUBE_MAX_RETRIES", 3),
			RetryBackoff:   getEnvAsDuration("YOUTUBE_RETRY_BACKOFF", 2*time.Second),
		},

		Ingestion: IngestionConfig{
			Enabled:      getEnvAsBool("INGEST_ENABLED", true),
			Interval:     getEnvAsDuration("INGEST_INTERVAL", 12*time.Hour),
			CallDelay:    getEnvAsDuration("INGEST_CALL_DELAY", 2*time.Second),
			MinPerGenre:  getEnvAsInt("INGEST_MIN_PER_GENRE", 12),
			SeedQueries:  getEnvAsStringSlice("INGEST_SEED_QUERIES", DefaultSeedQueries),
			SeedPageSize: getEnvAsInt("INGEST_SEED_PAGE_SIZE", 10),
			SeedPause:    getEnvAsDuration("INGEST_SEED_PAUSE", 3*time.Second),
			GenreQueries: getEnvAsStringSlice("INGEST_GENRE_QUERIES", DefaultGenreQueries),
			MaxPerCall:   getEnvAsInt("INGEST_MAX_PER_CALL", 10),
			PageSize:     clamp(getEnvAsInt("INGEST_PAGE_SIZE", 25), 1, MaxSearchPageSize),
			RunOnStartup: getEnvAsBool("INGEST_RUN_ON_STARTUP", true),

			TriggerInterval: getEnvAsDuration("INGEST_TRIGGER_INTERVAL", time.Minute),
		},

		Spaces: SpacesConfig{
			Enabled:   getEnvAsBool("SPACES_ENABLED", false),
			AccessKey: getEnv("SPACES_ACCESS_KEY", ""),
			SecretKey: getEnv("SPACES_SECRET_KEY", ""),
			Region:    getEnv("SPACES_REGION", "us-east-1"),
			Endpoint:  getEnv("SPACES_ENDPOINT", ""),
			Bucket:    getEnv("SPACES_BUCKET", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validateServer(c); err != nil {
		return err
	}
	if err := validateDatabase(c); err != nil {
		return err
	}
	if err := validateIngestion(c); err != nil {
		return err
	}
	if c.Spaces.Enabled && c.Spaces.Bucket == "" {
		return fmt.Errorf("spaces bucket is required when report archiving is enabled")
	}
	return nil
}

// IsProduction reports whether ENV=production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func validateServer(c *Config) error {
	if c.ServerPort == "" {
		return fmt.Errorf("server port is required")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

func validateDatabase(c *Config) error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	return nil
}

func validateIngestion(c *Config) error {
	in := c.Ingestion
	if in.Interval <= 0 {
		return fmt.Errorf("ingestion interval must be positive")
	}
	if in.CallDelay < 0 {
		return fmt.Errorf("call delay must not be negative")
	}
	if in.SeedPause < 0 {
		return fmt.Errorf("seed pause must not be negative")
	}
	if in.MinPerGenre < 1 {
		return fmt.Errorf("minimum items per genre must be at least 1")
	}
	if len(in.SeedQueries) == 0 {
		return fmt.Errorf("at least one seed query is required")
	}
	if in.SeedPageSize < 1 || in.MaxPerCall < 1 {
		return fmt.Errorf("seed page size and max per call must be positive")
	}
	if len(in.GenreQueries) == 0 {
		return fmt.Errorf("at least one genre query template is required")
	}
	for _, tmpl := range in.GenreQueries {
		if strings.Count(tmpl, "%s") != 1 {
			return fmt.Errorf("genre query template %q must contain exactly one %%s", tmpl)
		}
	}
	if c.YouTube.MaxRetries < 0 {
		return fmt.Errorf("youtube max retries must not be negative")
	}
	return nil
}

func defaultLogFormat(env string) string {
	if env == "production" {
		return "json"
	}
	return "text"
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Helper functions for reading environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intValue
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid integer, using default")
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolValue
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid boolean, using default")
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return duration
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid duration, using default")
	}
	return defaultValue
}

// getEnvAsStringSlice splits on ';' so that queries may contain commas.
func getEnvAsStringSlice(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
