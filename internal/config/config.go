package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/maltedev/amazon-rank-tracker/internal/rank"
)

type Config struct {
	Server   ServerConfig
	Tracker  TrackerConfig
	Browser  BrowserConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Output   OutputConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type TrackerConfig struct {
	MaxPages     int
	Concurrency  int
	Strategy     rank.Strategy
	RateLimitMin time.Duration
	RateLimitMax time.Duration
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Enabled bool
	Addr    string
	Stream  string
}

type OutputConfig struct {
	Dir         string
	Screenshots bool
	ShotDir     string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Tracker: TrackerConfig{
			MaxPages:     getIntOrDefault("TRACKER_MAX_PAGES", 3),
			Concurrency:  getIntOrDefault("TRACKER_CONCURRENCY", 2),
			Strategy:     rank.Strategy(getEnvOrDefault("TRACKER_STRATEGY", string(rank.StrategyProximity))),
			RateLimitMin: getDurationOrDefault("TRACKER_RATE_LIMIT_MIN", 2*time.Second),
			RateLimitMax: getDurationOrDefault("TRACKER_RATE_LIMIT_MAX", 6*time.Second),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "ja-JP,ja;q=0.9,en;q=0.8"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Asia/Tokyo"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "ja-JP"),
			ProxyServer:    getEnvOrDefault("BROWSER_PROXY", ""),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolOrDefault("DB_ENABLED", false),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "amazon_ranks"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled: getBoolOrDefault("REDIS_ENABLED", false),
			Addr:    getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Stream:  getEnvOrDefault("REDIS_STREAM", "stream:rank_records"),
		},
		Output: OutputConfig{
			Dir:         getEnvOrDefault("OUTPUT_DIR", "output"),
			Screenshots: getBoolOrDefault("OUTPUT_SCREENSHOTS", false),
			ShotDir:     getEnvOrDefault("OUTPUT_SCREENSHOT_DIR", "output/images"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Tracker.MaxPages < 1 {
		return fmt.Errorf("TRACKER_MAX_PAGES must be at least 1")
	}

	if c.Tracker.Concurrency < 1 {
		return fmt.Errorf("TRACKER_CONCURRENCY must be at least 1")
	}

	if c.Tracker.RateLimitMin > c.Tracker.RateLimitMax {
		return fmt.Errorf("TRACKER_RATE_LIMIT_MIN cannot be greater than TRACKER_RATE_LIMIT_MAX")
	}

	switch c.Tracker.Strategy {
	case rank.StrategyProximity, rank.StrategyAncestor:
	default:
		return fmt.Errorf("TRACKER_STRATEGY must be %q or %q",
			rank.StrategyProximity, rank.StrategyAncestor)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
