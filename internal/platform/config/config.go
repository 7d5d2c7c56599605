package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// Ingestion.
	ScrapeMode        string        `env:"SCRAPE_MODE" default:"poll"`
	PollInterval      time.Duration `env:"POLL_INTERVAL" default:"1500ms"`
	SeenCacheCapacity int           `env:"SEEN_CACHE_CAPACITY" default:"10000"`
	MaxExtractFails   int           `env:"MAX_EXTRACT_FAILS" default:"5"`
	NavigationTimeout time.Duration `env:"NAVIGATION_TIMEOUT" default:"30s"`
	BrowserPath       string        `env:"BROWSER_PATH"`
	Headless          bool          `env:"HEADLESS" default:"true"`
	// DebugScreenshotDir receives a page screenshot when attaching to a
	// stream fails. Empty disables the dump.
	DebugScreenshotDir string `env:"DEBUG_SCREENSHOT_DIR"`

	// Fan-out limits.
	MaxClientsPerStream     int     `env:"MAX_CLIENTS_PER_STREAM" default:"50"`
	MaxWebSocketConnections int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP     int     `env:"MAX_CONNECTIONS_PER_IP" default:"10"`
	ConnectionRate          float64 `env:"CONNECTION_RATE" default:"5"`
	ConnectionBurst         int     `env:"CONNECTION_BURST" default:"10"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.ScrapeMode != "poll" && cfg.ScrapeMode != "observe" {
		return fmt.Errorf("SCRAPE_MODE must be \"poll\" or \"observe\", got %q", cfg.ScrapeMode)
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", cfg.PollInterval)
	}
	if cfg.SeenCacheCapacity <= 0 {
		return fmt.Errorf("SEEN_CACHE_CAPACITY must be positive, got %d", cfg.SeenCacheCapacity)
	}
	if cfg.MaxExtractFails <= 0 {
		return fmt.Errorf("MAX_EXTRACT_FAILS must be positive, got %d", cfg.MaxExtractFails)
	}
	if cfg.NavigationTimeout <= 0 {
		return fmt.Errorf("NAVIGATION_TIMEOUT must be positive, got %s", cfg.NavigationTimeout)
	}
	if cfg.MaxClientsPerStream <= 0 {
		return fmt.Errorf("MAX_CLIENTS_PER_STREAM must be positive, got %d", cfg.MaxClientsPerStream)
	}
	if cfg.MaxConnectionsPerIP <= 0 {
		return fmt.Errorf("MAX_CONNECTIONS_PER_IP must be positive, got %d", cfg.MaxConnectionsPerIP)
	}
	if cfg.ConnectionRate <= 0 {
		return fmt.Errorf("CONNECTION_RATE must be positive, got %v", cfg.ConnectionRate)
	}
	return nil
}
