package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"

	"pinbook/pkg/logger"
)

var AppConfig *Config

func (c *Config) GetBaseUrl() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return fmt.Sprintf("http://localhost:%d", c.Server.Port)
}

func Load() {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PINBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("database.path", "PINBOOK_DATABASE_PATH")
	v.BindEnv("index.photos_dir", "PINBOOK_PHOTOS_DIR")
	v.BindEnv("geocode.server", "PINBOOK_NOMINATIM_SERVER")
	v.BindEnv("server.port", "APP_PORT")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.LogInfo("Config file not found. Using Environment Variables and Defaults.")
		} else {
			logger.LogWarn("Config file found but unreadable: %v", err)
		}
	}

	if err := v.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("[CRITICAL] Error: Failed to parse configuration: %v", err)
	}

	AppConfig.BaseURL = AppConfig.GetBaseUrl()

	if err := AppConfig.Validate(); err != nil {
		log.Fatalf("[FATAL] CONFIGURATION ERROR: %v", err)
	}

	logger.LogInfo("⚙️  %s v%s Initialized | Env: %s | Port: %d",
		AppConfig.App.Name,
		AppConfig.App.Version,
		AppConfig.Server.Env,
		AppConfig.Server.Port,
	)
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "Pinbook")
	v.SetDefault("app.version", "0.1.0")

	// Server
	v.SetDefault("server.port", 9910)
	v.SetDefault("server.env", "development")

	// Database
	v.SetDefault("database.path", "./data/pinbook.db")

	// Geocoding
	v.SetDefault("geocode.server", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.max_per_minute", 40)
	v.SetDefault("geocode.min_interval", "400ms")

	// Indexing
	v.SetDefault("index.photos_dir", "./photos")

	// Security & Limits
	v.SetDefault("security.rate_limit.enabled", true)
	v.SetDefault("security.rate_limit.requests", 20)
	v.SetDefault("security.rate_limit.window", "1s")
	v.SetDefault("security.rate_limit.burst", 50)
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path cannot be empty")
	}

	// Geocode: budget sanity. The public Nominatim instance enforces
	// roughly 1 req/s; anything above 50/min will get the client banned.
	if c.Geocode.MaxPerMinute <= 0 || c.Geocode.MaxPerMinute > 50 {
		return fmt.Errorf("geocode.max_per_minute must be in 1..50, got %d", c.Geocode.MaxPerMinute)
	}

	if _, err := time.ParseDuration(c.Geocode.MinInterval); err != nil {
		return fmt.Errorf("invalid geocode.min_interval format '%s': %v", c.Geocode.MinInterval, err)
	}

	// RateLimit: Window Parsing Check
	if _, err := time.ParseDuration(c.Security.RateLimit.Window); err != nil {
		return fmt.Errorf("invalid rate_limit.window format '%s': %v", c.Security.RateLimit.Window, err)
	}

	return nil
}
