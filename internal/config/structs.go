package config

type Config struct {
	// App: Global application metadata
	App AppInfoConfig `mapstructure:"app"`

	// Server: Network configuration and execution environment
	Server ServerConfig `mapstructure:"server"`

	// Database: SQLite photo index location
	Database DatabaseConfig `mapstructure:"database"`

	// Geocode: Reverse-geocoding provider and rate budget
	Geocode GeocodeConfig `mapstructure:"geocode"`

	// Index: Asset source settings for the indexing pipeline
	Index IndexConfig `mapstructure:"index"`

	// Security: CORS whitelist and API rate limiting
	Security SecurityConfig `mapstructure:"security"`

	// BaseURL: The public-facing root URL used for absolute link generation
	BaseURL string `mapstructure:"base_url"`
}

type AppInfoConfig struct {
	// Name: Identity of the service used in headers and logs (e.g., "Pinbook")
	Name string `mapstructure:"name"`

	// Version: Application semantic version (e.g., "0.1.0")
	Version string `mapstructure:"version"`
}

type ServerConfig struct {
	// Port: The TCP port the HTTP server will bind to (default: 9910)
	Port int `mapstructure:"port"`

	// Env: Execution context (development, staging, production)
	Env string `mapstructure:"env"`
}

type DatabaseConfig struct {
	// Path: Physical location of the SQLite index file (e.g., ./data/pinbook.db)
	Path string `mapstructure:"path"`
}

type GeocodeConfig struct {
	// Server: Nominatim endpoint. The public instance has strict usage
	// rules; self-hosted instances can raise the budget below.
	Server string `mapstructure:"server"`

	// MaxPerMinute: Hard cap on reverse-geocode calls in any trailing
	// 60s window. Kept below the provider ceiling on purpose.
	MaxPerMinute int `mapstructure:"max_per_minute"`

	// MinInterval: Courtesy pause between consecutive outbound calls
	// (e.g., "400ms"). Independent of the per-minute window.
	MinInterval string `mapstructure:"min_interval"`
}

type IndexConfig struct {
	// PhotosDir: Root directory the EXIF asset source enumerates
	PhotosDir string `mapstructure:"photos_dir"`
}

type SecurityConfig struct {
	// CorsOrigins: List of allowed domains for browser-based cross-origin requests
	CorsOrigins []string `mapstructure:"cors_origins"`

	// RateLimit: API request quota per client IP
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	// Enabled: Global toggle for the rate limiting middleware
	Enabled bool `mapstructure:"enabled"`

	// Requests: Number of allowed requests per time window
	Requests int `mapstructure:"requests"`

	// Window: The timeframe for the request limit (e.g., "1s", "1m")
	Window string `mapstructure:"window"`

	// Burst: Temporary allowed spike capacity above the steady-rate limit
	Burst int `mapstructure:"burst"`
}
