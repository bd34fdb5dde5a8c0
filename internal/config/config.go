package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Geo verification
	GeoCountry string // country whose region is declared on geo-gated calls
	GeoBypass  bool   // spoof X-Forwarded-For for GeoCountry (default: true)

	// Extraction behaviour
	NoPlaylist bool // resolve only the requested item, never expand its series

	// HTTP
	HTTPTimeoutSeconds int // per-request timeout (default: 30)
	HTTPRetries        int // retries on transient failures (default: 2)

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	viper.SetDefault("GEO_BYPASS", true)
	viper.SetDefault("NO_PLAYLIST", false)
	viper.SetDefault("HTTP_TIMEOUT_SECONDS", 30)
	viper.SetDefault("HTTP_RETRIES", 2)
	viper.SetDefault("LOG_LEVEL", "info")

	config := &Config{
		GeoCountry:         viper.GetString("GEO_COUNTRY"),
		GeoBypass:          viper.GetBool("GEO_BYPASS"),
		NoPlaylist:         viper.GetBool("NO_PLAYLIST"),
		HTTPTimeoutSeconds: viper.GetInt("HTTP_TIMEOUT_SECONDS"),
		HTTPRetries:        viper.GetInt("HTTP_RETRIES"),
		LogLevel:           viper.GetString("LOG_LEVEL"),
	}

	if config.HTTPTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("HTTP_TIMEOUT_SECONDS must be positive")
	}
	if config.HTTPRetries < 0 {
		return nil, fmt.Errorf("HTTP_RETRIES must not be negative")
	}

	return config, nil
}
