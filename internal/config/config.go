package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server     Server     `mapstructure:"server"`
	Database   Database   `mapstructure:"database"`
	Logger     Logger     `mapstructure:"logger"`
	CoinGecko  CoinGecko  `mapstructure:"coingecko"`
	Market     Market     `mapstructure:"market"`
	Simulation Simulation `mapstructure:"simulation"`
}

// Server holds the configuration for the HTTP API server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CoinGecko holds the configuration for the CoinGecko API client.
type CoinGecko struct {
	BaseURL        string  `mapstructure:"base_url"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// TrackedCoin describes one coin the service keeps prices for.
type TrackedCoin struct {
	ID          string `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	Symbol      string `mapstructure:"symbol"`
	Category    string `mapstructure:"category"`
	Description string `mapstructure:"description"`
}

// Market holds the configuration for the periodic price refresh job.
type Market struct {
	RefreshInterval int           `mapstructure:"refresh_interval"` // seconds
	RetentionDays   int           `mapstructure:"retention_days"`
	Coins           []TrackedCoin `mapstructure:"coins"`
}

// Simulation holds the configuration for the price simulation engine.
type Simulation struct {
	TickInterval int `mapstructure:"tick_interval"` // seconds
	FallDuration int `mapstructure:"fall_duration"` // minutes
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.dsn", "exchange.db")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("coingecko.base_url", "https://api.coingecko.com/api/v3")
	viper.SetDefault("coingecko.rate_limit", 0.5) // requests per second
	viper.SetDefault("coingecko.rate_limit_burst", 2)
	viper.SetDefault("coingecko.timeout_seconds", 30)
	viper.SetDefault("market.refresh_interval", 300)
	viper.SetDefault("market.retention_days", 30)
	viper.SetDefault("simulation.tick_interval", 300) // 5 minutes
	viper.SetDefault("simulation.fall_duration", 30)  // minutes

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
