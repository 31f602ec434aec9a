// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot      BotConfig      `mapstructure:"bot"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Rewards  RewardsConfig  `mapstructure:"rewards"`
	AI       AIConfig       `mapstructure:"ai"`
	Login    LoginConfig    `mapstructure:"login"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token string `mapstructure:"token"`
	// StaleAfter is how old a webhook update may be before it is
	// acknowledged but dropped.
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

// ServerConfig holds the HTTP API configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RewardsConfig holds the coin amounts granted per action.
type RewardsConfig struct {
	Daily         int64         `mapstructure:"daily"`
	DailyCooldown time.Duration `mapstructure:"daily_cooldown"`
	ChanceMax     int64         `mapstructure:"chance_max"`
	ChancePerDay  int           `mapstructure:"chance_per_day"`
	QuizCorrect   int64         `mapstructure:"quiz_correct"`
	ChatTurn      int64         `mapstructure:"chat_turn"`
	QuizTTL       time.Duration `mapstructure:"quiz_ttl"`
	HistoryWindow int           `mapstructure:"history_window"`
}

// AIConfig holds the OpenRouter upstream configuration.
type AIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoginConfig holds the login-widget callback configuration.
type LoginConfig struct {
	FrontendURL string        `mapstructure:"frontend_url"`
	MaxAuthAge  time.Duration `mapstructure:"max_auth_age"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Enable environment variable override
	// Environment variables use underscore separator and uppercase
	// e.g., BOT_TOKEN, DATABASE_HOST, AI_API_KEY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional - env vars can provide all config)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - we can use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Bot defaults
	v.SetDefault("bot.stale_after", "5m")

	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "coinbot")
	v.SetDefault("database.name", "coinbot")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Reward defaults
	v.SetDefault("rewards.daily", 20)
	v.SetDefault("rewards.daily_cooldown", "24h")
	v.SetDefault("rewards.chance_max", 20)
	v.SetDefault("rewards.chance_per_day", 3)
	v.SetDefault("rewards.quiz_correct", 15)
	v.SetDefault("rewards.chat_turn", 10)
	v.SetDefault("rewards.quiz_ttl", "5m")
	v.SetDefault("rewards.history_window", 10)

	// AI defaults
	v.SetDefault("ai.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("ai.model", "openai/gpt-3.5-turbo")
	v.SetDefault("ai.timeout", "30s")

	// Login defaults
	v.SetDefault("login.max_auth_age", "24h")
}
