package config

import (
	"fmt"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/docuchat/dchat"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	DChat DChatConfig `mapstructure:"dchat"`
}

// DChatConfig groups the application sections.
type DChatConfig struct {
	Server    ServerConfig    `mapstructure:"server"`
	History   HistoryConfig   `mapstructure:"history"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig stores the HTTP serving surface settings.
type ServerConfig struct {
	Addr                   string `mapstructure:"addr"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

// HistoryConfig stores the conversation bounding settings.
type HistoryConfig struct {
	MaxMessages    int    `mapstructure:"max_messages"`     // user-tunable, clamped to 3..20
	Strategy       string `mapstructure:"strategy"`         // "pairs" | "suffix"
	TokenWarnLimit int    `mapstructure:"token_warn_limit"` // metrics warning threshold
}

// AgentConfig stores the agent boundary settings. VectorDBPath is handed
// to real agent integrations as-is; the scripted agent ignores it.
type AgentConfig struct {
	Provider       string `mapstructure:"provider"` // "scripted" unless a real agent is wired in
	Collection     string `mapstructure:"collection"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	VectorDBPath   string `mapstructure:"vector_db_path"`
	StreamDelayMs  int    `mapstructure:"stream_delay_ms"` // pacing for the scripted stream
}

// CacheConfig stores render cache settings.
type CacheConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	Capacity   int  `mapstructure:"capacity"`
	TTLSeconds int  `mapstructure:"ttl_seconds"`
}

// RateLimitConfig stores turn submission limits.
type RateLimitConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	PerMinute int  `mapstructure:"per_minute"`
	Burst     int  `mapstructure:"burst"`
}

// LoggingConfig stores logging and tracing settings.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Pretty  bool   `mapstructure:"pretty"`  // console writer instead of JSON
	Tracing bool   `mapstructure:"tracing"` // span/event tracing of turns
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	setDefaults()

	viper.AutomaticEnv()
	// Dots become underscores in env var names, e.g. dchat.server.addr is
	// overridden by DCHAT_SERVER_ADDR.
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; defaults and env cover everything.
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := validateConfig(&AppConfig); err != nil {
		return nil, err
	}

	return &AppConfig, nil
}

func setDefaults() {
	viper.SetDefault("dchat.server.addr", internal.DefaultServerAddr)
	viper.SetDefault("dchat.server.shutdown_timeout_seconds", internal.DefaultShutdownTimeout)

	viper.SetDefault("dchat.history.max_messages", internal.DefaultMaxMessages)
	viper.SetDefault("dchat.history.strategy", internal.DefaultHistoryStrategy)
	viper.SetDefault("dchat.history.token_warn_limit", internal.DefaultTokenWarnLimit)

	viper.SetDefault("dchat.agent.provider", internal.DefaultAgentProvider)
	viper.SetDefault("dchat.agent.collection", internal.DefaultCollectionName)
	viper.SetDefault("dchat.agent.embedding_model", internal.DefaultEmbeddingModel)
	viper.SetDefault("dchat.agent.vector_db_path", internal.DefaultVectorDBPath)
	viper.SetDefault("dchat.agent.stream_delay_ms", 30)

	viper.SetDefault("dchat.cache.enabled", true)
	viper.SetDefault("dchat.cache.capacity", internal.DefaultRenderCacheSize)
	viper.SetDefault("dchat.cache.ttl_seconds", internal.DefaultRenderCacheTTL)

	viper.SetDefault("dchat.rate_limit.enabled", true)
	viper.SetDefault("dchat.rate_limit.per_minute", internal.DefaultTurnRatePerMin)
	viper.SetDefault("dchat.rate_limit.burst", internal.DefaultTurnBurst)

	viper.SetDefault("dchat.logging.level", internal.DefaultLogLevel)
	viper.SetDefault("dchat.logging.pretty", false)
	viper.SetDefault("dchat.logging.tracing", true)
}

func validateConfig(cfg *Config) error {
	if cfg.DChat.Server.Addr == "" {
		return fmt.Errorf("dchat.server.addr must not be empty")
	}
	switch cfg.DChat.History.Strategy {
	case "pairs", "suffix":
	default:
		return fmt.Errorf("dchat.history.strategy must be %q or %q, got %q", "pairs", "suffix", cfg.DChat.History.Strategy)
	}
	if cfg.DChat.History.TokenWarnLimit <= 0 {
		return fmt.Errorf("dchat.history.token_warn_limit must be positive, got %d", cfg.DChat.History.TokenWarnLimit)
	}
	return nil
}
