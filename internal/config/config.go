package config

import (
	"fmt"
	"os"
	"time"

	"github.com/danverh/support-chat/internal/domain"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Chat    ChatConfig    `mapstructure:"chat"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type LLMConfig struct {
	APIKey  string `mapstructure:"api_key"`
	APIBase string `mapstructure:"api_base"`
	Model   string `mapstructure:"model"`
}

type ChatConfig struct {
	MaxToolRounds  int           `mapstructure:"max_tool_rounds"`
	MaxHistory     int           `mapstructure:"max_history"`
	ModelTimeout   time.Duration `mapstructure:"model_timeout"`
	ToolTimeout    time.Duration `mapstructure:"tool_timeout"`
	ToolLatency    time.Duration `mapstructure:"tool_latency"`
	SessionMaxIdle time.Duration `mapstructure:"session_max_idle"`
	EvictInterval  time.Duration `mapstructure:"evict_interval"`
}

type RedisConfig struct {
	Enabled   bool            `mapstructure:"enabled"`
	Host      string          `mapstructure:"host"`
	Port      int             `mapstructure:"port"`
	Password  string          `mapstructure:"password"`
	DB        int             `mapstructure:"db"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	setDefaults(v)

	// Config file is optional; defaults and env vars cover everything.
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings the process cannot run without.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("%w: llm.api_key is required (set OPENAI_API_KEY)", domain.ErrConfiguration)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("%w: llm.model is required (set OPENAI_MODEL)", domain.ErrConfiguration)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")

	// LLM
	v.SetDefault("llm.api_base", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")

	// Chat
	v.SetDefault("chat.max_tool_rounds", 5)
	v.SetDefault("chat.max_history", 20)
	v.SetDefault("chat.model_timeout", "60s")
	v.SetDefault("chat.tool_timeout", "10s")
	v.SetDefault("chat.tool_latency", "300ms")
	v.SetDefault("chat.session_max_idle", "0")
	v.SetDefault("chat.evict_interval", "5m")

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.rate_limit.requests_per_minute", 60)
	v.SetDefault("redis.rate_limit.burst", 10)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
}

func bindEnvVars(v *viper.Viper) {
	// LLM credentials
	v.BindEnv("llm.api_key", "OPENAI_API_KEY")
	v.BindEnv("llm.api_base", "OPENAI_API_BASE")
	v.BindEnv("llm.model", "OPENAI_MODEL")

	// Redis
	v.BindEnv("redis.password", "REDIS_PASSWORD")
}
