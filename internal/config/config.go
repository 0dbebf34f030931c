// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/paper-reader/internal/logger"
)

// Config holds the paper server configuration
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	AI        AIConfig        `mapstructure:"ai"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Sweeper   SweeperConfig   `mapstructure:"sweeper"`
	Inbox     InboxConfig     `mapstructure:"inbox"`
	Log       LogConfig       `mapstructure:"log"`
}

type HTTPConfig struct {
	Port      int    `mapstructure:"port"`
	StaticDir string `mapstructure:"static_dir"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// StorageConfig selects where uploaded PDFs live: "local" or "s3".
type StorageConfig struct {
	Backend  string   `mapstructure:"backend"`
	LocalDir string   `mapstructure:"local_dir"`
	S3       S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
}

// QueueConfig selects the job queue: "redis" or "memory".
type QueueConfig struct {
	Backend string `mapstructure:"backend"`
	Key     string `mapstructure:"key"`
}

type WorkerConfig struct {
	Count int `mapstructure:"count"`
}

type AIConfig struct {
	Provider        string `mapstructure:"provider"`
	APIKey          string `mapstructure:"api_key"`
	BaseURL         string `mapstructure:"base_url"`
	SummaryModel    string `mapstructure:"summary_model"`
	ChatModel       string `mapstructure:"chat_model"`
	MaxOutputTokens int    `mapstructure:"max_output_tokens"`
}

type PipelineConfig struct {
	MaxPromptChars int `mapstructure:"max_prompt_chars"`
}

type RetrievalConfig struct {
	Limit int `mapstructure:"limit"`
}

// SweeperConfig drives the cron job that resubmits papers stuck in queued.
type SweeperConfig struct {
	Schedule    string        `mapstructure:"schedule"`
	GracePeriod time.Duration `mapstructure:"grace_period"`
}

// InboxConfig enables the watched drop directory when Dir is set.
type InboxConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"`
	File string `mapstructure:"file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.static_dir", "")
	v.SetDefault("database.path", "./data/paper_reader.db")
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", "./data/uploads")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.prefix", "papers/")
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("queue.backend", "redis")
	v.SetDefault("queue.key", "jobs:papers")
	v.SetDefault("worker.count", 4)
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.summary_model", "gpt-5.2-pro")
	v.SetDefault("ai.chat_model", "gpt-5.2-pro")
	v.SetDefault("ai.max_output_tokens", 16000)
	v.SetDefault("pipeline.max_prompt_chars", 120000)
	v.SetDefault("retrieval.limit", 6)
	v.SetDefault("sweeper.schedule", "@every 5m")
	v.SetDefault("sweeper.grace_period", "10m")
	v.SetDefault("inbox.dir", "")
	v.SetDefault("log.mode", "dev")
	v.SetDefault("log.file", "")
}

// Load reads .env (if present), then the optional yaml file at configPath,
// then PAPER_* environment variables. Later sources win.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnf("Failed to load .env file: %v", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("PAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider-native variable names are honored as fallbacks. The API key
	// fallback depends on ai.provider and is resolved after unmarshalling.
	aliases := map[string][]string{
		"ai.api_key":       {"PAPER_AI_API_KEY"},
		"ai.summary_model": {"PAPER_AI_SUMMARY_MODEL", "OPENAI_SUMMARY_MODEL"},
		"ai.chat_model":    {"PAPER_AI_CHAT_MODEL", "OPENAI_CHAT_MODEL"},
		"redis.addr":       {"PAPER_REDIS_ADDR", "REDIS_ADDR"},
		"redis.password":   {"PAPER_REDIS_PASSWORD", "REDIS_PASSWORD"},
	}
	for key, envs := range aliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.Printf("Loaded config from %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = os.Getenv(providerKeyEnv(cfg.AI.Provider))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// providerKeyEnv names the provider's own API key variable.
func providerKeyEnv(provider string) string {
	if strings.EqualFold(strings.TrimSpace(provider), "anthropic") {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			return errors.New("storage.local_dir is required for the local backend")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}

	switch c.Queue.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown queue.backend %q", c.Queue.Backend)
	}

	if c.Worker.Count < 1 {
		return fmt.Errorf("worker.count must be positive, got %d", c.Worker.Count)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http.port %d", c.HTTP.Port)
	}
	return nil
}

// MaskedAPIKey shows the first and last four characters of the AI key.
func (c *Config) MaskedAPIKey() string {
	key := c.AI.APIKey
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
