package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the edge process.
type Config struct {
	// Core
	Environment string
	LogLevel    string

	// Storage
	StorePath string

	// MQTT broker pool — a process may bridge several brokers at once;
	// BrokerURLs is the bootstrap list, one broker in the adapter's pool
	// per entry.
	BrokerURLs    []string
	MQTTClientID  string
	MQTTUsername  string
	MQTTPassword  string
	MQTTKeepAlive time.Duration

	// Rule engine
	RuleSchedulerTick time.Duration

	// Session core
	SessionIdleTimeout   time.Duration
	SessionHeartbeatTick time.Duration
	DefaultLLMBackend    string

	// AI Providers
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GoogleAIAPIKey  string
	OllamaBaseURL   string

	// Optional fast-path cache
	RedisURL string

	// Messaging (rule NOTIFY/ALERT actions)
	SlackWebhookURL   string
	DiscordWebhookURL string
}

// Load reads configuration from environment variables and an optional
// config.yaml, following the teacher's defaults-then-env-override shape.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_PATH", "./data/neomind.db")
	v.SetDefault("BROKER_URLS", []string{"tcp://localhost:1883"})
	v.SetDefault("MQTT_CLIENT_ID", "neomind-edge")
	v.SetDefault("MQTT_KEEP_ALIVE", "30s")
	v.SetDefault("RULE_SCHEDULER_TICK", "1s")
	v.SetDefault("SESSION_IDLE_TIMEOUT", "30m")
	v.SetDefault("SESSION_HEARTBEAT_TICK", "15s")
	v.SetDefault("DEFAULT_LLM_BACKEND", "ollama")
	v.SetDefault("OLLAMA_BASE_URL", "http://localhost:11434")
	v.SetDefault("REDIS_URL", "")

	cfg := &Config{
		Environment: v.GetString("ENVIRONMENT"),
		LogLevel:    v.GetString("LOG_LEVEL"),

		StorePath: v.GetString("STORE_PATH"),

		BrokerURLs:    v.GetStringSlice("BROKER_URLS"),
		MQTTClientID:  v.GetString("MQTT_CLIENT_ID"),
		MQTTUsername:  v.GetString("MQTT_USERNAME"),
		MQTTPassword:  v.GetString("MQTT_PASSWORD"),
		MQTTKeepAlive: v.GetDuration("MQTT_KEEP_ALIVE"),

		RuleSchedulerTick: v.GetDuration("RULE_SCHEDULER_TICK"),

		SessionIdleTimeout:   v.GetDuration("SESSION_IDLE_TIMEOUT"),
		SessionHeartbeatTick: v.GetDuration("SESSION_HEARTBEAT_TICK"),
		DefaultLLMBackend:    v.GetString("DEFAULT_LLM_BACKEND"),

		OpenAIAPIKey:    v.GetString("OPENAI_API_KEY"),
		AnthropicAPIKey: v.GetString("ANTHROPIC_API_KEY"),
		GoogleAIAPIKey:  v.GetString("GOOGLE_AI_API_KEY"),
		OllamaBaseURL:   v.GetString("OLLAMA_BASE_URL"),

		RedisURL: v.GetString("REDIS_URL"),

		SlackWebhookURL:   v.GetString("SLACK_WEBHOOK_URL"),
		DiscordWebhookURL: v.GetString("DISCORD_WEBHOOK_URL"),
	}

	if cfg.StorePath == "" {
		return nil, fmt.Errorf("STORE_PATH is required")
	}
	if len(cfg.BrokerURLs) == 0 {
		return nil, fmt.Errorf("BROKER_URLS must name at least one broker")
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
