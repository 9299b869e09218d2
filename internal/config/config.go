// ABOUTME: Configuration loading and parsing for barista-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion, defaults and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/barista-gateway/internal/conversation"
)

// DefaultSystemPrompt seeds every conversation when prompt.system is unset.
const DefaultSystemPrompt = "You are XiaoKa, a friendly coffee robot for elderly users. " +
	"Keep responses under 15 words. Be warm and natural. " +
	"Always ask for and remember user names. " +
	"For 'hello judges': reply 'Hello judges! I am Xiao Ka, please wave! We are ready to move to the next stage!' " +
	"For outdoor activities: enthusiastically offer to join. " +
	"For 'ready'/'start': discuss coffee. " +
	"Speak naturally, never use ACTION: or event: formats." +
	"Ask the user if they are ready to start the coffee making process, then chat with them"

// Config represents the complete barista-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	MQTT      MQTTConfig      `yaml:"mqtt" toml:"mqtt"`
	Robots    RobotsConfig    `yaml:"robots" toml:"robots"`
	Routing   RoutingConfig   `yaml:"routing" toml:"routing"`
	Model     ModelConfig     `yaml:"model" toml:"model"`
	Speech    SpeechConfig    `yaml:"speech" toml:"speech"`
	ReadyHook ReadyHookConfig `yaml:"ready_hook" toml:"ready_hook"`
	Runtime   RuntimeConfig   `yaml:"runtime" toml:"runtime"`
	Dedupe    DedupeConfig    `yaml:"dedupe" toml:"dedupe"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Prompt    PromptConfig    `yaml:"prompt" toml:"prompt"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// ServerConfig holds the HTTP listener address
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// MQTTConfig holds broker connection and topic configuration
type MQTTConfig struct {
	Broker         string   `yaml:"broker" toml:"broker"`
	Port           int      `yaml:"port" toml:"port"`
	Username       string   `yaml:"username" toml:"username"`
	Password       string   `yaml:"password" toml:"password"`
	UseTLS         bool     `yaml:"use_tls" toml:"use_tls"`
	ClientIDPrefix string   `yaml:"client_id_prefix" toml:"client_id_prefix"`
	ActionTopic    string   `yaml:"action_topic" toml:"action_topic"`
	ReplyTopic     string   `yaml:"reply_topic" toml:"reply_topic"`
	NotifyTopics   []string `yaml:"notify_topics" toml:"notify_topics"`

	KeepAlive      time.Duration `yaml:"-" toml:"-"`
	ConnectTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	KeepAliveRaw      string `yaml:"keepalive" toml:"keepalive"`
	ConnectTimeoutRaw string `yaml:"connect_timeout" toml:"connect_timeout"`
}

// TLSEnabled reports whether the broker connection should use TLS.
// Port 8883 implies TLS even when use_tls is false.
func (m MQTTConfig) TLSEnabled() bool {
	return m.UseTLS || m.Port == 8883
}

// RobotsConfig holds robot identifier defaults
type RobotsConfig struct {
	DefaultID string `yaml:"default_id" toml:"default_id"`
}

// RoutingConfig holds the robot routing policy
type RoutingConfig struct {
	// PublishUnmatched keeps publishing the reply envelope for robot-targeted
	// messages that match no session. Defaults to true.
	PublishUnmatched *bool `yaml:"publish_unmatched" toml:"publish_unmatched"`
}

// ShouldPublishUnmatched returns the effective publish_unmatched setting.
func (r RoutingConfig) ShouldPublishUnmatched() bool {
	return r.PublishUnmatched == nil || *r.PublishUnmatched
}

// ModelConfig holds language-model provider configuration
type ModelConfig struct {
	Provider    string   `yaml:"provider" toml:"provider"`
	Name        string   `yaml:"name" toml:"name"`
	APIKey      string   `yaml:"api_key" toml:"api_key"`
	BaseURL     string   `yaml:"base_url" toml:"base_url"`
	Temperature *float64 `yaml:"temperature" toml:"temperature"`
	MaxTokens   int64    `yaml:"max_tokens" toml:"max_tokens"`

	Timeout    time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw string        `yaml:"timeout" toml:"timeout"`
}

// DefaultTemperature is used when model.temperature is unset.
const DefaultTemperature = 0.7

// EffectiveTemperature returns the sampling temperature, honoring an
// explicit zero.
func (m ModelConfig) EffectiveTemperature() float64 {
	if m.Temperature == nil {
		return DefaultTemperature
	}
	return *m.Temperature
}

// SpeechConfig holds speech synthesis configuration
type SpeechConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	URL     string `yaml:"url" toml:"url"`

	Timeout    time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw string        `yaml:"timeout" toml:"timeout"`
}

// ReadyHookConfig holds the ready side-effect endpoint
type ReadyHookConfig struct {
	URL string `yaml:"url" toml:"url"`

	Timeout    time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw string        `yaml:"timeout" toml:"timeout"`
}

// RuntimeConfig sizes the session runtime
type RuntimeConfig struct {
	QueueSize int `yaml:"queue_size" toml:"queue_size"`
	Workers   int `yaml:"workers" toml:"workers"`
}

// DedupeConfig controls redelivery suppression for inbound transport messages
type DedupeConfig struct {
	MaxEntries int `yaml:"max_entries" toml:"max_entries"`

	TTL    time.Duration `yaml:"-" toml:"-"`
	TTLRaw string        `yaml:"ttl" toml:"ttl"`
}

// DatabaseConfig holds the optional outbound event ledger location
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// PromptConfig holds the conversation seed
type PromptConfig struct {
	System       string `yaml:"system" toml:"system"`
	HistoryLimit int    `yaml:"history_limit" toml:"history_limit"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills every unset field with its default value
func applyDefaults(cfg *Config) {
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = "0.0.0.0:8000"
	}

	m := &cfg.MQTT
	if m.Broker == "" {
		m.Broker = "broker.emqx.io"
	}
	if m.Port == 0 {
		m.Port = 1883
	}
	if m.ClientIDPrefix == "" {
		m.ClientIDPrefix = "barista"
	}
	if m.ActionTopic == "" {
		m.ActionTopic = "robot/events"
	}
	if m.ReplyTopic == "" {
		m.ReplyTopic = "robot/reply"
	}
	if len(m.NotifyTopics) == 0 {
		m.NotifyTopics = []string{"robot/notify"}
	}
	if m.KeepAlive == 0 {
		m.KeepAlive = 60 * time.Second
	}
	if m.ConnectTimeout == 0 {
		m.ConnectTimeout = 10 * time.Second
	}

	if cfg.Robots.DefaultID == "" {
		cfg.Robots.DefaultID = "wro1"
	}

	if cfg.Model.Provider == "" {
		cfg.Model.Provider = "openai"
	}
	if cfg.Model.Name == "" {
		cfg.Model.Name = "gpt-4.1-nano"
	}
	if cfg.Model.MaxTokens == 0 {
		cfg.Model.MaxTokens = 100
	}
	if cfg.Model.Timeout == 0 {
		cfg.Model.Timeout = 30 * time.Second
	}

	if cfg.Speech.Timeout == 0 {
		cfg.Speech.Timeout = 30 * time.Second
	}
	if cfg.ReadyHook.Timeout == 0 {
		cfg.ReadyHook.Timeout = 10 * time.Second
	}

	if cfg.Runtime.QueueSize == 0 {
		cfg.Runtime.QueueSize = 256
	}
	if cfg.Runtime.Workers == 0 {
		cfg.Runtime.Workers = 8
	}

	if cfg.Dedupe.TTL == 0 {
		cfg.Dedupe.TTL = 5 * time.Minute
	}
	if cfg.Dedupe.MaxEntries == 0 {
		cfg.Dedupe.MaxEntries = 10_000
	}

	if cfg.Prompt.System == "" {
		cfg.Prompt.System = DefaultSystemPrompt
	}
	if cfg.Prompt.HistoryLimit == 0 {
		cfg.Prompt.HistoryLimit = 100
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}
	if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
		return fmt.Errorf("mqtt.port %d is out of range", c.MQTT.Port)
	}
	if c.MQTT.ActionTopic == "" || c.MQTT.ReplyTopic == "" {
		return fmt.Errorf("mqtt.action_topic and mqtt.reply_topic are required")
	}
	for _, topic := range c.MQTT.NotifyTopics {
		if strings.TrimSpace(topic) == "" {
			return fmt.Errorf("mqtt.notify_topics must not contain empty topics")
		}
	}

	switch c.Model.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("model.provider %q is not supported (use openai or anthropic)", c.Model.Provider)
	}

	if c.Speech.Enabled && c.Speech.URL == "" {
		return fmt.Errorf("speech.url is required when speech is enabled")
	}

	if c.Runtime.QueueSize < 1 {
		return fmt.Errorf("runtime.queue_size must be at least 1")
	}
	if c.Runtime.Workers < 1 {
		return fmt.Errorf("runtime.workers must be at least 1")
	}
	if t := c.Model.EffectiveTemperature(); t < 0 || t > 2 {
		return fmt.Errorf("model.temperature %v is out of range (0 to 2)", t)
	}
	if c.Prompt.HistoryLimit < 2 {
		return fmt.Errorf("prompt.history_limit must be at least 2")
	}
	if c.Prompt.HistoryLimit > conversation.DefaultLimit {
		return fmt.Errorf("prompt.history_limit must be at most %d", conversation.DefaultLimit)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"mqtt.keepalive", cfg.MQTT.KeepAliveRaw, &cfg.MQTT.KeepAlive},
		{"mqtt.connect_timeout", cfg.MQTT.ConnectTimeoutRaw, &cfg.MQTT.ConnectTimeout},
		{"model.timeout", cfg.Model.TimeoutRaw, &cfg.Model.Timeout},
		{"speech.timeout", cfg.Speech.TimeoutRaw, &cfg.Speech.Timeout},
		{"ready_hook.timeout", cfg.ReadyHook.TimeoutRaw, &cfg.ReadyHook.Timeout},
		{"dedupe.ttl", cfg.Dedupe.TTLRaw, &cfg.Dedupe.TTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
