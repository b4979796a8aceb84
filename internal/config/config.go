package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Env vars checked for the API key before the config value, in order.
var apiKeyEnv = []string{"OPENAI_API_KEY", "REACT_APP_OPENAI_API_TOKEN"}

// Global configuration structure.
type Global struct {
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`
	Provider string `mapstructure:"provider" yaml:"provider"`
	Model    string `mapstructure:"model" yaml:"model"`
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`

	// Prompt and aggregation
	MaxTokens       int      `mapstructure:"max_tokens" yaml:"max_tokens"`
	Locale          string   `mapstructure:"locale" yaml:"locale"`
	// MinMessagesSent is nil when unset, so an explicit 0 disables the threshold.
	MinMessagesSent *float64 `mapstructure:"min_messages_sent" yaml:"min_messages_sent,omitempty"`
	DecimalComma    bool     `mapstructure:"decimal_comma" yaml:"decimal_comma"`

	// HTTP/Retry configuration
	TimeoutSec       int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost string `mapstructure:"ollama_host" yaml:"ollama_host"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Keys lists the settable config keys in file order.
func Keys() []string {
	return []string{
		"api_key", "provider", "model", "base_url",
		"max_tokens", "locale", "min_messages_sent", "decimal_comma",
		"timeout_sec", "http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms",
		"ollama_host", "log_level", "log_format",
	}
}

// ResolveAPIKey returns the first non-empty key from the environment, falling
// back to the configured value. It is evaluated on each call.
func (c *Global) ResolveAPIKey() string {
	for _, name := range apiKeyEnv {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.APIKey)
}

// DefaultPath returns ~/.agentcompare/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".agentcompare", "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to DefaultPath, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	// may hold an API key
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "openai")
	v.SetDefault("model", "gpt-4o-mini")
	v.SetDefault("base_url", "https://api.openai.com/v1")
	v.SetDefault("max_tokens", 2000)
	v.SetDefault("locale", "nl")
	v.SetDefault("min_messages_sent", 10)
	v.SetDefault("decimal_comma", false)
	// HTTP/retry defaults: one attempt, no retries
	v.SetDefault("timeout_sec", 180)
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 1)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. A .env file in the working
// directory is read first and never overrides variables already set.
func Load(cfgFile string) (*Global, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("AGENTCOMPARE")
	v.AutomaticEnv()
	setDefaults(v)
	// AutomaticEnv only applies to keys viper knows about
	for _, k := range Keys() {
		_ = v.BindEnv(k)
	}
	_ = v.BindEnv("log_level", "AGENTCOMPARE_LOG_LEVEL", "LOG_LEVEL")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		path, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(filepath.Dir(path))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// the file is optional; config set creates it
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}
