package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KaramelBytes/agentcompare/internal/ai"
	cfgpkg "github.com/KaramelBytes/agentcompare/internal/config"
	"github.com/KaramelBytes/agentcompare/internal/insight"
	"github.com/KaramelBytes/agentcompare/internal/metrics"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set agentcompare configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		key := cfg.ResolveAPIKey()
		fmt.Printf("api_key: %s\n", mask(key))
		fmt.Printf("provider: %s\n", cfg.Provider)
		fmt.Printf("model: %s\n", cfg.Model)
		fmt.Printf("base_url: %s\n", cfg.BaseURL)
		fmt.Printf("max_tokens: %d\n", cfg.MaxTokens)
		fmt.Printf("locale: %s\n", cfg.Locale)
		if cfg.MinMessagesSent != nil {
			fmt.Printf("min_messages_sent: %g\n", *cfg.MinMessagesSent)
		} else {
			fmt.Printf("min_messages_sent: %d (default)\n", metrics.DefaultMinMessagesSent)
		}
		fmt.Printf("decimal_comma: %t\n", cfg.DecimalComma)
		fmt.Printf("timeout_sec: %d\n", cfg.TimeoutSec)
		fmt.Printf("http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		fmt.Printf("retry_max_attempts: %d\n", cfg.RetryMaxAttempts)
		fmt.Printf("retry_base_delay_ms: %d\n", cfg.RetryBaseDelayMs)
		fmt.Printf("retry_max_delay_ms: %d\n", cfg.RetryMaxDelayMs)
		fmt.Printf("ollama_host: %s\n", cfg.OllamaHost)
		fmt.Printf("log_level: %s\n", cfg.LogLevel)
		fmt.Printf("log_format: %s\n", cfg.LogFormat)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Long:  "Set a config value and save to disk. Keys: " + strings.Join(cfgpkg.Keys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := applyConfigValue(cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Println("Saved config")
		return nil
	},
}

func atoiKey(key, val string, lo int) (int, error) {
	i, err := strconv.Atoi(val)
	if err != nil || i < lo {
		return 0, fmt.Errorf("invalid int for %s: %v", key, val)
	}
	return i, nil
}

func applyConfigValue(c *cfgpkg.Global, key, val string) error {
	var err error
	switch key {
	case "api_key":
		c.APIKey = val
	case "provider":
		p := ai.NormalizeProvider(strings.TrimSpace(val))
		if p != ai.ProviderOpenAI && p != ai.ProviderOllama {
			return fmt.Errorf("invalid provider: %s (use openai or ollama)", val)
		}
		c.Provider = p
	case "model":
		c.Model = val
	case "base_url":
		c.BaseURL = strings.TrimRight(val, "/")
	case "max_tokens":
		c.MaxTokens, err = atoiKey(key, val, 1)
	case "locale":
		var l insight.Locale
		if l, err = insight.ParseLocale(val); err == nil {
			c.Locale = string(l)
		}
	case "min_messages_sent":
		f, perr := strconv.ParseFloat(val, 64)
		if perr != nil || f < 0 {
			return fmt.Errorf("invalid number for min_messages_sent: %v", val)
		}
		c.MinMessagesSent = &f
	case "decimal_comma":
		b, perr := strconv.ParseBool(val)
		if perr != nil {
			return fmt.Errorf("invalid bool for decimal_comma: %v", val)
		}
		c.DecimalComma = b
	case "timeout_sec":
		c.TimeoutSec, err = atoiKey(key, val, 1)
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = atoiKey(key, val, 1)
	case "retry_max_attempts":
		c.RetryMaxAttempts, err = atoiKey(key, val, 1)
	case "retry_base_delay_ms":
		c.RetryBaseDelayMs, err = atoiKey(key, val, 0)
	case "retry_max_delay_ms":
		c.RetryMaxDelayMs, err = atoiKey(key, val, 0)
	case "ollama_host":
		c.OllamaHost = val
	case "log_level":
		c.LogLevel = strings.ToLower(val)
	case "log_format":
		switch v := strings.ToLower(val); v {
		case "text", "json":
			c.LogFormat = v
		default:
			return fmt.Errorf("invalid log_format: %s (use text or json)", val)
		}
	default:
		return fmt.Errorf("unknown key: %s (known: %s)", key, strings.Join(cfgpkg.Keys(), ", "))
	}
	return err
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
