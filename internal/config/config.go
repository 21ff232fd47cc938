// Package config loads the settings shared by the email-provider-autosend
// commands from flags, AUTOSEND_* environment variables and an optional
// YAML file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"go.miloapis.com/email-provider-autosend/pkg/autosend"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "AUTOSEND"

// Config holds the Autosend connection and logging settings.
type Config struct {
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	LogLevel string `mapstructure:"log_level"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"api-key":   "api_key",
	"base-url":  "base_url",
	"log-level": "log_level",
}

// AddFlags registers the flags Load understands on fs.
func AddFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a YAML config file (default ./autosend.yaml or ~/.config/autosend/autosend.yaml)")
	fs.String("api-key", "", "Autosend API key (env AUTOSEND_API_KEY)")
	fs.String("base-url", "", "Autosend API base URL (env AUTOSEND_BASE_URL)")
	fs.String("log-level", "", "Log level: debug, info or error (env AUTOSEND_LOG_LEVEL)")
}

// Load resolves the configuration. Precedence is flags, then environment,
// then the config file, then defaults. A missing config file is not an error
// unless one was named explicitly.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	configPath := ""
	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("error binding flag %s: %w", name, err)
				}
			}
		}
		if f := fs.Lookup("config"); f != nil {
			configPath = f.Value.String()
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("autosend")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "autosend"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("api_key", "")
	v.SetDefault("base_url", autosend.DefaultBaseURL)
	v.SetDefault("log_level", "info")
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("api_key is required (set --api-key or %s_API_KEY)", EnvPrefix)
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute http(s) URL: %q", cfg.BaseURL)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(cfg.LogLevel)] {
		return fmt.Errorf("invalid log_level: %s", cfg.LogLevel)
	}

	return nil
}

// Debug reports whether request tracing should be logged.
func (c *Config) Debug() bool {
	return strings.EqualFold(c.LogLevel, "debug")
}

// NewClient builds an Autosend client from the configuration.
func (c *Config) NewClient(logger logr.Logger) (*autosend.Client, error) {
	return autosend.NewSDK(c.APIKey,
		autosend.WithBaseURL(c.BaseURL),
		autosend.WithLogger(logger.WithName("autosend")),
	)
}
