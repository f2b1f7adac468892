package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ClientConfig configures the matchctl CLI.
type ClientConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	TokenStore string        `mapstructure:"token_store"`
	TokenFile  string        `mapstructure:"token_file"`
	Session    string        `mapstructure:"session"`
	Redis      RedisConfig   `mapstructure:"redis"`
	LogLevel   string        `mapstructure:"log_level"`
}

// RedisConfig is used when token_store is "redis".
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// LoadClient reads config.yaml from path (if non-empty) or from
// $HOME/.config/matchctl and the working directory. Environment variables
// prefixed MATCHMATE_ override file values, e.g. MATCHMATE_BASE_URL.
// A missing config file is not an error.
func LoadClient(path string) (ClientConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(homeDir(), ".config", "matchctl"))
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MATCHMATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("base_url", "http://localhost:8080/api/v1")
	v.SetDefault("timeout", "30s")
	v.SetDefault("token_store", "file")
	v.SetDefault("token_file", filepath.Join(homeDir(), ".config", "matchctl", "credentials.json"))
	v.SetDefault("session", "default")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "720h")
	v.SetDefault("log_level", "warn")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(path != "" && errors.Is(err, os.ErrNotExist)) {
			return ClientConfig{}, err
		}
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func homeDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}
	return "."
}
