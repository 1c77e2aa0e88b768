package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// Values are read by viper from a config file or environment variables
// (CONTESTWATCH_ prefix, dots replaced by underscores).
type Config struct {
	LogLevel string `mapstructure:"log_level"`

	Storage       StorageConfig       `mapstructure:"storage"`
	Sources       SourcesConfig       `mapstructure:"sources"`
	Refresh       RefreshConfig       `mapstructure:"refresh"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Telegram      TelegramConfig      `mapstructure:"telegram"`
	HTTP          HTTPConfig          `mapstructure:"http"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// SourcesConfig points the live adapters at their upstream APIs.
type SourcesConfig struct {
	CodeforcesURL string        `mapstructure:"codeforces_url"`
	CodeChefURL   string        `mapstructure:"codechef_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type RefreshConfig struct {
	// Interval between full reloads of every source.
	Interval time.Duration `mapstructure:"interval"`
	// ScanInterval between notification scans of the current list.
	ScanInterval time.Duration `mapstructure:"scan_interval"`
}

type NotificationsConfig struct {
	// Notifier is "console", "telegram" or "none".
	Notifier string `mapstructure:"notifier"`
	// Dedup suppresses repeat notifications for the same contest and lead time.
	Dedup bool `mapstructure:"dedup"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("storage.path", "./contestwatch_data")
	v.SetDefault("sources.codeforces_url", "https://codeforces.com")
	v.SetDefault("sources.codechef_url", "https://www.codechef.com")
	v.SetDefault("sources.timeout", 15*time.Second)
	v.SetDefault("refresh.interval", 30*time.Minute)
	v.SetDefault("refresh.scan_interval", time.Minute)
	v.SetDefault("notifications.notifier", "console")
	v.SetDefault("notifications.dedup", true)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", 0)
	v.SetDefault("http.addr", ":8080")
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults and env vars still apply.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("CONTESTWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err = config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate checks values that have no sensible fallback.
func (c Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be positive, got %s", c.Refresh.Interval)
	}
	if c.Refresh.ScanInterval <= 0 {
		return fmt.Errorf("refresh.scan_interval must be positive, got %s", c.Refresh.ScanInterval)
	}
	switch c.Notifications.Notifier {
	case "console", "none":
	case "telegram":
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram notifier selected but telegram.bot_token is not set")
		}
	default:
		return fmt.Errorf("unknown notifier %q", c.Notifications.Notifier)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is not set")
	}
	return nil
}

// NewLogger builds the application logger from the configured level.
func (c Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	return log
}
