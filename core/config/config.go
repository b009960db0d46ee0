package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds is the getUpdates timeout; 0 keeps the default.
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file" envconfig:"LOG_FILE"`
	// Profile is "dev", "debug" or "prod" and picks level and format defaults.
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// SenderConfig tunes the outbound message dispatcher. Zero values keep its
// defaults; a negative rate removes the send rate cap.
type SenderConfig struct {
	Workers        int     `yaml:"workers" envconfig:"SENDER_WORKERS"`
	QueueSize      int     `yaml:"queue_size" envconfig:"SENDER_QUEUE_SIZE"`
	MaxRetries     int     `yaml:"max_retries" envconfig:"SENDER_MAX_RETRIES"`
	RetryBackoffMS int     `yaml:"retry_backoff_ms" envconfig:"SENDER_RETRY_BACKOFF_MS"`
	RatePerSecond  float64 `yaml:"rate_per_second" envconfig:"SENDER_RATE_PER_SECOND"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Logging  LoggingConfig  `yaml:"logging"`
	Sender   SenderConfig   `yaml:"sender"`
}

// Load reads the core configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Decode reads the YAML file at path into dst, then applies the envconfig
// tagged environment variables on top. A missing file is skipped.
func Decode(path string, dst any) error {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	if err := envconfig.Process("", dst); err != nil {
		return fmt.Errorf("failed to process env: %w", err)
	}
	return nil
}

// Normalize validates cfg and fills defaults. Every problem found is
// reported in the joined error.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	var errs []error
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram token is required"))
	}
	errs = append(errs, cfg.normalizeRunMode()...)
	errs = append(errs, cfg.Sender.validate()...)
	return errors.Join(errs...)
}

func (c *Config) normalizeRunMode() []error {
	mode := strings.ToLower(strings.TrimSpace(c.Telegram.RunMode))
	switch mode {
	case "", "polling", RunModeLongpoll:
		c.Telegram.RunMode = RunModeLongpoll
		if c.Telegram.LongPollTimeoutSeconds < 0 {
			return []error{errors.New("telegram.longpoll_timeout_seconds must be >= 0")}
		}
		return nil
	case RunModeWebhook:
		c.Telegram.RunMode = RunModeWebhook
		var errs []error
		requireWebhook := func(field string, missing bool) {
			if missing {
				errs = append(errs, fmt.Errorf("webhook.%s is required when telegram.run_mode is 'webhook'", field))
			}
		}
		requireWebhook("url", strings.TrimSpace(c.Webhook.URL) == "")
		requireWebhook("listen", strings.TrimSpace(c.Webhook.Listen) == "")
		requireWebhook("port", c.Webhook.Port <= 0)
		return errs
	default:
		return []error{fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", c.Telegram.RunMode)}
	}
}

func (s SenderConfig) validate() []error {
	var errs []error
	for _, f := range []struct {
		name  string
		value int
	}{
		{"workers", s.Workers},
		{"queue_size", s.QueueSize},
		{"max_retries", s.MaxRetries},
		{"retry_backoff_ms", s.RetryBackoffMS},
	} {
		if f.value < 0 {
			errs = append(errs, fmt.Errorf("sender.%s must be >= 0", f.name))
		}
	}
	return errs
}
