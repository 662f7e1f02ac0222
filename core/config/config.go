package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings that are common for all bots.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
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
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Stacks      string `yaml:"stacks"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	ErrorsFile  string `yaml:"errors_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// StorageConfig locates the durable snapshot files and credential artifacts.
type StorageConfig struct {
	// Dir is the data directory holding snapshot files and session artifacts.
	Dir string `yaml:"dir" envconfig:"STORAGE_DIR"`
	// UsersFile is the whole-file JSON snapshot of license records.
	UsersFile string `yaml:"users_file" envconfig:"STORAGE_USERS_FILE"`
	// SessionsFile is the whole-file JSON snapshot of session descriptors.
	SessionsFile string `yaml:"sessions_file" envconfig:"STORAGE_SESSIONS_FILE"`
}

// SessionsConfig tunes the account session supervisor.
type SessionsConfig struct {
	// PrimaryPhone pins which linked account the watchdog keeps alive.
	// Empty means the first registered number.
	PrimaryPhone string `yaml:"primary_phone" envconfig:"SESSIONS_PRIMARY_PHONE"`
}

// LicensingConfig tunes the license/subscription state machine.
type LicensingConfig struct {
	// PendingRequestTTL bounds how long a payment request stays pending.
	// Zero means a pending request never expires on its own.
	PendingRequestTTL time.Duration `yaml:"pending_request_ttl" envconfig:"LICENSING_PENDING_REQUEST_TTL"`
}

// WatchdogConfig controls the passive connection monitor.
type WatchdogConfig struct {
	// CheckInterval is the period between passive liveness checks.
	CheckInterval time.Duration `yaml:"check_interval" envconfig:"WATCHDOG_CHECK_INTERVAL"`
	// AutoReactivation enables the passive repair path; the manual trigger
	// keeps working regardless.
	AutoReactivation *bool `yaml:"auto_reactivation" envconfig:"WATCHDOG_AUTO_REACTIVATION"`
	// TeardownTimeout bounds the wait for each session during shutdown.
	TeardownTimeout time.Duration `yaml:"teardown_timeout" envconfig:"WATCHDOG_TEARDOWN_TIMEOUT"`
}

// HealthConfig configures the HTTP health surface.
type HealthConfig struct {
	Listen      string        `yaml:"listen" envconfig:"HEALTH_LISTEN"`
	ReadTimeout time.Duration `yaml:"read_timeout" envconfig:"HEALTH_READ_TIMEOUT"`
	IdleTimeout time.Duration `yaml:"idle_timeout" envconfig:"HEALTH_IDLE_TIMEOUT"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateInlineQuery identifies inline query updates for rate limit exclusions.
	UpdateInlineQuery = "inline_query"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
// - "inline_query": inline query updates
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Storage   StorageConfig   `yaml:"storage"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Licensing LicensingConfig `yaml:"licensing"`
	Watchdog  WatchdogConfig  `yaml:"watchdog"`
	Health    HealthConfig    `yaml:"health"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if cfg.Telegram.AdminID == 0 {
		return fmt.Errorf("telegram.admin_id is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	if strings.TrimSpace(cfg.Storage.Dir) == "" {
		cfg.Storage.Dir = "data"
	}
	if strings.TrimSpace(cfg.Storage.UsersFile) == "" {
		cfg.Storage.UsersFile = "users.json"
	}
	if strings.TrimSpace(cfg.Storage.SessionsFile) == "" {
		cfg.Storage.SessionsFile = "sessions.json"
	}

	if cfg.Licensing.PendingRequestTTL < 0 {
		return fmt.Errorf("licensing.pending_request_ttl must be >= 0")
	}

	if cfg.Watchdog.CheckInterval <= 0 {
		cfg.Watchdog.CheckInterval = 30 * time.Second
	}
	if cfg.Watchdog.AutoReactivation == nil {
		enabled := true
		cfg.Watchdog.AutoReactivation = &enabled
	}
	if cfg.Watchdog.TeardownTimeout <= 0 {
		cfg.Watchdog.TeardownTimeout = 5 * time.Second
	}

	if strings.TrimSpace(cfg.Health.Listen) == "" {
		cfg.Health.Listen = ":10000"
	}
	if cfg.Health.ReadTimeout <= 0 {
		cfg.Health.ReadTimeout = 10 * time.Second
	}
	if cfg.Health.IdleTimeout <= 0 {
		cfg.Health.IdleTimeout = 60 * time.Second
	}

	allowed := map[string]struct{}{
		UpdateCallback:    {},
		UpdateMessage:     {},
		UpdateInlineQuery: {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}
