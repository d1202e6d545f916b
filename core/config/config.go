package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url"`
	Listen string `yaml:"listen"`
	Port   int    `yaml:"port"`
}

// BotConfig holds settings of a single Telegram bot.
type BotConfig struct {
	Token   string `yaml:"token"`
	RunMode string `yaml:"run_mode"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int           `yaml:"longpoll_timeout_seconds"`
	Webhook                WebhookConfig `yaml:"webhook"`
}

// TelegramConfig holds settings shared by both bots.
type TelegramConfig struct {
	AdminID int64 `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	File        string `yaml:"file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// DatabaseConfig holds connection settings of the order store.
type DatabaseConfig struct {
	Driver         string `yaml:"driver" envconfig:"DB_DRIVER"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	Path           string `yaml:"path" envconfig:"DB_PATH"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// SessionConfig selects where conversation state lives.
type SessionConfig struct {
	Backend     string        `yaml:"backend" envconfig:"SESSION_BACKEND"`
	IdleTimeout time.Duration `yaml:"idle_timeout" envconfig:"SESSION_IDLE_TIMEOUT"`
	RedisAddr   string        `yaml:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisDB     int           `yaml:"redis_db" envconfig:"REDIS_DB"`
	RedisPass   string        `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
}

// HTTPConfig configures the admin API.
type HTTPConfig struct {
	Listen   string `yaml:"listen" envconfig:"HTTP_LISTEN"`
	APIToken string `yaml:"api_token" envconfig:"ADMIN_API_TOKEN"`
}

// SeedTechnician is a technician registered on startup when absent.
type SeedTechnician struct {
	Name       string `yaml:"name"`
	Contact    string `yaml:"contact"`
	Credential string `yaml:"credential"`
}

// SeedConfig lists records created on startup.
type SeedConfig struct {
	Technicians []SeedTechnician `yaml:"technicians"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

const (
	SessionMemory = "memory"
	SessionRedis  = "redis"
)

// DefaultIdleTimeout discards conversations nobody touched for this long.
const DefaultIdleTimeout = 30 * time.Minute

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

// Config aggregates the application configuration.
type Config struct {
	ClientBot     BotConfig       `yaml:"client_bot"`
	TechnicianBot BotConfig       `yaml:"technician_bot"`
	Telegram      TelegramConfig  `yaml:"telegram"`
	Logging       LoggingConfig   `yaml:"logging"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
	Database      DatabaseConfig  `yaml:"database"`
	Session       SessionConfig   `yaml:"session"`
	HTTP          HTTPConfig      `yaml:"http"`
	Seed          SeedConfig      `yaml:"seed"`
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
	// Tokens live in separate variables per bot.
	if v := os.Getenv("CLIENT_BOT_TOKEN"); v != "" {
		cfg.ClientBot.Token = v
	}
	if v := os.Getenv("TECHNICIAN_BOT_TOKEN"); v != "" {
		cfg.TechnicianBot.Token = v
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

	if err := normalizeBot("client_bot", &cfg.ClientBot); err != nil {
		return err
	}
	if err := normalizeBot("technician_bot", &cfg.TechnicianBot); err != nil {
		return err
	}
	if err := normalizeDatabase(&cfg.Database); err != nil {
		return err
	}
	if err := normalizeSession(&cfg.Session); err != nil {
		return err
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

	for i, t := range cfg.Seed.Technicians {
		if strings.TrimSpace(t.Contact) == "" || strings.TrimSpace(t.Credential) == "" {
			return fmt.Errorf("seed.technicians[%d]: contact and credential are required", i)
		}
	}
	return nil
}

func normalizeBot(section string, b *BotConfig) error {
	if strings.TrimSpace(b.Token) == "" {
		return fmt.Errorf("%s.token is required", section)
	}

	rm := strings.ToLower(strings.TrimSpace(b.RunMode))
	if rm == "" || rm == "polling" {
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(b.Webhook.URL) == "" {
			return fmt.Errorf("%s.webhook.url is required when run_mode is 'webhook'", section)
		}
		if strings.TrimSpace(b.Webhook.Listen) == "" {
			return fmt.Errorf("%s.webhook.listen is required when run_mode is 'webhook'", section)
		}
		if b.Webhook.Port <= 0 {
			return fmt.Errorf("%s.webhook.port must be > 0 when run_mode is 'webhook'", section)
		}
	case RunModeLongpoll:
		if b.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("%s.longpoll_timeout_seconds must be >= 0", section)
		}
	default:
		return fmt.Errorf("invalid %s.run_mode %q; allowed: webhook, longpoll", section, b.RunMode)
	}
	b.RunMode = rm
	return nil
}

func normalizeDatabase(db *DatabaseConfig) error {
	drv := strings.ToLower(strings.TrimSpace(db.Driver))
	switch drv {
	case "", "postgresql", DriverPostgres:
		drv = DriverPostgres
		if db.SSLMode == "" {
			db.SSLMode = "disable"
		}
		if db.Port == "" {
			db.Port = "5432"
		}
	case "sqlite":
		drv = DriverSQLite
		fallthrough
	case DriverSQLite:
		if strings.TrimSpace(db.Path) == "" {
			return fmt.Errorf("database.path is required for sqlite3")
		}
		db.MaxConnections = 1
	default:
		return fmt.Errorf("invalid database.driver %q; allowed: postgres, sqlite3", db.Driver)
	}
	db.Driver = drv
	if db.MaxConnections <= 0 {
		db.MaxConnections = 10
	}
	return nil
}

func normalizeSession(s *SessionConfig) error {
	backend := strings.ToLower(strings.TrimSpace(s.Backend))
	switch backend {
	case "", SessionMemory:
		backend = SessionMemory
	case SessionRedis:
		if strings.TrimSpace(s.RedisAddr) == "" {
			return fmt.Errorf("session.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: memory, redis", s.Backend)
	}
	s.Backend = backend
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	return nil
}
