package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		ClientBot:     BotConfig{Token: "client"},
		TechnicianBot: BotConfig{Token: "tech"},
		Database:      DatabaseConfig{Driver: "sqlite", Path: "pest.db"},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig()
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.ClientBot.RunMode != RunModeLongpoll || cfg.TechnicianBot.RunMode != RunModeLongpoll {
		t.Fatalf("run modes = %q, %q", cfg.ClientBot.RunMode, cfg.TechnicianBot.RunMode)
	}
	if cfg.Database.Driver != DriverSQLite || cfg.Database.MaxConnections != 1 {
		t.Fatalf("database = %+v", cfg.Database)
	}
	if cfg.Session.Backend != SessionMemory || cfg.Session.IdleTimeout != DefaultIdleTimeout {
		t.Fatalf("session = %+v", cfg.Session)
	}
}

func TestNormalizeErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing client token", func(c *Config) { c.ClientBot.Token = "" }},
		{"missing technician token", func(c *Config) { c.TechnicianBot.Token = "" }},
		{"webhook without url", func(c *Config) { c.TechnicianBot.RunMode = "webhook" }},
		{"unknown run mode", func(c *Config) { c.ClientBot.RunMode = "push" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"sqlite without path", func(c *Config) { c.Database.Path = "" }},
		{"redis without addr", func(c *Config) { c.Session.Backend = "redis" }},
		{"bad exclude", func(c *Config) { c.RateLimit.ExcludeUpdates = []string{"poll"} }},
		{"seed without credential", func(c *Config) {
			c.Seed.Technicians = []SeedTechnician{{Name: "A", Contact: "@a"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := Normalize(cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadAppliesEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
client_bot:
  token: from-file
technician_bot:
  token: tech
database:
  driver: sqlite3
  path: ` + filepath.Join(dir, "pest.db") + `
session:
  idle_timeout: 5m
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CLIENT_BOT_TOKEN", "from-env")
	t.Setenv("TELEGRAM_ADMIN_ID", "77")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ClientBot.Token != "from-env" {
		t.Fatalf("client token = %q", cfg.ClientBot.Token)
	}
	if cfg.Telegram.AdminID != 77 {
		t.Fatalf("admin id = %d", cfg.Telegram.AdminID)
	}
	if cfg.Session.IdleTimeout != 5*time.Minute {
		t.Fatalf("idle timeout = %v", cfg.Session.IdleTimeout)
	}
}
