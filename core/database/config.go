package database

import (
	"fmt"
	"net/url"
	"strings"

	coreconfig "github.com/m3rciful/pestbot/core/config"
)

// Config is the database section of the application config.
type Config = coreconfig.DatabaseConfig

// DSN renders the driver-specific data source name used by database/sql.
func DSN(cfg Config) string {
	if cfg.Driver == coreconfig.DriverSQLite {
		return cfg.Path + "?_foreign_keys=on&_busy_timeout=5000"
	}
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
	)
}

// postgresURL renders the URL form golang-migrate expects.
func postgresURL(cfg Config) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + cfg.Port,
		Path:     "/" + strings.TrimPrefix(cfg.Name, "/"),
		RawQuery: "sslmode=" + url.QueryEscape(cfg.SSLMode),
	}
	return u.String()
}
