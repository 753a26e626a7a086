package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks values that tags cannot express. Load calls it.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0 (got %s)", c.Server.ShutdownTimeout)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Auth.SessionSecret != "" && len(c.Auth.SessionSecret) < 32 {
		return fmt.Errorf("auth.session_secret must be at least 32 characters (got %d)", len(c.Auth.SessionSecret))
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be > 0 (got %s)", c.Auth.SessionTTL)
	}
	if err := c.Mail.validate(); err != nil {
		return fmt.Errorf("mail: %w", err)
	}
	if c.Reminders.PerHour <= 0 {
		return fmt.Errorf("reminders.per_hour must be > 0 (got %d)", c.Reminders.PerHour)
	}
	if c.Reminders.Burst <= 0 {
		return fmt.Errorf("reminders.burst must be > 0 (got %d)", c.Reminders.Burst)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json (got %q)", c.Log.Format)
	}
	return nil
}

func (m *MailConfig) validate() error {
	switch m.Driver {
	case "log":
		return nil
	case "smtp":
	default:
		return fmt.Errorf("driver must be log or smtp (got %q)", m.Driver)
	}
	if m.Host == "" {
		return fmt.Errorf("host is required for the smtp driver")
	}
	if m.Port <= 0 || m.Port > 65535 {
		return fmt.Errorf("port out of range (got %d)", m.Port)
	}
	if m.From == "" {
		return fmt.Errorf("from is required for the smtp driver")
	}
	switch m.TLS {
	case "mandatory", "opportunistic", "none":
	default:
		return fmt.Errorf("tls must be mandatory, opportunistic or none (got %q)", m.TLS)
	}
	return nil
}

// ParseLevel maps a config level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown level %q", s)
}
