// Package config loads server configuration from YAML and the environment.
package config

import "time"

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Mail      MailConfig      `yaml:"mail"`
	Reminders RemindersConfig `yaml:"reminders"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"             env:"SERVER_ADDR"             env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

// DatabaseConfig holds the SQLite file location.
type DatabaseConfig struct {
	Path string `yaml:"path" env:"DATABASE_PATH" env-default:"lender.sqlite3"`
}

// AuthConfig holds session settings. An empty SessionSecret means the
// secret stored in the database is used.
type AuthConfig struct {
	SessionSecret string        `yaml:"session_secret" env:"AUTH_SESSION_SECRET"`
	SessionTTL    time.Duration `yaml:"session_ttl"    env:"AUTH_SESSION_TTL"    env-default:"336h"`
	SecureCookies bool          `yaml:"secure_cookies" env:"AUTH_SECURE_COOKIES" env-default:"false"`
}

// MailConfig selects and configures the reminder sender.
type MailConfig struct {
	Driver   string        `yaml:"driver"    env:"MAIL_DRIVER"    env-default:"log"`
	Host     string        `yaml:"host"      env:"MAIL_HOST"`
	Port     int           `yaml:"port"      env:"MAIL_PORT"      env-default:"587"`
	Username string        `yaml:"username"  env:"MAIL_USERNAME"`
	Password string        `yaml:"password"  env:"MAIL_PASSWORD"`
	From     string        `yaml:"from"      env:"MAIL_FROM"      env-default:"lender@localhost"`
	FromName string        `yaml:"from_name" env:"MAIL_FROM_NAME" env-default:"Lender"`
	TLS      string        `yaml:"tls"       env:"MAIL_TLS"       env-default:"mandatory"`
	Timeout  time.Duration `yaml:"timeout"   env:"MAIL_TIMEOUT"   env-default:"15s"`
}

// RemindersConfig limits how often one user may send reminders.
type RemindersConfig struct {
	PerHour int `yaml:"per_hour" env:"REMINDERS_PER_HOUR" env-default:"10"`
	Burst   int `yaml:"burst"    env:"REMINDERS_BURST"    env-default:"3"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
	File   string `yaml:"file"   env:"LOG_FILE"`
}
