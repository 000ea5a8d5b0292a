// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

// Package config loads server configuration from defaults, an optional YAML
// file, AGORA_* environment variables and command-line flags, in that order
// of precedence (last wins).
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "AGORA_"

// EnvProduction enables production-only behavior such as secure cookies.
const EnvProduction = "production"

// Config is the full server configuration.
type Config struct {
	Environment string         `koanf:"environment"`
	HTTP        HTTPConfig     `koanf:"http"`
	Metrics     MetricsConfig  `koanf:"metrics"`
	Database    DatabaseConfig `koanf:"database"`
	Redis       RedisConfig    `koanf:"redis"`
	Session     SessionConfig  `koanf:"session"`
	Reset       ResetConfig    `koanf:"reset"`
	Frontend    FrontendConfig `koanf:"frontend"`
	Log         LogConfig      `koanf:"log"`
	Mail        MailConfig     `koanf:"mail"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig configures the metrics and health listener. An empty
// address disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig configures PostgreSQL.
type DatabaseConfig struct {
	URL         string `koanf:"url"`
	MaxConns    int32  `koanf:"max_conns"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

// RedisConfig configures the session and reset token store.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// SessionConfig configures the session cookie.
type SessionConfig struct {
	CookieName string        `koanf:"cookie_name"`
	TTL        time.Duration `koanf:"ttl"`
}

// ResetConfig configures password reset tokens.
type ResetConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

// FrontendConfig describes the web client.
type FrontendConfig struct {
	// URL is the CORS origin and the base of emailed links.
	URL string `koanf:"url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// MailConfig configures outgoing email. Without an SMTP host, emails are
// written to the log.
type MailConfig struct {
	SMTPHost string `koanf:"smtp_host"`
	SMTPPort int    `koanf:"smtp_port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`

	// Timeout bounds a single delivery, including a stalled relay.
	Timeout time.Duration `koanf:"timeout"`
}

// Production reports whether the server runs in production.
func (c *Config) Production() bool {
	return c.Environment == EnvProduction
}

// defaults are loaded before any other source.
var defaults = map[string]any{
	"environment":           "development",
	"http.addr":             ":4000",
	"http.shutdown_timeout": "10s",
	"metrics.addr":          "127.0.0.1:9100",
	"database.url":          "",
	"database.max_conns":    0,
	"database.auto_migrate": false,
	"redis.addr":            "localhost:6379",
	"redis.password":        "",
	"redis.db":              0,
	"session.cookie_name":   "qid",
	"session.ttl":           "1h",
	"reset.ttl":             "5m",
	"frontend.url":          "http://localhost:3000",
	"log.format":            "json",
	"log.level":             "info",
	"mail.smtp_host":        "",
	"mail.smtp_port":        587,
	"mail.username":         "",
	"mail.password":         "",
	"mail.from":             "",
	"mail.timeout":          "10s",
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"environment":  "environment",
	"http-addr":    "http.addr",
	"metrics-addr": "metrics.addr",
	"database-url": "database.url",
	"auto-migrate": "database.auto_migrate",
	"redis-addr":   "redis.addr",
	"frontend-url": "frontend.url",
	"log-format":   "log.format",
	"log-level":    "log.level",
	"cookie-name":  "session.cookie_name",
	"smtp-host":    "mail.smtp_host",
	"smtp-port":    "mail.smtp_port",
}

// RegisterFlags adds the configuration flags understood by Load to fs.
// Flag defaults are informational: unset flags never override other sources.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("environment", "development", "deployment environment (production enables secure cookies)")
	fs.String("http-addr", ":4000", "API listen address")
	fs.String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.Bool("auto-migrate", false, "apply pending migrations on start")
	fs.String("redis-addr", "localhost:6379", "Redis address")
	fs.String("frontend-url", "http://localhost:3000", "web client origin")
	fs.String("log-format", "json", "log format (json or text)")
	fs.String("log-level", "info", "minimum log level (debug, info, warn, error)")
	fs.String("cookie-name", "qid", "session cookie name")
	fs.String("smtp-host", "", "SMTP relay host (empty = log emails)")
	fs.Int("smtp-port", 587, "SMTP relay port")
}

// LoadOptions selects the sources read by Load.
type LoadOptions struct {
	// ConfigFile is an optional YAML file.
	ConfigFile string

	// EnvFiles are dotenv files loaded into the process environment before
	// reading AGORA_* variables. Missing files are ignored.
	EnvFiles []string

	// Flags holds flags registered with RegisterFlags. Only flags set on the
	// command line are applied.
	Flags *pflag.FlagSet
}

// Load reads and validates the configuration.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if opts.ConfigFile != "" {
		if err := k.Load(file.Provider(opts.ConfigFile), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "file").
				With("path", opts.ConfigFile).
				Wrap(err)
		}
	}

	for _, path := range opts.EnvFiles {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "dotenv").
				With("path", path).
				Wrap(err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}
	cfg.Frontend.URL = strings.TrimRight(cfg.Frontend.URL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps AGORA_SESSION_COOKIE_NAME to session.cookie_name: the first
// underscore after the prefix separates the section.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(key, "_", ".", 1)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").Errorf(format, args...)
	}

	switch {
	case c.Environment == "":
		return invalid("environment is required")
	case c.HTTP.Addr == "":
		return invalid("http.addr is required")
	case c.HTTP.ShutdownTimeout <= 0:
		return invalid("http.shutdown_timeout must be positive")
	case c.Database.URL == "":
		return invalid("database.url is required")
	case c.Redis.Addr == "":
		return invalid("redis.addr is required")
	case c.Session.CookieName == "":
		return invalid("session.cookie_name is required")
	case c.Session.TTL <= 0:
		return invalid("session.ttl must be positive")
	case c.Reset.TTL <= 0:
		return invalid("reset.ttl must be positive")
	case c.Log.Format != "json" && c.Log.Format != "text":
		return invalid("log.format must be 'json' or 'text', got %q", c.Log.Format)
	case !validLevel(c.Log.Level):
		return invalid("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	case c.Mail.SMTPHost != "" && c.Mail.From == "":
		return invalid("mail.from is required when mail.smtp_host is set")
	case c.Mail.SMTPHost != "" && c.Mail.Timeout <= 0:
		return invalid("mail.timeout must be positive when mail.smtp_host is set")
	}

	u, err := url.Parse(c.Frontend.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("frontend.url must be an absolute URL, got %q", c.Frontend.URL)
	}
	return nil
}

func validLevel(name string) bool {
	var level slog.Level
	return level.UnmarshalText([]byte(name)) == nil
}
