// Package config loads the server configuration: a YAML file, defaults for
// everything it leaves out and CRUDKIT_* environment overrides on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-crudkit/pkg/menu"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Environment overrides.
const (
	EnvAddr     = "CRUDKIT_ADDR"
	EnvStore    = "CRUDKIT_STORE"
	EnvDSN      = "CRUDKIT_DSN"
	EnvUploads  = "CRUDKIT_UPLOADS_DIR"
	EnvLogLevel = "CRUDKIT_LOG_LEVEL"
)

// Config is the server configuration.
type Config struct {
	Addr          string        `yaml:"addr"`
	LogLevel      string        `yaml:"logLevel"`
	ShutdownGrace time.Duration `yaml:"shutdownGrace"`

	Store   Store   `yaml:"store"`
	Uploads Uploads `yaml:"uploads"`
	Auth    Auth    `yaml:"auth"`

	// Schemas are descriptor or OpenAPI sources: file paths or http(s) URLs.
	Schemas []string `yaml:"schemas"`
	// Options maps option list names to line files served at
	// /api/options/{name}.
	Options map[string]string `yaml:"options"`

	Locales []string    `yaml:"locales"`
	Menu    []menu.Link `yaml:"menu"`
	// Translations is a directory of <locale>.yaml catalogs overlaid on the
	// built-in ones.
	Translations string `yaml:"translations"`
}

// Store selects the document store backend.
type Store struct {
	Driver string `yaml:"driver"`
	// DSN is the sqlite data source or the mongo URI.
	DSN      string `yaml:"dsn"`
	Database string `yaml:"database"`
}

// Uploads configures file storage.
type Uploads struct {
	Dir string `yaml:"dir"`
	// BaseURL is the public prefix blobs are served under.
	BaseURL  string `yaml:"baseUrl"`
	MaxBytes int64  `yaml:"maxBytes"`
}

// Auth configures sessions.
type Auth struct {
	SessionTTL  time.Duration `yaml:"sessionTTL"`
	CookieName  string        `yaml:"cookieName"`
	AllowSignup *bool         `yaml:"allowSignup"`
	// Admins are emails granted the admin role when they sign up.
	Admins []string `yaml:"admins"`
}

// SignupAllowed reports whether self registration is open. It is unless
// the file turns it off.
func (a Auth) SignupAllowed() bool {
	return a.AllowSignup == nil || *a.AllowSignup
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Addr:          ":8080",
		LogLevel:      "info",
		ShutdownGrace: 5 * time.Second,
		Store:         Store{Driver: DriverMemory, Database: "crudkit"},
		Uploads: Uploads{
			Dir:      "data/uploads",
			BaseURL:  "/files",
			MaxBytes: 32 << 20,
		},
		Auth: Auth{
			SessionTTL: 24 * time.Hour,
			CookieName: "crudkit_session",
		},
		Locales: append([]string(nil), menu.DefaultLocales...),
	}
}

// Load reads path (optional) and applies the process environment.
func Load(path string) (Config, error) {
	return LoadWith(path, os.Getenv)
}

// LoadWith is Load with an injected environment lookup.
func LoadWith(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if getenv != nil {
		cfg.applyEnv(getenv)
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Addr, EnvAddr)
	set(&c.Store.Driver, EnvStore)
	set(&c.Store.DSN, EnvDSN)
	set(&c.Uploads.Dir, EnvUploads)
	set(&c.LogLevel, EnvLogLevel)
}

// fillDefaults restores defaults the file explicitly blanked.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = def.ShutdownGrace
	}
	if c.Store.Driver == "" {
		c.Store.Driver = def.Store.Driver
	}
	c.Store.Driver = strings.ToLower(c.Store.Driver)
	if c.Store.Database == "" {
		c.Store.Database = def.Store.Database
	}
	if c.Uploads.BaseURL == "" {
		c.Uploads.BaseURL = def.Uploads.BaseURL
	}
	if c.Uploads.MaxBytes <= 0 {
		c.Uploads.MaxBytes = def.Uploads.MaxBytes
	}
	if c.Auth.SessionTTL <= 0 {
		c.Auth.SessionTTL = def.Auth.SessionTTL
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = def.Auth.CookieName
	}
	if len(c.Locales) == 0 {
		c.Locales = def.Locales
	}
	if c.Store.Driver == DriverSQLite && c.Store.DSN == "" {
		c.Store.DSN = "file:crudkit.db"
	}
}

// Validate reports inconsistent settings.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	case DriverMongo:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("config: mongo store requires a dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown store driver %q", c.Store.Driver))
	}
	if !strings.HasPrefix(c.Uploads.BaseURL, "/") && !strings.Contains(c.Uploads.BaseURL, "://") {
		errs = append(errs, fmt.Errorf("config: uploads baseUrl %q must be a path or an absolute URL", c.Uploads.BaseURL))
	}
	for name, file := range c.Options {
		if strings.TrimSpace(name) == "" || strings.Contains(name, "/") {
			errs = append(errs, fmt.Errorf("config: invalid option list name %q", name))
		}
		if strings.TrimSpace(file) == "" {
			errs = append(errs, fmt.Errorf("config: option list %q has no file", name))
		}
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("config: unknown log level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}

// Debug reports whether the development logger should be used.
func (c Config) Debug() bool {
	return strings.EqualFold(c.LogLevel, "debug")
}
