// Package config loads the Demo Management service configuration. Values come
// from built-in defaults, then an optional YAML file, then DEMO_* environment
// variables. Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the file read when no --config flag is given.
const DefaultConfigFile = "demo-management.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DEMO_"

// Server holds the HTTP listener settings.
type Server struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Log holds logger settings.
type Log struct {
	Level   string `yaml:"level"`  // debug, info, warn, error
	Format  string `yaml:"format"` // json or text
	Verbose bool   `yaml:"verbose"`
}

// Database selects and configures the persistence backend.
type Database struct {
	Driver      string `yaml:"driver"` // memory or sqlite
	DSN         string `yaml:"dsn"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// UserManagement points at the optional user directory service.
type UserManagement struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
}

// Media configures logo upload storage.
type Media struct {
	Dir         string `yaml:"dir"`
	MaxLogoSize int64  `yaml:"max_logo_size"` // bytes
}

// CORS lists the allowed origins. "*" allows any origin.
type CORS struct {
	Origins []string `yaml:"origins"`
}

// Config is the full service configuration.
type Config struct {
	Server         Server         `yaml:"server"`
	Log            Log            `yaml:"log"`
	Database       Database       `yaml:"database"`
	UserManagement UserManagement `yaml:"user_management"`
	Media          Media          `yaml:"media"`
	CORS           CORS           `yaml:"cors"`
	SeedFile       string         `yaml:"seed_file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{
			Port:            8801,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
		Database: Database{
			Driver:      "memory",
			DSN:         "file:demo_management.db",
			AutoMigrate: true,
		},
		UserManagement: UserManagement{
			Timeout: 10 * time.Second,
			Retries: 3,
		},
		Media: Media{
			Dir:         "media",
			MaxLogoSize: 5 << 20,
		},
		CORS: CORS{Origins: []string{"*"}},
	}
}

// Load reads the config file at path over the defaults and then applies
// environment overrides. A missing file is not an error when path is the
// default file name; an explicitly named file must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from DEMO_* variables. PORT is honored when
// DEMO_PORT is unset.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	env := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	if v, ok := env("PORT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPORT: %w", EnvPrefix, err)
		}
		c.Server.Port = n
	} else if v, ok := lookup("PORT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = n
	}

	durations := map[string]*time.Duration{
		"READ_TIMEOUT":            &c.Server.ReadTimeout,
		"WRITE_TIMEOUT":           &c.Server.WriteTimeout,
		"SHUTDOWN_TIMEOUT":        &c.Server.ShutdownTimeout,
		"USER_MANAGEMENT_TIMEOUT": &c.UserManagement.Timeout,
	}
	for key, dst := range durations {
		if v, ok := env(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = d
		}
	}

	bools := map[string]*bool{
		"VERBOSE":      &c.Log.Verbose,
		"AUTO_MIGRATE": &c.Database.AutoMigrate,
	}
	for key, dst := range bools {
		if v, ok := env(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
	}

	strs := map[string]*string{
		"LOG_LEVEL":           &c.Log.Level,
		"LOG_FORMAT":          &c.Log.Format,
		"DATABASE_DRIVER":     &c.Database.Driver,
		"DATABASE_DSN":        &c.Database.DSN,
		"USER_MANAGEMENT_URL": &c.UserManagement.URL,
		"SEED_FILE":           &c.SeedFile,
		"MEDIA_DIR":           &c.Media.Dir,
	}
	for key, dst := range strs {
		if v, ok := env(key); ok {
			*dst = v
		}
	}

	if v, ok := env("USER_MANAGEMENT_RETRIES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sUSER_MANAGEMENT_RETRIES: %w", EnvPrefix, err)
		}
		c.UserManagement.Retries = n
	}
	if v, ok := env("MEDIA_MAX_LOGO_SIZE"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sMEDIA_MAX_LOGO_SIZE: %w", EnvPrefix, err)
		}
		c.Media.MaxLogoSize = n
	}
	if v, ok := env("CORS_ORIGINS"); ok {
		c.CORS.Origins = splitList(v)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q: must be debug, info, warn or error", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: must be json or text", c.Log.Format))
	}
	switch c.Database.Driver {
	case "memory":
	case "sqlite":
		if c.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("database.dsn is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: must be memory or sqlite", c.Database.Driver))
	}
	if c.UserManagement.Retries < 0 {
		errs = append(errs, fmt.Errorf("user_management.retries must not be negative"))
	}
	if c.Media.Dir == "" {
		errs = append(errs, fmt.Errorf("media.dir is required"))
	}
	if c.Media.MaxLogoSize <= 0 {
		errs = append(errs, fmt.Errorf("media.max_logo_size must be positive"))
	}
	return errors.Join(errs...)
}

// Save writes the config as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
