package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads configuration through getenv, applies defaults for unset
// values and validates the result. Every bad value is reported, not just
// the first.
func LoadFrom(getenv func(string) string) (*Config, error) {
	cfg := &Config{}

	if err := errors.Join(decode(reflect.ValueOf(cfg).Elem(), getenv)...); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// MustLoad is Load for main packages and tests that cannot continue without
// a configuration.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// parsers convert a raw setting into a field of the given type.
var parsers = map[reflect.Type]func(string) (any, error){
	reflect.TypeOf(""): func(s string) (any, error) { return s, nil },
	reflect.TypeOf(0): func(s string) (any, error) {
		return strconv.Atoi(s)
	},
	reflect.TypeOf(int64(0)): func(s string) (any, error) {
		return strconv.ParseInt(s, 10, 64)
	},
	reflect.TypeOf(false): func(s string) (any, error) {
		return strconv.ParseBool(s)
	},
	reflect.TypeOf(time.Duration(0)): func(s string) (any, error) {
		return time.ParseDuration(s)
	},
	reflect.TypeOf([]string(nil)): func(s string) (any, error) {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	},
}

// decode fills v from `env`, `envAlt` and `default` tags, descending into
// nested structs.
func decode(v reflect.Value, getenv func(string) string) []error {
	var errs []error
	for i := 0; i < v.NumField(); i++ {
		sf, fv := v.Type().Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if sf.Type.Kind() == reflect.Struct {
			errs = append(errs, decode(fv, getenv)...)
			continue
		}

		name := sf.Tag.Get("env")
		if name == "" {
			continue
		}
		raw := lookup(getenv, name, sf.Tag.Get("envAlt"))
		if raw == "" {
			raw = sf.Tag.Get("default")
		}
		if raw == "" {
			continue
		}

		parse, ok := parsers[sf.Type]
		if !ok {
			errs = append(errs, fmt.Errorf("%s: unsupported field type %s", name, sf.Type))
			continue
		}
		val, err := parse(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid value for %s=%q: %w", name, raw, err))
			continue
		}
		fv.Set(reflect.ValueOf(val).Convert(sf.Type))
	}
	return errs
}

func lookup(getenv func(string) string, names ...string) string {
	for _, n := range names {
		if n == "" {
			continue
		}
		if v := getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	db, srv, val, rate := c.Database, c.Server, c.Validation, c.Rate

	checks := []struct {
		bad bool
		msg string
	}{
		{db.Enabled() && db.MaxConns <= 0, "DB_MAX_CONNS must be positive"},
		{db.Enabled() && db.MinConns < 0, "DB_MIN_CONNS must be non-negative"},
		{db.Enabled() && db.MaxConns < db.MinConns,
			fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", db.MaxConns, db.MinConns)},

		{srv.Port <= 0 || srv.Port > 65535, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", srv.Port)},
		{srv.ReadTimeout < 0, "SERVER_READ_TIMEOUT must be non-negative"},
		{srv.ShutdownTimeout <= 0, "SERVER_SHUTDOWN_TIMEOUT must be positive"},

		{val.MaxConcurrent <= 0, "VALIDATION_MAX_CONCURRENT must be positive"},
		{val.MaxWaitTime <= 0, "VALIDATION_MAX_WAIT_TIME must be positive"},
		{val.Timeout <= 0, "VALIDATION_TIMEOUT must be positive"},
		{val.MaxUploadSize <= 0, "VALIDATION_MAX_UPLOAD_SIZE must be positive"},
		{val.FetchTimeout <= 0, "VALIDATION_FETCH_TIMEOUT must be positive"},
		{val.SchemaDir != "" && !isDir(val.SchemaDir),
			fmt.Sprintf("SCHEMA_DIR (%q) must be an existing directory", val.SchemaDir)},

		{c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/"),
			fmt.Sprintf("METRICS_PATH (%q) must start with /", c.Metrics.Path)},

		{rate.Enabled && rate.RequestsPerMinute <= 0, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive"},
		{rate.Enabled && rate.ValidateLimit <= 0, "RATE_LIMIT_VALIDATE must be positive"},

		{c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0, "API_KEYS must be set when REQUIRE_API_KEY is true"},

		{!slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Logging.Level)),
			fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)},
		{!slices.Contains([]string{"text", "json"}, strings.ToLower(c.Logging.Format)),
			fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)},
	}

	var problems []string
	for _, ch := range checks {
		if ch.bad {
			problems = append(problems, ch.msg)
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d problem(s):\n  - %s", len(problems), strings.Join(problems, "\n  - "))
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// String returns a loggable summary. The database URL and API keys are
// never included.
func (c *Config) String() string {
	db := "disabled"
	if c.Database.Enabled() {
		db = "[MASKED]"
	}

	parts := []string{
		fmt.Sprintf("Server: {Addr: %q}", c.Server.Addr()),
		fmt.Sprintf("Database: {URL: %s, MaxConns: %d}", db, c.Database.MaxConns),
		fmt.Sprintf("Validation: {MaxConcurrent: %d, Timeout: %s, SchemaDir: %q}",
			c.Validation.MaxConcurrent, c.Validation.Timeout, c.Validation.SchemaDir),
		fmt.Sprintf("Metrics: {Enabled: %v, Path: %q}", c.Metrics.Enabled, c.Metrics.Path),
		fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}", c.Rate.Enabled, c.Rate.RequestsPerMinute),
		fmt.Sprintf("Security: {RequireAPIKey: %v, APIKeys: %d configured}", c.Security.RequireAPIKey, len(c.Security.APIKeys)),
		fmt.Sprintf("Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format),
	}
	return "Config{" + strings.Join(parts, ", ") + "}"
}
