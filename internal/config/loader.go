package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from the process environment, applies defaults
// and validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom is Load with a custom variable lookup. A lookup returning ""
// means the variable is unset.
func LoadFrom(lookup func(string) string) (*Config, error) {
	cfg := &Config{}
	if err := loadStruct(reflect.ValueOf(cfg).Elem(), lookup); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// loadStruct fills the fields of the struct v from their tags:
//
//	env:"NAME"        variable to read
//	envAlt:"OTHER"    variable to read when NAME is unset
//	default:"value"   value when both are unset
//	required:"true"   fail when no value is found
//
// Nested structs are filled recursively. Every bad field is reported.
func loadStruct(v reflect.Value, lookup func(string) string) error {
	var errs []error
	t := v.Type()

	for i := range t.NumField() {
		field, value := t.Field(i), v.Field(i)
		if !value.CanSet() {
			continue
		}
		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(value, lookup); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		name := field.Tag.Get("env")
		if name == "" {
			continue
		}
		raw, ok := resolve(field.Tag, lookup)
		if !ok {
			if field.Tag.Get("required") == "true" {
				errs = append(errs, fmt.Errorf("required environment variable %s is not set", name))
			}
			continue
		}
		if err := assign(value, raw); err != nil {
			errs = append(errs, fmt.Errorf("invalid value for %s=%q: %w", name, raw, err))
		}
	}
	return errors.Join(errs...)
}

// resolve returns the raw value for a field, or false when neither variable
// nor default supplies one.
func resolve(tag reflect.StructTag, lookup func(string) string) (string, bool) {
	for _, key := range []string{tag.Get("env"), tag.Get("envAlt")} {
		if key == "" {
			continue
		}
		if raw := lookup(key); raw != "" {
			return raw, true
		}
	}
	if def := tag.Get("default"); def != "" {
		return def, true
	}
	return "", false
}

// assign parses raw into dst according to dst's type.
func assign(dst reflect.Value, raw string) error {
	if dst.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		dst.SetInt(int64(d))
		return nil
	}

	switch dst.Kind() {
	case reflect.String:
		dst.SetString(raw)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, dst.Type().Bits())
		if err != nil {
			return err
		}
		dst.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		dst.SetBool(b)
	case reflect.Slice:
		if dst.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice of %s", dst.Type().Elem())
		}
		dst.Set(reflect.ValueOf(splitList(raw)))
	default:
		return fmt.Errorf("unsupported field type %s", dst.Type())
	}
	return nil
}

// splitList splits a comma-separated list, dropping blank entries.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// sinkDrivers are the accepted SINK_DRIVER spellings.
var sinkDrivers = []string{"sqlite", "sqlite3", "postgres", "postgresql", "pgx", "mysql", "mariadb"}

// problems collects validation failures.
type problems []string

func (p *problems) check(ok bool, format string, args ...any) {
	if !ok {
		*p = append(*p, fmt.Sprintf(format, args...))
	}
}

func oneOf(v string, allowed ...string) bool {
	v = strings.ToLower(v)
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Validate reports every invalid setting in one error.
func (c *Config) Validate() error {
	var p problems

	p.check(c.Server.Port > 0 && c.Server.Port <= 65535, "SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	p.check(c.Server.ReadTimeout >= 0, "SERVER_READ_TIMEOUT must be non-negative")
	p.check(c.Server.WriteTimeout >= 0, "SERVER_WRITE_TIMEOUT must be non-negative")
	p.check(c.Server.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be positive")

	p.check(c.Convert.MaxFileSize > 0, "CONVERT_MAX_FILE_SIZE must be positive")
	p.check(c.Convert.MaxLineBytes > 0, "CONVERT_MAX_LINE_BYTES must be positive")
	p.check(c.Convert.MaxConcurrent > 0, "CONVERT_MAX_CONCURRENT must be positive")
	p.check(c.Convert.MaxWaitTime > 0, "CONVERT_MAX_WAIT_TIME must be positive")
	p.check(c.Convert.Timeout > 0, "CONVERT_TIMEOUT must be positive")

	if c.Sink.Enabled() {
		p.check(oneOf(c.Sink.Driver, sinkDrivers...),
			"SINK_DRIVER (%q) must be one of: %s", c.Sink.Driver, strings.Join(sinkDrivers, ", "))
		p.check(c.Sink.DSN != "", "SINK_DSN is required when SINK_DRIVER is set")
	}

	p.check(!c.Security.RequireAPIKey || len(c.Security.APIKeys) > 0,
		"REQUIRE_API_KEY is true but API_KEYS is empty")

	p.check(oneOf(c.Logging.Level, "debug", "info", "warn", "error"),
		"LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	p.check(oneOf(c.Logging.Format, "text", "json"),
		"LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)

	if len(p) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(p, "\n  - "))
	}
	return nil
}

// String describes the config for logging with the sink DSN and API keys
// masked.
func (c *Config) String() string {
	dsn := ""
	if c.Sink.DSN != "" {
		dsn = "[MASKED]"
	}
	return fmt.Sprintf("Config{Server: {Host: %q, Port: %d}, "+
		"Convert: {MaxFileSize: %d, MaxConcurrent: %d, Timeout: %s, WorkDir: %q, SchemaDir: %q}, "+
		"Sink: {Driver: %q, DSN: %s, TablePrefix: %q}, "+
		"Security: {RequireAPIKey: %v, APIKeys: %d configured}, "+
		"Logging: {Level: %q, Format: %q}}",
		c.Server.Host, c.Server.Port,
		c.Convert.MaxFileSize, c.Convert.MaxConcurrent, c.Convert.Timeout, c.Convert.WorkDir, c.Convert.SchemaDir,
		c.Sink.Driver, dsn, c.Sink.TablePrefix,
		c.Security.RequireAPIKey, len(c.Security.APIKeys),
		c.Logging.Level, c.Logging.Format)
}
