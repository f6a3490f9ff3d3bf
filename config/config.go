// Package config builds the service configuration from an optional .env
// file, the process environment and the config/app.json overlay.
package config

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-viper/mapstructure/v2"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// LookupFunc resolves an environment key, os.LookupEnv in production
type LookupFunc func(key string) (string, bool)

type Config struct {
	Env       string    `koanf:"env"`
	Port      string    `koanf:"port"`
	Database  Database  `koanf:"database"`
	Auth      Auth      `koanf:"auth"`
	Email     Email     `koanf:"email"`
	RateLimit RateLimit `koanf:"rate_limit"`
}

type Database struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
	Debug  bool   `koanf:"debug"`
}

type Email struct {
	Driver       string `koanf:"driver"`
	From         string `koanf:"from"`
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	Username     string `koanf:"username"`
	Password     string `koanf:"password"`
	ResendAPIKey string `koanf:"resend_api_key"`
}

type RateLimit struct {
	Max    int           `koanf:"max"`
	Window time.Duration `koanf:"window"`
}

var defaults = map[string]any{
	"env":                    EnvDevelopment,
	"port":                   "3000",
	"database.driver":        "sqlite",
	"database.dsn":           "file:natours.db?cache=shared",
	"database.debug":         false,
	"auth.issuer":            "natours",
	"auth.token_expiration":  "90d",
	"auth.cookie_expiration": "90d",
	"auth.reset_token_ttl":   "10m",
	"auth.auth_scheme":       "Bearer",
	"auth.context_key":       "jwt",
	"email.from":             "Natours <hello@natours.io>",
	"email.port":             587,
	"rate_limit.max":         100,
	"rate_limit.window":      "1h",
}

type binding struct {
	env  string
	key  string
	days bool
}

// bindings maps environment variables onto config keys. For keys listed
// twice the first variable that is set wins.
var bindings = []binding{
	{env: "NODE_ENV", key: "env"},
	{env: "APP_ENV", key: "env"},
	{env: "PORT", key: "port"},
	{env: "DATABASE_DRIVER", key: "database.driver"},
	{env: "DATABASE_DSN", key: "database.dsn"},
	{env: "DATABASE_DEBUG", key: "database.debug"},
	{env: "JWT_SECRET", key: "auth.signing_key"},
	{env: "JWT_ISSUER", key: "auth.issuer"},
	{env: "JWT_EXPIRES_IN", key: "auth.token_expiration"},
	{env: "JWT_COOKIE_EXPIRES_IN", key: "auth.cookie_expiration", days: true},
	{env: "PASSWORD_RESET_EXPIRES_IN", key: "auth.reset_token_ttl"},
	{env: "BASE_URL", key: "auth.base_url"},
	{env: "JWT_TOKEN_LOOKUP", key: "auth.token_lookup"},
	{env: "JWT_AUTH_SCHEME", key: "auth.auth_scheme"},
	{env: "JWT_COOKIE_NAME", key: "auth.context_key"},
	{env: "EMAIL_DRIVER", key: "email.driver"},
	{env: "EMAIL_FROM", key: "email.from"},
	{env: "EMAIL_HOST", key: "email.host"},
	{env: "EMAIL_PORT", key: "email.port"},
	{env: "EMAIL_USERNAME", key: "email.username"},
	{env: "EMAIL_PASSWORD", key: "email.password"},
	{env: "RESEND_API_KEY", key: "email.resend_api_key"},
	{env: "RATE_LIMIT_MAX", key: "rate_limit.max"},
	{env: "RATE_LIMIT_WINDOW", key: "rate_limit.window"},
}

// Load reads the given env files, defaulting to ".env", binds the process
// environment and runs the result through the go-config container, which
// applies the config/app.json overlay when present. Values already present
// in the environment win over the env files. Missing env files are ignored.
func Load(ctx context.Context, logger glog.Logger, files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrap(err, errors.CategoryValidation, "failed to read env file").
				WithMetadata(map[string]any{"file": file})
		}
	}

	cfg, err := bind(os.LookupEnv)
	if err != nil {
		return nil, err
	}

	container := gconfig.New(cfg).WithLogger(logger)
	if err := container.Load(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "failed to load configuration")
	}

	cfg = container.Raw()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromEnv builds and validates a Config using lookup only
func FromEnv(lookup LookupFunc) (*Config, error) {
	cfg, err := bind(lookup)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func bind(lookup LookupFunc) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load config defaults")
	}

	if err := k.Load(confmap.Provider(fromEnv(lookup), "."), nil); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "failed to load environment")
	}

	cfg := &Config{}
	err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.DecodeHookFuncType(durationHook),
			WeaklyTypedInput: true,
			Result:           cfg,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid configuration value")
	}

	cfg.normalize()
	return cfg, nil
}

func fromEnv(lookup LookupFunc) map[string]any {
	out := map[string]any{}
	for _, b := range bindings {
		if _, seen := out[b.key]; seen {
			continue
		}

		v, ok := lookup(b.env)
		if v = strings.TrimSpace(v); !ok || v == "" {
			continue
		}

		if b.days && isDigits(v) {
			v += "d"
		}
		out[b.key] = v
	}
	return out
}

func isDigits(v string) bool {
	return strings.IndexFunc(v, func(r rune) bool { return !unicode.IsDigit(r) }) == -1
}

var durationType = reflect.TypeOf(time.Duration(0))

func durationHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != durationType {
		return data, nil
	}
	return ParseDuration(data.(string))
}

// normalize fills the values derived from other settings
func (c *Config) normalize() {
	c.Env = strings.ToLower(c.Env)
	c.Database.Driver = strings.ToLower(c.Database.Driver)
	c.Email.Driver = strings.ToLower(c.Email.Driver)

	if c.Email.Driver == "" {
		c.Email.Driver = defaultEmailDriver(c.IsProduction())
	}

	if c.Auth.BaseURL == "" {
		c.Auth.BaseURL = "http://localhost:" + c.Port
	}

	c.Auth.SecureCookies = c.IsProduction()
	c.Auth.TokenLookup = tokenLookup(c.Auth.TokenLookup, c.Auth.ContextKey)
}

func defaultEmailDriver(production bool) string {
	if production {
		return "resend"
	}
	return "log"
}

// tokenLookup points every cookie source at the cookie the server sets
func tokenLookup(lookup, cookie string) string {
	if strings.TrimSpace(lookup) == "" {
		return "header:Authorization,cookie:" + cookie
	}

	parts := strings.Split(lookup, ",")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if source, _, _ := strings.Cut(part, ":"); source == "cookie" {
			part = "cookie:" + cookie
		}
		parts[i] = part
	}
	return strings.Join(parts, ",")
}

func (c *Config) Validate() error {
	if err := errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(c,
			validation.Field(&c.Env, validation.In(EnvDevelopment, EnvProduction)),
			validation.Field(&c.Port, validation.Required),
		)
	}, "invalid configuration"); err != nil {
		return err
	}

	if err := errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&c.Database,
			validation.Field(&c.Database.Driver, validation.Required, validation.In("sqlite", "postgres")),
			validation.Field(&c.Database.DSN, validation.Required),
		)
	}, "invalid database configuration"); err != nil {
		return err
	}

	if err := c.Auth.Validate(); err != nil {
		return err
	}

	if err := errors.ValidateWithOzzo(func() error {
		drivers := []any{"smtp", "resend", "log"}
		if c.IsProduction() {
			// the log driver prints reset links
			drivers = []any{"smtp", "resend"}
		}

		rules := []*validation.FieldRules{
			validation.Field(&c.Email.Driver, validation.In(drivers...)),
			validation.Field(&c.Email.From, validation.Required),
		}
		switch c.Email.Driver {
		case "smtp":
			rules = append(rules, validation.Field(&c.Email.Host, validation.Required.Error("EMAIL_HOST is required for smtp")))
		case "resend":
			rules = append(rules, validation.Field(&c.Email.ResendAPIKey, validation.Required.Error("RESEND_API_KEY is required for resend")))
		}
		return validation.ValidateStruct(&c.Email, rules...)
	}, "invalid email configuration"); err != nil {
		return err
	}

	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&c.RateLimit,
			validation.Field(&c.RateLimit.Max, validation.Min(1)),
			validation.Field(&c.RateLimit.Window, validation.Min(time.Second)),
		)
	}, "invalid rate limit configuration")
}

func (c *Config) IsProduction() bool { return c.Env == EnvProduction }

// ParseDuration accepts Go durations plus a day suffix, so "90d" and
// "2160h" are the same value.
func ParseDuration(v string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(v, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(v)
}
