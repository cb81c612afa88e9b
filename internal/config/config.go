// Package config loads settings from defaults, an optional config file, a
// .env file and FENCE_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/marshallshelly/fenceorders/internal/auth"
	"github.com/marshallshelly/fenceorders/pkg/runtime"
)

// EnvPrefix prefixes every environment variable, e.g. FENCE_JWT_SECRET.
const EnvPrefix = "FENCE"

// Keys shared with the CLI flag bindings.
const (
	KeyHTTPAddr            = "http.addr"
	KeyHTTPReadTimeout     = "http.read_timeout"
	KeyHTTPWriteTimeout    = "http.write_timeout"
	KeyHTTPShutdownTimeout = "http.shutdown_timeout"
	KeyDatabaseURL         = "database.url"
	KeyDatabaseMaxConns    = "database.max_conns"
	KeyDatabaseMinConns    = "database.min_conns"
	KeyJWTSecret           = "jwt.secret"
	KeyJWTIssuer           = "jwt.issuer"
	KeyJWTAudience         = "jwt.audience"
	KeyJWTExpiration       = "jwt.expiration"
	KeyBcryptCost          = "auth.bcrypt_cost"
	KeyLogLevel            = "log.level"
	KeyLogFormat           = "log.format"
)

var (
	// ErrMissingDatabaseURL is returned when no connection string is set.
	ErrMissingDatabaseURL = errors.New("database.url is required (set FENCE_DATABASE_URL or DATABASE_URL)")
	// ErrWeakSecret is returned when the signing secret is shorter than
	// auth.MinSecretLength.
	ErrWeakSecret = fmt.Errorf("jwt.secret must be at least %d bytes", auth.MinSecretLength)
)

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// Config is the resolved application configuration.
type Config struct {
	HTTP     HTTPConfig
	Database runtime.Config
	JWT      auth.TokenConfig
	Log      LogConfig

	// BcryptCost is the work factor for new password hashes.
	BcryptCost int
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyHTTPAddr, ":8080")
	v.SetDefault(KeyHTTPReadTimeout, 15*time.Second)
	v.SetDefault(KeyHTTPWriteTimeout, 30*time.Second)
	v.SetDefault(KeyHTTPShutdownTimeout, 10*time.Second)
	v.SetDefault(KeyDatabaseMaxConns, 10)
	v.SetDefault(KeyDatabaseMinConns, 2)
	v.SetDefault(KeyJWTIssuer, "fenceorders")
	v.SetDefault(KeyJWTAudience, "fenceorders-api")
	v.SetDefault(KeyJWTExpiration, 60*time.Minute)
	v.SetDefault(KeyBcryptCost, 10)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
}

// Prepare wires defaults, the environment and configFile (if non-empty)
// into v. A missing .env file is not an error.
func Prepare(v *viper.Viper, configFile string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(KeyDatabaseURL, EnvPrefix+"_DATABASE_URL", "DATABASE_URL"); err != nil {
		return fmt.Errorf("failed to bind %s: %w", KeyDatabaseURL, err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}
	return nil
}

// FromViper resolves a Config from v without validating it.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            v.GetString(KeyHTTPAddr),
			ReadTimeout:     v.GetDuration(KeyHTTPReadTimeout),
			WriteTimeout:    v.GetDuration(KeyHTTPWriteTimeout),
			ShutdownTimeout: v.GetDuration(KeyHTTPShutdownTimeout),
		},
		Database: runtime.Config{
			URL:      v.GetString(KeyDatabaseURL),
			MaxConns: v.GetInt32(KeyDatabaseMaxConns),
			MinConns: v.GetInt32(KeyDatabaseMinConns),
		},
		JWT: auth.TokenConfig{
			Secret:     v.GetString(KeyJWTSecret),
			Issuer:     v.GetString(KeyJWTIssuer),
			Audience:   v.GetString(KeyJWTAudience),
			Expiration: v.GetDuration(KeyJWTExpiration),
		},
		Log: LogConfig{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
		},
		BcryptCost: v.GetInt(KeyBcryptCost),
	}
}

// Load is Prepare followed by FromViper on a fresh viper instance.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	if err := Prepare(v, configFile); err != nil {
		return nil, err
	}
	return FromViper(v), nil
}

// RequireDatabase reports whether a connection string is configured.
func (c *Config) RequireDatabase() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return ErrMissingDatabaseURL
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns (%d) exceeds database.max_conns (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	return nil
}

// RequireServer checks everything serve needs.
func (c *Config) RequireServer() error {
	if err := c.RequireDatabase(); err != nil {
		return err
	}
	if len(c.JWT.Secret) < auth.MinSecretLength {
		return ErrWeakSecret
	}
	if c.JWT.Expiration <= 0 {
		return fmt.Errorf("jwt.expiration must be positive, got %s", c.JWT.Expiration)
	}
	return nil
}
