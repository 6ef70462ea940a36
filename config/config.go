// Package config loads server settings from defaults, an optional config
// file and BLOGAPI_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. BLOGAPI_HTTP_ADDR.
const EnvPrefix = "BLOGAPI"

type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http"`
	Storage StorageConfig `mapstructure:"storage"`
	Media   MediaConfig   `mapstructure:"media"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Log     LogConfig     `mapstructure:"log"`
	Site    SiteConfig    `mapstructure:"site"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	BasePath        string        `mapstructure:"base_path"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StorageConfig struct {
	Driver   string         `mapstructure:"driver"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Badger   BadgerConfig   `mapstructure:"badger"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type BadgerConfig struct {
	Path string `mapstructure:"path"`
}

type MediaConfig struct {
	Root           string `mapstructure:"root"`
	URLPrefix      string `mapstructure:"url_prefix"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

type AuthConfig struct {
	Username     string        `mapstructure:"username"`
	PasswordHash string        `mapstructure:"password_hash"`
	SigningKey   string        `mapstructure:"signing_key"`
	AccessTTL    time.Duration `mapstructure:"access_ttl"`
	RefreshTTL   time.Duration `mapstructure:"refresh_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type SiteConfig struct {
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
	BaseURL     string `mapstructure:"base_url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8000")
	v.SetDefault("http.base_path", "")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite.path", "data/blog.db")
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.postgres.max_conns", 10)
	v.SetDefault("storage.badger.path", "data/badger")

	v.SetDefault("media.root", "data/media")
	v.SetDefault("media.url_prefix", "/media/")
	v.SetDefault("media.max_upload_bytes", 10<<20)

	v.SetDefault("auth.username", "admin")
	v.SetDefault("auth.password_hash", "")
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.access_ttl", 5*time.Minute)
	v.SetDefault("auth.refresh_ttl", 24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("site.title", "Blog")
	v.SetDefault("site.description", "")
	v.SetDefault("site.base_url", "http://localhost:8000")
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment are consulted.
func Load(path string) (*Config, error) {
	return LoadFs(afero.NewOsFs(), path)
}

// LoadFs is Load with the config file read from fs.
func LoadFs(fs afero.Fs, path string) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks settings needed to serve requests.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case "sqlite", "badger":
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			errs = append(errs, errors.New("storage.postgres.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}

	if c.Auth.SigningKey == "" {
		errs = append(errs, errors.New("auth.signing_key is required"))
	} else if len(c.Auth.SigningKey) < 32 {
		errs = append(errs, errors.New("auth.signing_key must be at least 32 bytes"))
	}
	if c.Auth.PasswordHash == "" {
		errs = append(errs, errors.New("auth.password_hash is required"))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("invalid log.level: %w", err))
	}
	if c.Media.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("media.max_upload_bytes must be positive"))
	}

	return errors.Join(errs...)
}
