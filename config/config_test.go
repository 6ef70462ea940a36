package config_test

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/spf13/afero"

	"blogapi/config"
)

func TestDefaults(t *testing.T) {
	c := qt.New(t)

	cfg, err := config.Load("")
	c.Assert(err, qt.IsNil)

	c.Assert(cfg.HTTP.Addr, qt.Equals, ":8000")
	c.Assert(cfg.HTTP.BasePath, qt.Equals, "")
	c.Assert(cfg.HTTP.ShutdownTimeout, qt.Equals, 10*time.Second)
	c.Assert(cfg.Storage.Driver, qt.Equals, "sqlite")
	c.Assert(cfg.Media.URLPrefix, qt.Equals, "/media/")
	c.Assert(cfg.Media.MaxUploadBytes, qt.Equals, int64(10<<20))
	c.Assert(cfg.Auth.AccessTTL, qt.Equals, 5*time.Minute)
	c.Assert(cfg.Auth.RefreshTTL, qt.Equals, 24*time.Hour)
	c.Assert(cfg.Log.Level, qt.Equals, "info")
}

func TestLoadFile(t *testing.T) {
	c := qt.New(t)

	fs := afero.NewMemMapFs()
	c.Assert(afero.WriteFile(fs, "/etc/blogapi.yaml", []byte(`
http:
  addr: ":9090"
  base_path: /api
storage:
  driver: postgres
  postgres:
    dsn: postgres://blog@localhost/blog
    max_conns: 3
auth:
  access_ttl: 1m
`), 0644), qt.IsNil)

	cfg, err := config.LoadFs(fs, "/etc/blogapi.yaml")
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.HTTP.Addr, qt.Equals, ":9090")
	c.Assert(cfg.HTTP.BasePath, qt.Equals, "/api")
	c.Assert(cfg.Storage.Driver, qt.Equals, "postgres")
	c.Assert(cfg.Storage.Postgres.DSN, qt.Equals, "postgres://blog@localhost/blog")
	c.Assert(cfg.Storage.Postgres.MaxConns, qt.Equals, int32(3))
	c.Assert(cfg.Auth.AccessTTL, qt.Equals, time.Minute)
	// Untouched keys keep their defaults.
	c.Assert(cfg.Auth.RefreshTTL, qt.Equals, 24*time.Hour)
}

func TestLoadMissingFile(t *testing.T) {
	c := qt.New(t)

	_, err := config.LoadFs(afero.NewMemMapFs(), "/nope.yaml")
	c.Assert(err, qt.ErrorMatches, "failed to read config /nope.yaml: .*")
}

func TestEnvironmentOverrides(t *testing.T) {
	c := qt.New(t)

	fs := afero.NewMemMapFs()
	c.Assert(afero.WriteFile(fs, "/c.yaml", []byte("http:\n  addr: \":9090\"\n"), 0644), qt.IsNil)

	t.Setenv("BLOGAPI_HTTP_ADDR", ":7070")
	t.Setenv("BLOGAPI_STORAGE_DRIVER", "badger")
	t.Setenv("BLOGAPI_AUTH_REFRESH_TTL", "2h")

	cfg, err := config.LoadFs(fs, "/c.yaml")
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.HTTP.Addr, qt.Equals, ":7070")
	c.Assert(cfg.Storage.Driver, qt.Equals, "badger")
	c.Assert(cfg.Auth.RefreshTTL, qt.Equals, 2*time.Hour)
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		cfg, err := config.Load("")
		if err != nil {
			t.Fatal(err)
		}
		cfg.Auth.SigningKey = "0123456789abcdef0123456789abcdef"
		cfg.Auth.PasswordHash = "$2a$10$abcdefghijklmnopqrstuv"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		err    string
	}{
		{name: "valid", mutate: func(*config.Config) {}},
		{name: "unknown driver", mutate: func(c *config.Config) { c.Storage.Driver = "mongo" }, err: `(?s).*unknown storage.driver "mongo".*`},
		{name: "postgres without dsn", mutate: func(c *config.Config) { c.Storage.Driver = "postgres" }, err: `(?s).*storage.postgres.dsn is required.*`},
		{name: "no signing key", mutate: func(c *config.Config) { c.Auth.SigningKey = "" }, err: `(?s).*auth.signing_key is required.*`},
		{name: "short signing key", mutate: func(c *config.Config) { c.Auth.SigningKey = "short" }, err: `(?s).*at least 32 bytes.*`},
		{name: "no password hash", mutate: func(c *config.Config) { c.Auth.PasswordHash = "" }, err: `(?s).*auth.password_hash is required.*`},
		{name: "bad log level", mutate: func(c *config.Config) { c.Log.Level = "loud" }, err: `(?s).*invalid log.level.*`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)

			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.err == "" {
				c.Assert(err, qt.IsNil)
				return
			}
			c.Assert(err, qt.ErrorMatches, tt.err)
		})
	}
}
