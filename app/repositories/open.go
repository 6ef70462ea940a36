package repositories

import (
	"context"
	"fmt"
)

// Supported storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
)

// Options selects and configures a post store backend.
type Options struct {
	Driver           string
	SQLitePath       string
	PostgresDSN      string
	PostgresMaxConns int32
	BadgerPath       string
}

// Open builds the repository named by opts.Driver. Schema migrations run
// as part of opening the relational backends.
func Open(ctx context.Context, opts Options) (PostRepository, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		return OpenSQLitePostRepository(ctx, opts.SQLitePath)
	case DriverPostgres:
		return OpenPostgresPostRepository(ctx, opts.PostgresDSN, opts.PostgresMaxConns)
	case DriverBadger:
		return OpenBadgerPostRepository(opts.BadgerPath)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
