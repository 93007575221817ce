package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	defaultSQLitePath = "data/yachay.db"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = eris.New("database: not found")

// Config selects the driver and data source
type Config struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// Connect opens the database and creates the schema
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}

	switch driver {
	case DriverSQLite:
		return connectSQLite(ctx, cfg.DSN)
	case DriverPostgres:
		db, err := sqlx.ConnectContext(ctx, DriverPostgres, cfg.DSN)
		if err != nil {
			return nil, eris.Wrap(err, "failed to connect to postgres")
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		if err := Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	default:
		return nil, eris.Errorf("unsupported database driver %q", driver)
	}
}

func connectSQLite(ctx context.Context, dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		dsn = defaultSQLitePath
	}
	// Create data directory if it doesn't exist
	if path := strings.SplitN(dsn, "?", 2)[0]; path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, eris.Wrap(err, "failed to create data directory")
		}
	}

	db, err := sqlx.ConnectContext(ctx, DriverSQLite, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "failed to connect to sqlite")
	}

	// SQLite doesn't support multiple writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "failed to enable foreign keys")
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func isPostgres(q sqlx.ExtContext) bool {
	return q.DriverName() == DriverPostgres
}
