package database

import (
	"context"
	"embed"
	"net/url"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/eduva/eduva/core"
)

const (
	EnginePostgres = "postgres"
	EngineMySQL    = "mysql"
	EngineSQLite   = "sqlite3"
)

//go:embed migrations
var migrationsFS embed.FS

// DSN builds the driver data source name for conf.Database.
func DSN(conf *core.Config) (string, error) {
	dbc := conf.Database
	switch dbc.Engine {
	case EnginePostgres:
		sslMode := "require"
		if dbc.DisableTLS {
			sslMode = "disable"
		}
		q := make(url.Values)
		q.Set("sslmode", sslMode)
		q.Set("timezone", "utc")

		u := url.URL{
			Scheme:   dbc.Engine,
			User:     url.UserPassword(dbc.User, dbc.Password),
			Host:     dbc.Address(),
			Path:     dbc.Name,
			RawQuery: q.Encode(),
		}
		return u.String(), nil

	case EngineMySQL:
		mc := mysql.NewConfig()
		mc.User = dbc.User
		mc.Passwd = dbc.Password
		mc.Net = "tcp"
		mc.Addr = dbc.Address()
		mc.DBName = dbc.Name
		mc.ParseTime = true
		mc.Loc = time.UTC
		mc.ClientFoundRows = true // rows affected = rows matched
		if !dbc.DisableTLS {
			mc.TLSConfig = "true"
		}
		return mc.FormatDSN(), nil

	case EngineSQLite:
		q := make(url.Values)
		q.Set("_foreign_keys", "on")
		q.Set("_busy_timeout", "5000")
		q.Set("_txlock", "immediate") // writers serialize at BEGIN
		return "file:" + dbc.Path + "?" + q.Encode(), nil
	}
	return "", errors.Errorf("unsupported database engine %q", dbc.Engine)
}

// Open opens a bounded connection pool and waits for the database to answer.
func Open(conf *core.Config) (*sqlx.DB, error) {
	dsn, err := DSN(conf)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(conf.Database.Engine, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	maxOpen := conf.Database.MaxOpenConns
	if conf.Database.Engine == EngineSQLite && conf.Database.Path == ":memory:" {
		maxOpen = 1 // every connection would get its own empty database
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(conf.Database.MaxIdleConns)
	db.SetConnMaxLifetime(conf.Database.ConnMaxLifetime)

	if err = ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err = db.PingContext(ctx)
		cancel()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

// PrepareGoose points goose at the embedded migrations of db's engine and returns their directory.
func PrepareGoose(db *sqlx.DB) (string, error) {
	engine := db.DriverName()
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect(engine); err != nil {
		return "", errors.Wrap(err, "setting goose dialect")
	}
	return "migrations/" + engine, nil
}

func Migrate(db *sqlx.DB) error {
	dir, err := PrepareGoose(db)
	if err != nil {
		return err
	}
	if err = goose.Up(db.DB, dir); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}
