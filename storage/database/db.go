package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/shule/core"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// dsn builds the connection URL for dbName. asAdmin switches to the admin
// credentials when they are configured.
func dsn(dbName string, asAdmin bool, conf *core.Config) string {
	creds := url.UserPassword(conf.Database.User, conf.Database.Password)
	if asAdmin && conf.Database.AdminUser != "" {
		creds = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	q := make(url.Values)
	q.Set("timezone", "utc")
	if conf.Database.DisableTLS {
		q.Set("sslmode", "disable")
	} else {
		q.Set("sslmode", "require")
	}

	u := url.URL{
		Scheme:   conf.Database.Engine,
		User:     creds,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func Open(conf *core.Config) (*sqlx.DB, error) {
	return sqlx.Open(conf.Database.Engine, dsn(conf.Database.Name, false, conf))
}

// ping waits for the database to become reachable, backing off 100ms more
// between each attempt.
func ping(db *sqlx.DB) error {
	var err error
	for attempts := 1; attempts <= 30; attempts++ {
		if err = db.Ping(); err == nil {
			return nil
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}
	return errors.Wrap(err, "DB ping timeout")
}

// catalogHas reports whether the given catalog query matches a row.
// The query interpolates an identifier, not user input.
func catalogHas(db *sqlx.DB, query string) (bool, error) {
	var exists bool
	rows, err := db.Query(query)
	if err != nil {
		return false, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err = rows.Scan(&exists); err != nil {
			return false, err
		}
	}
	return exists, rows.Err()
}

// CreateIfNotExist provisions the application role and database, connecting
// with admin credentials for the role step.
func CreateIfNotExist(conf *core.Config) error {
	admin, err := sqlx.Open(conf.Database.Engine, dsn("postgres", true, conf))
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = admin.Close() }()

	if err = ping(admin); err != nil {
		return errors.Wrap(err, "pinging database")
	}

	if conf.Database.User != "" {
		exists, err := catalogHas(admin, fmt.Sprintf("SELECT true FROM pg_roles WHERE rolname='%s'", conf.Database.User))
		if err != nil {
			return errors.Wrap(err, "checking app user")
		}
		if !exists {
			q := fmt.Sprintf("CREATE USER %s CREATEDB ENCRYPTED PASSWORD '%s'", conf.Database.User, conf.Database.Password)
			if _, err = admin.Exec(q); err != nil {
				return errors.Wrap(err, "creating app user")
			}
		}
	}

	// the app user owns the database
	db, err := sqlx.Open(conf.Database.Engine, dsn("postgres", false, conf))
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	exists, err := catalogHas(db, fmt.Sprintf("SELECT true FROM pg_database WHERE datname='%s'", conf.Database.Name))
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if !exists {
		if _, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

func Migrate(db *sqlx.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "setting goose dialect")
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}

// RunMigrationCommand runs an arbitrary goose command ("up", "down-to",
// "status", ...) against the embedded migrations.
func RunMigrationCommand(db *sqlx.DB, command string, args ...string) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "setting goose dialect")
	}
	return goose.Run(command, db.DB, "migrations", args...)
}

// Transactor runs functions within a database transaction, rolling back all
// writes when the function errors.
type Transactor struct {
	db *sqlx.DB
}

var _ core.Transactor = (*Transactor)(nil)

func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db}
}

func (t *Transactor) WithinTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return errors.Wrapf(err, "rolling back transaction: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}
