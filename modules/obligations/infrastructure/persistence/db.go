package persistence

import (
	"context"
	"fmt"
	"strings"

	gerrors "github.com/go-faster/errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	pgxDriverName    = "pgx"
	sqliteDriverName = "sqlite"
)

// sqlite pragmas applied to every connection unless the DSN carries its own.
const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

func init() {
	sqlx.BindDriver(sqliteDriverName, sqlx.QUESTION)
}

// Open connects to the configured database and verifies the connection.
// driver is one of DriverPostgres or DriverSQLite.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch driver {
	case DriverPostgres:
		db, err = sqlx.Open(pgxDriverName, dsn)
	case DriverSQLite:
		db, err = sqlx.Open(sqliteDriverName, sqliteDSN(dsn))
		if err == nil {
			// A single connection keeps sqlite writers from tripping over SQLITE_BUSY.
			db.SetMaxOpenConns(1)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, gerrors.Wrap(err, "open database")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, gerrors.Wrap(err, "ping database")
	}
	return db, nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqlitePragmas
	}
	return dsn + "?" + sqlitePragmas
}

// dialectOf maps a sqlx driver name back to the schema dialect.
func dialectOf(db *sqlx.DB) (string, error) {
	switch db.DriverName() {
	case pgxDriverName, "postgres":
		return DriverPostgres, nil
	case sqliteDriverName, "sqlite3":
		return DriverSQLite, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", db.DriverName())
}
