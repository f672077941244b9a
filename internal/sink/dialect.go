// Package sink exports loaded tables into SQL databases.
//
// Export works through database/sql for every supported dialect. For
// PostgreSQL, CopyToPostgres uses the COPY protocol through pgx instead,
// which is much faster for large tables.
package sink

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/textconv/internal/core"
)

var (
	ErrUnknownDriver = errors.New("unknown sink driver")
	ErrNotConfigured = errors.New("sink not configured")
)

// Dialect is a supported SQL database.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// ParseDialect converts a driver name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "":
		return "", ErrNotConfigured
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
}

// DriverName returns the database/sql driver registered for d.
func (d Dialect) DriverName() string {
	switch d {
	case Postgres:
		return "pgx"
	default:
		return string(d)
	}
}

// Quote quotes an identifier.
func (d Dialect) Quote(ident string) string {
	if d == MySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// Placeholder returns the bind parameter for the n-th argument, 1-based.
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// ColumnType returns the SQL type used to store col.
func (d Dialect) ColumnType(col core.TableColumn) string {
	switch d {
	case Postgres:
		return postgresTypes[col.Type]
	case MySQL:
		if col.Type == core.TypeString && col.MaxLength > 0 {
			return fmt.Sprintf("VARCHAR(%d)", col.MaxLength)
		}
		return mysqlTypes[col.Type]
	default:
		return sqliteTypes[col.Type]
	}
}

// Decimals are TEXT in SQLite, whose NUMERIC affinity would round them
// through float64.
var sqliteTypes = map[core.DataType]string{
	core.TypeString:    "TEXT",
	core.TypeBoolean:   "INTEGER",
	core.TypeInt64:     "INTEGER",
	core.TypeDecimal:   "TEXT",
	core.TypeDateTime:  "TEXT",
	core.TypeTimeSpan:  "TEXT",
	core.TypeGuid:      "TEXT",
	core.TypeByteArray: "BLOB",
}

var postgresTypes = map[core.DataType]string{
	core.TypeString:    "TEXT",
	core.TypeBoolean:   "BOOLEAN",
	core.TypeInt64:     "BIGINT",
	core.TypeDecimal:   "NUMERIC",
	core.TypeDateTime:  "TIMESTAMPTZ",
	core.TypeTimeSpan:  "INTERVAL",
	core.TypeGuid:      "UUID",
	core.TypeByteArray: "BYTEA",
}

var mysqlTypes = map[core.DataType]string{
	core.TypeString:    "TEXT",
	core.TypeBoolean:   "BOOLEAN",
	core.TypeInt64:     "BIGINT",
	core.TypeDecimal:   "DECIMAL(65,20)",
	core.TypeDateTime:  "DATETIME(6)",
	core.TypeTimeSpan:  "VARCHAR(32)",
	core.TypeGuid:      "CHAR(36)",
	core.TypeByteArray: "LONGBLOB",
}

// arg converts v to a bind argument for d.
func (d Dialect) arg(v core.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Type() {
	case core.TypeTimeSpan:
		if d == Postgres {
			return fmt.Sprintf("%d microseconds", v.Duration().Microseconds())
		}
		return v.String()
	case core.TypeDateTime:
		if d == SQLite {
			return v.Time().UTC().Format(time.RFC3339Nano)
		}
		return v.Time()
	default:
		return v.Any()
	}
}

// Open opens a database for driver and dsn and verifies nothing beyond the
// driver name; callers should ping before use.
func Open(driver, dsn string) (*sql.DB, Dialect, error) {
	d, err := ParseDialect(driver)
	if err != nil {
		return nil, "", err
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, "", fmt.Errorf("%w: empty DSN for %s", ErrNotConfigured, d)
	}

	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", d, err)
	}

	if d == SQLite {
		// One writer only, and each connection to ":memory:" is its own database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(10 * time.Minute)
	}
	return db, d, nil
}
