package sink

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/textconv/internal/core"
)

// ExportOptions configures Export and CopyToPostgres.
type ExportOptions struct {
	// TableName overrides the table's own name.
	TableName string
	// Prefix is prepended to the target table name.
	Prefix string
	// DropExisting drops the target table before creating it.
	DropExisting bool
}

// targetName returns the SQL table name for t.
func (o ExportOptions) targetName(t *core.Table) (string, error) {
	name := o.TableName
	if name == "" {
		name = t.Name()
	}
	if name == "" {
		return "", fmt.Errorf("%w: table has no name", ErrNotConfigured)
	}
	return o.Prefix + name, nil
}

// Export creates the target table if needed and inserts every row of t in
// one transaction. Either all rows are inserted or none are.
func Export(ctx context.Context, db *sql.DB, d Dialect, t *core.Table, opts ExportOptions) (int64, error) {
	if t == nil || len(t.Columns()) == 0 {
		return 0, fmt.Errorf("export: table has no columns")
	}
	name, err := opts.targetName(t)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	cols := t.Columns()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if opts.DropExisting {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+d.Quote(name)); err != nil {
			return 0, fmt.Errorf("drop %s: %w", name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, CreateTableSQL(d, name, cols)); err != nil {
		return 0, fmt.Errorf("create %s: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx, InsertSQL(d, name, cols))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	args := make([]any, len(cols))
	for i, row := range t.Rows() {
		for j, v := range row {
			args[j] = d.arg(v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("insert row %d: %w", i+1, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	slog.Info("table exported",
		"dialect", string(d),
		"table", name,
		"rows", inserted,
		"duration", time.Since(start),
	)
	return inserted, nil
}

// CreateTableSQL returns the CREATE TABLE IF NOT EXISTS statement for cols.
func CreateTableSQL(d Dialect, name string, cols []core.TableColumn) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		def := d.Quote(c.Name) + " " + d.ColumnType(c)
		if !c.Nullable {
			def += " NOT NULL"
		}
		defs[i] = def
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.Quote(name), strings.Join(defs, ", "))
}

// InsertSQL returns the parameterized INSERT statement for cols.
func InsertSQL(d Dialect, name string, cols []core.TableColumn) string {
	names := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, c := range cols {
		names[i] = d.Quote(c.Name)
		params[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.Quote(name), strings.Join(names, ", "), strings.Join(params, ", "))
}

// Copier is the COPY side of a pgx connection; *pgx.Conn, *pgxpool.Pool and
// pgx.Tx all implement it.
type Copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// CopyToPostgres streams every row of t into an existing PostgreSQL table
// with the COPY protocol.
func CopyToPostgres(ctx context.Context, c Copier, t *core.Table, opts ExportOptions) (int64, error) {
	if t == nil || len(t.Columns()) == 0 {
		return 0, fmt.Errorf("copy: table has no columns")
	}
	name, err := opts.targetName(t)
	if err != nil {
		return 0, err
	}

	rows := t.Rows()
	src := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		values := make([]any, len(rows[i]))
		for j, v := range rows[i] {
			values[j] = copyValue(v)
		}
		return values, nil
	})

	n, err := c.CopyFrom(ctx, pgx.Identifier{name}, t.ColumnNames(), src)
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", name, err)
	}
	return n, nil
}

// copyValue converts v to a value pgx can encode in binary COPY format.
func copyValue(v core.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Type() {
	case core.TypeDecimal:
		return v.Decimal()
	case core.TypeTimeSpan:
		return pgtype.Interval{Microseconds: v.Duration().Microseconds(), Valid: true}
	case core.TypeGuid:
		return pgtype.UUID{Bytes: v.Guid(), Valid: true}
	default:
		return v.Any()
	}
}
