// Command textconv loads a flat file with a column-definition document,
// prints the audit log and optionally writes the rows out again in another
// format or exports them to a SQL database.
//
//	textconv -schema orders.yaml -in orders.csv
//	textconv -schema orders.yaml -in orders.csv -to fixed -out orders.dat
//	textconv -schema orders.yaml -in orders.csv -driver sqlite -dsn orders.db -table orders
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/textconv/internal/config"
	"github.com/JonMunkholm/textconv/internal/core"
	"github.com/JonMunkholm/textconv/internal/logging"
	"github.com/JonMunkholm/textconv/internal/schemafile"
	"github.com/JonMunkholm/textconv/internal/sink"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailed  = 1
	exitUsage   = 2
	exitAborted = 3
)

func main() {
	// .env is optional; flags win over it
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	schema string
	in     string
	format string
	header bool
	trim   bool
	trace  bool

	out        string
	to         string
	outSchema  string
	columnsOut bool
	overwrite  bool

	driver  string
	dsn     string
	table   string
	prefix  string
	replace bool
	copy    bool

	jsonOut bool
	set     map[string]bool
}

func parseFlags(args []string, stderr io.Writer, cfg *config.Config) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("textconv", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&o.schema, "schema", "", "column-definition file (.yaml, .yml or .json)")
	fs.StringVar(&o.in, "in", "", "input file")
	fs.StringVar(&o.format, "format", "", "input format, overriding the schema")
	fs.BoolVar(&o.header, "header", false, "skip the first line, overriding the schema")
	fs.BoolVar(&o.trim, "trim", false, "trim fields, overriding the schema")
	fs.BoolVar(&o.trace, "trace", false, "log every line and field")

	fs.StringVar(&o.out, "out", "", "write the loaded rows to this file")
	fs.StringVar(&o.to, "to", "", "output format (default: the output schema's format)")
	fs.StringVar(&o.outSchema, "out-schema", "", "column-definition file for the output (default: -schema)")
	fs.BoolVar(&o.columnsOut, "schema-columns-only", false, "write only the output schema's columns")
	fs.BoolVar(&o.overwrite, "overwrite", false, "replace an existing output file")

	fs.StringVar(&o.driver, "driver", cfg.Sink.Driver, "export driver: sqlite, postgres or mysql")
	fs.StringVar(&o.dsn, "dsn", cfg.Sink.DSN, "export data source name")
	fs.StringVar(&o.table, "table", "", "export table name (default: derived from the input file)")
	fs.StringVar(&o.prefix, "prefix", cfg.Sink.TablePrefix, "export table name prefix")
	fs.BoolVar(&o.replace, "replace", false, "drop the export table first")
	fs.BoolVar(&o.copy, "copy", false, "use the PostgreSQL COPY protocol")

	fs.BoolVar(&o.jsonOut, "json", false, "print the audit log as JSON")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.in == "" && fs.NArg() == 1 {
		o.in = fs.Arg(0)
	}
	if o.schema == "" || o.in == "" {
		fs.Usage()
		return nil, errors.New("-schema and -in are required")
	}

	o.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return exitUsage
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, stderr)

	o, err := parseFlags(args, stderr, cfg)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	def, err := schemafile.Load(o.schema)
	if err != nil {
		printError(stderr, "schema", err)
		return exitUsage
	}
	loadOpts, err := o.loadOptions(def)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	svc := core.NewService(core.OSFiles{
		MaxLineBytes: cfg.Convert.MaxLineBytes,
		MaxFileBytes: cfg.Convert.MaxFileSize,
	}, logger)

	res := svc.Load(ctx, o.in, loadOpts)
	report(stdout, "load", res.Log, o.jsonOut)
	fmt.Fprintf(stdout, "load %s: %d read, %d loaded, %d skipped in %s\n",
		status(res.OK), res.RowsRead, res.RowsLoaded, res.RowsSkipped, res.Duration.Round(time.Millisecond))
	if ctx.Err() != nil {
		return exitAborted
	}
	if !res.OK {
		return exitFailed
	}

	if o.out != "" {
		if code := o.save(ctx, stdout, stderr, svc, def, res.Table); code != exitOK {
			return code
		}
	}
	if o.driver != "" {
		if err := o.export(ctx, stdout, res.Table); err != nil {
			printError(stderr, "export", err)
			return exitFailed
		}
	}
	return exitOK
}

func (o *options) loadOptions(def *schemafile.Definition) (core.LoadOptions, error) {
	opts := def.LoadOptions()
	opts.TraceRows = o.trace
	if o.format != "" {
		f, err := core.ParseFormat(o.format)
		if err != nil {
			return opts, err
		}
		opts.Format = f
	}
	if o.set["header"] {
		opts.FirstRowIsHeader = o.header
	}
	if o.set["trim"] {
		opts.TrimValues = o.trim
	}
	return opts, nil
}

func (o *options) save(ctx context.Context, stdout, stderr io.Writer, svc *core.Service, def *schemafile.Definition, table *core.Table) int {
	outDef := def
	if o.outSchema != "" {
		d, err := schemafile.Load(o.outSchema)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return exitUsage
		}
		outDef = d
	}

	opts := outDef.SaveOptions(o.overwrite)
	opts.CreateDirectories = true
	if o.to != "" {
		f, err := core.ParseFormat(o.to)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return exitUsage
		}
		opts.Format = f
	}
	if o.set["schema-columns-only"] {
		opts.SchemaColumnsOnly = o.columnsOut
	}

	res := svc.Save(ctx, table, o.out, opts)
	report(stdout, "save", res.Log, o.jsonOut)
	fmt.Fprintf(stdout, "save %s: %d written to %s in %s\n",
		status(res.OK), res.RowsWritten, o.out, res.Duration.Round(time.Millisecond))
	if !res.OK {
		return exitFailed
	}
	return exitOK
}

func (o *options) export(ctx context.Context, stdout io.Writer, table *core.Table) error {
	opts := sink.ExportOptions{TableName: o.table, Prefix: o.prefix, DropExisting: o.replace}

	if o.copy {
		d, err := sink.ParseDialect(o.driver)
		if err != nil {
			return err
		}
		if d != sink.Postgres {
			return fmt.Errorf("-copy needs a postgres driver, got %s", d)
		}
		n, err := copyExport(ctx, o.dsn, table, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "copied %d rows\n", n)
		return nil
	}

	db, d, err := sink.Open(o.driver, o.dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := sink.Export(ctx, db, d, table, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported %d rows\n", n)
	return nil
}

// copyExport creates the target table and fills it with COPY inside one
// transaction.
func copyExport(ctx context.Context, dsn string, table *core.Table, opts sink.ExportOptions) (int64, error) {
	if dsn == "" {
		return 0, sink.ErrNotConfigured
	}
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return 0, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(ctx)

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	name := opts.TableName
	if name == "" {
		name = table.Name()
	}
	name = opts.Prefix + name

	if opts.DropExisting {
		if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+sink.Postgres.Quote(name)); err != nil {
			return 0, fmt.Errorf("drop %s: %w", name, err)
		}
	}
	if _, err := tx.Exec(ctx, sink.CreateTableSQL(sink.Postgres, name, table.Columns())); err != nil {
		return 0, fmt.Errorf("create %s: %w", name, err)
	}

	n, err := sink.CopyToPostgres(ctx, tx, table, opts)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// report prints the error entries of log, or the whole log as JSON.
func report(w io.Writer, op string, log *core.AuditLog, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{"op": op, "runId": log.RunID(), "entries": log.Entries()}); err != nil {
			slog.Error("encode audit log", "error", err)
		}
		return
	}
	for _, e := range log.Errors() {
		loc := ""
		if e.Location != core.NoLocation {
			loc = fmt.Sprintf(" #%d", e.Location)
		}
		if e.ColumnName != "" {
			loc += " " + e.ColumnName
		}
		fmt.Fprintf(w, "%s [%s%s] %s\n", op, e.Category, loc, e.Message)
	}
}

// printError writes the user message and code for err, followed by the
// error itself. Errors without a known code print as they are.
func printError(w io.Writer, op string, err error) {
	if !core.IsUserFacing(err) {
		fmt.Fprintf(w, "%s failed: %v\n", op, err)
		return
	}
	fmt.Fprintf(w, "%s failed: %s\n  %v\n", op, core.FormatUserError(err), err)
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
