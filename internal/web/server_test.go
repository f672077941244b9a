package web

import (
	"bytes"
	"database/sql"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/textconv/internal/config"
	"github.com/JonMunkholm/textconv/internal/core"
	"github.com/JonMunkholm/textconv/internal/schemafile"
	"github.com/JonMunkholm/textconv/internal/sink"
)

const widgetsSchema = `
name: widgets
format: comma
columns:
  - name: Id
    type: int64
  - name: Name
    type: string
    size: 10
`

const widgetsFile = "1,Widget\n2,Gadget\n"

// ============================================================================
// Helpers
// ============================================================================

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Convert: config.ConvertConfig{
			MaxFileSize:  1 << 20,
			MaxLineBytes: 1 << 16,
			Timeout:      time.Minute,
			WorkDir:      t.TempDir(),
		},
	}
}

func testDeps(t *testing.T, cfg *config.Config) Deps {
	t.Helper()
	reg := schemafile.NewRegistry()
	def, err := schemafile.Parse([]byte(widgetsSchema), ".yaml")
	require.NoError(t, err)
	require.NoError(t, reg.Register(def))

	files := core.OSFiles{MaxLineBytes: cfg.Convert.MaxLineBytes, MaxFileBytes: cfg.Convert.MaxFileSize}
	return Deps{
		Service: core.NewService(files, slog.New(slog.DiscardHandler)),
		Schemas: reg,
		Limiter: core.NewConvertLimiter(2, time.Second),
	}
}

type upload struct {
	field, filename, content string
}

// formRequest builds a multipart POST with the given fields and files.
func formRequest(t *testing.T, path string, fields map[string]string, files ...upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = io.WriteString(fw, f.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func widgetsUpload(content string) upload {
	return upload{field: "file", filename: "widgets.csv", content: content}
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	resp := decode[ErrorResponse](t, rec)
	require.Equal(t, code, resp.Code)
	require.NotEmpty(t, resp.Error)
	require.NotEmpty(t, resp.RequestID)
}

// ============================================================================
// Health and schemas
// ============================================================================

func TestHealth(t *testing.T) {
	cfg := testConfig(t)
	s := NewServer(cfg, testDeps(t, cfg))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[HealthResponse](t, rec)
	require.Equal(t, "ok", resp.Status)
	require.Equal(t, 1, resp.Schemas)
	require.Empty(t, resp.Sink)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestSchemas(t *testing.T) {
	cfg := testConfig(t)
	s := NewServer(cfg, testDeps(t, cfg))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/schemas", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	docs := decode[[]schemafile.Document](t, rec)
	require.Len(t, docs, 1)
	require.Equal(t, "widgets", docs[0].Name)
	require.Len(t, docs[0].Columns, 2)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/schemas/widgets", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "comma", decode[schemafile.Document](t, rec).Format)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/schemas/nope", nil))
	requireError(t, rec, http.StatusNotFound, "SCH004")
}

// ============================================================================
// Load
// ============================================================================

func TestLoad_RegisteredSchema(t *testing.T) {
	cfg := testConfig(t)
	s := NewServer(cfg, testDeps(t, cfg))

	req := formRequest(t, "/api/load", map[string]string{"schemaName": "widgets"}, widgetsUpload(widgetsFile))
	rec := serve(s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[LoadResponse](t, rec)
	require.True(t, resp.OK)
	require.NotEmpty(t, resp.RunID)
	require.Equal(t, "widgetscsv", resp.Table)
	require.Equal(t, 2, resp.RowsLoaded)
	require.Len(t, resp.Rows, 2)
	require.Equal(t, "Widget", resp.Rows[0][1])
	require.Equal(t, "Gadget", resp.Rows[1][1])
}

func TestLoad_UnsetTimeoutUsesDefault(t *testing.T) {
	cfg := testConfig(t)
	cfg.Convert.Timeout = 0
	s := NewServer(cfg, testDeps(t, cfg))

	require.Equal(t, core.ConvertTimeout, s.convertTimeout())

	req := formRequest(t, "/api/load", map[string]string{"schemaName": "widgets"}, widgetsUpload(widgetsFile))
	rec := serve(s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 2, decode[LoadResponse](t, rec).RowsLoaded)
}

func TestLoad_InlineSchemaWithBadRow(t *testing.T) {
	cfg := testConfig(t)
	s := NewServer(cfg, testDeps(t, cfg))

	fields := map[string]string{"schema": widgetsSchema}
	rec := serve(s, formRequest(t, "/api/load", fields, widgetsUpload("1,Widget\nx,Broken\n")))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[LoadResponse](t, rec)
	require.False(t, resp.OK)
	require.Equal(t, 2, resp.RowsRead)
	require.Equal(t, 1, resp.RowsLoaded)
	require.Equal(t, 1, resp.RowsSkipped)
	require.Len(t, resp.Rows, 1)
}

func TestLoad_JSONSchemaFileAndHeaderOverride(t *testing.T) {
	cfg := testConfig(t)
	s := NewServer(cfg, testDeps(t, cfg))

	schema := upload{
		field:    "schemaFile",
		filename: "items.json",
		content:  `{"name":"items","format":"semicolon","columns":[{"name":"Id","type":"int64"},{"name":"Name","type":"string"}]}`,
	}
	fields := map[string]string{"header": "true", "trim": "true"}
	rec := serve(s, formRequest(t, "/api/load", fields, widgetsUpload("Id;Name\n 7 ; Bolt \n"), schema))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[LoadResponse](t, rec)
	require.Equal(t, 1, resp.RowsLoaded)
	require.Equal(t, "Bolt", resp.Rows[0][1])
}

func TestLoad_RequestErrors(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		files  []upload
		status int
		code   string
	}{
		{"no file", map[string]string{"schemaName": "widgets"}, nil, http.StatusBadRequest, "FILE002"},
		{"empty file", map[string]string{"schemaName": "widgets"}, []upload{widgetsUpload("")}, http.StatusBadRequest, "FILE003"},
		{"unknown schema", map[string]string{"schemaName": "nope"}, []upload{widgetsUpload(widgetsFile)}, http.StatusNotFound, "SCH004"},
		{"no schema", nil, []upload{widgetsUpload(widgetsFile)}, http.StatusNotFound, "SCH004"},
		{"invalid schema", map[string]string{"schema": "columns: []"}, []upload{widgetsUpload(widgetsFile)}, http.StatusBadRequest, "SCH005"},
		{"bad format", map[string]string{"schemaName": "widgets", "format": "pipes"}, []upload{widgetsUpload(widgetsFile)}, http.StatusBadRequest, "SCH002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			s := NewServer(cfg, testDeps(t, cfg))

			rec := serve(s, formRequest(t, "/api/load", tt.fields, tt.files...))

			requireError(t, rec, tt.status, tt.code)
		})
	}
}

func TestLoad_NotMultipart(t *testing.T) {
	cfg := testConfig(t)
	s := NewServer(cfg, testDeps(t, cfg))

	req := httptest.NewRequest(http.MethodPost, "/api/load", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")

	requireError(t, serve(s, req), http.StatusBadRequest, "FILE002")
}

func TestLoad_FileTooLarge(t *testing.T) {
	cfg := testConfig(t)
	cfg.Convert.MaxFileSize = 8
	s := NewServer(cfg, testDeps(t, cfg))

	rec := serve(s, formRequest(t, "/api/load", map[string]string{"schemaName": "widgets"}, widgetsUpload(widgetsFile)))

	requireError(t, rec, http.StatusRequestEntityTooLarge, "FILE001")
}

func TestLoad_LimiterBusy(t *testing.T) {
	cfg := testConfig(t)
	deps := testDeps(t, cfg)
	deps.Limiter = core.NewConvertLimiter(1, 20*time.Millisecond)
	require.True(t, deps.Limiter.TryAcquire())
	defer deps.Limiter.Release()
	s := NewServer(cfg, deps)

	rec := serve(s, formRequest(t, "/api/load", map[string]string{"schemaName": "widgets"}, widgetsUpload(widgetsFile)))

	requireError(t, rec, http.StatusServiceUnavailable, "UPL001")
}

func TestLoad_ReleasesSlotAndWorkDir(t *testing.T) {
	cfg := testConfig(t)
	deps := testDeps(t, cfg)
	s := NewServer(cfg, deps)

	serve(s, formRequest(t, "/api/load", map[string]string{"schemaName": "widgets"}, widgetsUpload(widgetsFile)))
	serve(s, formRequest(t, "/api/load", map[string]string{"schemaName": "nope"}, widgetsUpload(widgetsFile)))

	require.Equal(t, 0, deps.Limiter.ActiveCount())
	entries, err := os.ReadDir(cfg.Convert.WorkDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

// ============================================================================
// Convert
// ============================================================================

func TestConvert_CommaToTab(t *testing.T) {
	cfg := testConfig(t)
	s := NewServer(cfg, testDeps(t, cfg))

	fields := map[string]string{"schemaName": "widgets", "to": "tab"}
	rec := serve(s, formRequest(t, "/api/convert", fields, widgetsUpload(widgetsFile)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[ConvertResponse](t, rec)
	require.True(t, resp.Load.OK)
	require.NotNil(t, resp.Save)
	require.True(t, resp.Save.OK)
	require.Equal(t, 2, resp.RowsWritten)
	require.Equal(t, "1\tWidget\n2\tGadget\n", resp.Output)
}

func TestConvert_OutputSchema(t *testing.T) {
	cfg := testConfig(t)
	s := NewServer(cfg, testDeps(t, cfg))

	fields := map[string]string{
		"schemaName":        "widgets",
		"toSchema":          "name: out\nformat: semicolon\ncolumns:\n  - {name: Name, type: string}\n  - {name: Id, type: int64}\n",
		"schemaColumnsOnly": "true",
	}
	rec := serve(s, formRequest(t, "/api/convert", fields, widgetsUpload(widgetsFile)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "Widget;1\nGadget;2\n", decode[ConvertResponse](t, rec).Output)
}

func TestConvert_Download(t *testing.T) {
	cfg := testConfig(t)
	s := NewServer(cfg, testDeps(t, cfg))

	fields := map[string]string{"schemaName": "widgets", "to": "tab", "download": "true"}
	rec := serve(s, formRequest(t, "/api/convert", fields, widgetsUpload(widgetsFile)))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1\tWidget\n2\tGadget\n", rec.Body.String())
	require.Contains(t, rec.Header().Get("Content-Disposition"), `filename="widgetscsv.tsv"`)
	require.NotEmpty(t, rec.Header().Get("X-Load-Run-Id"))
	require.NotEmpty(t, rec.Header().Get("X-Save-Run-Id"))
}

func TestConvert_FailedLoadSkipsSave(t *testing.T) {
	cfg := testConfig(t)
	s := NewServer(cfg, testDeps(t, cfg))

	fields := map[string]string{"schemaName": "widgets", "to": "tab"}
	rec := serve(s, formRequest(t, "/api/convert", fields, widgetsUpload("1,Widget\nx,Broken\n")))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[ConvertResponse](t, rec)
	require.False(t, resp.Load.OK)
	require.Nil(t, resp.Save)
	require.Empty(t, resp.Output)
}

func TestConvert_FailedSave(t *testing.T) {
	cfg := testConfig(t)
	s := NewServer(cfg, testDeps(t, cfg))

	fields := map[string]string{
		"schemaName": "widgets",
		"toSchema":   "format: comma\ncolumns:\n  - {name: Id, type: int64}\n  - {name: Name, type: string, size: 3}\n",
	}
	rec := serve(s, formRequest(t, "/api/convert", fields, widgetsUpload(widgetsFile)))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	resp := decode[ConvertResponse](t, rec)
	require.True(t, resp.Load.OK)
	require.NotNil(t, resp.Save)
	require.False(t, resp.Save.OK)
	require.Equal(t, 0, resp.RowsWritten)
}

// ============================================================================
// Export
// ============================================================================

func TestExport_NoSink(t *testing.T) {
	cfg := testConfig(t)
	s := NewServer(cfg, testDeps(t, cfg))

	rec := serve(s, formRequest(t, "/api/export", map[string]string{"schemaName": "widgets"}, widgetsUpload(widgetsFile)))

	requireError(t, rec, http.StatusServiceUnavailable, "DB003")
}

func TestExport_SQLite(t *testing.T) {
	db, dialect, err := sink.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := testConfig(t)
	cfg.Sink.TablePrefix = "tc_"
	deps := testDeps(t, cfg)
	deps.SinkDB = db
	deps.Dialect = dialect
	s := NewServer(cfg, deps)

	fields := map[string]string{"schemaName": "widgets", "table": "items"}
	rec := serve(s, formRequest(t, "/api/export", fields, widgetsUpload(widgetsFile)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[ExportResponse](t, rec)
	require.Equal(t, "tc_items", resp.Table)
	require.EqualValues(t, 2, resp.RowsExported)
	require.Equal(t, 2, countRows(t, db, "tc_items"))

	// replace drops the table first, so the count stays at two
	fields["replace"] = "true"
	rec = serve(s, formRequest(t, "/api/export", fields, widgetsUpload(widgetsFile)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 2, countRows(t, db, "tc_items"))

	health := decode[HealthResponse](t, serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)))
	require.Equal(t, "sqlite", health.Sink)
	require.Equal(t, "ok", health.Status)
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "`+table+`"`).Scan(&n))
	return n
}

// ============================================================================
// Auth
// ============================================================================

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	s := NewServer(cfg, testDeps(t, cfg))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/schemas", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/schemas", nil)
	req.Header.Set("X-API-Key", "secret")
	require.Equal(t, http.StatusOK, serve(s, req).Code)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

// ============================================================================
// Helpers under test
// ============================================================================

func TestOutputName(t *testing.T) {
	tests := []struct {
		table  string
		format core.Format
		want   string
	}{
		{"orders", core.CommaDelimited, "orders.csv"},
		{"orders", core.QuoteCommaDelimited, "orders.csv"},
		{"orders", core.TabDelimited, "orders.tsv"},
		{"orders", core.FixedLength, "orders.dat"},
		{"orders", core.SemicolonDelimited, "orders.txt"},
		{"", core.CommaDelimited, "output.csv"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, outputName(tt.table, tt.format))
	}
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusRequestEntityTooLarge, statusFor(core.ErrFileTooLarge))
	require.Equal(t, http.StatusBadRequest, statusFor(errNoFile))
	require.Equal(t, http.StatusNotFound, statusFor(schemafile.ErrSchemaNotFound))
	require.Equal(t, http.StatusServiceUnavailable, statusFor(core.ErrTooManyConversions))
	require.Equal(t, http.StatusServiceUnavailable, statusFor(sink.ErrNotConfigured))
	require.Equal(t, http.StatusInternalServerError, statusFor(io.ErrUnexpectedEOF))
}
