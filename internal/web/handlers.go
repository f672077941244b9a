package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/textconv/internal/core"
	"github.com/JonMunkholm/textconv/internal/logging"
	"github.com/JonMunkholm/textconv/internal/schemafile"
	"github.com/JonMunkholm/textconv/internal/sink"
)

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status      string             `json:"status"`
	Schemas     int                `json:"schemas"`
	Sink        string             `json:"sink,omitempty"`
	Conversions core.LimiterStatus `json:"conversions"`
}

// RunSummary describes one Load or Save run.
type RunSummary struct {
	RunID      string            `json:"runId"`
	OK         bool              `json:"ok"`
	DurationMS int64             `json:"durationMs"`
	Log        []core.AuditEntry `json:"log"`
}

// LoadResponse is returned by POST /api/load.
type LoadResponse struct {
	RunSummary
	Table       string             `json:"table,omitempty"`
	Columns     []core.TableColumn `json:"columns,omitempty"`
	Rows        [][]any            `json:"rows,omitempty"`
	RowsRead    int                `json:"rowsRead"`
	RowsLoaded  int                `json:"rowsLoaded"`
	RowsSkipped int                `json:"rowsSkipped"`
}

// ConvertResponse is returned by POST /api/convert.
type ConvertResponse struct {
	Load        LoadResponse `json:"load"`
	Save        *RunSummary  `json:"save,omitempty"`
	RowsWritten int          `json:"rowsWritten"`
	Output      string       `json:"output,omitempty"`
}

// ExportResponse is returned by POST /api/export.
type ExportResponse struct {
	Load         LoadResponse `json:"load"`
	Table        string       `json:"table,omitempty"`
	RowsExported int64        `json:"rowsExported"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:      "ok",
		Schemas:     s.deps.Schemas.Len(),
		Conversions: s.deps.Limiter.Status(),
	}
	if s.deps.SinkDB != nil {
		resp.Sink = string(s.deps.Dialect)
		if err := s.deps.SinkDB.PingContext(r.Context()); err != nil {
			resp.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	defs := s.deps.Schemas.All()
	docs := make([]schemafile.Document, len(defs))
	for i, def := range defs {
		docs[i] = def.Document()
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	def, err := s.deps.Schemas.Get(chi.URLParam(r, "name"))
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, def.Document())
}

// loadRequest is the shared first half of load, convert and export: take a
// conversion slot, spool the upload and load it.
type loadRequest struct {
	ctx     context.Context
	cancel  context.CancelFunc
	dir     string
	def     *schemafile.Definition
	result  *core.LoadResult
	release func()
}

func (lr *loadRequest) close() {
	lr.cancel()
	os.RemoveAll(lr.dir)
	lr.release()
}

// startLoad runs the load for a request. On error it has already responded
// and released everything.
func (s *Server) startLoad(w http.ResponseWriter, r *http.Request) (*loadRequest, bool) {
	if err := s.deps.Limiter.Acquire(r.Context()); err != nil {
		s.respondError(w, r, err, 0)
		return nil, false
	}
	release := s.deps.Limiter.Release

	fail := func(err error) (*loadRequest, bool) {
		release()
		s.respondError(w, r, err, 0)
		return nil, false
	}

	if err := s.parseForm(w, r); err != nil {
		return fail(err)
	}
	def, err := s.definition(r, "")
	if err != nil {
		return fail(err)
	}
	opts, err := loadOptions(r, def)
	if err != nil {
		return fail(err)
	}

	dir, err := os.MkdirTemp(s.workDir(), "textconv-")
	if err != nil {
		return fail(fmt.Errorf("create work dir: %w", err))
	}
	path, err := s.spoolUpload(r, "file", dir)
	if err != nil {
		os.RemoveAll(dir)
		return fail(err)
	}

	ctx := core.WithClient(r.Context(), r.RemoteAddr, r.UserAgent())
	ctx, cancel := context.WithTimeout(ctx, s.convertTimeout())
	lr := &loadRequest{ctx: ctx, cancel: cancel, dir: dir, def: def, release: release}

	logging.WithFields(r.Context(), "schema", def.Name).Info("load started",
		"file", filepath.Base(path),
		"format", opts.Format.String(),
	)
	lr.result = s.deps.Service.Load(ctx, path, opts)
	return lr, true
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	lr, ok := s.startLoad(w, r)
	if !ok {
		return
	}
	defer lr.close()

	writeJSON(w, loadStatus(lr.result), toLoadResponse(lr.result, true))
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	lr, ok := s.startLoad(w, r)
	if !ok {
		return
	}
	defer lr.close()

	resp := ConvertResponse{Load: toLoadResponse(lr.result, false)}
	if !lr.result.OK {
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	outDef := lr.def
	if hasOutputSchema(r) {
		def, err := s.definition(r, "to")
		if err != nil {
			s.respondError(w, r, err, 0)
			return
		}
		outDef = def
	}
	opts := outDef.SaveOptions(false)
	if to := r.FormValue("to"); to != "" {
		format, err := core.ParseFormat(to)
		if err != nil {
			s.respondError(w, r, err, http.StatusBadRequest)
			return
		}
		opts.Format = format
	}
	if v, ok := formBool(r, "schemaColumnsOnly"); ok {
		opts.SchemaColumnsOnly = v
	}

	name := outputName(lr.result.Table.Name(), opts.Format)
	out := filepath.Join(lr.dir, "out", name)
	opts.CreateDirectories = true

	save := s.deps.Service.Save(lr.ctx, lr.result.Table, out, opts)
	resp.Save = &RunSummary{
		RunID:      save.Log.RunID(),
		OK:         save.OK,
		DurationMS: save.Duration.Milliseconds(),
		Log:        save.Log.Entries(),
	}
	resp.RowsWritten = save.RowsWritten
	if !save.OK {
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	data, err := os.ReadFile(out)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("read output: %w", err), http.StatusInternalServerError)
		return
	}

	if v, _ := formBool(r, "download"); v {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		w.Header().Set("X-Load-Run-Id", resp.Load.RunID)
		w.Header().Set("X-Save-Run-Id", resp.Save.RunID)
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return
	}

	resp.Output = string(data)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.deps.SinkDB == nil {
		s.respondError(w, r, sink.ErrNotConfigured, 0)
		return
	}

	lr, ok := s.startLoad(w, r)
	if !ok {
		return
	}
	defer lr.close()

	resp := ExportResponse{Load: toLoadResponse(lr.result, false)}
	if !lr.result.OK {
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	replace, _ := formBool(r, "replace")
	opts := sink.ExportOptions{
		TableName:    strings.TrimSpace(r.FormValue("table")),
		Prefix:       s.cfg.Sink.TablePrefix,
		DropExisting: replace,
	}
	if opts.TableName == "" {
		opts.TableName = lr.result.Table.Name()
	}

	n, err := sink.Export(lr.ctx, s.deps.SinkDB, s.deps.Dialect, lr.result.Table, opts)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	resp.Table = opts.Prefix + opts.TableName
	resp.RowsExported = n
	writeJSON(w, http.StatusOK, resp)
}

// hasOutputSchema reports whether the request names an output schema.
func hasOutputSchema(r *http.Request) bool {
	if r.FormValue("toSchemaName") != "" || r.FormValue("toSchema") != "" {
		return true
	}
	if r.MultipartForm != nil {
		_, ok := r.MultipartForm.File["toSchemaFile"]
		return ok
	}
	return false
}

// outputName names the converted file after the table and format.
func outputName(table string, f core.Format) string {
	if table == "" {
		table = "output"
	}
	ext := ".txt"
	switch f {
	case core.CommaDelimited, core.QuoteCommaDelimited:
		ext = ".csv"
	case core.TabDelimited:
		ext = ".tsv"
	case core.FixedLength:
		ext = ".dat"
	}
	return table + ext
}

// loadStatus is 200 for a clean load and 422 otherwise.
func loadStatus(res *core.LoadResult) int {
	if res.OK {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}

func toLoadResponse(res *core.LoadResult, withRows bool) LoadResponse {
	resp := LoadResponse{
		RunSummary: RunSummary{
			RunID:      res.Log.RunID(),
			OK:         res.OK,
			DurationMS: res.Duration.Milliseconds(),
			Log:        res.Log.Entries(),
		},
		RowsRead:    res.RowsRead,
		RowsLoaded:  res.RowsLoaded,
		RowsSkipped: res.RowsSkipped,
	}
	if res.Table == nil {
		return resp
	}

	resp.Table = res.Table.Name()
	resp.Columns = res.Table.Columns()
	if withRows {
		resp.Rows = make([][]any, 0, res.Table.Len())
		for _, row := range res.Table.Rows() {
			cells := make([]any, len(row))
			for i, v := range row {
				cells[i] = v.Any()
			}
			resp.Rows = append(resp.Rows, cells)
		}
	}
	return resp
}
