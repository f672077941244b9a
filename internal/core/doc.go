// Package core provides the schema-driven row pipeline for flat text files.
//
// The package converts delimited or fixed-width text into typed, validated
// rows and writes typed rows back out. It has no UI or transport
// dependencies and is used by the HTTP server, the CLI and tests alike.
//
// # Architecture
//
// The pipeline is built from small pieces, leaves first:
//
//   - [Column]: name, [DataType], size, decimal places, nullability and
//     allowed values of one field.
//   - [AuditLog]: the append-only report of one run, mirrored to slog.
//   - [Tokenize]: splits a line into raw fields per [Format].
//   - [Convert]: turns a raw field into a typed [Value] or a soft failure.
//   - [Validate]: checks nullability and allowed values.
//   - [Table]: the in-memory row store a load produces.
//   - [FileStore]: file system access; [OSFiles] is the local one.
//
// [Service.Load] and [Service.Save] orchestrate them:
//
//	svc := core.NewService(nil, logger)
//	res := svc.Load(ctx, "orders.txt", core.LoadOptions{
//	    Format: core.CommaDelimited,
//	    Columns: []core.Column{
//	        core.NewColumn("Id", core.TypeInt64, 0, -1),
//	        core.NewColumn("Name", core.TypeString, 10, -1),
//	    },
//	})
//	if !res.OK {
//	    for _, e := range res.Log.Errors() {
//	        fmt.Println(e.Location, e.Message)
//	    }
//	}
//
// # Failure Model
//
// Load and Save never panic and never return Go errors. Every run returns a
// result with an OK flag and its AuditLog:
//
//   - Configuration errors (no columns, no format, no path) stop the run
//     before any file access.
//   - Fatal I/O errors stop the run; Load keeps the rows it already loaded
//     and Save removes its partial file.
//   - Per-row errors skip the row on Load and abort the whole Save.
//
// # Values
//
// Decimals are pgtype.Numeric so that arbitrary precision survives a round
// trip; rounding is half away from zero. Guids use google/uuid. Byte arrays
// are read and written as standard Base64.
//
// # Error Handling
//
// Errors surfaced to users outside the audit log (HTTP, CLI) are mapped with
// [MapError] to a [UserMessage] carrying a support code.
package core
