// Package logging configures the process-wide slog logger for amanrdf.
//
// Records are JSON, written to a size-rotated file under ~/.amanrdf/logs/
// and optionally mirrored to stderr. Event names are snake_case
// (e.g. "batch_dispatch_failed") with details carried as attributes.
package logging
