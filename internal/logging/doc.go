// Package logging builds slog loggers for the daemon and CLI, with console
// and JSON formats, multi-destination output, and helpers that derive
// structured fields from request context.
package logging
