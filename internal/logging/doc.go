// Package logging assembles structured slog loggers and formatting helpers used
// across shelver.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with pass identifiers and file names automatically. The package also
// provides a no-op logger for tests and wiring code that cannot fail, plus
// retention helpers that prune per-run log files.
package logging
