// Package services defines shared error markers and context helpers consumed
// by the organizer pipeline.
//
// Key responsibilities:
//   - Context helpers that stamp pass identifiers, pass triggers, and file
//     names for logging.
//   - Structured error markers plus the Wrap helper that let the move executor
//     and dispatcher classify failures (transient vs permanent) without
//     string matching.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error classification, observability, retries) stays uniform.
package services
