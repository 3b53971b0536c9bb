// Package daemon coordinates the long-running shelver process.
//
// It wires configuration, the rule table, the move executor, the scan
// dispatcher, outcome sinks and the event coordinator into a single lifecycle
// with flock-based locking to prevent multiple instances from organizing the
// same watch root. The same wiring backs one-shot passes for the CLI.
//
// Keep orchestration logic here: matching, moving and scheduling live in their
// respective packages while the daemon focuses on startup, shutdown and
// diagnostics.
package daemon
