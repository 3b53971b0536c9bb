// Package main hosts the shelver CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, then hands off to the
// internal packages: run starts the watching daemon in the foreground,
// organize performs a single pass, and rules, history and status report on
// the configured rule table, the outcome journal and the running instance.
package main
