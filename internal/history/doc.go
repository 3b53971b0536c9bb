// Package history journals scan passes and their per-file outcomes in SQLite.
//
// The journal lives at state_dir/history.db. Each pass is written together
// with its outcomes in a single transaction once the pass completes. Journal
// write failures are logged and never affect file processing.
package history
