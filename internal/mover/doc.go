// Package mover relocates a single file into its destination folder.
//
// Before touching anything the executor probes the source: it must still be a
// regular file and must be lockable for exclusive read/write, otherwise the
// file is skipped and picked up by a later pass. The move itself never
// replaces an existing destination. Transient failures (busy files, lost
// collision races) are retried under a fixed-delay policy; permanent failures
// are reported after the first attempt.
package mover
