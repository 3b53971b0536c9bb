// Package rules flattens configured categories into an immutable extension
// table and resolves filenames to destination folders.
//
// Extensions are case folded and stored without a leading dot. When the same
// extension is declared by more than one rule the earliest declaration wins;
// later declarations are kept as shadowed entries so callers can surface them.
package rules
