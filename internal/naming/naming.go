// Package naming picks destination filenames that do not collide with
// existing entries.
package naming

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"shelver/internal/services"
)

// DefaultMaxAttempts caps how many numeric suffixes are probed.
const DefaultMaxAttempts = 10000

// Namer allocates unused paths by appending _N before the extension.
// The check is advisory: another writer may claim the name before the caller
// uses it, so the move step must still refuse to overwrite.
type Namer struct {
	maxAttempts int
	lstat       func(string) (fs.FileInfo, error)
}

// Option customizes a Namer.
type Option func(*Namer)

// WithMaxAttempts overrides the suffix cap.
func WithMaxAttempts(n int) Option {
	return func(nm *Namer) {
		if n > 0 {
			nm.maxAttempts = n
		}
	}
}

// WithLstat replaces the existence probe, primarily for tests.
func WithLstat(fn func(string) (fs.FileInfo, error)) Option {
	return func(nm *Namer) {
		if fn != nil {
			nm.lstat = fn
		}
	}
}

// New constructs a Namer.
func New(opts ...Option) *Namer {
	nm := &Namer{maxAttempts: DefaultMaxAttempts, lstat: os.Lstat}
	for _, opt := range opts {
		opt(nm)
	}
	return nm
}

// MakeUnique returns path unchanged when nothing exists there, otherwise the
// first free "base_N.ext" sibling.
func (nm *Namer) MakeUnique(path string) (string, error) {
	free, err := nm.free(path)
	if err != nil {
		return "", err
	}
	if free {
		return path, nil
	}

	dir := filepath.Dir(path)
	base, ext := SplitName(filepath.Base(path))
	for attempt := 1; attempt <= nm.maxAttempts; attempt++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, attempt, ext))
		free, err := nm.free(candidate)
		if err != nil {
			return "", err
		}
		if free {
			return candidate, nil
		}
	}
	return "", services.Wrap(
		services.ErrNameSpaceExhausted,
		"naming",
		"make unique",
		fmt.Sprintf("no free name for %s after %d attempts", filepath.Base(path), nm.maxAttempts),
		nil,
	)
}

func (nm *Namer) free(path string) (bool, error) {
	_, err := nm.lstat(path)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	return false, fmt.Errorf("probe %s: %w", path, err)
}

// SplitName separates a filename into base and extension (with its dot). A
// name whose only dot is the leading one has no extension.
func SplitName(name string) (string, string) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" || strings.Trim(base, ".") == "" {
		return name, ""
	}
	return base, ext
}
