package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"shelver/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The watch root exists, retries have no delay, and the categories match the
// defaults unless overridden.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.WatchRoot = filepath.Join(base, "watch")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "state", "logs")
	cfgVal.Retry.DelaySeconds = 0
	cfgVal.Watch.DebounceMillis = 20
	cfgVal.Organizer.IgnorePatterns = config.DefaultIgnorePatterns()
	cfgVal.Categories = config.DefaultCategories()

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := os.MkdirAll(builder.cfg.WatchRoot, 0o755); err != nil {
		t.Fatalf("mkdir watch root: %v", err)
	}
	return builder.cfg
}

// WithCategories replaces the rule set on the test config.
func WithCategories(categories ...config.Category) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Categories = categories
	}
}

// WithWorkers overrides the dispatcher pool size.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Organizer.Workers = n
	}
}

// WithRetryAttempts overrides the move retry budget.
func WithRetryAttempts(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Retry.MaxAttempts = n
	}
}

// WithHistory toggles the outcome journal.
func WithHistory(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = enabled
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.WatchRoot)
}

// SimpleCategories is the two-rule set used by end-to-end tests:
// Images for jpg/png and Documents/PDFs for pdf.
func SimpleCategories() []config.Category {
	return []config.Category{
		{Name: "Images", Extensions: []string{"jpg", "png"}},
		{Name: "Documents", Subcategories: []config.Subcategory{
			{Name: "PDFs", Extensions: []string{"pdf"}},
		}},
	}
}
