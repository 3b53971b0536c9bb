package config

const (
	defaultConfigPath      = "~/.config/shelver/config.toml"
	defaultWatchRoot       = "~/Downloads"
	defaultStateDir        = "~/.local/share/shelver"
	defaultLogDir          = "~/.local/share/shelver/logs"
	defaultWorkers         = 4
	defaultMaxNameAttempts = 10000
	defaultRetryAttempts   = 3
	defaultRetryDelay      = 2
	defaultDebounceMillis  = 750
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultLogRetention    = 30
	defaultHistoryDays     = 90
)

// DefaultIgnorePatterns lists partial-download and temp-file globs that are
// never organized.
func DefaultIgnorePatterns() []string {
	return []string{"*.part", "*.crdownload", "*.download", "*.partial", "*.tmp", ".shelver-*"}
}

// DefaultCategories returns the rule set used when the config file declares none.
func DefaultCategories() []Category {
	return []Category{
		{Name: "Images", Extensions: []string{"jpg", "jpeg", "png", "gif", "bmp", "tiff", "webp"}},
		{Name: "Videos", Extensions: []string{"mp4", "mov", "wmv", "flv", "avi", "mkv", "webm"}},
		{Name: "Documents", Subcategories: []Subcategory{
			{Name: "PDFs", Extensions: []string{"pdf"}},
			{Name: "Office", Extensions: []string{"doc", "docx", "xls", "xlsx", "ppt", "pptx", "odt"}},
			{Name: "Text", Extensions: []string{"txt", "md"}},
		}},
		{Name: "Music", Extensions: []string{"mp3", "wav", "aac", "flac", "ogg", "m4a"}},
	}
}

// Default returns a Config populated with repository defaults. Categories and
// ignore patterns are filled during normalization so a config file replaces
// them wholesale instead of merging.
func Default() Config {
	return Config{
		WatchRoot: defaultWatchRoot,
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Organizer: Organizer{
			Workers:         defaultWorkers,
			MaxNameAttempts: defaultMaxNameAttempts,
		},
		Retry: Retry{
			MaxAttempts:  defaultRetryAttempts,
			DelaySeconds: defaultRetryDelay,
		},
		Watch: Watch{
			DebounceMillis: defaultDebounceMillis,
		},
		History: History{
			Enabled:       true,
			RetentionDays: defaultHistoryDays,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetention,
		},
	}
}
