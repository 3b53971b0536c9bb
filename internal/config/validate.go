package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable. Every failure here is fatal at
// startup: the daemon never watches with an invalid watch root or rule set.
func (c *Config) Validate() error {
	if err := c.validateWatchRoot(); err != nil {
		return err
	}
	if err := c.validateOrganizer(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateCategories()
}

func (c *Config) validateWatchRoot() error {
	if strings.TrimSpace(c.WatchRoot) == "" {
		return errors.New("watch_root is required. Set SHELVER_WATCH_ROOT or edit your config (create with 'shelver config init')")
	}
	info, err := os.Stat(c.WatchRoot)
	if err != nil {
		return fmt.Errorf("watch_root %q: %w", c.WatchRoot, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch_root %q is not a directory", c.WatchRoot)
	}
	return nil
}

func (c *Config) validateOrganizer() error {
	for _, pattern := range c.Organizer.IgnorePatterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("organizer.ignore_patterns: invalid pattern %q: %w", pattern, err)
		}
	}
	return ensurePositiveMap(map[string]int{
		"organizer.workers":           c.Organizer.Workers,
		"organizer.max_name_attempts": c.Organizer.MaxNameAttempts,
	})
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts <= 0 {
		return errors.New("retry.max_attempts must be positive")
	}
	if c.Retry.DelaySeconds < 0 {
		return errors.New("retry.delay_seconds must be >= 0")
	}
	if c.Watch.DebounceMillis < 0 {
		return errors.New("watch.debounce_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateCategories() error {
	if len(c.Categories) == 0 {
		return errors.New("categories must declare at least one category")
	}
	for i, cat := range c.Categories {
		field := fmt.Sprintf("categories[%d]", i)
		if err := validateSegment(field+".name", cat.Name); err != nil {
			return err
		}
		hasFlat := len(cat.Extensions) > 0
		hasNested := len(cat.Subcategories) > 0
		switch {
		case hasFlat && hasNested:
			return fmt.Errorf("%s (%s) must declare either extensions or subcategories, not both", field, cat.Name)
		case !hasFlat && !hasNested:
			return fmt.Errorf("%s (%s) must declare extensions or subcategories", field, cat.Name)
		case hasFlat:
			if err := validateExtensions(field+".extensions", cat.Extensions); err != nil {
				return err
			}
		default:
			for j, sub := range cat.Subcategories {
				subField := fmt.Sprintf("%s.subcategories[%d]", field, j)
				if err := validateSegment(subField+".name", sub.Name); err != nil {
					return err
				}
				if len(sub.Extensions) == 0 {
					return fmt.Errorf("%s (%s/%s) must declare extensions", subField, cat.Name, sub.Name)
				}
				if err := validateExtensions(subField+".extensions", sub.Extensions); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// validateSegment rejects folder names that would escape or flatten the
// destination tree.
func validateSegment(field, name string) error {
	if name == "" {
		return fmt.Errorf("%s must be set", field)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%s %q must be a single folder name", field, name)
	}
	return nil
}

func validateExtensions(field string, exts []string) error {
	for _, ext := range exts {
		if strings.Trim(ext, ".") == "" {
			return fmt.Errorf("%s contains an empty extension", field)
		}
		if strings.ContainsAny(ext, `/\`) {
			return fmt.Errorf("%s contains invalid extension %q", field, ext)
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
